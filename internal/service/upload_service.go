package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/essay-grader-api/internal/observability"
)

var (
	// ErrUploadTooLarge indicates the essay file exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not accepted for essays.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrFileStorageUnavailable indicates no storage backend is configured.
	ErrFileStorageUnavailable = errors.New("file uploads are not available")
)

// FileStorage abstracts upload destinations. Upload returns an absolute,
// publicly resolvable URL.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

var essayMimeTypes = []string{
	"application/pdf",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type storedFile struct {
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// essayUploader validates an essay attachment and hands it to storage.
type essayUploader struct {
	storage FileStorage
	maxSize int64
}

func newEssayUploader(storage FileStorage, maxSizeMB int) essayUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return essayUploader{storage: storage, maxSize: int64(maxSizeMB) * 1024 * 1024}
}

func (u essayUploader) store(ctx context.Context, file *multipart.FileHeader) (storedFile, error) {
	if u.storage == nil {
		return storedFile{}, ErrFileStorageUnavailable
	}

	if file.Size > u.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return storedFile{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return storedFile{}, fmt.Errorf("open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, u.maxSize+1)); err != nil {
		return storedFile{}, fmt.Errorf("read file: %w", err)
	}
	if int64(buf.Len()) > u.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return storedFile{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	if !isEssayMime(detected) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return storedFile{}, fmt.Errorf("%w: %s", ErrUploadTypeNotAllowed, detected.String())
	}

	name := sanitizeFileName(file.Filename)
	url, err := u.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		return storedFile{}, fmt.Errorf("store file: %w", err)
	}

	return storedFile{
		URL:      url,
		Name:     name,
		MimeType: detected.String(),
		Size:     int64(buf.Len()),
	}, nil
}

func isEssayMime(detected *mimetype.MIME) bool {
	if strings.HasPrefix(detected.String(), "image/") {
		return true
	}
	for _, allowed := range essayMimeTypes {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("essay-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
