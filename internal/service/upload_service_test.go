package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEssayUploaderRejectsSize(t *testing.T) {
	storage := &memoryStorage{}
	uploader := newEssayUploader(storage, 1)

	file := multipartFile(t, "submitted_file", "essay.pdf", append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 2*1024*1024)...))

	_, err := uploader.store(context.Background(), file)
	require.ErrorIs(t, err, ErrUploadTooLarge)
	require.Empty(t, storage.names)
}

func TestEssayUploaderRejectsType(t *testing.T) {
	storage := &memoryStorage{}
	uploader := newEssayUploader(storage, 5)

	file := multipartFile(t, "submitted_file", "essay.zip", []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00"))

	_, err := uploader.store(context.Background(), file)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Empty(t, storage.names)
}

func TestEssayUploaderStoresAllowedTypes(t *testing.T) {
	cases := map[string]struct {
		filename string
		content  []byte
		mime     string
	}{
		"pdf":   {filename: "Minha Redação.PDF", content: []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n"), mime: "application/pdf"},
		"text":  {filename: "essay.txt", content: []byte("A educação transforma vidas."), mime: "text/plain"},
		"image": {filename: "scan.png", content: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), mime: "image/png"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			storage := &memoryStorage{}
			uploader := newEssayUploader(storage, 5)

			stored, err := uploader.store(context.Background(), multipartFile(t, "submitted_file", tc.filename, tc.content))
			require.NoError(t, err)
			require.Contains(t, stored.MimeType, tc.mime)
			require.Equal(t, int64(len(tc.content)), stored.Size)
			require.Len(t, storage.names, 1)
			require.Equal(t, "https://files.test/essays/"+storage.names[0], stored.URL)
		})
	}
}

func TestEssayUploaderWithoutStorage(t *testing.T) {
	uploader := newEssayUploader(nil, 5)

	_, err := uploader.store(context.Background(), multipartFile(t, "submitted_file", "essay.txt", []byte("texto")))
	require.ErrorIs(t, err, ErrFileStorageUnavailable)
}

func TestEssayUploaderStorageFailure(t *testing.T) {
	storage := &memoryStorage{err: errors.New("bucket offline")}
	uploader := newEssayUploader(storage, 5)

	_, err := uploader.store(context.Background(), multipartFile(t, "submitted_file", "essay.txt", []byte("texto")))
	require.Error(t, err)
	require.Contains(t, err.Error(), "bucket offline")
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "minha-reda--o.pdf", sanitizeFileName("Minha Redação.PDF"))
	require.Equal(t, "essay_v2.docx", sanitizeFileName("essay_v2.docx"))
	require.Equal(t, "draft.bin", sanitizeFileName("draft"))
}
