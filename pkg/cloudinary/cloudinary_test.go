package cloudinary

import (
	"io"
	"regexp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.New(io.Discard))
	require.Error(t, err)
}

func TestNewDefaultsFolder(t *testing.T) {
	svc, err := New(Config{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "/"}, zerolog.New(io.Discard))
	require.NoError(t, err)
	require.Equal(t, "essays/uploads", svc.folder)
}

func TestResourceType(t *testing.T) {
	require.Equal(t, "image", resourceType("scan.JPG"))
	require.Equal(t, "raw", resourceType("essay.pdf"))
	require.Equal(t, "raw", resourceType("essay.docx"))
	require.Equal(t, "raw", resourceType("notes"))
}

func TestBuildPublicID(t *testing.T) {
	require.Regexp(t, regexp.MustCompile(`^minha-reda--o-\d+\.pdf$`), buildPublicID("minha redação.PDF"))
	require.Regexp(t, regexp.MustCompile(`^scan-\d+$`), buildPublicID("scan.png"))
	require.Regexp(t, regexp.MustCompile(`^essay-\d+\.txt$`), buildPublicID("!!.txt"))
}
