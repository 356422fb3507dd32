package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

func TestTextExtractor_PlainText(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.Extract("notes.txt", []byte("hello world\n"))

	require.NoError(t, err)
	assert.Equal(t, "hello world\n", text)
}

func TestTextExtractor_NormalizesCRLF(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.Extract("notes.txt", []byte("line one\r\nline two\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", text)
}

func TestTextExtractor_StripsBOM(t *testing.T) {
	e := NewTextExtractor()

	text, err := e.Extract("notes.md", append([]byte{0xEF, 0xBB, 0xBF}, []byte("# Title")...))

	require.NoError(t, err)
	assert.Equal(t, "# Title", text)
}

func TestTextExtractor_RejectsInvalidUTF8(t *testing.T) {
	e := NewTextExtractor()

	_, err := e.Extract("blob.bin", []byte{0xFF, 0xFE, 0x00, 0x41})

	require.Error(t, err)
	assert.Equal(t, inqerrors.ErrCodeExtractionFailed, inqerrors.GetCode(err))
}

func TestTextExtractor_RejectsEmptyDocument(t *testing.T) {
	e := NewTextExtractor()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"whitespace only", []byte("   \n\t\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract("empty.txt", tt.data)

			require.Error(t, err)
			assert.True(t, errors.Is(err, inqerrors.New(inqerrors.ErrCodeDocumentEmpty, "", nil)))
		})
	}
}

func TestRegistry_RoutesByExtension(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Supported("readme.md"))
	assert.True(t, r.Supported("NOTES.TXT"))
	assert.False(t, r.Supported("report.pdf"))
}

func TestRegistry_UnknownExtensionFallsBackToText(t *testing.T) {
	r := NewRegistry()

	// Extensionless notes still ingest as plain text
	text, err := r.Extract("meeting-notes", []byte("quarterly planning"))

	require.NoError(t, err)
	assert.Equal(t, "quarterly planning", text)
}

func TestRegistry_BinaryFallbackRejected(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract("image.png", []byte{0x89, 0x50, 0x4E, 0x47, 0xFF, 0xFE})

	require.Error(t, err)
	assert.Equal(t, inqerrors.ErrCodeExtractionFailed, inqerrors.GetCode(err))
}
