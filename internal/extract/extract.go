// Package extract turns uploaded document bytes into plain text for ingestion.
package extract

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

// Extractor converts raw document bytes into normalized plain text.
type Extractor interface {
	// Extract returns the text content of the document.
	Extract(name string, data []byte) (string, error)

	// SupportedExtensions returns file extensions this extractor handles.
	SupportedExtensions() []string
}

// TextExtractor handles plain text and markdown documents.
// Markdown is indexed as-is: headings and lists carry retrieval signal.
type TextExtractor struct{}

var _ Extractor = (*TextExtractor)(nil)

// NewTextExtractor creates an extractor for plain text formats.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// SupportedExtensions returns the extensions handled by this extractor.
func (e *TextExtractor) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown", ".text", ".rst", ".log"}
}

// Extract validates and normalizes the document bytes.
// It strips a UTF-8 BOM, rejects invalid UTF-8, and normalizes CRLF to LF.
func (e *TextExtractor) Extract(name string, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	if !utf8.Valid(data) {
		return "", inqerrors.ExtractionError("document is not valid UTF-8 text", nil).
			WithDetail("document", name)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	if strings.TrimSpace(text) == "" {
		return "", inqerrors.New(inqerrors.ErrCodeDocumentEmpty,
			"document contains no text", nil).WithDetail("document", name)
	}

	return text, nil
}

// Registry routes documents to extractors by file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates a registry with the default extractors installed.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(NewTextExtractor())
	return r
}

// Register adds an extractor for all of its supported extensions.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.SupportedExtensions() {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Extract picks an extractor by the document's extension and runs it.
// Unknown extensions fall back to the plain text extractor so that
// extensionless notes still ingest; binary content is caught by the
// UTF-8 check.
func (r *Registry) Extract(name string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if e, ok := r.byExt[ext]; ok {
		return e.Extract(name, data)
	}
	return NewTextExtractor().Extract(name, data)
}

// Supported reports whether the extension has a dedicated extractor.
func (r *Registry) Supported(name string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}
