package session

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/csheth/ragdesk/internal/backend"
)

// allowedUploadTypes is the client-side allow-list; anything else is
// rejected before transmission.
var allowedUploadTypes = map[string]string{
	".txt": "text/plain",
	".pdf": "application/pdf",
}

// ValidateFile enforces the upload preconditions: a supported extension,
// non-empty content, and for PDFs a successful local parse. A PDF the
// backend cannot chunk should be caught here, not after a round trip.
func ValidateFile(file backend.File) error {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return &backend.ValidationError{Reason: "file name is empty"}
	}
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedUploadTypes[ext]; !ok {
		return &backend.ValidationError{Reason: fmt.Sprintf("unsupported file type %q (allowed: .txt, .pdf)", ext)}
	}
	if len(file.Bytes) == 0 {
		return &backend.ValidationError{Reason: fmt.Sprintf("%s is empty", name)}
	}
	if ext == ".pdf" {
		if _, err := pdf.NewReader(bytes.NewReader(file.Bytes), int64(len(file.Bytes))); err != nil {
			return &backend.ValidationError{Reason: fmt.Sprintf("%s is not a readable PDF: %v", name, err)}
		}
	}
	return nil
}

// LoadFile reads a local file into an upload payload, deriving the mime
// type from the extension.
func LoadFile(path string) (backend.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backend.File{}, &backend.ValidationError{Reason: err.Error()}
	}
	name := filepath.Base(path)
	mimeType := allowedUploadTypes[strings.ToLower(filepath.Ext(name))]
	return backend.File{Name: name, Bytes: data, MimeType: mimeType}, nil
}
