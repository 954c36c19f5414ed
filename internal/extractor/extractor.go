// Package extractor recovers plain text from uploaded syllabus files.
// Files are handled fully in memory; nothing touches the filesystem.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when neither the declared content type nor
// the filename extension identifies a format we can extract.
var ErrUnsupportedFormat = errors.New("unsupported file format")

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extract returns the plain text of an uploaded document. The content type is
// the client's declared MIME type; the filename extension is the tiebreaker
// when the declared type is missing or generic (browsers sometimes send
// application/octet-stream).
func Extract(data []byte, contentType, filename string) (string, error) {
	switch detectFormat(contentType, filename) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filename, contentType)
	}
}

func detectFormat(contentType, filename string) string {
	// Declared type may carry parameters, e.g. "application/pdf; name=x".
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch mime {
	case mimePDF:
		return "pdf"
	case mimeDOCX:
		return "docx"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	}
	return ""
}
