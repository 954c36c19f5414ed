package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// extractDOCX extracts text from a DOCX held in memory. The library exposes
// the raw document XML, so paragraphs are recovered by splitting on <w:p>
// tags and stripping the remaining markup.
func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read docx: %w", err)
	}
	defer r.Close()

	xmlContent := r.Editable().GetContent()
	paragraphs := splitDOCXParagraphs(xmlContent)
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("no text extracted from docx")
	}
	return strings.Join(paragraphs, "\n"), nil
}

// splitDOCXParagraphs splits DOCX XML content by <w:p> paragraph tags and
// strips all XML tags from each paragraph, returning clean text.
func splitDOCXParagraphs(xmlStr string) []string {
	parts := strings.Split(xmlStr, "<w:p")
	var paragraphs []string
	for _, part := range parts {
		cleaned := strings.TrimSpace(stripTags(part))
		if cleaned != "" {
			paragraphs = append(paragraphs, cleaned)
		}
	}
	return paragraphs
}

func stripTags(xmlStr string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range xmlStr {
		if r == '<' {
			inTag = true
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
