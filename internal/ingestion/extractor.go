// Package ingestion loads documents, extracts their text, and feeds the
// chunk-embed-store pipeline. The query-time workflow never imports it; the
// two sides share only the vector index contract.
package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the document formats the pipeline accepts.
var SupportedExtensions = []string{".pdf", ".docx", ".html", ".htm", ".txt", ".md"}

// SupportedType reports whether the file's extension is one ExtractText can
// handle, letting callers reject uploads before buffering them.
func SupportedType(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ExtractText detects the file type from its extension and returns the
// document's plain text.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ".pdf":
		// Try the text layer first; scanned PDFs fall back to OCR.
		text, err := extractTextFromPDF(path)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		return extractTextWithOCR(path)
	case ".html", ".htm":
		return extractTextFromHTML(path)
	case ".docx":
		return extractTextFromDOCX(path)
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
}
