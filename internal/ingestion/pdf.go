package ingestion

import (
	"bytes"
	"io"
	"os/exec"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// extractTextFromPDF reads the PDF's embedded text layer. An empty result
// means the document is likely scanned; callers should fall back to OCR.
func extractTextFromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		// Some PDFs defeat the library; pdftotext handles a wider range.
		if out, err := exec.Command("pdftotext", "-layout", path, "-").Output(); err == nil {
			return string(out), nil
		}
	}
	return text, nil
}
