package ingestion

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// extractTextWithOCR rasterizes a scanned PDF with pdftoppm (poppler) and
// runs tesseract OCR over each page image.
func extractTextWithOCR(path string) (string, error) {
	tmpPrefix := filepath.Join(os.TempDir(), "finsight_pdfimg")
	if err := exec.Command("pdftoppm", "-png", path, tmpPrefix).Run(); err != nil {
		return "", fmt.Errorf("pdftoppm convert failed: %w", err)
	}
	matches, err := filepath.Glob(tmpPrefix + "-*.png")
	if err != nil {
		return "", err
	}
	defer func() {
		for _, m := range matches {
			os.Remove(m)
		}
	}()

	var combined strings.Builder
	for _, m := range matches {
		t, err := runTesseract(m)
		if err != nil {
			continue
		}
		combined.WriteString(t)
		combined.WriteString("\n")
	}
	return strings.TrimSpace(combined.String()), nil
}

func runTesseract(imgPath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetImage(imgPath); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
