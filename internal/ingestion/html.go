package ingestion

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// extractTextFromHTML pulls the readable article text out of an HTML file,
// dropping navigation, scripts, and boilerplate.
func extractTextFromHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pageURL := &url.URL{Scheme: "file", Path: path}
	article, err := readability.FromReader(f, pageURL)
	if err != nil {
		return "", fmt.Errorf("parse HTML %s: %w", path, err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
