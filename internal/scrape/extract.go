// Package scrape loads site content into the knowledge base: sitemap
// crawling, main-content extraction and chunking.
package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var (
	reSpaces     = regexp.MustCompile(`[ \t\x{00a0}]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// Text extracts the readable text of an html page. Pages with a <main>
// landmark use its text directly, anything else goes through readability.
func Text(body []byte, pageURL *url.URL) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", errors.New("empty page body")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	if main := doc.Find("main"); main.Length() > 0 {
		return normalize(main.Text()), nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}
	return normalize(article.TextContent), nil
}

func normalize(s string) string {
	s = reSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	s = strings.Join(out, "\n")
	return strings.TrimSpace(reBlankLines.ReplaceAllString(s, "\n\n"))
}
