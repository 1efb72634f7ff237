package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const searchUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgLimiter keeps all web searches at 1 query per second across goroutines,
// the lite endpoint bans anything quicker.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// WebSearch scrapes DuckDuckGo's lite html interface.
type WebSearch struct {
	client  *http.Client
	baseURL string
}

func NewWebSearch() *WebSearch {
	return &WebSearch{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://lite.duckduckgo.com/lite/",
	}
}

func (w *WebSearch) Tool() Tool {
	return Tool{
		Name:        "search_web",
		Description: "Search the web for a query and return the top results with their urls.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query.",
				},
			},
			"required": []string{"query"},
		},
		Handler: w.handle,
	}
}

func (w *WebSearch) handle(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	if err := ddgLimiter.Wait(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("q", query)

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", searchUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = w.client.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30s.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse search results: %w", err)
	}

	links := doc.Find("a.result-link")
	snippets := doc.Find("td.result-snippet")

	var results []string
	links.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		title := strings.TrimSpace(sel.Text())
		if href == "" || title == "" {
			return true
		}

		snippet := ""
		if i < snippets.Length() {
			snippet = strings.TrimSpace(snippets.Eq(i).Text())
		}

		results = append(results, fmt.Sprintf("%s\n%s\n%s", title, href, snippet))
		return len(results) < 5
	})

	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query), nil
	}
	return strings.Join(results, "\n\n"), nil
}
