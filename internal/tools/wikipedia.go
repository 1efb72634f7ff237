package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/modfin/henry/mapz"
)

const maxExtractRunes = 4000

// WikipediaSearch returns plain text extracts of the top articles matching a
// keyword, via the MediaWiki api.
type WikipediaSearch struct {
	client  *http.Client
	baseURL string
	limit   int
}

func NewWikipediaSearch() *WikipediaSearch {
	return &WikipediaSearch{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://en.wikipedia.org/w/api.php",
		limit:   3,
	}
}

func (w *WikipediaSearch) Tool() Tool {
	return Tool{
		Name:        "search_wikipedia",
		Description: "Search Wikipedia for a keyword and return the top 3 matching articles as plain text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"keyword": map[string]any{
					"type":        "string",
					"description": "The keyword to search Wikipedia for.",
				},
			},
			"required": []string{"keyword"},
		},
		Handler: w.handle,
	}
}

type wikiPage struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

type wikiResponse struct {
	Query struct {
		Pages map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

func (w *WikipediaSearch) handle(ctx context.Context, args map[string]any) (string, error) {
	keyword, err := stringArg(args, "keyword")
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("generator", "search")
	params.Set("gsrsearch", keyword)
	params.Set("gsrlimit", fmt.Sprint(w.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wikipedia http %d", resp.StatusCode)
	}

	var payload wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode wikipedia response: %w", err)
	}

	pages := mapz.Values(payload.Query.Pages)
	if len(pages) == 0 {
		return fmt.Sprintf("No Wikipedia articles found for %q.", keyword), nil
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})

	var sections []string
	for _, page := range pages {
		extract := page.Extract
		if runes := []rune(extract); len(runes) > maxExtractRunes {
			extract = string(runes[:maxExtractRunes]) + " ..."
		}
		sections = append(sections, fmt.Sprintf("== %s ==\n%s", page.Title, extract))
	}
	return strings.Join(sections, "\n\n"), nil
}
