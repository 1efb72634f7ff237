package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modfin/quill/internal/scrape"
)

const (
	maxFetchBytes = 512 * 1024 // page body read limit
	maxFetchRunes = 32 * 1024  // text handed back to the session
)

// PageFetch downloads a url and reduces it to readable text.
type PageFetch struct {
	client *http.Client
}

func NewPageFetch() *PageFetch {
	return &PageFetch{client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *PageFetch) Tool() Tool {
	return Tool{
		Name:        "fetch_page",
		Description: "Download a web page and return its readable text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The url of the page to fetch.",
				},
			},
			"required": []string{"url"},
		},
		Handler: f.handle,
	}
}

func (f *PageFetch) handle(ctx context.Context, args map[string]any) (string, error) {
	target, err := stringArg(args, "url")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("bad url %q: %w", target, err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	text, err := scrape.Text(body, resp.Request.URL)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %q: %w", target, err)
	}

	if runes := []rune(text); len(runes) > maxFetchRunes {
		text = string(runes[:maxFetchRunes]) + "\n[truncated]"
	}
	return text, nil
}
