package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const wikiFixture = `{"query": {"pages": {
	"2": {"index": 2, "title": "Lunar phase", "extract": "The lunar phase is the shape of the Moon's sunlit portion."},
	"1": {"index": 1, "title": "Moon", "extract": "The Moon is Earth's only natural satellite."}
}}}`

func newTestWikipediaSearch(srv *httptest.Server) *WikipediaSearch {
	w := NewWikipediaSearch()
	w.baseURL = srv.URL
	w.client = srv.Client()
	return w
}

func TestWikipediaSearch(t *testing.T) {
	var gotSearch, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("gsrsearch")
		gotLimit = r.URL.Query().Get("gsrlimit")
		_, _ = w.Write([]byte(wikiFixture))
	}))
	defer srv.Close()

	out, err := newTestWikipediaSearch(srv).handle(context.Background(), map[string]any{"keyword": "moon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotSearch != "moon" {
		t.Errorf("searched for %q", gotSearch)
	}
	if gotLimit != "3" {
		t.Errorf("gsrlimit = %q, want 3", gotLimit)
	}

	// Articles come back ordered by search rank, not by page id.
	first := strings.Index(out, "== Moon ==")
	second := strings.Index(out, "== Lunar phase ==")
	if first == -1 || second == -1 {
		t.Fatalf("missing section headers:\n%s", out)
	}
	if first > second {
		t.Errorf("articles out of rank order:\n%s", out)
	}
	if !strings.Contains(out, "natural satellite") {
		t.Errorf("missing extract text:\n%s", out)
	}
}

func TestWikipediaSearchTruncatesLongExtracts(t *testing.T) {
	long := strings.Repeat("a", maxExtractRunes+500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query": {"pages": {"1": {"index": 1, "title": "Long", "extract": "` + long + `"}}}}`))
	}))
	defer srv.Close()

	out, err := newTestWikipediaSearch(srv).handle(context.Background(), map[string]any{"keyword": "long"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(out, " ...") {
		t.Error("a long extract should be truncated with a marker")
	}
	if len([]rune(out)) > maxExtractRunes+100 {
		t.Errorf("extract not truncated, %d runes", len([]rune(out)))
	}
}

func TestWikipediaSearchNoArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query": {"pages": {}}}`))
	}))
	defer srv.Close()

	out, err := newTestWikipediaSearch(srv).handle(context.Background(), map[string]any{"keyword": "qzxw"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No Wikipedia articles found") {
		t.Errorf("got %q", out)
	}
}
