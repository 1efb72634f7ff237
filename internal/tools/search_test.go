package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const ddgFixture = `<html><body><table>
<tr><td><a class="result-link" href="https://example.com/moon">Moon facts</a></td></tr>
<tr><td class="result-snippet">The Moon orbits at 384,400 km.</td></tr>
<tr><td><a class="result-link" href="https://example.com/tides">Tides explained</a></td></tr>
<tr><td class="result-snippet">Caused by the Moon's gravity.</td></tr>
</table></body></html>`

func newTestWebSearch(srv *httptest.Server) *WebSearch {
	w := NewWebSearch()
	w.baseURL = srv.URL
	w.client = srv.Client()
	return w
}

func TestWebSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotQuery = r.PostForm.Get("q")
		_, _ = w.Write([]byte(ddgFixture))
	}))
	defer srv.Close()

	out, err := newTestWebSearch(srv).handle(context.Background(), map[string]any{"query": "moon distance"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery != "moon distance" {
		t.Errorf("posted query %q", gotQuery)
	}
	for _, want := range []string{"Moon facts", "https://example.com/moon", "384,400", "Tides explained"} {
		if !strings.Contains(out, want) {
			t.Errorf("result should contain %q:\n%s", want, out)
		}
	}
}

func TestWebSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer srv.Close()

	out, err := newTestWebSearch(srv).handle(context.Background(), map[string]any{"query": "gibberish"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No results found") {
		t.Errorf("got %q", out)
	}
}

func TestWebSearchRetriesAfterTooManyRequests(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(ddgFixture))
	}))
	defer srv.Close()

	out, err := newTestWebSearch(srv).handle(context.Background(), map[string]any{"query": "moon"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected a retry after 429, got %d calls", calls)
	}
	if !strings.Contains(out, "Moon facts") {
		t.Errorf("got %q", out)
	}
}

func TestWebSearchMissingQuery(t *testing.T) {
	if _, err := NewWebSearch().handle(context.Background(), map[string]any{}); err == nil {
		t.Error("a missing query should error")
	}
}
