package scrape

import (
	"net/url"
	"strings"
	"testing"
)

func TestTextPrefersMainLandmark(t *testing.T) {
	body := []byte(`<html><body>
		<header>site header</header>
		<main>
			<h1>Title</h1>
			<p>First    paragraph with   odd spacing.</p>

			<p>Second paragraph.</p>
		</main>
		<footer>site footer</footer>
	</body></html>`)

	u, _ := url.Parse("https://example.com/page")
	text, err := Text(body, u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(text, "First paragraph with odd spacing.") {
		t.Errorf("whitespace not normalized:\n%s", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Errorf("missing paragraph:\n%s", text)
	}
	if strings.Contains(text, "site header") || strings.Contains(text, "site footer") {
		t.Errorf("chrome outside <main> should be dropped:\n%s", text)
	}
}

func TestTextReadabilityFallback(t *testing.T) {
	// No <main> landmark, readability has to find the article.
	body := []byte(`<html><head><title>Moon</title></head><body>
		<div id="content">
			<h1>The Moon</h1>
			<p>` + strings.Repeat("The Moon orbits Earth at an average distance of 384,400 km. ", 10) + `</p>
		</div>
	</body></html>`)

	u, _ := url.Parse("https://example.com/moon")
	text, err := Text(body, u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "384,400 km") {
		t.Errorf("missing article text:\n%s", text)
	}
}

func TestTextEmptyBody(t *testing.T) {
	u, _ := url.Parse("https://example.com")
	if _, err := Text([]byte("  \n "), u); err == nil {
		t.Error("an empty body should error")
	}
}

func TestNormalize(t *testing.T) {
	in := "  a   b\t c \n\n\n\n d \n   \n e  "
	want := "a b c\nd\ne"

	if got := normalize(in); got != want {
		t.Errorf("normalize = %q, want %q", got, want)
	}
}
