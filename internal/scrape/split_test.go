package scrape

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25) // 250 runes

	chunks := Split(text, 100, 20)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks[:2] {
		if len([]rune(chunk)) != 100 {
			t.Errorf("chunk %d has %d runes, want 100", i, len([]rune(chunk)))
		}
	}

	// Consecutive chunks share their boundary text.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("chunk 1 should start with the last 20 runes of chunk 0")
	}

	if got := strings.Join(chunks, ""); !strings.HasPrefix(got, "abcdefghij") {
		t.Errorf("chunks out of order")
	}
}

func TestSplitShortText(t *testing.T) {
	chunks := Split("just a sentence", 1000, 200)
	if len(chunks) != 1 || chunks[0] != "just a sentence" {
		t.Errorf("got %v", chunks)
	}
}

func TestSplitEmpty(t *testing.T) {
	if chunks := Split("   \n\t ", 1000, 200); chunks != nil {
		t.Errorf("expected nil for blank text, got %v", chunks)
	}
}

func TestSplitDefaults(t *testing.T) {
	text := strings.Repeat("x", 2500)

	chunks := Split(text, 0, -1)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if len([]rune(chunk)) > DefaultChunkSize {
			t.Errorf("chunk %d exceeds the default size", i)
		}
	}
}

func TestSplitOverlapLargerThanSize(t *testing.T) {
	chunks := Split(strings.Repeat("y", 50), 10, 10)
	// The overlap falls back rather than looping forever.
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total < 50 {
		t.Errorf("chunks dropped text, covered %d of 50 runes", total)
	}
}

func TestSplitUnicode(t *testing.T) {
	text := strings.Repeat("åäö", 100) // 300 runes, 600 bytes

	for i, chunk := range Split(text, 100, 0) {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d split mid-rune: %q", i, chunk)
		}
	}
}
