package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var scoreDigits = regexp.MustCompile(`-?\d+`)

var scoreWords = map[string]int{
	"zero":  0,
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
}

// parseScore extracts an integer score from the model's free text. Models are
// asked for a bare integer but reply with things like "5", "score: 4" or
// "five". Out of range values are clamped to [0, 5]. Callers treat a parse
// error as score 0.
func parseScore(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, errors.New("empty score")
	}

	if n, ok := scoreWords[s]; ok {
		return n, nil
	}

	m := scoreDigits.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no score found in %q", s)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("failed to parse score %q: %w", s, err)
	}

	return min(max(n, 0), 5), nil
}
