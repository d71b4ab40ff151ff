package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// NormalizeDescription lowercases s, turns every non-alphanumeric rune into a
// space and collapses runs of whitespace.
func NormalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// descriptionsSimilar reports whether two normalized descriptions refer to the
// same counterparty: one contains the other, or they share a word of at least
// minWord runes.
func descriptionsSimilar(a, b string, minWord int) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		if utf8.RuneCountInString(w) >= minWord {
			words[w] = struct{}{}
		}
	}
	for _, w := range strings.Fields(b) {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

// editSimilarity is 1 - distance/longest over normalized descriptions, in [0, 1].
// It only orders candidates; it never contributes to the score.
func editSimilarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
