package fts

import (
	"strings"
	"unicode"
)

// Tokenize implements the "simple" analyzer named in DEFINE INDEX ...
// SEARCH ANALYZER simple: lowercase, split on runs of non-letter/non-digit
// runes, drop empty tokens. Stemming and stop-word filtering are left to a
// future analyzer definition and are not implemented here.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// TermFrequencies counts occurrences of each token, used both to build a
// document's postings contribution and to size its doc-length entry.
func TermFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
