package bm25

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// stopwords is the standard English stopword list the tokenizer strips
// before stemming, matching the analyzer spec.md §4.3 calls for.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "these": true, "those": true,
	"but": true, "or": true, "not": true, "we": true, "can": true, "our": true,
	"their": true, "which": true, "such": true, "than": true, "also": true,
}

// Tokenize lowercases, splits on non-alphanumeric boundaries, strips
// stopwords, and applies a light Porter suffix stemmer. Both document and
// query text pass through this exact function so index terms and query
// terms land in the same space.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || stopwords[f] {
			continue
		}
		out = append(out, porterstemmer.StemString(f))
	}
	return out
}
