// Package tokenizer splits field text into raw search tokens. Tokens are
// lower-cased and separated on whitespace and hyphens; everything else,
// punctuation included, is left for the pipeline to normalise.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lower-cased tokens.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, isSeparator)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-'
}
