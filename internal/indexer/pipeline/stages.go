package pipeline

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// Trim strips leading and trailing characters that are not letters,
// digits or underscores.
func Trim(token string) (string, bool) {
	token = strings.TrimFunc(token, func(r rune) bool {
		return !isWordRune(r)
	})
	return token, token != ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// FilterStopWord drops common English words.
func FilterStopWord(token string) (string, bool) {
	if _, stop := stopWords[token]; stop {
		return "", false
	}
	return token, true
}

// IsStopWord reports whether token is in the English stop-word list.
func IsStopWord(token string) bool {
	_, stop := stopWords[token]
	return stop
}

// Stem reduces a token to its Porter stem. Tokens shorter than three bytes
// are returned unchanged.
func Stem(token string) (string, bool) {
	if len(token) < 3 {
		return token, true
	}
	return porterstemmer.StemString(token), true
}

var stopWords = map[string]struct{}{
	"a": {}, "able": {}, "about": {}, "across": {}, "after": {}, "all": {},
	"almost": {}, "also": {}, "am": {}, "among": {}, "an": {}, "and": {},
	"any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "because": {},
	"been": {}, "but": {}, "by": {}, "can": {}, "cannot": {}, "could": {},
	"dear": {}, "did": {}, "do": {}, "does": {}, "either": {}, "else": {},
	"ever": {}, "every": {}, "for": {}, "from": {}, "get": {}, "got": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "hers": {},
	"him": {}, "his": {}, "how": {}, "however": {}, "i": {}, "if": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "just": {},
	"least": {}, "let": {}, "like": {}, "likely": {}, "may": {}, "me": {},
	"might": {}, "most": {}, "must": {}, "my": {}, "neither": {}, "no": {},
	"nor": {}, "not": {}, "of": {}, "off": {}, "often": {}, "on": {},
	"only": {}, "or": {}, "other": {}, "our": {}, "own": {}, "rather": {},
	"said": {}, "say": {}, "says": {}, "she": {}, "should": {}, "since": {},
	"so": {}, "some": {}, "than": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"tis": {}, "to": {}, "too": {}, "twas": {}, "us": {}, "wants": {},
	"was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "who": {}, "whom": {}, "why": {}, "will": {},
	"with": {}, "would": {}, "yet": {}, "you": {}, "your": {},
}
