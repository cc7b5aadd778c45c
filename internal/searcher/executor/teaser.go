package executor

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
)

// Word weights used to pick the teaser window.
const (
	weightFirstWord  = 8
	weightSearchTerm = 40
	weightNormal     = 2
)

type weightedWord struct {
	word   string
	weight int
	index  int
}

// MakeTeaser picks the count-word window of body with the most search-term
// weight and wraps the matching words in <em>. Words match when their stem
// starts with the stem of a search word. Without any match the window
// starts at the beginning of body. The text around the markup is
// HTML-escaped.
func MakeTeaser(body string, searchWords []string, count int) string {
	if count < 1 {
		count = 1
	}
	stemmed := make([]string, 0, len(searchWords))
	for _, w := range searchWords {
		if w == "" {
			continue
		}
		s, _ := pipeline.Stem(strings.ToLower(w))
		stemmed = append(stemmed, s)
	}

	var weighted []weightedWord
	found := false
	index := 0
	for _, sentence := range strings.Split(body, ". ") {
		value := weightFirstWord
		for _, word := range strings.Split(sentence, " ") {
			if word != "" {
				stem, _ := pipeline.Stem(strings.ToLower(word))
				for _, term := range stemmed {
					if strings.HasPrefix(stem, term) {
						value = weightSearchTerm
						found = true
					}
				}
				weighted = append(weighted, weightedWord{word: word, weight: value, index: index})
				value = weightNormal
			}
			index += len(word) + 1
		}
		index++
	}
	if len(weighted) == 0 {
		return html.EscapeString(body)
	}

	size := min(len(weighted), count)
	sums := make([]int, 0, len(weighted)-size+1)
	sum := 0
	for i := 0; i < size; i++ {
		sum += weighted[i].weight
	}
	sums = append(sums, sum)
	for i := 0; i < len(weighted)-size; i++ {
		sum -= weighted[i].weight
		sum += weighted[i+size].weight
		sums = append(sums, sum)
	}

	start := 0
	if found {
		// the widget scans from the end, so the last maximal window wins
		best := 0
		for i := len(sums) - 1; i >= 0; i-- {
			if sums[i] > best {
				best = sums[i]
				start = i
			}
		}
	}

	var sb strings.Builder
	index = weighted[start].index
	for _, w := range weighted[start : start+size] {
		if index < w.index {
			sb.WriteString(html.EscapeString(body[index:w.index]))
		}
		if w.weight == weightSearchTerm {
			sb.WriteString("<em>")
		}
		index = w.index + len(w.word)
		sb.WriteString(html.EscapeString(w.word))
		if w.weight == weightSearchTerm {
			sb.WriteString("</em>")
		}
	}
	return sb.String()
}
