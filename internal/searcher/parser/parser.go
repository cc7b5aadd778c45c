// Package parser turns a raw search string into a query plan: the
// pipeline-processed tokens used for scoring and the plain lower-cased words
// used to highlight teasers.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/tokenizer"
)

// Operators recognised in a query. Only the upper-case forms are operators;
// lower-case "and", "or" and "not" are ordinary (stop) words.
const (
	OpAND = "AND"
	OpOR  = "OR"
	OpNOT = "NOT"
)

type QueryPlan struct {
	RawQuery string
	// Terms are the query tokens after the index pipeline.
	Terms []string
	// Words are the lower-cased query words, split on spaces, for teasers.
	Words        []string
	ExcludeTerms []string
	// Bool overrides the index's default boolean mode when set.
	Bool string
}

func Parse(query string, p *pipeline.Pipeline) *QueryPlan {
	plan := &QueryPlan{
		RawQuery:     query,
		Terms:        make([]string, 0),
		Words:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case OpAND, OpOR:
			plan.Bool = word
			continue
		case OpNOT:
			excludeNext = true
			continue
		}
		terms := p.Run(tokenizer.Tokenize(word))
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, terms...)
			excludeNext = false
			continue
		}
		plan.Words = append(plan.Words, strings.ToLower(word))
		plan.Terms = append(plan.Terms, terms...)
	}
	return plan
}

// Normalized is a canonical form of the plan for cache keys: queries that
// score identically map to the same string.
func (q *QueryPlan) Normalized() string {
	parts := []string{q.Bool, strings.Join(q.Terms, ",")}
	if len(q.ExcludeTerms) > 0 {
		parts = append(parts, "NOT:"+strings.Join(q.ExcludeTerms, ","))
	}
	if len(q.Words) > 0 {
		parts = append(parts, "W:"+strings.Join(q.Words, ","))
	}
	return strings.Join(parts, "|")
}
