// Package ranker scores documents the way the client-side search widget
// does: per field, tf * idf * length norm with a penalty for prefix
// expansions, merged per query token and weighted by field boost.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
)

// Boolean modes for combining query tokens.
const (
	BoolOR  = "OR"
	BoolAND = "AND"
)

// expansionPenalty scales matches found by prefix expansion.
const expansionPenalty = 0.15

type ScoredDoc struct {
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
}

// Options mirror the serialized search options.
type Options struct {
	Bool   string
	Expand bool
	// Boosts maps field name to weight. Fields missing here, or with weight
	// 0, are not searched.
	Boosts map[string]float64
	// Exclude drops documents containing any of these tokens in any field.
	Exclude []string
}

// FieldSearch scores every document matching tokens in one field.
func FieldSearch(idx *indexer.Index, tokens []string, field, mode string, expand bool) map[string]float64 {
	inv, ok := idx.Field(field)
	if !ok {
		return map[string]float64{}
	}
	store := idx.Store()
	var scores map[string]float64
	// docTokens records, per doc, the query tokens it matched exactly.
	docTokens := make(map[string]int)

	for _, token := range tokens {
		keys := []string{token}
		if expand {
			keys = inv.ExpandToken(token)
		}
		tokenScores := make(map[string]float64)
		for _, key := range keys {
			docs := inv.Docs(key)
			idf := idx.IDF(key, field)
			if scores != nil && mode == BoolAND {
				for ref := range docs {
					if _, ok := scores[ref]; !ok {
						delete(docs, ref)
					}
				}
			}
			if key == token {
				for ref := range docs {
					docTokens[ref]++
				}
			}
			for ref, tf := range docs {
				norm := 1.0
				if n := store.FieldLength(ref, field); n != 0 {
					norm = 1 / math.Sqrt(float64(n))
				}
				penalty := 1.0
				if key != token {
					penalty = (1 - float64(len(key)-len(token))/float64(len(key))) * expansionPenalty
				}
				tokenScores[ref] += tf * idf * norm * penalty
			}
		}
		scores = mergeScores(scores, tokenScores, mode)
	}
	if scores == nil {
		return map[string]float64{}
	}
	return coordNorm(scores, docTokens, len(tokens))
}

func mergeScores(acc, scores map[string]float64, mode string) map[string]float64 {
	if acc == nil {
		return scores
	}
	if mode == BoolAND {
		out := make(map[string]float64, len(scores))
		for ref, s := range scores {
			if prev, ok := acc[ref]; ok {
				out[ref] = prev + s
			}
		}
		return out
	}
	for ref, s := range scores {
		acc[ref] += s
	}
	return acc
}

func coordNorm(scores map[string]float64, docTokens map[string]int, n int) map[string]float64 {
	for ref := range scores {
		matched, ok := docTokens[ref]
		if !ok {
			continue
		}
		scores[ref] = scores[ref] * float64(matched) / float64(n)
	}
	return scores
}

// Search scores all fields, sums them by boost and returns every matching
// document, best first. Ties are broken by ascending ref.
func Search(idx *indexer.Index, tokens []string, opts Options) []ScoredDoc {
	if len(tokens) == 0 {
		return []ScoredDoc{}
	}
	mode := opts.Bool
	if mode != BoolAND {
		mode = BoolOR
	}
	total := make(map[string]float64)
	for _, field := range idx.Fields() {
		boost := opts.Boosts[field]
		if boost == 0 {
			continue
		}
		for ref, s := range FieldSearch(idx, tokens, field, mode, opts.Expand) {
			total[ref] += s * boost
		}
	}
	if len(opts.Exclude) > 0 {
		for _, field := range idx.Fields() {
			inv, _ := idx.Field(field)
			for _, term := range opts.Exclude {
				for ref := range inv.Docs(term) {
					delete(total, ref)
				}
			}
		}
	}
	result := make([]ScoredDoc, 0, len(total))
	for ref, score := range total {
		result = append(result, ScoredDoc{Ref: ref, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Ref < result[j].Ref
	})
	return result
}
