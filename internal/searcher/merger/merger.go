// Package merger selects the top results from one or more scored lists with
// a bounded min-heap.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/ranker"
)

// DefaultLimit applies when Merge is called without a positive limit.
const DefaultLimit = 10

// Merge returns the best limit documents across lists, ordered by
// descending score then ascending ref. A ref present in several lists keeps
// its highest score.
func Merge(lists [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	if limit <= 0 {
		limit = DefaultLimit
	}
	best := make(map[string]float64)
	for _, results := range lists {
		for _, doc := range results {
			if prev, ok := best[doc.Ref]; !ok || doc.Score > prev {
				best[doc.Ref] = doc.Score
			}
		}
	}
	h := &scoredDocHeap{}
	heap.Init(h)
	for ref, score := range best {
		heap.Push(h, ranker.ScoredDoc{Ref: ref, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Ref > h[j].Ref
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
