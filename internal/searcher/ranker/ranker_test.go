package ranker

import (
	"math"
	"strconv"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
)

func sampleIndex(t *testing.T) *indexer.Index {
	t.Helper()
	p, err := pipeline.Load([]string{pipeline.Trimmer})
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.New(indexer.Options{Fields: []string{"body"}, Pipeline: p, StoreDocs: true})
	for ref, body := range map[string]string{
		"0": "alpha beta",
		"1": "alpha alphabet",
		"2": "gamma",
	} {
		if err := idx.AddDoc(docstore.Doc{"id": ref, "body": body}); err != nil {
			t.Fatal(err)
		}
	}
	return idx
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestFieldSearchExpand(t *testing.T) {
	idx := sampleIndex(t)
	scores := FieldSearch(idx, []string{"alpha"}, "body", BoolOR, true)
	exact := 1 / math.Sqrt2
	penalty := (1 - 3.0/8.0) * 0.15
	want1 := exact + (1+math.Log(1.5))/math.Sqrt2*penalty
	if len(scores) != 2 || !near(scores["0"], exact) || !near(scores["1"], want1) {
		t.Errorf("scores = %v, want 0:%v 1:%v", scores, exact, want1)
	}

	scores = FieldSearch(idx, []string{"alpha"}, "body", BoolOR, false)
	if !near(scores["0"], exact) || !near(scores["1"], exact) {
		t.Errorf("without expansion scores = %v", scores)
	}
	if got := FieldSearch(idx, []string{"alph"}, "body", BoolOR, false); len(got) != 0 {
		t.Errorf("prefix without expansion should not match, got %v", got)
	}
}

func TestFieldSearchBoolModes(t *testing.T) {
	idx := sampleIndex(t)
	both := 1/math.Sqrt2 + (1+math.Log(1.5))/math.Sqrt2

	and := FieldSearch(idx, []string{"alpha", "beta"}, "body", BoolAND, false)
	if len(and) != 1 || !near(and["0"], both) {
		t.Errorf("AND scores = %v, want only doc 0 = %v", and, both)
	}

	or := FieldSearch(idx, []string{"alpha", "beta"}, "body", BoolOR, false)
	// doc 1 matches one of two query tokens exactly: coordination halves it
	if len(or) != 2 || !near(or["0"], both) || !near(or["1"], 0.5/math.Sqrt2) {
		t.Errorf("OR scores = %v", or)
	}

	if got := FieldSearch(idx, []string{"alpha", "delta"}, "body", BoolAND, false); len(got) != 0 {
		t.Errorf("AND with an unknown token = %v, want none", got)
	}
}

func TestSearch(t *testing.T) {
	idx := sampleIndex(t)
	opts := Options{Bool: BoolOR, Expand: true, Boosts: map[string]float64{"body": 2}}
	got := Search(idx, []string{"alpha"}, opts)
	if len(got) != 2 || got[0].Ref != "1" || got[1].Ref != "0" {
		t.Fatalf("Search() = %+v", got)
	}
	if !near(got[1].Score, 2/math.Sqrt2) {
		t.Errorf("boosted score = %v", got[1].Score)
	}

	opts.Expand = false
	got = Search(idx, []string{"alpha"}, opts)
	if len(got) != 2 || got[0].Ref != "0" || got[1].Ref != "1" {
		t.Errorf("ties must order by ref: %+v", got)
	}

	opts.Exclude = []string{"beta"}
	got = Search(idx, []string{"alpha"}, opts)
	if len(got) != 1 || got[0].Ref != "1" {
		t.Errorf("excluded search = %+v", got)
	}
}

func TestSearchSkipsZeroBoost(t *testing.T) {
	idx := sampleIndex(t)
	got := Search(idx, []string{"alpha"}, Options{Boosts: map[string]float64{"body": 0}})
	if len(got) != 0 {
		t.Errorf("zero boost should skip the field, got %+v", got)
	}
	if got := Search(idx, nil, Options{Boosts: map[string]float64{"body": 1}}); len(got) != 0 {
		t.Errorf("empty query = %+v", got)
	}
}

func BenchmarkSearch(b *testing.B) {
	idx := indexer.New(indexer.Options{StoreDocs: false})
	words := []string{"array", "slice", "vector", "pointer", "reference", "lifetime", "borrow", "trait"}
	for i := 0; i < 2000; i++ {
		body := ""
		for j := 0; j < 40; j++ {
			body += words[(i*7+j*3)%len(words)] + " "
		}
		idx.AddDoc(docstore.Doc{"id": strconv.Itoa(i), "title": words[i%len(words)], "body": body})
	}
	tokens := idx.Analyze("array borrow")
	opts := Options{Bool: BoolOR, Expand: true, Boosts: map[string]float64{"title": 2, "body": 1, "breadcrumbs": 1}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Search(idx, tokens, opts)
	}
}
