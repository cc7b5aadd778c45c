package merger

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/ranker"
)

func TestMerge(t *testing.T) {
	lists := [][]ranker.ScoredDoc{
		{{Ref: "0", Score: 1.5}, {Ref: "1", Score: 0.2}, {Ref: "2", Score: 3}},
		{{Ref: "3", Score: 1.5}, {Ref: "1", Score: 0.9}},
	}
	got := Merge(lists, 3)
	want := []ranker.ScoredDoc{{Ref: "2", Score: 3}, {Ref: "0", Score: 1.5}, {Ref: "3", Score: 1.5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}

	all := Merge(lists, 100)
	if len(all) != 4 || all[3].Ref != "1" || all[3].Score != 0.9 {
		t.Errorf("duplicate refs must keep their best score: %+v", all)
	}
}

func TestMergeDefaultLimit(t *testing.T) {
	var list []ranker.ScoredDoc
	for i := 0; i < 25; i++ {
		list = append(list, ranker.ScoredDoc{Ref: string(rune('a' + i)), Score: float64(i)})
	}
	got := Merge([][]ranker.ScoredDoc{list}, 0)
	if len(got) != DefaultLimit || got[0].Ref != "y" {
		t.Errorf("Merge(limit 0) = %+v", got)
	}
	if got := Merge(nil, 5); len(got) != 0 {
		t.Errorf("Merge(nil) = %+v", got)
	}
}
