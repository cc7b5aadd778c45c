package index

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"
)

func buildSample() *InvertedIndex {
	ii := NewInvertedIndex()
	ii.AddToken("array", "0", 3)
	ii.AddToken("array", "1", math.Sqrt(15))
	ii.AddToken("arr", "2", 1)
	ii.AddToken("array.typ", "1", 1)
	ii.AddToken("type", "1", 4)
	return ii
}

func TestAddTokenDocFreq(t *testing.T) {
	ii := buildSample()
	if got := ii.DocFreq("array"); got != 2 {
		t.Errorf("DocFreq(array) = %d, want 2", got)
	}
	// re-adding the same ref overwrites tf without bumping df
	ii.AddToken("array", "0", 2)
	if got := ii.DocFreq("array"); got != 2 {
		t.Errorf("DocFreq(array) after re-add = %d, want 2", got)
	}
	if got := ii.TermFrequency("array", "0"); got != 2 {
		t.Errorf("TermFrequency(array, 0) = %v, want 2", got)
	}
	if got := ii.DocFreq("ar"); got != 0 {
		t.Errorf("DocFreq(ar) = %d, want 0 for an interior node", got)
	}
}

func TestHasTokenAndDocs(t *testing.T) {
	ii := buildSample()
	if !ii.HasToken("arr") || !ii.HasToken("ar") {
		t.Error("expected prefixes on the path to exist")
	}
	if ii.HasToken("arrays") || ii.HasToken("") {
		t.Error("unexpected token reported")
	}
	docs := ii.Docs("array")
	want := map[string]float64{"0": 3, "1": math.Sqrt(15)}
	if !reflect.DeepEqual(docs, want) {
		t.Errorf("Docs(array) = %v, want %v", docs, want)
	}
	docs["9"] = 1
	if ii.DocFreq("array") != 2 || len(ii.Docs("array")) != 2 {
		t.Error("Docs must return a copy")
	}
}

func TestRemoveToken(t *testing.T) {
	ii := buildSample()
	ii.RemoveToken("array", "0")
	ii.RemoveToken("array", "0")
	ii.RemoveToken("missing", "0")
	if got := ii.DocFreq("array"); got != 1 {
		t.Errorf("DocFreq(array) = %d, want 1", got)
	}
	if got := ii.TermFrequency("array", "0"); got != 0 {
		t.Errorf("TermFrequency after remove = %v", got)
	}
}

func TestExpandToken(t *testing.T) {
	ii := buildSample()
	got := ii.ExpandToken("ar")
	want := []string{"arr", "array", "array.typ"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExpandToken(ar) = %v, want %v", got, want)
	}
	if got := ii.ExpandToken("zzz"); len(got) != 0 {
		t.Errorf("ExpandToken(zzz) = %v", got)
	}
	if got := ii.ExpandToken("type"); !reflect.DeepEqual(got, []string{"type"}) {
		t.Errorf("ExpandToken(type) = %v", got)
	}
}

func TestTermsSnapshot(t *testing.T) {
	ii := buildSample()
	terms := ii.Terms()
	names := make([]string, len(terms))
	for i, e := range terms {
		names[i] = e.Term
	}
	if want := []string{"arr", "array", "array.typ", "type"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("Terms() = %v, want %v", names, want)
	}
	if terms[1].DocFreq != 2 || terms[1].Postings[0].Ref != "0" || terms[1].Postings[1].Ref != "1" {
		t.Errorf("unexpected array entry: %+v", terms[1])
	}
	if ii.Len() != 4 {
		t.Errorf("Len() = %d, want 4", ii.Len())
	}
}

func TestJSONShape(t *testing.T) {
	ii := NewInvertedIndex()
	ii.AddToken("ab", "1", 1)
	data, err := json.Marshal(ii)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"root":{"a":{"b":{"df":1,"docs":{"1":{"tf":1}}},"df":0,"docs":{}},"df":0,"docs":{}}}`
	if string(data) != want {
		t.Errorf("Marshal = %s\nwant      %s", data, want)
	}
}

func TestJSONRoundTripPreservesQueries(t *testing.T) {
	ii := buildSample()
	data, err := json.Marshal(ii)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back InvertedIndex
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back.Terms(), ii.Terms()) {
		t.Errorf("terms differ after round trip:\n%v\n%v", back.Terms(), ii.Terms())
	}
}

func TestUnmarshalKeepsStoredDocFreq(t *testing.T) {
	var ii InvertedIndex
	raw := `{"root":{"df":0,"docs":{},"x":{"df":5,"docs":{"0":{"tf":1}}}}}`
	if err := json.Unmarshal([]byte(raw), &ii); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ii.DocFreq("x") != 5 {
		t.Errorf("DocFreq(x) = %d, want stored value 5", ii.DocFreq("x"))
	}
}

func TestUnmarshalNodesWithoutDocs(t *testing.T) {
	var ii InvertedIndex
	raw := `{"root":{"a":{"b":{"docs":{"0":{"tf":1.0}},"df":1}}}}`
	if err := json.Unmarshal([]byte(raw), &ii); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ii.DocFreq("a") != 0 || len(ii.Docs("a")) != 0 {
		t.Errorf("bare node a: df = %d, docs = %v", ii.DocFreq("a"), ii.Docs("a"))
	}
	if ii.TermFrequency("ab", "0") != 1 || ii.DocFreq("ab") != 1 {
		t.Errorf("ab: tf = %v, df = %d", ii.TermFrequency("ab", "0"), ii.DocFreq("ab"))
	}
}

func TestUnmarshalRejectsMultiCharKey(t *testing.T) {
	var ii InvertedIndex
	err := json.Unmarshal([]byte(`{"root":{"ab":{"df":0,"docs":{}}}}`), &ii)
	if err == nil || !strings.Contains(err.Error(), "single character") {
		t.Fatalf("expected single-character error, got %v", err)
	}
}

func TestJSONRoundTripReplacementChar(t *testing.T) {
	for _, token := range []string{"caf\uFFFDs", "caf\xffs"} {
		ii := NewInvertedIndex()
		ii.AddToken(token, "0", 1)
		data, err := json.Marshal(ii)
		if err != nil {
			t.Fatalf("Marshal(%q): %v", token, err)
		}
		var back InvertedIndex
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%q): %v", token, err)
		}
		if !back.HasToken(token) || back.TermFrequency(token, "0") != 1 {
			t.Errorf("token %q lost after round trip", token)
		}
	}
}

func TestMarshalRejectsNaN(t *testing.T) {
	ii := NewInvertedIndex()
	ii.AddToken("x", "0", math.NaN())
	if _, err := json.Marshal(ii); err == nil {
		t.Fatal("expected error for NaN term frequency")
	}
}

func TestRestore(t *testing.T) {
	ii := buildSample()
	back, err := Restore(ii.Terms())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(back.Terms(), ii.Terms()) {
		t.Error("restored index differs")
	}
	bad := []TermEntry{{Term: "x", DocFreq: 3, Postings: PostingList{{Ref: "0", TF: 1}}}}
	if _, err := Restore(bad); err == nil {
		t.Error("expected df mismatch error")
	}
}

func BenchmarkAddToken(b *testing.B) {
	ii := NewInvertedIndex()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ii.AddToken("expression", "doc", 1)
	}
}
