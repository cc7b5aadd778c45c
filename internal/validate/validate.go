// Package validate checks a decoded search index for internal consistency:
// matching document counts, well-formed term frequencies, df values that
// agree with their postings, and options that refer to indexed fields.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
)

// Violation codes.
const (
	CodeLength   = "length"
	CodeTF       = "tf"
	CodeDF       = "df"
	CodeRef      = "ref"
	CodeDocInfo  = "docinfo"
	CodePipeline = "pipeline"
	CodeOptions  = "options"
	CodeField    = "field"
)

// Violation is one failed check.
type Violation struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report is the outcome of Check.
type Report struct {
	Docs       int         `json:"docs"`
	Terms      int         `json:"terms"`
	Violations []Violation `json:"violations"`
}

func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

func (r *Report) add(code, path, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidationError holds per-path failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, fmt.Sprintf("%s:%s", p, e.Fields[p]))
	}
	return strings.Join(parts, "; ")
}

// Err returns nil for a clean report, or a *ValidationError keyed by path.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	fields := make(map[string]string, len(r.Violations))
	for _, v := range r.Violations {
		if prev, ok := fields[v.Path]; ok {
			fields[v.Path] = prev + "; " + v.Message
			continue
		}
		fields[v.Path] = v.Message
	}
	return &ValidationError{Fields: fields}
}

// Check runs every consistency check against si.
func Check(si *segment.SearchIndex) *Report {
	r := &Report{}
	store := si.Index.DocumentStore
	if store == nil {
		r.add(CodeLength, "index.documentStore", "document store is missing")
		return r
	}
	r.Docs = store.Len()

	checkLengths(r, si)
	checkMetadata(r, si)
	checkDocInfo(r, si)
	for _, field := range si.Index.Fields {
		inv := si.Index.Index[field]
		if inv == nil {
			r.add(CodeField, "index.index."+field, "field has no inverted index")
			continue
		}
		checkTrie(r, si, field, inv)
	}
	for field := range si.Index.Index {
		if !contains(si.Index.Fields, field) {
			r.add(CodeField, "index.index."+field, "inverted index for a field that is not declared")
		}
	}
	checkOptions(r, si)
	return r
}

func checkLengths(r *Report, si *segment.SearchIndex) {
	store := si.Index.DocumentStore
	declared, docs, infos, urls := store.DeclaredLength(), store.Len(), len(store.InfoRefs()), len(si.DocURLs)
	if declared != docs {
		r.add(CodeLength, "index.documentStore.length", "length is %d but there are %d docs", declared, docs)
	}
	if infos != docs {
		r.add(CodeLength, "index.documentStore.docInfo", "%d docInfo entries for %d docs", infos, docs)
	}
	if urls != docs {
		r.add(CodeLength, "doc_urls", "%d urls for %d docs", urls, docs)
	}
}

func checkMetadata(r *Report, si *segment.SearchIndex) {
	if si.Index.Ref == "" {
		r.add(CodePipeline, "index.ref", "ref field is empty")
	}
	for i, label := range si.Index.Pipeline {
		if _, ok := pipeline.Lookup(label); !ok {
			r.add(CodePipeline, fmt.Sprintf("index.pipeline[%d]", i), "unknown pipeline function %q", label)
		}
	}
	if len(si.Index.Fields) == 0 {
		r.add(CodeField, "index.fields", "no fields declared")
	}
}

func checkDocInfo(r *Report, si *segment.SearchIndex) {
	store := si.Index.DocumentStore
	for _, ref := range store.InfoRefs() {
		path := "index.documentStore.docInfo." + ref
		if !store.HasDoc(ref) {
			r.add(CodeDocInfo, path, "docInfo for unknown doc")
		}
		lengths := store.FieldLengths(ref)
		for _, field := range si.Index.Fields {
			n, ok := lengths[field]
			switch {
			case !ok:
				r.add(CodeDocInfo, path+"."+field, "missing field length")
			case n < 0:
				r.add(CodeDocInfo, path+"."+field, "negative field length %d", n)
			}
		}
		for field := range lengths {
			if !contains(si.Index.Fields, field) {
				r.add(CodeDocInfo, path+"."+field, "length recorded for undeclared field")
			}
		}
	}
}

func checkTrie(r *Report, si *segment.SearchIndex, field string, inv *index.InvertedIndex) {
	store := si.Index.DocumentStore
	inv.Walk(func(term string, n *index.Node) {
		path := fmt.Sprintf("index.index.%s[%q]", field, term)
		if n.DocFreq != len(n.Docs) {
			r.add(CodeDF, path, "df is %d but %d docs are listed", n.DocFreq, len(n.Docs))
		}
		if len(n.Docs) > 0 {
			r.Terms++
		}
		refs := make([]string, 0, len(n.Docs))
		for ref := range n.Docs {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			tf := n.Docs[ref]
			if math.IsNaN(tf) || math.IsInf(tf, 0) || tf < 0 {
				r.add(CodeTF, path+"."+ref, "term frequency %v is not a finite non-negative number", tf)
			}
			if !store.HasDoc(ref) {
				r.add(CodeRef, path+"."+ref, "ref is not in the document store")
			}
		}
	})
}

func checkOptions(r *Report, si *segment.SearchIndex) {
	opts := si.SearchOptions
	if opts.Bool != segment.BoolOR && opts.Bool != segment.BoolAND {
		r.add(CodeOptions, "search_options.bool", "bool must be OR or AND, got %q", opts.Bool)
	}
	fields := make([]string, 0, len(opts.Fields))
	for f := range opts.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		path := "search_options.fields." + f
		if !contains(si.Index.Fields, f) {
			r.add(CodeOptions, path, "field is not indexed")
		}
		if b := opts.Fields[f].Boost; b < 0 || math.IsNaN(b) || math.IsInf(b, 0) {
			r.add(CodeOptions, path+".boost", "boost must be a finite non-negative number, got %v", b)
		}
	}
	if si.ResultsOptions.LimitResults < 1 {
		r.add(CodeOptions, "results_options.limit_results", "must be positive")
	}
	if si.ResultsOptions.TeaserWordCount < 1 {
		r.add(CodeOptions, "results_options.teaser_word_count", "must be positive")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
