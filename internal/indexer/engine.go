// Package indexer builds the searchable index of a book: documents are run
// through the tokenizer and pipeline and land in one inverted trie per field,
// with their field lengths kept in the document store.
package indexer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/tokenizer"
)

// Version is the index format version written into serialized indexes.
const Version = "0.9.5"

// Field names of a book section document.
const (
	FieldTitle       = "title"
	FieldBody        = "body"
	FieldBreadcrumbs = "breadcrumbs"
	RefField         = "id"
)

// DefaultFields is the field order of book section documents.
var DefaultFields = []string{FieldTitle, FieldBody, FieldBreadcrumbs}

// Index is an in-memory full-text index over a fixed set of fields.
type Index struct {
	ref      string
	fields   []string
	lang     string
	pipeline *pipeline.Pipeline
	store    *docstore.DocumentStore
	inverted map[string]*index.InvertedIndex
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Options configures a new Index.
type Options struct {
	Ref       string
	Fields    []string
	Language  string
	Pipeline  *pipeline.Pipeline
	StoreDocs bool
}

// New creates an empty index. Zero options fall back to the book section
// layout and the default English pipeline.
func New(opts Options) *Index {
	if opts.Ref == "" {
		opts.Ref = RefField
	}
	if len(opts.Fields) == 0 {
		opts.Fields = DefaultFields
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	if opts.Pipeline == nil {
		opts.Pipeline = pipeline.Default()
	}
	idx := &Index{
		ref:      opts.Ref,
		fields:   append([]string(nil), opts.Fields...),
		lang:     opts.Language,
		pipeline: opts.Pipeline,
		store:    docstore.New(opts.StoreDocs),
		inverted: make(map[string]*index.InvertedIndex, len(opts.Fields)),
		logger:   slog.Default().With("component", "index"),
	}
	for _, f := range idx.fields {
		idx.inverted[f] = index.NewInvertedIndex()
	}
	return idx
}

// Restore assembles an index from already-built parts, as read back from
// disk. Every field needs an inverted index.
func Restore(ref string, fields []string, lang string, p *pipeline.Pipeline,
	store *docstore.DocumentStore, inverted map[string]*index.InvertedIndex) (*Index, error) {
	for _, f := range fields {
		if inv, ok := inverted[f]; !ok || inv == nil {
			return nil, fmt.Errorf("field %q has no inverted index", f)
		}
	}
	return &Index{
		ref:      ref,
		fields:   append([]string(nil), fields...),
		lang:     lang,
		pipeline: p,
		store:    store,
		inverted: inverted,
		logger:   slog.Default().With("component", "index"),
	}, nil
}

// Analyze runs text through the tokenizer and the index pipeline.
func (idx *Index) Analyze(text string) []string {
	return idx.pipeline.Run(tokenizer.Tokenize(text))
}

// AddDoc indexes doc. The ref field must be set. Each distinct token of a
// field is stored with tf = sqrt(occurrences).
func (idx *Index) AddDoc(doc docstore.Doc) error {
	ref, ok := doc[idx.ref]
	if !ok || ref == "" {
		return fmt.Errorf("document has no %q field", idx.ref)
	}
	analyzed := make(map[string][]string, len(idx.fields))
	for _, f := range idx.fields {
		analyzed[f] = idx.Analyze(doc[f])
	}
	idx.addAnalyzed(ref, doc, analyzed)
	return nil
}

func (idx *Index) addAnalyzed(ref string, doc docstore.Doc, analyzed map[string][]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.store.AddDoc(ref, doc)
	for _, f := range idx.fields {
		tokens := analyzed[f]
		idx.store.SetFieldLength(ref, f, len(tokens))
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		for token, count := range counts {
			idx.inverted[f].AddToken(token, ref, math.Sqrt(float64(count)))
		}
	}
	idx.logger.Debug("document indexed", "ref", ref, "fields", len(idx.fields))
}

// RemoveDoc removes ref from every field. Removing requires the stored
// document, so it is a no-op on indexes built without StoreDocs.
func (idx *Index) RemoveDoc(ref string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	doc, ok := idx.store.GetDoc(ref)
	if !ok {
		return false
	}
	if doc == nil {
		idx.logger.Warn("cannot remove document from an index without stored docs", "ref", ref)
		return false
	}
	for _, f := range idx.fields {
		for _, token := range idx.pipeline.Run(tokenizer.Tokenize(doc[f])) {
			idx.inverted[f].RemoveToken(token, ref)
		}
	}
	idx.store.RemoveDoc(ref)
	return true
}

// UpdateDoc replaces the document with the same ref.
func (idx *Index) UpdateDoc(doc docstore.Doc) error {
	if ref, ok := doc[idx.ref]; ok {
		idx.RemoveDoc(ref)
	}
	return idx.AddDoc(doc)
}

// IDF is 1 + ln(N / (df + 1)) for term in field.
func (idx *Index) IDF(term, field string) float64 {
	inv, ok := idx.inverted[field]
	if !ok {
		return 0
	}
	df := inv.DocFreq(term)
	return 1 + math.Log(float64(idx.store.Len())/float64(df+1))
}

// Field returns the inverted index of a field.
func (idx *Index) Field(name string) (*index.InvertedIndex, bool) {
	inv, ok := idx.inverted[name]
	return inv, ok
}

func (idx *Index) Fields() []string {
	return append([]string(nil), idx.fields...)
}

func (idx *Index) Ref() string {
	return idx.ref
}

func (idx *Index) Language() string {
	return idx.lang
}

func (idx *Index) Pipeline() *pipeline.Pipeline {
	return idx.pipeline
}

func (idx *Index) Store() *docstore.DocumentStore {
	return idx.store
}

// Stats summarises index size.
type Stats struct {
	Docs          int            `json:"docs"`
	TermsPerField map[string]int `json:"terms_per_field"`
}

func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	st := Stats{
		Docs:          idx.store.Len(),
		TermsPerField: make(map[string]int, len(idx.fields)),
	}
	for _, f := range idx.fields {
		st.TermsPerField[f] = idx.inverted[f].Len()
	}
	return st
}

// Snapshot returns every field's terms, in field order.
func (idx *Index) Snapshot() []index.FieldTerms {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]index.FieldTerms, 0, len(idx.fields))
	for _, f := range idx.fields {
		out = append(out, index.FieldTerms{Field: f, Entries: idx.inverted[f].Terms()})
	}
	return out
}

// TopTerms returns up to n terms of field ordered by descending df.
func (idx *Index) TopTerms(field string, n int) []index.TermEntry {
	inv, ok := idx.inverted[field]
	if !ok {
		return nil
	}
	terms := inv.Terms()
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].DocFreq > terms[j].DocFreq
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
