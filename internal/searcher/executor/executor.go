// Package executor runs parsed queries against the currently loaded book
// index and decorates the ranked refs with titles, URLs and teasers.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

type Result struct {
	Ref         string  `json:"ref"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	Breadcrumbs string  `json:"breadcrumbs"`
	URL         string  `json:"url"`
	Teaser      string  `json:"teaser"`
}

type SearchResult struct {
	Query       string         `json:"query"`
	TotalHits   int            `json:"total_hits"`
	Results     []Result       `json:"results"`
	TermStats   map[string]int `json:"term_stats"`
	Fingerprint string         `json:"fingerprint"`
}

// Stats describes the loaded index.
type Stats struct {
	indexer.Stats
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

type loadedIndex struct {
	idx         *indexer.Index
	docURLs     []string
	results     segment.ResultsOptions
	search      segment.SearchOptions
	fingerprint string
	loadedAt    time.Time
}

// Executor serves queries from one index at a time. Swap replaces it
// atomically; in-flight queries finish on the index they started with.
type Executor struct {
	mu      sync.RWMutex
	current *loadedIndex
	logger  *slog.Logger
}

func New() *Executor {
	return &Executor{
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Load reads a serialized index from path and swaps it in.
func (e *Executor) Load(path string) error {
	si, err := segment.Open(path)
	if err != nil {
		return err
	}
	return e.SwapSearchIndex(si)
}

// SwapSearchIndex rebuilds a live index from si and swaps it in.
func (e *Executor) SwapSearchIndex(si *segment.SearchIndex) error {
	fp, err := segment.Fingerprint(si)
	if err != nil {
		return fmt.Errorf("fingerprinting index: %w", err)
	}
	idx, err := indexer.FromSearchIndex(si)
	if err != nil {
		return err
	}
	e.Swap(idx, si.DocURLs, si.ResultsOptions, si.SearchOptions, fp)
	return nil
}

func (e *Executor) Swap(idx *indexer.Index, docURLs []string, results segment.ResultsOptions, search segment.SearchOptions, fingerprint string) {
	next := &loadedIndex{
		idx:         idx,
		docURLs:     docURLs,
		results:     results,
		search:      search,
		fingerprint: fingerprint,
		loadedAt:    time.Now(),
	}
	e.mu.Lock()
	prev := e.current
	e.current = next
	e.mu.Unlock()

	attrs := []any{"fingerprint", fingerprint, "docs", idx.Store().Len()}
	if prev != nil {
		attrs = append(attrs, "previous", prev.fingerprint)
	}
	e.logger.Info("index swapped", attrs...)
}

func (e *Executor) snapshot() *loadedIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

func (e *Executor) Loaded() bool {
	return e.snapshot() != nil
}

// Fingerprint identifies the loaded index, or is empty.
func (e *Executor) Fingerprint() string {
	if cur := e.snapshot(); cur != nil {
		return cur.fingerprint
	}
	return ""
}

func (e *Executor) Stats() (*Stats, error) {
	cur := e.snapshot()
	if cur == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return &Stats{
		Stats:       cur.idx.Stats(),
		Fingerprint: cur.fingerprint,
		LoadedAt:    cur.loadedAt,
	}, nil
}

// MaxQueryLength bounds accepted query strings, in bytes.
const MaxQueryLength = 1024

// View is the index that was loaded when it was taken. A reload does not
// change what a View parses and ranks against.
type View struct {
	cur    *loadedIndex
	logger *slog.Logger
}

// View pins the loaded index for one request.
func (e *Executor) View() (*View, error) {
	cur := e.snapshot()
	if cur == nil {
		return nil, apperrors.ErrIndexNotLoaded
	}
	return &View{cur: cur, logger: e.logger}, nil
}

// Parse parses query with the loaded index's pipeline.
func (e *Executor) Parse(query string) (*parser.QueryPlan, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.Parse(query)
}

// Execute ranks plan against the loaded index and returns up to limit
// results. A non-positive limit uses the index's own result limit.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return v.Execute(ctx, plan, limit)
}

func checkQuery(query string) error {
	if len(query) > MaxQueryLength {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query is %d bytes, limit is %d", len(query), MaxQueryLength)
	}
	return nil
}

func (v *View) Fingerprint() string {
	return v.cur.fingerprint
}

func (v *View) Parse(query string) (*parser.QueryPlan, error) {
	if err := checkQuery(query); err != nil {
		return nil, err
	}
	return parser.Parse(query, v.cur.idx.Pipeline()), nil
}

func (v *View) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	cur := v.cur
	out := &SearchResult{
		Query:       plan.RawQuery,
		Results:     []Result{},
		TermStats:   make(map[string]int),
		Fingerprint: cur.fingerprint,
	}
	if len(plan.Terms) == 0 {
		return out, nil
	}

	opts := ranker.Options{
		Bool:    cur.search.Bool,
		Expand:  cur.search.Expand,
		Boosts:  make(map[string]float64, len(cur.search.Fields)),
		Exclude: plan.ExcludeTerms,
	}
	if plan.Bool != "" {
		opts.Bool = plan.Bool
	}
	for field, fo := range cur.search.Fields {
		opts.Boosts[field] = fo.Boost
	}
	ranked := ranker.Search(cur.idx, plan.Terms, opts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	out.TotalHits = len(ranked)
	out.TermStats = termStats(cur.idx, plan.Terms)

	if limit <= 0 {
		limit = cur.results.LimitResults
	}
	top := merger.Merge([][]ranker.ScoredDoc{ranked}, limit)
	for _, sd := range top {
		out.Results = append(out.Results, cur.decorate(sd, plan.Words))
	}

	v.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", len(plan.Terms),
		"hits", out.TotalHits,
		"returned", len(out.Results),
	)
	return out, nil
}

func (l *loadedIndex) decorate(sd ranker.ScoredDoc, words []string) Result {
	r := Result{Ref: sd.Ref, Score: sd.Score}
	if i, err := strconv.Atoi(sd.Ref); err == nil && i >= 0 && i < len(l.docURLs) {
		r.URL = l.docURLs[i]
	}
	doc, ok := l.idx.Store().GetDoc(sd.Ref)
	if !ok || doc == nil {
		return r
	}
	r.Title = doc[indexer.FieldTitle]
	r.Breadcrumbs = doc[indexer.FieldBreadcrumbs]
	r.Teaser = MakeTeaser(html.UnescapeString(doc[indexer.FieldBody]), words, l.results.TeaserWordCount)
	return r
}

// termStats counts, per term, the documents containing it in any field.
func termStats(idx *indexer.Index, terms []string) map[string]int {
	stats := make(map[string]int, len(terms))
	for _, term := range terms {
		refs := make(map[string]struct{})
		for _, field := range idx.Fields() {
			inv, _ := idx.Field(field)
			for ref := range inv.Docs(term) {
				refs[ref] = struct{}{}
			}
		}
		if len(refs) > 0 {
			stats[term] = len(refs)
		}
	}
	return stats
}
