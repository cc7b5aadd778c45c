package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/book"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
)

// BuildResult is the outcome of one index build.
type BuildResult struct {
	Title       string
	SearchIndex *segment.SearchIndex
	Index       *Index
	Stats       Stats
	Fingerprint string
	Duration    time.Duration
}

// Builder turns a book into a search index.
type Builder struct {
	book        config.BookConfig
	indexer     config.IndexerConfig
	search      config.SearchConfig
	concurrency int
	logger      *slog.Logger
}

func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		book:        cfg.Book,
		indexer:     cfg.Indexer,
		search:      cfg.Search,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default().With("component", "builder"),
	}
}

// BuildBook loads the book under srcDir, preprocesses it when configured
// and builds the index of its sections.
func (b *Builder) BuildBook(ctx context.Context, srcDir string) (*BuildResult, error) {
	bk, err := book.LoadSummary(srcDir)
	if err != nil {
		return nil, err
	}
	if b.book.Preprocess {
		book.PreprocessBook(bk)
	}
	var sections []book.Section
	for _, ch := range bk.Pages() {
		sections = append(sections, book.Sections(ch, b.book.HeadingSplitLevel)...)
	}
	b.logger.Info("book loaded", "src", srcDir, "chapters", len(bk.Pages()), "sections", len(sections))
	res, err := b.Build(ctx, sections)
	if err != nil {
		return nil, err
	}
	res.Title = bk.Title
	if b.book.Title != "" {
		res.Title = b.book.Title
	}
	return res, nil
}

// Build indexes sections under refs "0".."n-1" in order. Analysis runs
// concurrently; insertion is sequential so refs, doc URLs and trie contents
// do not depend on scheduling.
func (b *Builder) Build(ctx context.Context, sections []book.Section) (*BuildResult, error) {
	start := time.Now()
	idx := New(Options{
		Language:  b.indexer.Language,
		StoreDocs: b.indexer.StoreDocs,
	})

	analyzed := make([]map[string][]string, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, s := range sections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			analyzed[i] = map[string][]string{
				FieldTitle:       idx.Analyze(s.Title),
				FieldBody:        idx.Analyze(s.Body),
				FieldBreadcrumbs: idx.Analyze(s.Breadcrumbs),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing sections: %w", err)
	}

	urls := make([]string, len(sections))
	for i, s := range sections {
		ref := strconv.Itoa(i)
		idx.addAnalyzed(ref, docstore.Doc{
			RefField:         ref,
			FieldTitle:       s.Title,
			FieldBody:        html.EscapeString(s.Body),
			FieldBreadcrumbs: s.Breadcrumbs,
		}, analyzed[i])
		urls[i] = s.URL
	}

	results, search := segment.OptionsFromConfig(b.search)
	si := idx.SearchIndex(urls, results, search)
	fp, err := segment.Fingerprint(si)
	if err != nil {
		return nil, err
	}
	res := &BuildResult{
		SearchIndex: si,
		Index:       idx,
		Stats:       idx.Stats(),
		Fingerprint: fp,
		Duration:    time.Since(start),
	}
	b.logger.Info("index built",
		"docs", res.Stats.Docs,
		"terms", res.Stats.TermsPerField,
		"fingerprint", fp,
		"duration", res.Duration,
	)
	return res, nil
}

// TotalTerms sums distinct terms over all fields.
func (s Stats) TotalTerms() int {
	total := 0
	for _, n := range s.TermsPerField {
		total += n
	}
	return total
}
