package indexer

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

// SearchIndex wraps the index with its document URLs and default options
// for serialization. The index is shared, not copied.
func (idx *Index) SearchIndex(docURLs []string, results segment.ResultsOptions, search segment.SearchOptions) *segment.SearchIndex {
	return &segment.SearchIndex{
		DocURLs: docURLs,
		Index: segment.IndexPayload{
			DocumentStore: idx.store,
			Fields:        idx.Fields(),
			Index:         idx.inverted,
			Lang:          idx.lang,
			Pipeline:      idx.pipeline.Names(),
			Ref:           idx.ref,
			Version:       Version,
		},
		ResultsOptions: results,
		SearchOptions:  search,
	}
}

// FromSearchIndex rebuilds a live index from a decoded one. Pipeline labels
// must all be registered.
func FromSearchIndex(si *segment.SearchIndex) (*Index, error) {
	p, err := pipeline.Load(si.Index.Pipeline)
	if err != nil {
		return nil, err
	}
	if si.Index.Ref == "" {
		return nil, fmt.Errorf("%w: empty ref field", apperrors.ErrInvalidIndex)
	}
	if si.Index.DocumentStore == nil {
		return nil, fmt.Errorf("%w: missing document store", apperrors.ErrInvalidIndex)
	}
	idx, err := Restore(si.Index.Ref, si.Index.Fields, si.Index.Lang, p, si.Index.DocumentStore, si.Index.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidIndex, err)
	}
	return idx, nil
}
