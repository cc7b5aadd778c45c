// Package segment reads and writes the serialized search index: the
// searchindex.js/.json files a documentation site ships to its search
// widget, a gzipped JSON variant, and a checksummed CBOR snapshot.
package segment

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/docstore"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
)

// Boolean modes of a multi-term query.
const (
	BoolOR  = "OR"
	BoolAND = "AND"
)

// SearchIndex is the top-level serialized document. Struct fields are
// declared in key order so the encoded JSON keys come out sorted.
type SearchIndex struct {
	DocURLs        []string       `json:"doc_urls"`
	Index          IndexPayload   `json:"index"`
	ResultsOptions ResultsOptions `json:"results_options"`
	SearchOptions  SearchOptions  `json:"search_options"`
}

// IndexPayload is the elasticlunr index proper.
type IndexPayload struct {
	DocumentStore *docstore.DocumentStore         `json:"documentStore"`
	Fields        []string                        `json:"fields"`
	Index         map[string]*index.InvertedIndex `json:"index"`
	Lang          string                          `json:"lang"`
	Pipeline      []string                        `json:"pipeline"`
	Ref           string                          `json:"ref"`
	Version       string                          `json:"version"`
}

// ResultsOptions controls how many results the widget lists and how long
// their teasers are.
type ResultsOptions struct {
	LimitResults    int `json:"limit_results" cbor:"l"`
	TeaserWordCount int `json:"teaser_word_count" cbor:"t"`
}

// SearchOptions are the default query options.
type SearchOptions struct {
	Bool   string                  `json:"bool" cbor:"b"`
	Expand bool                    `json:"expand" cbor:"e"`
	Fields map[string]FieldOptions `json:"fields" cbor:"f"`
}

type FieldOptions struct {
	Boost float64 `json:"boost" cbor:"b"`
}

// Boost returns the boost of field, or 0 when the field is not searched.
func (o SearchOptions) Boost(field string) float64 {
	return o.Fields[field].Boost
}

// OptionsFromConfig derives the serialized options from search settings.
func OptionsFromConfig(cfg config.SearchConfig) (ResultsOptions, SearchOptions) {
	mode := BoolOR
	if cfg.UseBooleanAnd {
		mode = BoolAND
	}
	results := ResultsOptions{
		LimitResults:    cfg.LimitResults,
		TeaserWordCount: cfg.TeaserWordCount,
	}
	search := SearchOptions{
		Bool:   mode,
		Expand: cfg.Expand,
		Fields: map[string]FieldOptions{
			"title":       {Boost: cfg.BoostTitle},
			"body":        {Boost: cfg.BoostParagraph},
			"breadcrumbs": {Boost: cfg.BoostHierarchy},
		},
	}
	return results, search
}

// Encode returns the canonical JSON form: sorted keys, no HTML escaping,
// no trailing newline.
func Encode(si *SearchIndex) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(si); err != nil {
		return nil, fmt.Errorf("encoding search index: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Fingerprint is the BLAKE3 digest of the canonical JSON, hex encoded.
func Fingerprint(si *SearchIndex) (string, error) {
	data, err := Encode(si)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FieldTerms flattens every field's trie, in field order.
func (si *SearchIndex) FieldTerms() []index.FieldTerms {
	out := make([]index.FieldTerms, 0, len(si.Index.Fields))
	for _, f := range si.Index.Fields {
		inv := si.Index.Index[f]
		if inv == nil {
			continue
		}
		out = append(out, index.FieldTerms{Field: f, Entries: inv.Terms()})
	}
	return out
}
