package segment_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/book"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/bookindex/internal/validate"
	"github.com/Adithya-Monish-Kumar-K/bookindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

func buildIndex(t *testing.T) *segment.SearchIndex {
	t.Helper()
	res, err := indexer.NewBuilder(config.Default()).Build(context.Background(), []book.Section{
		{Title: "Arrays", Body: "The term array refers to the array type.", Breadcrumbs: "Arrays Mara » Arrays", URL: "arrays-m.html#arrays"},
		{Title: "Array type", Body: "Arrays <have> a length.", Breadcrumbs: "Arrays Mara » Array type", URL: "arrays-m.html#array-type"},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	return res.SearchIndex
}

func TestEncodeLayout(t *testing.T) {
	si := buildIndex(t)
	data, err := segment.Encode(si)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, `{"doc_urls":["arrays-m.html#arrays","arrays-m.html#array-type"],"index":{"documentStore":{"docInfo":{"0":{"body":5,"breadcrumbs":3,"title":1}`) {
		t.Errorf("unexpected prefix: %.200s", s)
	}
	const tail = `"lang":"English","pipeline":["trimmer","stopWordFilter","stemmer"],"ref":"id","version":"0.9.5"},` +
		`"results_options":{"limit_results":30,"teaser_word_count":30},` +
		`"search_options":{"bool":"OR","expand":true,"fields":{"body":{"boost":1},"breadcrumbs":{"boost":1},"title":{"boost":2}}}}`
	if !strings.HasSuffix(s, tail) {
		t.Errorf("unexpected suffix: %s", s[max(0, len(s)-300):])
	}
	if !strings.Contains(s, `"fields":["title","body","breadcrumbs"],"index":{"body":{"root":{`) {
		t.Error("fields or per-field tries missing")
	}
	if !strings.Contains(s, `&lt;have&gt;`) {
		t.Error("stored body should be HTML-escaped text")
	}
}

func TestWriteAndOpenAllFormats(t *testing.T) {
	si := buildIndex(t)
	want, err := segment.Fingerprint(si)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	formats := []string{config.FormatJS, config.FormatJSON, config.FormatJSONGz, config.FormatCBOR}
	paths, err := segment.NewWriter(dir).Write(si, formats)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if len(paths) != len(formats) {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			got, err := segment.Open(p)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			fp, err := segment.Fingerprint(got)
			if err != nil {
				t.Fatal(err)
			}
			if fp != want {
				t.Errorf("fingerprint after round trip = %s, want %s", fp, want)
			}
			if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
				t.Error("temp file left behind")
			}
		})
	}

	js, err := os.ReadFile(filepath.Join(dir, "searchindex.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(js, []byte("Object.assign(window.search, {")) || !bytes.HasSuffix(js, []byte("});")) {
		t.Errorf("js wrapper malformed: %.60s ... %s", js, js[len(js)-10:])
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		data string
		want string
	}{
		{"searchindex.js", "Object.assign(window.search, {});", config.FormatJS},
		{"index.txt", "  Object.assign(window.search, {});", config.FormatJS},
		{"searchindex.json", "{}", config.FormatJSON},
		{"searchindex.json.gz", "", config.FormatJSONGz},
		{"blob", "\x1f\x8b\x08", config.FormatJSONGz},
		{"searchindex.cbor", "", config.FormatCBOR},
	}
	for _, tt := range tests {
		if got := segment.DetectFormat(tt.path, []byte(tt.data)); got != tt.want {
			t.Errorf("DetectFormat(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"truncated json", `{"doc_urls":[`, config.FormatJSON},
		{"no document store", `{"doc_urls":[],"index":{}}`, config.FormatJSON},
		{"bad js wrapper", `window.search = {};`, config.FormatJS},
		{"unterminated js", `Object.assign(window.search, {}`, config.FormatJS},
		{"bad trie key", `{"index":{"documentStore":{},"index":{"body":{"root":{"ab":{}}}}}}`, config.FormatJSON},
		{"not gzip", `{}`, config.FormatJSONGz},
		{"not cbor", `{}`, config.FormatCBOR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := segment.Decode([]byte(tt.data), tt.format)
			if !errors.Is(err, apperrors.ErrInvalidIndex) {
				t.Errorf("err = %v, want ErrInvalidIndex", err)
			}
		})
	}
}

func TestSnapshotChecksum(t *testing.T) {
	si := buildIndex(t)
	data, err := segment.EncodeSnapshot(si)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := segment.DecodeSnapshot(data); err != nil {
		t.Fatalf("DecodeSnapshot() error: %v", err)
	}
	// flip a byte near the end, inside the payload
	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-5] ^= 0xff
	if _, err := segment.DecodeSnapshot(corrupt); !errors.Is(err, apperrors.ErrInvalidIndex) {
		t.Errorf("err = %v, want ErrInvalidIndex", err)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if _, err := segment.NewWriter(t.TempDir()).Write(buildIndex(t), []string{"xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	if _, err := segment.Locate(dir); !errors.Is(err, apperrors.ErrIndexNotLoaded) {
		t.Errorf("empty dir error = %v", err)
	}
	paths, err := segment.NewWriter(dir).Write(buildIndex(t), []string{config.FormatJS, config.FormatJSON})
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := segment.Locate(dir)
	if err != nil || got != filepath.Join(dir, "searchindex.json") {
		t.Errorf("Locate() = %q, %v (wrote %v)", got, err, paths)
	}
}

// testdata/elasticlunr.js is trimmed from an index written by mdBook's
// elasticlunr: children precede df/docs and whole tf values are written as 1.0.
func TestOpenElasticlunrIndex(t *testing.T) {
	si, err := segment.Open(filepath.Join("testdata", "elasticlunr.js"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	report := validate.Check(si)
	if err := report.Err(); err != nil {
		t.Fatalf("Check() = %v", err)
	}
	if report.Docs != 2 || report.Terms == 0 {
		t.Errorf("report docs = %d, terms = %d", report.Docs, report.Terms)
	}

	idx, err := indexer.FromSearchIndex(si)
	if err != nil {
		t.Fatalf("FromSearchIndex() error: %v", err)
	}
	body, ok := idx.Field("body")
	if !ok {
		t.Fatal("body field missing")
	}
	if got := body.TermFrequency("array", "0"); math.Abs(got-math.Sqrt(7)) > 1e-12 {
		t.Errorf("tf(array, 0) = %v, want sqrt(7)", got)
	}
	if got := body.TermFrequency("array", "1"); got != 1 {
		t.Errorf("tf(array, 1) = %v, want 1", got)
	}
	if body.DocFreq("array") != 2 {
		t.Errorf("df(array) = %d, want 2", body.DocFreq("array"))
	}

	data, err := segment.Encode(si)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if _, err := segment.Decode(data, config.FormatJSON); err != nil {
		t.Errorf("re-encoded index does not decode: %v", err)
	}
}
