// Package docstore keeps the per-document metadata that travels with a
// search index: the stored field values and the token length of every
// indexed field.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Doc is a document as field name -> value. The ref field is included.
type Doc map[string]string

// DocumentStore records stored documents and field lengths.
type DocumentStore struct {
	mu      sync.RWMutex
	save    bool
	docs    map[string]Doc
	docInfo map[string]map[string]int

	loaded   bool
	declared int
}

// New creates a store. When save is false, documents are tracked by ref
// only and their contents are dropped.
func New(save bool) *DocumentStore {
	return &DocumentStore{
		save:    save,
		docs:    make(map[string]Doc),
		docInfo: make(map[string]map[string]int),
	}
}

func (s *DocumentStore) IsSaved() bool {
	return s.save
}

// AddDoc stores doc under ref, replacing any earlier entry.
func (s *DocumentStore) AddDoc(ref string, doc Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.save {
		s.docs[ref] = nil
		return
	}
	cp := make(Doc, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	s.docs[ref] = cp
}

// GetDoc returns the stored document. ok is false for unknown refs; a
// known ref in a non-saving store returns a nil Doc.
func (s *DocumentStore) GetDoc(ref string) (Doc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref]
	return doc, ok
}

func (s *DocumentStore) HasDoc(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[ref]
	return ok
}

// RemoveDoc forgets ref and its field lengths.
func (s *DocumentStore) RemoveDoc(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ref)
	delete(s.docInfo, ref)
}

// SetFieldLength records the token count of field in ref.
func (s *DocumentStore) SetFieldLength(ref, field string, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.docInfo[ref]
	if !ok {
		info = make(map[string]int)
		s.docInfo[ref] = info
	}
	info[field] = length
}

// FieldLength returns the token count of field in ref, or 0.
func (s *DocumentStore) FieldLength(ref, field string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docInfo[ref][field]
}

// FieldLengths returns a copy of every field length recorded for ref.
func (s *DocumentStore) FieldLengths(ref string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.docInfo[ref]))
	for k, v := range s.docInfo[ref] {
		out[k] = v
	}
	return out
}

// Len is the number of documents in the store.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Refs returns the known refs, sorted.
func (s *DocumentStore) Refs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]string, 0, len(s.docs))
	for ref := range s.docs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// InfoRefs returns the refs that have field-length entries, sorted.
func (s *DocumentStore) InfoRefs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]string, 0, len(s.docInfo))
	for ref := range s.docInfo {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

type wireStore struct {
	DocInfo map[string]map[string]int `json:"docInfo"`
	Docs    map[string]Doc            `json:"docs"`
	Length  int                       `json:"length"`
	Save    bool                      `json:"save"`
}

func (s *DocumentStore) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(wireStore{
		DocInfo: s.docInfo,
		Docs:    s.docs,
		Length:  len(s.docs),
		Save:    s.save,
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (s *DocumentStore) UnmarshalJSON(data []byte) error {
	var w wireStore
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding document store: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save = w.Save
	s.docs = w.Docs
	if s.docs == nil {
		s.docs = make(map[string]Doc)
	}
	s.docInfo = w.DocInfo
	if s.docInfo == nil {
		s.docInfo = make(map[string]map[string]int)
	}
	s.declared = w.Length
	s.loaded = true
	return nil
}

// DeclaredLength is the document count a serialized store claimed. For a
// store built in memory it equals Len.
func (s *DocumentStore) DeclaredLength() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loaded {
		return s.declared
	}
	return len(s.docs)
}

// Snapshot is a detached copy of a store's contents.
type Snapshot struct {
	Save    bool                      `cbor:"s"`
	Length  int                       `cbor:"l"`
	Docs    map[string]Doc            `cbor:"d"`
	DocInfo map[string]map[string]int `cbor:"i"`
}

func (s *DocumentStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Save:    s.save,
		Length:  len(s.docs),
		Docs:    make(map[string]Doc, len(s.docs)),
		DocInfo: make(map[string]map[string]int, len(s.docInfo)),
	}
	for ref, doc := range s.docs {
		snap.Docs[ref] = doc
	}
	for ref, info := range s.docInfo {
		cp := make(map[string]int, len(info))
		for f, n := range info {
			cp[f] = n
		}
		snap.DocInfo[ref] = cp
	}
	return snap
}

// FromSnapshot rebuilds a store. The snapshot's Length is kept as the
// declared length.
func FromSnapshot(snap Snapshot) *DocumentStore {
	s := New(snap.Save)
	for ref, doc := range snap.Docs {
		s.docs[ref] = doc
	}
	for ref, info := range snap.DocInfo {
		s.docInfo[ref] = info
	}
	s.declared = snap.Length
	s.loaded = true
	return s
}
