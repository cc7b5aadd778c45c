package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	keyDocFreq = "df"
	keyDocs    = "docs"
)

type tfEntry struct {
	TF float64 `json:"tf"`
}

// MarshalJSON writes the index as {"root": node}.
func (ii *InvertedIndex) MarshalJSON() ([]byte, error) {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	var buf bytes.Buffer
	buf.WriteString(`{"root":`)
	if err := writeNode(&buf, ii.root); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the {"root": node} form. Stored df values are kept
// as-is so inconsistencies stay visible to validation.
func (ii *InvertedIndex) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Root json.RawMessage `json:"root"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decoding inverted index: %w", err)
	}
	root := newNode()
	if len(wrapper.Root) > 0 {
		if err := readNode(wrapper.Root, root); err != nil {
			return err
		}
	}
	ii.mu.Lock()
	ii.root = root
	ii.mu.Unlock()
	return nil
}

// writeNode emits keys in sorted order; child keys are single characters
// so they never collide with "df" or "docs".
func writeNode(buf *bytes.Buffer, n *Node) error {
	keys := make([]string, 0, len(n.Children)+2)
	keys = append(keys, keyDocFreq, keyDocs)
	for r := range n.Children {
		keys = append(keys, string(r))
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		switch key {
		case keyDocFreq:
			fmt.Fprintf(buf, "%d", n.DocFreq)
		case keyDocs:
			if err := writeDocs(buf, n.Docs); err != nil {
				return err
			}
		default:
			r, _ := utf8.DecodeRuneInString(key)
			if err := writeNode(buf, n.Children[r]); err != nil {
				return err
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeDocs(buf *bytes.Buffer, docs map[string]float64) error {
	refs := make([]string, 0, len(docs))
	for ref := range docs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	buf.WriteByte('{')
	for i, ref := range refs {
		if i > 0 {
			buf.WriteByte(',')
		}
		tf := docs[ref]
		if math.IsNaN(tf) || math.IsInf(tf, 0) {
			return fmt.Errorf("term frequency for doc %q is not finite", ref)
		}
		k, _ := json.Marshal(ref)
		v, err := json.Marshal(tfEntry{TF: tf})
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return nil
}

func readNode(data []byte, n *Node) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decoding trie node: %w", err)
	}
	for key, raw := range fields {
		switch key {
		case keyDocFreq:
			if err := json.Unmarshal(raw, &n.DocFreq); err != nil {
				return fmt.Errorf("decoding df: %w", err)
			}
		case keyDocs:
			var docs map[string]tfEntry
			if err := json.Unmarshal(raw, &docs); err != nil {
				return fmt.Errorf("decoding docs: %w", err)
			}
			for ref, e := range docs {
				n.Docs[ref] = e.TF
			}
		default:
			if utf8.RuneCountInString(key) != 1 {
				return fmt.Errorf("trie key %q is not a single character", key)
			}
			r, _ := utf8.DecodeRuneInString(key)
			child := newNode()
			if err := readNode(raw, child); err != nil {
				return fmt.Errorf("under %q: %w", key, err)
			}
			n.Children[r] = child
		}
	}
	return nil
}

// Restore rebuilds an index from flattened entries, as produced by Terms.
func Restore(entries []TermEntry) (*InvertedIndex, error) {
	ii := NewInvertedIndex()
	for _, e := range entries {
		for _, p := range e.Postings {
			ii.AddToken(e.Term, p.Ref, p.TF)
		}
		if got := ii.DocFreq(e.Term); got != e.DocFreq {
			return nil, fmt.Errorf("term %q: stored df %d does not match %d postings", e.Term, e.DocFreq, got)
		}
	}
	return ii, nil
}
