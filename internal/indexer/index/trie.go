// Package index implements the per-field inverted index as a character
// trie. Every node carries the documents whose token ends there, their term
// frequencies, and a document-frequency count.
package index

import (
	"sort"
	"sync"
)

// Node is one character step in the trie.
type Node struct {
	DocFreq  int
	Docs     map[string]float64
	Children map[rune]*Node
}

func newNode() *Node {
	return &Node{
		Docs:     make(map[string]float64),
		Children: make(map[rune]*Node),
	}
}

// InvertedIndex maps tokens to postings for a single document field.
type InvertedIndex struct {
	mu   sync.RWMutex
	root *Node
}

func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{root: newNode()}
}

// AddToken records that ref contains token with the given term frequency.
// The document frequency only grows the first time a ref is seen.
func (ii *InvertedIndex) AddToken(token, ref string, tf float64) {
	if token == "" {
		return
	}
	ii.mu.Lock()
	defer ii.mu.Unlock()
	node := ii.root
	for _, r := range token {
		child, ok := node.Children[r]
		if !ok {
			child = newNode()
			node.Children[r] = child
		}
		node = child
	}
	if _, exists := node.Docs[ref]; !exists {
		node.DocFreq++
	}
	node.Docs[ref] = tf
}

// RemoveToken drops ref from token's postings.
func (ii *InvertedIndex) RemoveToken(token, ref string) {
	ii.mu.Lock()
	defer ii.mu.Unlock()
	node := ii.node(token)
	if node == nil {
		return
	}
	if _, exists := node.Docs[ref]; exists {
		delete(node.Docs, ref)
		node.DocFreq--
	}
}

// HasToken reports whether a path for token exists, with or without
// postings.
func (ii *InvertedIndex) HasToken(token string) bool {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	return token != "" && ii.node(token) != nil
}

// Docs returns a copy of the ref -> tf map for token.
func (ii *InvertedIndex) Docs(token string) map[string]float64 {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	node := ii.node(token)
	if node == nil {
		return map[string]float64{}
	}
	docs := make(map[string]float64, len(node.Docs))
	for ref, tf := range node.Docs {
		docs[ref] = tf
	}
	return docs
}

func (ii *InvertedIndex) TermFrequency(token, ref string) float64 {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	node := ii.node(token)
	if node == nil {
		return 0
	}
	return node.Docs[ref]
}

func (ii *InvertedIndex) DocFreq(token string) int {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	node := ii.node(token)
	if node == nil {
		return 0
	}
	return node.DocFreq
}

// ExpandToken returns every indexed token starting with prefix that has at
// least one posting, sorted.
func (ii *InvertedIndex) ExpandToken(prefix string) []string {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	node := ii.node(prefix)
	if node == nil || prefix == "" {
		return nil
	}
	var out []string
	collect(node, prefix, &out)
	sort.Strings(out)
	return out
}

func collect(n *Node, term string, out *[]string) {
	if len(n.Docs) > 0 {
		*out = append(*out, term)
	}
	for r, child := range n.Children {
		collect(child, term+string(r), out)
	}
}

// Terms returns a sorted snapshot of every token with postings.
func (ii *InvertedIndex) Terms() []TermEntry {
	var entries []TermEntry
	ii.Walk(func(term string, n *Node) {
		if len(n.Docs) == 0 {
			return
		}
		postings := make(PostingList, 0, len(n.Docs))
		for ref, tf := range n.Docs {
			postings = append(postings, Posting{Ref: ref, TF: tf})
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].Ref < postings[j].Ref
		})
		entries = append(entries, TermEntry{
			Term:     term,
			DocFreq:  n.DocFreq,
			Postings: postings,
		})
	})
	return entries
}

// Walk visits every node below the root in lexical order of its token.
// The callback must not modify the index.
func (ii *InvertedIndex) Walk(fn func(term string, n *Node)) {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	walk(ii.root, "", fn)
}

func walk(n *Node, term string, fn func(string, *Node)) {
	keys := make([]rune, 0, len(n.Children))
	for r := range n.Children {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, r := range keys {
		childTerm := term + string(r)
		fn(childTerm, n.Children[r])
		walk(n.Children[r], childTerm, fn)
	}
}

// Len returns the number of distinct tokens with postings.
func (ii *InvertedIndex) Len() int {
	count := 0
	ii.Walk(func(_ string, n *Node) {
		if len(n.Docs) > 0 {
			count++
		}
	})
	return count
}

func (ii *InvertedIndex) node(token string) *Node {
	node := ii.root
	for _, r := range token {
		child, ok := node.Children[r]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Node returns the node token ends at, if the path exists.
func (ii *InvertedIndex) Node(token string) (*Node, bool) {
	if token == "" {
		return nil, false
	}
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	n := ii.node(token)
	return n, n != nil
}
