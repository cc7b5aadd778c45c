// Package pipeline holds the token normalisation stages run between the
// tokenizer and the inverted index. Stages are registered under the labels
// written into serialized indexes, so a loaded index can rebuild the exact
// pipeline it was built with.
package pipeline

import (
	"fmt"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/bookindex/pkg/errors"
)

// Func rewrites a token. Returning false drops the token.
type Func func(token string) (string, bool)

// Stage is a labelled pipeline function.
type Stage struct {
	Label string
	Fn    Func
}

const (
	Trimmer        = "trimmer"
	StopWordFilter = "stopWordFilter"
	Stemmer        = "stemmer"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Func{
		Trimmer:        Trim,
		StopWordFilter: FilterStopWord,
		Stemmer:        Stem,
	}
)

// Register makes fn loadable under label. Registering a label twice
// replaces the earlier function.
func Register(label string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[label] = fn
}

// Lookup returns the function registered under label.
func Lookup(label string) (Func, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[label]
	return fn, ok
}

// Pipeline runs its stages in order over every token.
type Pipeline struct {
	stages []Stage
}

// Default is the English pipeline: trimmer, stop words, stemmer.
func Default() *Pipeline {
	p, _ := Load([]string{Trimmer, StopWordFilter, Stemmer})
	return p
}

// Load rebuilds a pipeline from serialized labels.
func Load(labels []string) (*Pipeline, error) {
	p := &Pipeline{stages: make([]Stage, 0, len(labels))}
	for _, label := range labels {
		fn, ok := Lookup(label)
		if !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownPipelineFunction, label)
		}
		p.stages = append(p.stages, Stage{Label: label, Fn: fn})
	}
	return p, nil
}

// Add appends a stage.
func (p *Pipeline) Add(label string, fn Func) {
	p.stages = append(p.stages, Stage{Label: label, Fn: fn})
}

// Run passes every token through all stages, dropping tokens any stage
// rejects or empties.
func (p *Pipeline) Run(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if t, ok := p.RunToken(token); ok {
			out = append(out, t)
		}
	}
	return out
}

// RunToken passes a single token through all stages.
func (p *Pipeline) RunToken(token string) (string, bool) {
	for _, stage := range p.stages {
		var ok bool
		token, ok = stage.Fn(token)
		if !ok || token == "" {
			return "", false
		}
	}
	return token, true
}

// Names returns the stage labels in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, stage := range p.stages {
		names[i] = stage.Label
	}
	return names
}

// Len reports the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
