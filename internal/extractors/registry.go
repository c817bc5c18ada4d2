package extractors

import (
	"github.com/dejo1307/flowmcp/internal/facts"
	"github.com/dejo1307/flowmcp/internal/syntax"
)

// Extractor scans one parsed Rust file for a family of patterns and appends
// its detections to the file analysis.
type Extractor interface {
	// Name returns the extractor identifier (e.g. "ui", "flow").
	Name() string
	// Extract walks f and records detections in fa. It must not retain f.
	Extract(f *syntax.File, fa *facts.FileAnalysis)
}

// Registry holds registered extractors in registration order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a new extractor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an extractor to the registry.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Get returns the extractor with the given name, or nil if not found.
func (r *Registry) Get(name string) Extractor {
	for _, e := range r.extractors {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// All returns all registered extractors.
func (r *Registry) All() []Extractor {
	return r.extractors
}

// Names returns the registered extractor names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.extractors))
	for i, e := range r.extractors {
		names[i] = e.Name()
	}
	return names
}

// Run applies every registered extractor to f, in order.
func (r *Registry) Run(f *syntax.File, fa *facts.FileAnalysis) {
	for _, e := range r.extractors {
		e.Extract(f, fa)
	}
}
