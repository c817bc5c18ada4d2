package explainers

import (
	"context"

	"github.com/dejo1307/flowmcp/internal/facts"
)

// Explainer inspects the stored analyses and reports findings about them.
type Explainer interface {
	// Name returns the explainer identifier (e.g. "tea", "hotspots").
	Name() string
	// Explain reads the store and returns insights. It must not modify the store.
	Explain(ctx context.Context, store *facts.Store) ([]facts.Insight, error)
}

// Registry holds registered explainers.
type Registry struct {
	explainers []Explainer
}

// NewRegistry creates a new explainer registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an explainer to the registry.
func (r *Registry) Register(e Explainer) {
	r.explainers = append(r.explainers, e)
}

// Get returns the explainer with the given name, or nil if not found.
func (r *Registry) Get(name string) Explainer {
	for _, e := range r.explainers {
		if e.Name() == name {
			return e
		}
	}
	return nil
}

// All returns all registered explainers.
func (r *Registry) All() []Explainer {
	return r.explainers
}

// Names returns the registered explainer names in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.explainers))
	for i, e := range r.explainers {
		names[i] = e.Name()
	}
	return names
}
