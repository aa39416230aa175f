package primitive

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/metrics"
)

// Registry maps primitive names to primitives. It is populated during
// initialization and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	prims map[string]*Primitive
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{prims: make(map[string]*Primitive)}
}

// Register adds p. Registering a name twice is an error.
func (r *Registry) Register(p Primitive) error {
	if p.Name == "" || p.Fn == nil {
		return fmt.Errorf("%w: primitive needs a name and a body", core.ErrConfigInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.prims[p.Name]; exists {
		return fmt.Errorf("%w: primitive '%s' already registered", core.ErrDuplicateDefinition, p.Name)
	}
	p.Params = append([]Param(nil), p.Params...)
	p.invocations = metrics.PrimitiveInvocationsTotal.WithLabelValues(p.Name)
	r.prims[p.Name] = &p
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(p Primitive) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Lookup returns the primitive registered under name.
func (r *Registry) Lookup(name string) (*Primitive, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.prims[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownPrimitive, name)
	}
	return p, nil
}

// Names lists the registered primitives, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.prims))
	for name := range r.prims {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
