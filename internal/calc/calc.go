// Package calc implements named calculations: stateless hash functions
// over the packet buffer or over a list of PHV fields.
package calc

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/packet"
)

// Calculation computes an unsigned value from a packet. Implementations
// are pure and safe for concurrent use.
type Calculation interface {
	Name() string
	Output(pkt *packet.Packet) uint64
}

// Named applies an Algorithm to either the packet buffer or the
// concatenated bytes of a field list.
type Named struct {
	name      string
	algorithm string
	algo      Algorithm
	fields    []string
}

// New builds a calculation. With no fields the input is the packet
// buffer.
func New(name, algorithm string, fields []string) (*Named, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: calculation name is empty", core.ErrConfigInvalid)
	}
	algo, err := LookupAlgorithm(algorithm)
	if err != nil {
		return nil, fmt.Errorf("calculation '%s': %w", name, err)
	}
	return &Named{
		name:      name,
		algorithm: algorithm,
		algo:      algo,
		fields:    append([]string(nil), fields...),
	}, nil
}

func (c *Named) Name() string { return c.name }

// Algorithm returns the algorithm name the calculation was built with.
func (c *Named) Algorithm() string { return c.algorithm }

// Fields returns the qualified input fields. Empty means the calculation
// hashes the packet buffer.
func (c *Named) Fields() []string { return c.fields }

// Input returns the bytes fed to the algorithm. Fields missing from the
// packet's PHV are skipped.
func (c *Named) Input(pkt *packet.Packet) []byte {
	if len(c.fields) == 0 {
		return pkt.Buffer()
	}
	var buf []byte
	for _, name := range c.fields {
		if f, ok := pkt.PHV().Field(name); ok {
			buf = append(buf, f.Bytes()...)
		}
	}
	return buf
}

// Output implements Calculation.
func (c *Named) Output(pkt *packet.Packet) uint64 {
	return c.algo(c.Input(pkt))
}

// Registry holds the calculations of one pipeline by name.
type Registry struct {
	mu    sync.RWMutex
	calcs map[string]Calculation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{calcs: make(map[string]Calculation)}
}

// Add registers c under its name.
func (r *Registry) Add(c Calculation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calcs[c.Name()]; exists {
		return fmt.Errorf("%w: calculation '%s'", core.ErrDuplicateDefinition, c.Name())
	}
	r.calcs[c.Name()] = c
	return nil
}

// Get looks up a calculation.
func (r *Registry) Get(name string) (Calculation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnknownCalculation, name)
	}
	return c, nil
}

// Names lists registered calculations, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.calcs))
	for name := range r.calcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
