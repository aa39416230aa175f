package stateful

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/actionengine/internal/core"
)

// Store holds the stateful arrays of one pipeline by name. Names are
// unique across kinds.
type Store struct {
	mu        sync.RWMutex
	counters  map[string]*CounterArray
	meters    map[string]*MeterArray
	registers map[string]*RegisterArray
	names     map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		counters:  make(map[string]*CounterArray),
		meters:    make(map[string]*MeterArray),
		registers: make(map[string]*RegisterArray),
		names:     make(map[string]struct{}),
	}
}

func (s *Store) claim(name string) error {
	if name == "" {
		return fmt.Errorf("%w: stateful array name is empty", core.ErrConfigInvalid)
	}
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("%w: stateful array '%s'", core.ErrDuplicateDefinition, name)
	}
	s.names[name] = struct{}{}
	return nil
}

// AddCounters adds a counter array. Its name must be unused by any array.
func (s *Store) AddCounters(a *CounterArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(a.Name()); err != nil {
		return err
	}
	s.counters[a.Name()] = a
	return nil
}

// AddMeters adds a meter array. Its name must be unused by any array.
func (s *Store) AddMeters(a *MeterArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(a.Name()); err != nil {
		return err
	}
	s.meters[a.Name()] = a
	return nil
}

// AddRegisters adds a register array. Its name must be unused by any
// array.
func (s *Store) AddRegisters(a *RegisterArray) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(a.Name()); err != nil {
		return err
	}
	s.registers[a.Name()] = a
	return nil
}

// Counters looks up a counter array by name.
func (s *Store) Counters(name string) (*CounterArray, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.counters[name]
	if !ok {
		return nil, fmt.Errorf("%w: counter array '%s'", core.ErrUnknownArray, name)
	}
	return a, nil
}

// Meters looks up a meter array by name.
func (s *Store) Meters(name string) (*MeterArray, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.meters[name]
	if !ok {
		return nil, fmt.Errorf("%w: meter array '%s'", core.ErrUnknownArray, name)
	}
	return a, nil
}

// Registers looks up a register array by name.
func (s *Store) Registers(name string) (*RegisterArray, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.registers[name]
	if !ok {
		return nil, fmt.Errorf("%w: register array '%s'", core.ErrUnknownArray, name)
	}
	return a, nil
}

// CounterArrays returns all counter arrays sorted by name.
func (s *Store) CounterArrays() []*CounterArray {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*CounterArray, 0, len(s.counters))
	for _, a := range s.counters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
