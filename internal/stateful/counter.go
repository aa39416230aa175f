// Package stateful implements the indexed arrays shared by every packet of
// a pipeline: counters, meters and registers. All operations are safe for
// concurrent use; operations on one index are atomic with respect to each
// other, with no ordering guarantee between callers.
package stateful

import (
	"fmt"
	"sync"

	"firestige.xyz/actionengine/internal/core"
)

// Array is the common surface of the stateful arrays.
type Array interface {
	Name() string
	Size() int
}

func outOfRange(a Array, idx uint) error {
	return fmt.Errorf("%w: '%s' has size %d, index %d", core.ErrIndexOutOfRange, a.Name(), a.Size(), idx)
}

// CounterValue is a point-in-time reading of one counter.
type CounterValue struct {
	Bytes   uint64
	Packets uint64
}

// Counter counts bytes and packets. Both move together under one lock, so
// a reading never pairs bytes and packets from different increments.
type Counter struct {
	mu  sync.Mutex
	val CounterValue
}

// Increment adds one packet of nbytes.
func (c *Counter) Increment(nbytes uint64) {
	c.mu.Lock()
	c.val.Bytes += nbytes
	c.val.Packets++
	c.mu.Unlock()
}

// Read returns the current value.
func (c *Counter) Read() CounterValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val
}

// Reset clears the counter.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.val = CounterValue{}
	c.mu.Unlock()
}

// CounterArray is a named fixed-size array of counters.
type CounterArray struct {
	name     string
	counters []Counter
}

// NewCounterArray creates size zeroed counters.
func NewCounterArray(name string, size int) *CounterArray {
	if size < 0 {
		size = 0
	}
	return &CounterArray{name: name, counters: make([]Counter, size)}
}

// Name returns the array name.
func (a *CounterArray) Name() string { return a.name }

// Size returns the number of counters.
func (a *CounterArray) Size() int { return len(a.counters) }

// Increment counts one packet of nbytes at idx.
func (a *CounterArray) Increment(idx uint, nbytes uint64) error {
	if idx >= uint(len(a.counters)) {
		return outOfRange(a, idx)
	}
	a.counters[idx].Increment(nbytes)
	return nil
}

// Read returns the counter at idx.
func (a *CounterArray) Read(idx uint) (CounterValue, error) {
	if idx >= uint(len(a.counters)) {
		return CounterValue{}, outOfRange(a, idx)
	}
	return a.counters[idx].Read(), nil
}

// Snapshot reads every counter. Each entry is consistent on its own; the
// entries are not read at a single instant.
func (a *CounterArray) Snapshot() []CounterValue {
	out := make([]CounterValue, len(a.counters))
	for i := range a.counters {
		out[i] = a.counters[i].Read()
	}
	return out
}

// Reset clears every counter.
func (a *CounterArray) Reset() {
	for i := range a.counters {
		a.counters[i].Reset()
	}
}
