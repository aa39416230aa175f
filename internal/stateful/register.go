package stateful

import (
	"sync"

	"firestige.xyz/actionengine/internal/phv"
)

type registerCell struct {
	mu sync.Mutex
	v  *phv.Value
}

// RegisterArray is a named fixed-size array of fixed-width values with one
// lock per element.
type RegisterArray struct {
	name  string
	width int
	cells []registerCell
}

// NewRegisterArray creates size zero registers of the given bit width.
func NewRegisterArray(name string, size, width int) *RegisterArray {
	if size < 0 {
		size = 0
	}
	a := &RegisterArray{name: name, width: width, cells: make([]registerCell, size)}
	for i := range a.cells {
		a.cells[i].v = phv.NewValue(width)
	}
	return a
}

func (a *RegisterArray) Name() string { return a.name }
func (a *RegisterArray) Size() int    { return len(a.cells) }

// Width returns the bit width every register wraps to.
func (a *RegisterArray) Width() int { return a.width }

// Read copies the register at idx into dst, truncated to dst's width.
func (a *RegisterArray) Read(idx uint, dst *phv.Value) error {
	if idx >= uint(len(a.cells)) {
		return outOfRange(a, idx)
	}
	c := &a.cells[idx]
	c.mu.Lock()
	dst.Set(c.v)
	c.mu.Unlock()
	return nil
}

// Write stores src at idx, truncated to the array width.
func (a *RegisterArray) Write(idx uint, src *phv.Value) error {
	if idx >= uint(len(a.cells)) {
		return outOfRange(a, idx)
	}
	c := &a.cells[idx]
	c.mu.Lock()
	c.v.Set(src)
	c.mu.Unlock()
	return nil
}

// Update applies fn to the register at idx under its lock.
func (a *RegisterArray) Update(idx uint, fn func(v *phv.Value)) error {
	if idx >= uint(len(a.cells)) {
		return outOfRange(a, idx)
	}
	c := &a.cells[idx]
	c.mu.Lock()
	fn(c.v)
	c.mu.Unlock()
	return nil
}

// Snapshot returns copies of every register.
func (a *RegisterArray) Snapshot() []*phv.Value {
	out := make([]*phv.Value, len(a.cells))
	for i := range a.cells {
		v := phv.NewValue(a.width)
		_ = a.Read(uint(i), v)
		out[i] = v
	}
	return out
}

// Reset zeroes every register.
func (a *RegisterArray) Reset() {
	zero := phv.Const(0)
	for i := range a.cells {
		_ = a.Write(uint(i), zero)
	}
}
