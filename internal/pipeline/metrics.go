package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline packet counters.
type Metrics struct {
	Pipeline string

	// Packet counters (using atomic for thread-safety)
	Received          atomic.Uint64
	Emitted           atomic.Uint64
	EmitErrors        atomic.Uint64
	Dropped           atomic.Uint64
	Cloned            atomic.Uint64
	Resubmitted       atomic.Uint64
	Recirculated      atomic.Uint64
	LoopLimited       atomic.Uint64
	Digests           atomic.Uint64
	DigestsSuppressed atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics(pipeline string) *Metrics {
	return &Metrics{Pipeline: pipeline}
}

// Reset resets all counters to zero.
func (m *Metrics) Reset() {
	m.Received.Store(0)
	m.Emitted.Store(0)
	m.EmitErrors.Store(0)
	m.Dropped.Store(0)
	m.Cloned.Store(0)
	m.Resubmitted.Store(0)
	m.Recirculated.Store(0)
	m.LoopLimited.Store(0)
	m.Digests.Store(0)
	m.DigestsSuppressed.Store(0)
}
