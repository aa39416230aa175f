package primitive

import (
	"math/big"
	"math/rand/v2"

	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/metrics"
	"firestige.xyz/actionengine/internal/packet"
	"firestige.xyz/actionengine/internal/phv"
	"firestige.xyz/actionengine/internal/stateful"
)

// Worker is the per-goroutine state primitives may use. It must not be
// shared between goroutines.
type Worker struct {
	id  int
	rng *rand.Rand
}

// NewWorker returns a worker whose random source is seeded from id.
func NewWorker(id int) *Worker {
	return NewWorkerWithSource(id, rand.NewPCG(uint64(id), 0x9e3779b97f4a7c15))
}

// NewWorkerWithSource returns a worker drawing randomness from src.
func NewWorkerWithSource(id int, src rand.Source) *Worker {
	return &Worker{id: id, rng: rand.New(src)}
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// Uniform stores into dst a value drawn uniformly from [lo, hi]. It
// reports false when lo > hi.
func (w *Worker) Uniform(dst, lo, hi *phv.Value) bool {
	if lo.Cmp(hi) > 0 {
		return false
	}
	span := hi.Big()
	span.Sub(span, lo.Big())
	span.Add(span, big.NewInt(1))

	var off big.Int
	switch {
	case span.IsUint64():
		off.SetUint64(w.rng.Uint64N(span.Uint64()))
	case span.BitLen() == 65 && span.TrailingZeroBits() == 64:
		off.SetUint64(w.rng.Uint64())
	default:
		w.bigN(&off, span)
	}
	dst.SetBig(off.Add(&off, lo.Big()))
	return true
}

// bigN draws from [0, n) by rejection sampling.
func (w *Worker) bigN(dst, n *big.Int) {
	bits := n.BitLen()
	words := (bits + 63) / 64
	buf := make([]byte, words*8)
	excess := uint(words*64 - bits)
	for {
		for i := 0; i < words; i++ {
			x := w.rng.Uint64()
			if i == 0 {
				x >>= excess
			}
			for j := 0; j < 8; j++ {
				buf[i*8+j] = byte(x >> (56 - 8*j))
			}
		}
		dst.SetBytes(buf)
		if dst.Cmp(n) < 0 {
			return
		}
	}
}

// Context is what a primitive sees of the packet being processed.
type Context struct {
	Packet *packet.Packet
	Worker *Worker
	Log    log.Logger

	primitive string
}

// NewContext binds a packet to a worker. A nil logger selects the process
// logger.
func NewContext(w *Worker, pkt *packet.Packet, l log.Logger) *Context {
	if l == nil {
		l = log.GetLogger()
	}
	return &Context{Packet: pkt, Worker: w, Log: l}
}

func (c *Context) logger() log.Logger {
	l := c.Log
	if l == nil {
		l = log.GetLogger()
	}
	fields := map[string]interface{}{"primitive": c.primitive}
	if c.Packet != nil {
		fields["packet"] = c.Packet.ID()
	}
	return l.WithFields(fields)
}

func (c *Context) traceEnabled() bool {
	if c.Log == nil {
		return log.GetLogger().IsTraceEnabled()
	}
	return c.Log.IsTraceEnabled()
}

func (c *Context) fail(reason, format string, args ...interface{}) {
	metrics.PrimitiveErrorsTotal.WithLabelValues(c.primitive, reason).Inc()
	c.logger().Errorf(format, args...)
}

// Value returns the current value of a data argument. A field missing from
// this packet reads as zero.
func (c *Context) Value(a Arg) *phv.Value {
	if a.Kind == ArgConst {
		return a.Const
	}
	if f, ok := c.Packet.PHV().Field(a.Name); ok {
		return &f.Value
	}
	c.fail(metrics.ReasonMissingField, "field '%s' not found, reading 0", a.Name)
	return phv.Const(0)
}

// Field returns the field argument, or nil after logging if the packet
// lacks it.
func (c *Context) Field(a Arg) *phv.Field {
	if f, ok := c.Packet.PHV().Field(a.Name); ok {
		return f
	}
	c.fail(metrics.ReasonMissingField, "field '%s' not found, skipping", a.Name)
	return nil
}

// Header returns the header argument, or nil after logging if the packet
// lacks it.
func (c *Context) Header(a Arg) *phv.Header {
	if h, ok := c.Packet.PHV().Header(a.Name); ok {
		return h
	}
	c.fail(metrics.ReasonMissingField, "header '%s' not found, skipping", a.Name)
	return nil
}

// metaField looks up a metadata field by qualified name. Required fields
// are logged when absent; optional ones are skipped silently.
func (c *Context) metaField(name string, required bool) *phv.Field {
	if f, ok := c.Packet.PHV().Field(name); ok {
		return f
	}
	if required {
		c.fail(metrics.ReasonMissingField, "field '%s' not found, skipping", name)
	}
	return nil
}

// outOfRange logs a bad stateful index. The caller must skip the operation.
func (c *Context) outOfRange(op string, a stateful.Array, idx uint, consequence string) {
	metrics.PrimitiveErrorsTotal.WithLabelValues(c.primitive, metrics.ReasonIndexOutOfRange).Inc()
	c.logger().WithFields(map[string]interface{}{
		"array": a.Name(),
		"size":  a.Size(),
		"index": idx,
	}).Errorf("attempted to %s '%s' with size %d at out-of-bounds index %d. %s",
		op, a.Name(), a.Size(), idx, consequence)
}

func (c *Context) trace(format string, args ...interface{}) {
	if c.traceEnabled() {
		c.logger().Tracef(format, args...)
	}
}
