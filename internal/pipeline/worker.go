package pipeline

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/actionengine/internal/action"
	"firestige.xyz/actionengine/internal/metrics"
	"firestige.xyz/actionengine/internal/packet"
	"firestige.xyz/actionengine/internal/primitive"
)

// Metadata fields the pipeline fills in before ingress when the program
// declares them.
const (
	IngressPortField  = "standard_metadata.ingress_port"
	PacketLengthField = "standard_metadata.packet_length"
)

// Headers whose fields are not carried in digests.
var intrinsicHeaders = map[string]bool{
	"standard_metadata":  true,
	"intrinsic_metadata": true,
}

type worker struct {
	id     int
	p      *Pipeline
	rt     *primitive.Worker
	in     chan Frame
	copies uint64
}

func newWorker(id int, p *Pipeline) *worker {
	return &worker{
		id: id,
		p:  p,
		rt: primitive.NewWorker(id),
		in: make(chan Frame, p.queueSize),
	}
}

// loop is the main processing loop.
func (w *worker) loop() {
	defer w.p.wg.Done()

	for {
		select {
		case <-w.p.ctx.Done():
			return

		case f, ok := <-w.in:
			if !ok {
				// Queue closed, pipeline stopping
				return
			}
			w.handle(f)
		}
	}
}

// handle takes one frame through the whole pipeline.
func (w *worker) handle(f Frame) {
	p := w.p
	p.metrics.Received.Add(1)
	start := time.Now()

	pkt := packet.New(p.nextID.Add(1), p.prog.Layout.NewPHV(), f.Data)
	if !f.Timestamp.IsZero() {
		pkt.SetTimestamp(f.Timestamp)
	}
	w.prime(pkt, f.Port)
	w.run(pkt, f.Port, 0)

	metrics.PipelineLatencySeconds.WithLabelValues(p.name, "total").Observe(time.Since(start).Seconds())
}

// prime fills the ingress metadata of a fresh packet.
func (w *worker) prime(pkt *packet.Packet, port uint64) {
	if f, ok := pkt.PHV().Field(IngressPortField); ok {
		f.SetUint64(port)
	}
	if f, ok := pkt.PHV().Field(PacketLengthField); ok {
		f.SetUint64(uint64(len(pkt.Buffer())))
	}
}

// run executes ingress, then egress for the packet and any ingress clone.
// passes counts the resubmit and recirculate loops already taken.
func (w *worker) run(pkt *packet.Packet, port uint64, passes int) {
	p := w.p
	for {
		w.apply(pkt, p.prog.Ingress, "ingress")
		w.learn(pkt)
		if !w.takeFlag(pkt, primitive.ResubmitFlagField) {
			break
		}
		if passes >= p.maxPasses {
			w.loopLimit(pkt, "resubmit")
			break
		}
		passes++
		pkt.ResetExit()
		p.metrics.Resubmitted.Add(1)
		metrics.PipelinePacketsTotal.WithLabelValues(p.name, metrics.OutcomeResubmitted).Inc()
	}

	if c := w.cloneOf(pkt); c != nil {
		w.clearFlags(c)
		w.egress(c, port, passes)
	}
	if w.dropped(pkt) {
		return
	}
	w.egress(pkt, port, passes)
}

// egress runs the egress actions and then emits, drops or recirculates.
func (w *worker) egress(pkt *packet.Packet, port uint64, passes int) {
	p := w.p
	pkt.ResetExit()
	w.apply(pkt, p.prog.Egress, "egress")
	w.learn(pkt)

	// A copy never loops and never spawns further copies.
	if pkt.CopyID() != 0 {
		w.clearFlags(pkt)
	} else if c := w.cloneOf(pkt); c != nil {
		w.egress(c, port, passes)
	}
	if w.dropped(pkt) {
		return
	}

	if w.takeFlag(pkt, primitive.RecirculateFlagField) {
		if passes < p.maxPasses {
			p.metrics.Recirculated.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(p.name, metrics.OutcomeRecirculated).Inc()
			buf := append([]byte(nil), pkt.Emit()...)
			next := packet.New(pkt.ID(), p.prog.Layout.NewPHV(), buf)
			next.SetTimestamp(pkt.Timestamp())
			w.prime(next, port)
			w.run(next, port, passes+1)
			return
		}
		w.loopLimit(pkt, "recirculate")
	}
	w.emit(pkt)
}

func (w *worker) apply(pkt *packet.Packet, actions []*action.Action, stage string) {
	if len(actions) == 0 {
		return
	}
	start := time.Now()
	ctx := primitive.NewContext(w.rt, pkt, w.p.log)
	for _, a := range actions {
		a.Execute(ctx)
		if pkt.IsMarkedForExit() {
			break
		}
	}
	metrics.PipelineLatencySeconds.WithLabelValues(w.p.name, stage).Observe(time.Since(start).Seconds())
}

// takeFlag reports whether the named metadata field is set and clears it.
func (w *worker) takeFlag(pkt *packet.Packet, name string) bool {
	f, ok := pkt.PHV().Field(name)
	if !ok || f.IsZero() {
		return false
	}
	f.SetUint64(0)
	return true
}

func (w *worker) clearFlags(pkt *packet.Packet) {
	w.takeFlag(pkt, primitive.ResubmitFlagField)
	w.takeFlag(pkt, primitive.RecirculateFlagField)
	w.takeFlag(pkt, primitive.CloneSpecField)
}

// cloneOf returns a copy of pkt when clone_spec is set. clone_spec is
// cleared on both.
func (w *worker) cloneOf(pkt *packet.Packet) *packet.Packet {
	f, ok := pkt.PHV().Field(primitive.CloneSpecField)
	if !ok || f.IsZero() {
		return nil
	}
	spec := f.Uint64()
	f.SetUint64(0)

	w.copies++
	c := pkt.Clone(w.copies, w.p.prog.Layout.NewPHV())
	w.p.metrics.Cloned.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(w.p.name, metrics.OutcomeCloned).Inc()
	if w.p.log.IsTraceEnabled() {
		w.p.log.WithField("packet", pkt.ID()).
			WithField("clone_spec", spec).
			Trace("packet cloned")
	}
	return c
}

// dropped reports whether egress_spec holds the drop port, counting the
// drop if so.
func (w *worker) dropped(pkt *packet.Packet) bool {
	f, ok := pkt.PHV().Field(primitive.EgressSpecField)
	if !ok || f.Uint64() != primitive.DropPort {
		return false
	}
	w.p.metrics.Dropped.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(w.p.name, metrics.OutcomeDropped).Inc()
	return true
}

func (w *worker) loopLimit(pkt *packet.Packet, kind string) {
	w.p.metrics.LoopLimited.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(w.p.name, metrics.OutcomeLoopLimit).Inc()
	w.p.log.WithField("packet", pkt.ID()).
		WithField("limit", w.p.maxPasses).
		Warnf("%s limit reached, continuing without it", kind)
}

// learn raises a digest when lf_field_list is set. Identical digests
// within the TTL are suppressed.
func (w *worker) learn(pkt *packet.Packet) {
	f, ok := pkt.PHV().Field(primitive.LearnField)
	if !ok || f.IsZero() {
		return
	}
	id := f.Uint64()
	f.SetUint64(0)

	p := w.p
	d := Digest{
		PacketID:  pkt.ID(),
		LearnID:   id,
		Timestamp: pkt.Timestamp(),
		Fields:    make(map[string]string),
	}
	for _, h := range pkt.PHV().Headers() {
		if !h.IsMetadata() || intrinsicHeaders[h.Name()] {
			continue
		}
		for _, hf := range h.Fields() {
			d.Fields[hf.Name()] = hf.Hex()
		}
	}

	if p.learned != nil {
		if err := p.learned.Add(digestKey(d), struct{}{}, cache.DefaultExpiration); err != nil {
			p.metrics.DigestsSuppressed.Add(1)
			metrics.DigestsTotal.WithLabelValues(p.name, metrics.OutcomeFiltered).Inc()
			return
		}
	}

	p.metrics.Digests.Add(1)
	metrics.DigestsTotal.WithLabelValues(p.name, metrics.OutcomeEmitted).Inc()
	if p.digests == nil {
		return
	}
	if err := p.digests.Receive(d); err != nil {
		p.log.WithError(err).WithField("learn_id", id).Error("digest delivery failed")
	}
}

func digestKey(d Digest) string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strconv.FormatUint(d.LearnID, 10))
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(d.Fields[name])
	}
	return b.String()
}

func (w *worker) emit(pkt *packet.Packet) {
	p := w.p
	out := Output{
		PacketID:  pkt.ID(),
		CopyID:    pkt.CopyID(),
		Data:      pkt.Emit(),
		Timestamp: pkt.Timestamp(),
	}
	if f, ok := pkt.PHV().Field(primitive.EgressSpecField); ok {
		out.Port = f.Uint64()
	}

	if p.emitter != nil {
		if err := p.emitter.Emit(out); err != nil {
			p.metrics.EmitErrors.Add(1)
			metrics.PipelinePacketsTotal.WithLabelValues(p.name, metrics.OutcomeEmitError).Inc()
			p.log.WithError(err).WithField("packet", pkt.ID()).Error("emit failed")
			return
		}
	}
	p.metrics.Emitted.Add(1)
	metrics.PipelinePacketsTotal.WithLabelValues(p.name, metrics.OutcomeEmitted).Inc()
}
