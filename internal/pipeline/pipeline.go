// Package pipeline runs action programs over packets with a pool of
// workers.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"firestige.xyz/actionengine/internal/config"
	"firestige.xyz/actionengine/internal/core"
	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/metrics"
)

// Frame is a raw packet entering the pipeline.
type Frame struct {
	Data      []byte
	Timestamp time.Time
	Port      uint64 // ingress port
}

// Output is a packet leaving the pipeline.
type Output struct {
	PacketID  uint64
	CopyID    uint64 // 0 for the original packet
	Data      []byte
	Timestamp time.Time
	Port      uint64 // egress_spec
}

// Digest is a learning notification raised by generate_digest.
type Digest struct {
	PacketID  uint64
	LearnID   uint64
	Timestamp time.Time
	Fields    map[string]string // user metadata, hex encoded
}

// Source produces frames until it is exhausted or ctx ends. Capture
// must return once ctx is done.
type Source interface {
	Name() string
	Capture(ctx context.Context, out chan<- Frame) error
}

// Emitter receives emitted packets. It is called from every worker and
// must be safe for concurrent use.
type Emitter interface {
	Emit(out Output) error
}

// DigestReceiver receives digests. It is called from every worker and
// must be safe for concurrent use.
type DigestReceiver interface {
	Receive(d Digest) error
}

// Config contains pipeline configuration.
type Config struct {
	Name              string
	Workers           int
	QueueSize         int // per worker
	Dispatch          string
	MaxRecirculations int
	DigestTTL         time.Duration // 0 disables duplicate suppression
	Program           *Program
	Emitter           Emitter
	Digests           DigestReceiver
}

// ConfigFrom fills a Config from the static pipeline settings.
func ConfigFrom(pc config.PipelineConfig, prog *Program) Config {
	return Config{
		Name:              pc.Name,
		Workers:           pc.Workers,
		QueueSize:         pc.QueueSize,
		Dispatch:          pc.Dispatch,
		MaxRecirculations: pc.MaxRecirculations,
		DigestTTL:         pc.DigestTTL,
		Program:           prog,
	}
}

// Pipeline dispatches frames to workers. Each worker owns its packets
// exclusively; the Program's shared state synchronizes itself.
type Pipeline struct {
	name      string
	prog      *Program
	emitter   Emitter
	digests   DigestReceiver
	strategy  DispatchStrategy
	maxPasses int
	queueSize int
	learned   *cache.Cache
	workers   []*worker
	metrics   *Metrics
	log       log.Logger

	nextID atomic.Uint64

	// Runtime state
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	stopped bool
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Program == nil {
		return nil, core.ErrConfigInvalid
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1024 // Default buffer size
	}
	if cfg.MaxRecirculations < 0 {
		cfg.MaxRecirculations = 0
	}

	p := &Pipeline{
		name:      cfg.Name,
		prog:      cfg.Program,
		emitter:   cfg.Emitter,
		digests:   cfg.Digests,
		strategy:  NewDispatchStrategy(cfg.Dispatch, cfg.Workers),
		maxPasses: cfg.MaxRecirculations,
		queueSize: cfg.QueueSize,
		metrics:   NewMetrics(cfg.Name),
		log:       log.GetLogger().WithField("pipeline", cfg.Name),
	}
	if cfg.DigestTTL > 0 {
		p.learned = cache.New(cfg.DigestTTL, 2*cfg.DigestTTL)
	}
	p.workers = make([]*worker, cfg.Workers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p)
	}
	return p, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Program returns the bound program the pipeline runs.
func (p *Pipeline) Program() *Program { return p.prog }

// Start launches the workers. They run until Stop or until ctx ends.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return core.ErrPipelineStopped
	}

	p.log.WithField("workers", len(p.workers)).
		WithField("dispatch", p.strategy.Name()).
		Info("pipeline starting")

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for _, w := range p.workers {
		p.wg.Add(1)
		go w.loop()
	}
	metrics.PipelineWorkers.WithLabelValues(p.name).Set(float64(len(p.workers)))
	return nil
}

// Submit queues a frame on the worker chosen by the dispatch strategy.
// It blocks while that worker's queue is full.
func (p *Pipeline) Submit(ctx context.Context, f Frame) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return core.ErrPipelineStopped
	}

	w := p.workers[p.strategy.Dispatch(f.Data, len(p.workers))]
	select {
	case w.in <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return core.ErrPipelineStopped
	}
}

// Stop closes the worker queues and waits for queued frames to drain.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	for _, w := range p.workers {
		close(w.in)
	}
	p.mu.Unlock()

	p.log.Info("pipeline stopping")
	p.wg.Wait()
	p.cancel()
	metrics.PipelineWorkers.WithLabelValues(p.name).Set(0)

	st := p.Stats()
	p.log.WithFields(map[string]interface{}{
		"received": st.Received,
		"emitted":  st.Emitted,
		"dropped":  st.Dropped,
	}).Info("pipeline stopped")
	return nil
}

// Run starts the pipeline, feeds it every frame src captures and stops
// it once src is exhausted or ctx ends.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	frames := make(chan Frame, p.queueSize)
	errc := make(chan error, 1)
	go func() {
		defer close(frames)
		errc <- src.Capture(ctx, frames)
	}()

	for f := range frames {
		if err := p.Submit(ctx, f); err != nil {
			p.log.WithError(err).Warn("submit failed, discarding remaining frames")
			for range frames {
			}
			break
		}
	}

	err := <-errc
	if stopErr := p.Stop(); stopErr != nil && err == nil {
		err = stopErr
	}
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Received:          p.metrics.Received.Load(),
		Emitted:           p.metrics.Emitted.Load(),
		EmitErrors:        p.metrics.EmitErrors.Load(),
		Dropped:           p.metrics.Dropped.Load(),
		Cloned:            p.metrics.Cloned.Load(),
		Resubmitted:       p.metrics.Resubmitted.Load(),
		Recirculated:      p.metrics.Recirculated.Load(),
		LoopLimited:       p.metrics.LoopLimited.Load(),
		Digests:           p.metrics.Digests.Load(),
		DigestsSuppressed: p.metrics.DigestsSuppressed.Load(),
	}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received          uint64
	Emitted           uint64
	EmitErrors        uint64
	Dropped           uint64
	Cloned            uint64
	Resubmitted       uint64
	Recirculated      uint64
	LoopLimited       uint64
	Digests           uint64
	DigestsSuppressed uint64
}
