package pipeline

import (
	"strconv"
	"sync/atomic"

	"github.com/serialx/hashring"

	"firestige.xyz/actionengine/internal/calc"
	"firestige.xyz/actionengine/internal/config"
)

// DispatchStrategy determines how frames are distributed across workers.
type DispatchStrategy interface {
	// Dispatch returns the worker index (0-based) for the given frame.
	// numWorkers is guaranteed to be > 0.
	Dispatch(frame []byte, numWorkers int) int

	// Name returns the strategy name for logging/metrics.
	Name() string
}

var flowAlgorithm, _ = calc.LookupAlgorithm("flow")

// FlowHashStrategy distributes frames by symmetric flow hash.
// Both directions of a flow always go to the same worker.
type FlowHashStrategy struct{}

func (s *FlowHashStrategy) Dispatch(frame []byte, numWorkers int) int {
	return int(flowAlgorithm(frame) % uint64(numWorkers))
}

func (s *FlowHashStrategy) Name() string { return config.DispatchFlowHash }

// RoundRobinStrategy distributes frames in round-robin order.
// Provides even load distribution but no flow affinity.
type RoundRobinStrategy struct {
	counter atomic.Uint64
}

func (s *RoundRobinStrategy) Dispatch(_ []byte, numWorkers int) int {
	return int(s.counter.Add(1) % uint64(numWorkers))
}

func (s *RoundRobinStrategy) Name() string { return config.DispatchRoundRobin }

// HashRingStrategy places flows on a consistent hash ring of workers, so
// changing the worker count moves as few flows as possible.
type HashRingStrategy struct {
	ring  *hashring.HashRing
	index map[string]int
	size  int
}

// NewHashRingStrategy builds a ring of numWorkers nodes.
func NewHashRingStrategy(numWorkers int) *HashRingStrategy {
	nodes := make([]string, numWorkers)
	index := make(map[string]int, numWorkers)
	for i := range nodes {
		nodes[i] = "worker-" + strconv.Itoa(i)
		index[nodes[i]] = i
	}
	return &HashRingStrategy{
		ring:  hashring.New(nodes),
		index: index,
		size:  numWorkers,
	}
}

func (s *HashRingStrategy) Dispatch(frame []byte, numWorkers int) int {
	key := strconv.FormatUint(flowAlgorithm(frame), 16)
	node, ok := s.ring.GetNode(key)
	if !ok {
		return 0
	}
	return s.index[node] % numWorkers
}

func (s *HashRingStrategy) Name() string { return config.DispatchHashRing }

// NewDispatchStrategy creates a dispatch strategy by name.
// Supported strategies: "flow-hash" (default), "round-robin", "hashring".
func NewDispatchStrategy(name string, numWorkers int) DispatchStrategy {
	switch name {
	case config.DispatchRoundRobin:
		return &RoundRobinStrategy{}
	case config.DispatchHashRing:
		return NewHashRingStrategy(numWorkers)
	default:
		return &FlowHashStrategy{}
	}
}
