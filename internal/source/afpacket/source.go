//go:build linux

package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/pipeline"
)

// Source reads frames from one interface until its context ends.
type Source struct {
	cfg       Config
	frameSize int
	blockSize int
	numBlocks int
}

// NewSource validates cfg and sizes the ring. The socket is opened by
// Capture.
func NewSource(cfg Config) (*Source, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("afpacket source: device is required")
	}
	frameSize, blockSize, numBlocks, err := ringSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, err
	}
	return &Source{
		cfg:       cfg,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
	}, nil
}

func (s *Source) Name() string { return Name }

func (s *Source) open() (*afpacket.TPacket, error) {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.cfg.Device),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(time.Duration(s.cfg.TimeoutMs)*time.Millisecond),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.cfg.Device, err)
	}

	if s.cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, s.cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("failed to join fanout group %d: %w", s.cfg.FanoutID, err)
		}
	}
	if len(s.cfg.Filter) > 0 {
		if err := tp.SetBPF(s.cfg.Filter); err != nil {
			tp.Close()
			return nil, fmt.Errorf("failed to attach bpf filter: %w", err)
		}
	}
	return tp, nil
}

// Capture reads frames until ctx ends. The kernel applies the filter.
func (s *Source) Capture(ctx context.Context, out chan<- pipeline.Frame) error {
	tp, err := s.open()
	if err != nil {
		return err
	}
	defer tp.Close()

	log.GetLogger().WithField("source", Name).
		WithField("device", s.cfg.Device).
		WithField("frame_size", s.frameSize).
		WithField("blocks", s.numBlocks).
		Info("capture started")

	for {
		if ctx.Err() != nil {
			return nil
		}
		data, ci, err := tp.ReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) {
				continue
			}
			return fmt.Errorf("failed to read packet: %w", err)
		}

		select {
		case out <- pipeline.Frame{Data: data, Timestamp: ci.Timestamp, Port: s.cfg.Port}:
		case <-ctx.Done():
			return nil
		}
	}
}
