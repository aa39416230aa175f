// Package file reads frames from pcap and pcapng files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/actionengine/internal/filter"
	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/pipeline"
)

const Name = "file"

// pcapng section header block type
const ngMagic = 0x0a0d0d0a

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Source replays a capture file once.
type Source struct {
	path   string
	port   uint64
	filter filter.Filter

	read     uint64
	filtered uint64
}

// NewSource creates a source for path. f may be nil; every frame is
// stamped with the ingress port.
func NewSource(path string, port uint64, f filter.Filter) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file source: path is required")
	}
	return &Source{path: path, port: port, filter: f}, nil
}

func (s *Source) Name() string { return Name }

// Capture sends every accepted frame of the file to out. It returns nil
// at end of file.
func (s *Source) Capture(ctx context.Context, out chan<- pipeline.Frame) error {
	fh, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", s.path, err)
	}
	defer fh.Close()

	r, err := newReader(bufio.NewReader(fh))
	if err != nil {
		return fmt.Errorf("failed to read capture file %s: %w", s.path, err)
	}

	logger := log.GetLogger().WithField("source", Name).WithField("path", s.path)
	defer func() {
		logger.WithField("read", s.read).WithField("filtered", s.filtered).Info("capture file done")
	}()

	for {
		data, ci, err := r.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("failed to read packet: %w", err)
		}
		s.read++
		if s.filter != nil && !s.filter.Match(data) {
			s.filtered++
			continue
		}

		select {
		case out <- pipeline.Frame{Data: data, Timestamp: ci.Timestamp, Port: s.port}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns the number of frames read and rejected by the filter.
func (s *Source) Stats() (read, filtered uint64) {
	return s.read, s.filtered
}

func newReader(br *bufio.Reader) (packetReader, error) {
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(magic) == ngMagic {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}
