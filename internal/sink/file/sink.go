// Package file writes emitted packets to a pcap file.
package file

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/actionengine/internal/pipeline"
)

const Name = "file"

// Sink writes emitted packets as pcap records. It is safe for concurrent
// use.
type Sink struct {
	mu      sync.Mutex
	fh      *os.File
	buf     *bufio.Writer
	w       *pcapgo.Writer
	snapLen int
	written uint64
}

// NewSink creates path and writes an Ethernet pcap file header.
func NewSink(path string, snapLen int) (*Sink, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: path is required")
	}
	if snapLen <= 0 {
		snapLen = 65535
	}
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	buf := bufio.NewWriter(fh)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		fh.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Sink{fh: fh, buf: buf, w: w, snapLen: snapLen}, nil
}

func (s *Sink) Emit(out pipeline.Output) error {
	data := out.Data
	if len(data) > s.snapLen {
		data = data[:s.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     out.Timestamp,
		CaptureLength: len(data),
		Length:        len(out.Data),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return os.ErrClosed
	}
	if err := s.w.WritePacket(ci, data); err != nil {
		return err
	}
	s.written++
	return nil
}

// Written returns the number of packets written.
func (s *Sink) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	s.w = nil
	if err := s.buf.Flush(); err != nil {
		s.fh.Close()
		return err
	}
	return s.fh.Close()
}
