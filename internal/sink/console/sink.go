// Package console prints emitted packets and digests as text lines.
package console

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"firestige.xyz/actionengine/internal/pipeline"
)

const Name = "console"

// maxDump bounds the payload bytes printed per packet.
const maxDump = 64

// Sink prints one line per emitted packet and per digest. It is safe for
// concurrent use.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSink writes to w, or to stdout when w is nil.
func NewSink(w io.Writer) *Sink {
	if w == nil {
		w = os.Stdout
	}
	return &Sink{w: w}
}

func (s *Sink) Emit(out pipeline.Output) error {
	data := out.Data
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	line := fmt.Sprintf("packet id=%d copy=%d port=%d len=%d data=%s\n",
		out.PacketID, out.CopyID, out.Port, len(out.Data), hex.EncodeToString(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *Sink) Receive(d pipeline.Digest) error {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + d.Fields[name]
	}
	line := fmt.Sprintf("digest learn_id=%d packet=%d fields=%s\n", d.LearnID, d.PacketID, strings.Join(pairs, ","))

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *Sink) Close() error {
	return nil
}
