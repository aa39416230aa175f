// Package packet implements the per-packet context mutated by primitives.
package packet

import (
	"time"

	"firestige.xyz/actionengine/internal/phv"
)

const (
	// LengthRegister is the packet register holding the running byte
	// length. It starts at the ingress length and is adjusted by
	// add_header / remove_header.
	LengthRegister = 0

	// NumRegisters is the number of per-packet registers.
	NumRegisters = 4
)

// Packet is the mutable state of one in-flight packet. It is owned by a
// single worker and needs no synchronization.
type Packet struct {
	id         uint64
	copyID     uint64
	timestamp  time.Time
	phv        *phv.PHV
	buf        []byte
	ingressLen int
	registers  [NumRegisters]uint64

	exit        bool
	truncate    bool
	truncateLen int
}

// New creates a packet around buf. The length register is initialized to
// len(buf).
func New(id uint64, headers *phv.PHV, buf []byte) *Packet {
	p := &Packet{
		id:         id,
		timestamp:  time.Now(),
		phv:        headers,
		buf:        buf,
		ingressLen: len(buf),
	}
	p.registers[LengthRegister] = uint64(len(buf))
	return p
}

// ID returns the packet id, shared by the packet and its copies.
func (p *Packet) ID() uint64 { return p.id }

// CopyID returns 0 for the original packet and a per-worker sequence
// number for clones.
func (p *Packet) CopyID() uint64 { return p.copyID }

// PHV returns the packet's headers and metadata.
func (p *Packet) PHV() *phv.PHV { return p.phv }

func (p *Packet) Buffer() []byte       { return p.buf }
func (p *Packet) SetBuffer(buf []byte) { p.buf = buf }

// IngressLength returns the byte length the packet arrived with.
func (p *Packet) IngressLength() int { return p.ingressLen }

func (p *Packet) Timestamp() time.Time     { return p.timestamp }
func (p *Packet) SetTimestamp(t time.Time) { p.timestamp = t }

// Register returns register i, zero for an unknown index.
func (p *Packet) Register(i int) uint64 {
	if i < 0 || i >= NumRegisters {
		return 0
	}
	return p.registers[i]
}

// SetRegister sets register i. Unknown indexes are ignored.
func (p *Packet) SetRegister(i int, v uint64) {
	if i < 0 || i >= NumRegisters {
		return
	}
	p.registers[i] = v
}

// MarkForExit asks the interpreter to skip the remaining actions of the
// current stage. The packet is still emitted.
func (p *Packet) MarkForExit() { p.exit = true }

// IsMarkedForExit reports whether MarkForExit was called.
func (p *Packet) IsMarkedForExit() bool { return p.exit }

// ResetExit clears the exit flag between stages.
func (p *Packet) ResetExit() { p.exit = false }

// Truncate requests that at most n bytes are emitted. The buffer itself is
// only cut at emit time.
func (p *Packet) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	p.truncate = true
	p.truncateLen = n
}

// TruncateLength returns the requested length, if any.
func (p *Packet) TruncateLength() (int, bool) {
	return p.truncateLen, p.truncate
}

// Emit returns the bytes to send, honoring a pending truncation.
func (p *Packet) Emit() []byte {
	if p.truncate && p.truncateLen < len(p.buf) {
		return p.buf[:p.truncateLen]
	}
	return p.buf
}

// Clone returns a deep copy with a fresh PHV taken from headers. The copy
// keeps the id and gets copyID.
func (p *Packet) Clone(copyID uint64, headers *phv.PHV) *Packet {
	c := &Packet{
		id:          p.id,
		copyID:      copyID,
		timestamp:   p.timestamp,
		phv:         headers,
		buf:         append([]byte(nil), p.buf...),
		ingressLen:  p.ingressLen,
		registers:   p.registers,
		exit:        p.exit,
		truncate:    p.truncate,
		truncateLen: p.truncateLen,
	}
	headers.CopyFrom(p.phv)
	return c
}
