// Package filter implements ingress frame filters: classic BPF programs
// run in the x/net/bpf virtual machine, chained in order.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/actionengine/internal/core"
)

// Filter decides whether a frame enters the pipeline.
type Filter interface {
	Match(frame []byte) bool
}

// BPF accepts frames for which a classic BPF program returns a non-zero
// length.
type BPF struct {
	vm  *bpf.VM
	len int
}

// NewBPF builds a filter from raw instructions.
func NewBPF(raw []bpf.RawInstruction) (*BPF, error) {
	insns, ok := bpf.Disassemble(raw)
	if !ok {
		return nil, fmt.Errorf("%w: bpf program has undecodable instructions", core.ErrConfigInvalid)
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("%w: bpf program: %v", core.ErrConfigInvalid, err)
	}
	return &BPF{vm: vm, len: len(raw)}, nil
}

// Compile parses a program in the formats printed by tcpdump -dd
// ("{ 0x28, 0, 0, 0x0000000c },") or tcpdump -ddd (a count line followed
// by "40 0 0 12" lines). An empty program yields a nil filter.
func Compile(text string) (*BPF, error) {
	raw, err := Parse(text)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	return NewBPF(raw)
}

// Parse reads raw instructions; see Compile for the accepted formats.
func Parse(text string) ([]bpf.RawInstruction, error) {
	var raw []bpf.RawInstruction
	lines := strings.Split(text, "\n")
	for n, line := range lines {
		line = strings.NewReplacer("{", " ", "}", " ", ",", " ").Replace(line)
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 1:
			// -ddd instruction count
			if len(raw) == 0 {
				continue
			}
		case 4:
			var v [4]uint64
			for i, f := range fields {
				x, err := strconv.ParseUint(f, 0, 32)
				if err != nil {
					return nil, fmt.Errorf("%w: bpf line %d: %v", core.ErrConfigInvalid, n+1, err)
				}
				v[i] = x
			}
			if v[0] > 0xffff || v[1] > 0xff || v[2] > 0xff {
				return nil, fmt.Errorf("%w: bpf line %d: value out of range", core.ErrConfigInvalid, n+1)
			}
			raw = append(raw, bpf.RawInstruction{Op: uint16(v[0]), Jt: uint8(v[1]), Jf: uint8(v[2]), K: uint32(v[3])})
			continue
		}
		return nil, fmt.Errorf("%w: bpf line %d: expected 4 values, got %d", core.ErrConfigInvalid, n+1, len(fields))
	}
	return raw, nil
}

// Match runs the program. Frames that make the program fault are
// rejected.
func (f *BPF) Match(frame []byte) bool {
	n, err := f.vm.Run(frame)
	return err == nil && n > 0
}

// Len returns the number of instructions.
func (f *BPF) Len() int { return f.len }

// Chain accepts a frame only if every filter does. An empty chain
// accepts everything.
type Chain []Filter

func (c Chain) Match(frame []byte) bool {
	for _, f := range c {
		if !f.Match(frame) {
			return false
		}
	}
	return true
}
