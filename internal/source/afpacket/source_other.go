//go:build !linux

package afpacket

import (
	"context"
	"errors"

	"firestige.xyz/actionengine/internal/pipeline"
)

var errUnsupported = errors.New("afpacket capture is only available on linux")

// Source is unavailable outside linux.
type Source struct{}

// NewSource always fails outside linux.
func NewSource(Config) (*Source, error) { return nil, errUnsupported }

func (s *Source) Name() string { return Name }

func (s *Source) Capture(context.Context, chan<- pipeline.Frame) error { return errUnsupported }
