// Package afpacket captures frames from a Linux interface through a
// TPACKET_V3 memory-mapped ring.
package afpacket

import (
	"fmt"

	"golang.org/x/net/bpf"
)

const Name = "afpacket"

// Config configures an AF_PACKET source.
type Config struct {
	Device       string
	SnapLen      int
	BufferSizeMB int
	TimeoutMs    int
	FanoutID     uint16 // 0 disables fanout
	Filter       []bpf.RawInstruction
	Port         uint64 // ingress port stamped on every frame
}

// ringSize picks frame size, block size and block count for a ring of
// about bufferMB megabytes.
//
// PACKET_MMAP requires that:
//   - frames are TPACKET_ALIGNMENT (16) aligned
//   - blocks are a multiple of the page size
//   - blocks hold a whole number of frames
//
// Frames smaller than a page give blocks of at most 256 pages.
func ringSize(bufferMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const alignment = 16
	const hdrLen = 52 // TPACKET3_HDRLEN, rounded up

	if bufferMB <= 0 {
		return 0, 0, 0, fmt.Errorf("buffer size must be positive, got %d MB", bufferMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%alignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", alignment, pageSize)
	}

	frameSize = roundUp(hdrLen+snapLen, alignment)
	if frameSize >= pageSize {
		// Whole pages keep the block at one frame.
		frameSize = roundUp(frameSize, pageSize)
	}
	blockSize = lcm(pageSize, frameSize)

	numBlocks = (bufferMB << 20) / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}
