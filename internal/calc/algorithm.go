package calc

import (
	"fmt"
	"hash/crc32"
	"hash/fnv"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/actionengine/internal/core"
)

// Algorithm hashes a byte string to an unsigned integer.
type Algorithm func(data []byte) uint64

var algorithms = map[string]Algorithm{
	"crc16":    crc16,
	"crc32":    crc32IEEE,
	"csum16":   csum16,
	"xor16":    xor16,
	"identity": identity,
	"fnv1a32":  fnv1a32,
	"xxh64":    xxhash.Sum64,
	"flow":     flowHash,
}

// LookupAlgorithm returns the algorithm registered under name.
func LookupAlgorithm(name string) (Algorithm, error) {
	a, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: algorithm '%s'", core.ErrUnknownCalculation, name)
	}
	return a, nil
}

// Algorithms lists the algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// crc16 is CRC-16/ARC: reflected polynomial 0x8005, zero init, no final xor.
func crc16(data []byte) uint64 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xa001
			} else {
				crc >>= 1
			}
		}
	}
	return uint64(crc)
}

func crc32IEEE(data []byte) uint64 {
	return uint64(crc32.ChecksumIEEE(data))
}

// csum16 is the Internet checksum (RFC 1071). An odd trailing byte is
// padded with zero.
func csum16(data []byte) uint64 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return uint64(^uint16(sum))
}

func xor16(data []byte) uint64 {
	var x uint16
	for i := 0; i+1 < len(data); i += 2 {
		x ^= uint16(data[i])<<8 | uint16(data[i+1])
	}
	if len(data)%2 == 1 {
		x ^= uint16(data[len(data)-1]) << 8
	}
	return uint64(x)
}

// identity packs the first eight bytes big-endian.
func identity(data []byte) uint64 {
	var v uint64
	for i := 0; i < len(data) && i < 8; i++ {
		v = v<<8 | uint64(data[i])
	}
	return v
}

func fnv1a32(data []byte) uint64 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return uint64(h.Sum32())
}

// flowHash decodes an Ethernet frame and hashes its network and transport
// flows. The hash is symmetric, so both directions of a connection map to
// the same value. Frames without a network layer hash to zero.
func flowHash(data []byte) uint64 {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	nl := pkt.NetworkLayer()
	if nl == nil {
		return 0
	}
	h := nl.NetworkFlow().FastHash()
	if tl := pkt.TransportLayer(); tl != nil {
		h = h*31 + tl.TransportFlow().FastHash()
	}
	return h
}
