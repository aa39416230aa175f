package pipeline

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/actionengine/internal/config"
)

func udpFrame(t *testing.T, src, dst string, sport, dport uint16) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(sport), DstPort: layers.UDPPort(dport)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload("hello")))
	return buf.Bytes()
}

func TestNewDispatchStrategy(t *testing.T) {
	assert.Equal(t, config.DispatchFlowHash, NewDispatchStrategy("", 2).Name())
	assert.Equal(t, config.DispatchFlowHash, NewDispatchStrategy(config.DispatchFlowHash, 2).Name())
	assert.Equal(t, config.DispatchRoundRobin, NewDispatchStrategy(config.DispatchRoundRobin, 2).Name())
	assert.Equal(t, config.DispatchHashRing, NewDispatchStrategy(config.DispatchHashRing, 2).Name())
}

func TestFlowHashStrategy_Symmetric(t *testing.T) {
	s := &FlowHashStrategy{}
	fwd := udpFrame(t, "10.0.0.1", "10.0.0.2", 1234, 53)
	rev := udpFrame(t, "10.0.0.2", "10.0.0.1", 53, 1234)
	for _, n := range []int{1, 2, 3, 8} {
		assert.Equal(t, s.Dispatch(fwd, n), s.Dispatch(rev, n), "workers=%d", n)
	}
}

func TestRoundRobinStrategy(t *testing.T) {
	s := &RoundRobinStrategy{}
	seen := make(map[int]int)
	for i := 0; i < 9; i++ {
		seen[s.Dispatch(nil, 3)]++
	}
	assert.Equal(t, map[int]int{0: 3, 1: 3, 2: 3}, seen)
}

func TestHashRingStrategy(t *testing.T) {
	s := NewHashRingStrategy(4)
	fwd := udpFrame(t, "192.168.1.10", "192.168.1.20", 40000, 443)
	rev := udpFrame(t, "192.168.1.20", "192.168.1.10", 443, 40000)

	w := s.Dispatch(fwd, 4)
	assert.GreaterOrEqual(t, w, 0)
	assert.Less(t, w, 4)
	assert.Equal(t, w, s.Dispatch(fwd, 4), "stable for the same flow")
	assert.Equal(t, w, s.Dispatch(rev, 4), "both directions share a worker")

	spread := make(map[int]bool)
	for port := uint16(1000); port < 1200; port++ {
		spread[s.Dispatch(udpFrame(t, "10.1.0.1", "10.1.0.2", port, 80), 4)] = true
	}
	assert.Greater(t, len(spread), 1)
}
