package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"

	"firestige.xyz/actionengine/internal/core"
)

// tcpdump -dd udp
const udpProgram = `
{ 0x28, 0, 0, 0x0000000c },
{ 0x15, 0, 5, 0x000086dd },
{ 0x30, 0, 0, 0x00000014 },
{ 0x15, 6, 0, 0x00000011 },
{ 0x15, 0, 6, 0x0000002c },
{ 0x30, 0, 0, 0x00000036 },
{ 0x15, 3, 4, 0x00000011 },
{ 0x15, 0, 3, 0x00000800 },
{ 0x30, 0, 0, 0x00000017 },
{ 0x15, 0, 1, 0x00000011 },
{ 0x6, 0, 0, 0x00040000 },
{ 0x6, 0, 0, 0x00000000 },
`

func ipv4Frame(proto byte) []byte {
	frame := make([]byte, 60)
	frame[12], frame[13] = 0x08, 0x00
	frame[14] = 0x45
	frame[23] = proto
	return frame
}

func TestParse(t *testing.T) {
	raw, err := Parse(udpProgram)
	require.NoError(t, err)
	require.Len(t, raw, 12)
	assert.Equal(t, bpf.RawInstruction{Op: 0x28, K: 12}, raw[0])
	assert.Equal(t, bpf.RawInstruction{Op: 0x15, Jt: 0, Jf: 5, K: 0x86dd}, raw[1])

	// tcpdump -ddd
	raw, err = Parse("2\n40 0 0 12\n6 0 0 262144\n")
	require.NoError(t, err)
	assert.Equal(t, []bpf.RawInstruction{{Op: 40, K: 12}, {Op: 6, K: 262144}}, raw)
}

func TestParse_Errors(t *testing.T) {
	for _, text := range []string{
		"{ 0x28, 0, 0 }",
		"{ 0x28, 0, zz, 12 }",
		"{ 0x10000, 0, 0, 0 }",
		"6 0 0 1\n7\n",
	} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, core.ErrConfigInvalid, text)
	}
}

func TestCompile_Empty(t *testing.T) {
	f, err := Compile("  \n")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestBPF_Match(t *testing.T) {
	f, err := Compile(udpProgram)
	require.NoError(t, err)
	assert.Equal(t, 12, f.Len())

	assert.True(t, f.Match(ipv4Frame(17)))
	assert.False(t, f.Match(ipv4Frame(6)))
	assert.False(t, f.Match([]byte{1, 2, 3}), "short frames are rejected")
}

func TestChain(t *testing.T) {
	udp, err := Compile(udpProgram)
	require.NoError(t, err)
	all, err := Compile("{ 0x6, 0, 0, 0x0000ffff }")
	require.NoError(t, err)

	assert.True(t, Chain{}.Match(ipv4Frame(6)))
	assert.True(t, Chain{all, udp}.Match(ipv4Frame(17)))
	assert.False(t, Chain{all, udp}.Match(ipv4Frame(6)))
}
