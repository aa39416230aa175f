package afpacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingSize(t *testing.T) {
	frameSize, blockSize, numBlocks, err := ringSize(8, 65535, 4096)
	require.NoError(t, err)
	assert.Zero(t, frameSize%16)
	assert.GreaterOrEqual(t, frameSize, 65535+52)
	assert.Zero(t, blockSize%4096)
	assert.Zero(t, blockSize%frameSize)
	assert.GreaterOrEqual(t, numBlocks, 1)

	frameSize, blockSize, numBlocks, err = ringSize(1, 1500, 4096)
	require.NoError(t, err)
	assert.Equal(t, 1552, frameSize)
	assert.Zero(t, blockSize%4096)
	assert.Zero(t, blockSize%frameSize)
	assert.Equal(t, (1<<20)/blockSize, numBlocks)
}

func TestRingSize_Invalid(t *testing.T) {
	for _, tc := range [][3]int{{0, 1500, 4096}, {8, 0, 4096}, {8, 1500, 0}, {8, 1500, 100}} {
		_, _, _, err := ringSize(tc[0], tc[1], tc[2])
		assert.Error(t, err, "%v", tc)
	}
}
