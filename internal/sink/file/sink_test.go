package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/actionengine/internal/pipeline"
)

func TestSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := NewSink(path, 4)
	require.NoError(t, err)

	ts := time.Unix(1700000000, 0)
	require.NoError(t, s.Emit(pipeline.Output{Data: []byte{1, 2}, Timestamp: ts}))
	require.NoError(t, s.Emit(pipeline.Output{Data: []byte{1, 2, 3, 4, 5, 6}, Timestamp: ts}))
	assert.Equal(t, uint64(2), s.Written())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Emit(pipeline.Output{Data: []byte{1}}), os.ErrClosed)

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	r, err := pcapgo.NewReader(fh)
	require.NoError(t, err)

	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)
	assert.True(t, ci.Timestamp.Equal(ts))

	data, ci, err = r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, 6, ci.Length)
}

func TestNewSink_Errors(t *testing.T) {
	_, err := NewSink("", 0)
	assert.Error(t, err)
	_, err = NewSink(filepath.Join(t.TempDir(), "missing", "out.pcap"), 0)
	assert.Error(t, err)
}
