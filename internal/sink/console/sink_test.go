package console

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/actionengine/internal/pipeline"
)

func TestSink_Emit(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Emit(pipeline.Output{PacketID: 7, CopyID: 1, Port: 3, Data: []byte{0xde, 0xad}}))
	assert.Equal(t, "packet id=7 copy=1 port=3 len=2 data=dead\n", buf.String())
}

func TestSink_EmitTruncatesDump(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Emit(pipeline.Output{Data: make([]byte, 200)}))
	assert.Contains(t, buf.String(), "len=200 ")
	assert.Contains(t, buf.String(), "data="+strings.Repeat("00", maxDump)+"\n")
}

func TestSink_Receive(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	require.NoError(t, s.Receive(pipeline.Digest{
		PacketID: 4,
		LearnID:  9,
		Fields:   map[string]string{"meta.b": "02", "meta.a": "01"},
	}))
	assert.Equal(t, "digest learn_id=9 packet=4 fields=meta.a=01,meta.b=02\n", buf.String())
}

func TestSink_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.Emit(pipeline.Output{Data: []byte{1}})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, strings.Count(buf.String(), "\n"))
}
