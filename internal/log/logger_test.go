package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PatternAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&LoggerConfig{Level: "debug", Pattern: "[%level] %field %msg\n"}, &buf)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"size": 4, "array": "c"}).Errorf("index %d out of range", 9)
	assert.Equal(t, "[error] array=c,size=4 index 9 out of range\n", buf.String())

	buf.Reset()
	l.WithError(errors.New("boom")).Info("x")
	assert.Equal(t, "[info] error=boom x\n", buf.String())
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&LoggerConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, l.IsInfoEnabled())
	assert.False(t, l.IsTraceEnabled())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "[warning]")
	assert.Contains(t, buf.String(), "shown")

	_, err = New(&LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_FileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(&LoggerConfig{File: &FileAppender{Filename: path, MaxSize: 1}})
	require.NoError(t, err)

	l.Info("to file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestGetLogger_Default(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)
	assert.Same(t, l, GetLogger())
	assert.True(t, l.IsInfoEnabled())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFanout_KeepsWritingPastErrors(t *testing.T) {
	var a, b bytes.Buffer
	f := &fanout{}
	f.add(&a)
	f.add(failingWriter{})
	f.add(&b)

	n, err := f.Write([]byte("hi"))
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 2, n)
	assert.Equal(t, "hi", a.String())
	assert.Equal(t, "hi", b.String())
}
