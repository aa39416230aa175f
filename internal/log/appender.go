package log

import (
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender configures a size rotated log file.
type FileAppender struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

func (a FileAppender) writer() io.Writer {
	return &lumberjack.Logger{
		Filename:   a.Filename,
		MaxSize:    a.MaxSize,
		MaxBackups: a.MaxBackups,
		MaxAge:     a.MaxAge,
		Compress:   a.Compress,
	}
}

// fanout copies every entry to all of its outputs. A failing output does
// not keep the entry from the others; the first error is reported.
type fanout struct {
	mu  sync.Mutex
	out []io.Writer
}

func (f *fanout) add(w io.Writer) {
	f.mu.Lock()
	f.out = append(f.out, w)
	f.mu.Unlock()
}

func (f *fanout) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	for _, w := range f.out {
		if _, err := w.Write(p); err != nil && first == nil {
			first = err
		}
	}
	return len(p), first
}
