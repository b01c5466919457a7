// Package logging builds the zerolog logger shared by the CLI, the TUI and the
// backends. Records always go to <log dir>/todo.log; a console writer on stderr
// is added only for one-shot commands, never while the TUI owns the terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	fileName   = "todo.log"
	permission = 0o644
)

// Options describes where and how much to log.
type Options struct {
	Dir     string
	Level   string
	Console io.Writer // optional human-readable copy, e.g. os.Stderr
	OpID    string
}

// Logger is a zerolog.Logger bound to its open log file.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New opens (creating if needed) the log file in opts.Dir.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(opts.Dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, permission)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = zerolog.SyncWriter(f)
	if opts.Console != nil {
		w = zerolog.MultiLevelWriter(w, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}
	return &Logger{Logger: build(w, level, opts.OpID), file: f}, nil
}

// Writer returns a logger writing JSON records to w, for tests.
func Writer(w io.Writer, level zerolog.Level) zerolog.Logger {
	return build(w, level, "")
}

func build(w io.Writer, level zerolog.Level, opID string) zerolog.Logger {
	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if opID != "" {
		ctx = ctx.Str("op", opID)
	}
	return ctx.Logger()
}

// ParseLevel accepts zerolog level names; "" means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
