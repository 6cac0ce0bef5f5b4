// Package logging builds the structured logger. Records go to a rotating file
// so the terminal stays free for the checklist.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
	maxAgeDays = 28
)

// Logger wraps an slog.Logger together with the file it writes to.
type Logger struct {
	*slog.Logger
	out io.WriteCloser
}

// New opens a JSON logger writing to path at the given level. An empty path
// discards everything.
func New(path string, level slog.Level) (*Logger, error) {
	if path == "" {
		return &Logger{Logger: Discard(), out: nopCloser{io.Discard}}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})),
		out:    out,
	}, nil
}

// Close flushes and closes the log file.
func (l *Logger) Close() error { return l.out.Close() }

// Component returns a child logger tagged with a component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With("component", name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
