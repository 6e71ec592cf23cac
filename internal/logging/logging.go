// Package logging builds the zerolog loggers used by the CLI and the MCP server.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0o640

// Options selects where log lines go and which level is kept.
type Options struct {
	// Writer receives log lines when Path is empty. Defaults to stderr.
	Writer io.Writer
	// Path appends log lines to a file instead of Writer.
	Path  string
	Level string
}

// Logger is a zerolog logger plus the file it may own.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds a timestamped logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	l := &Logger{}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		l.file, err = os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = zerolog.SyncWriter(l.file)
	}

	l.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a config string to a zerolog level. Empty means warn.
func ParseLevel(value string) (zerolog.Level, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}
