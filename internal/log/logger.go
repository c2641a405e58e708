package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the output destination and level for the daemon logger.
type Options struct {
	Level     string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// New builds the redacting slog logger. An empty File logs to stderr;
// otherwise output rotates by size.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if opts.File != "" {
		writer, err := newRotatingWriter(opts)
		if err != nil {
			return nil, nil, err
		}
		out = writer
		closer = writer
	}

	handler := NewRedactingHandler(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	return slog.New(handler), closer, nil
}

func parseLevel(value string) (slog.Level, error) {
	switch value {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", value)
	}
}

func newRotatingWriter(opts Options) (*lumberjack.Logger, error) {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = 5
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxFiles,
		Compress:   false,
	}, nil
}
