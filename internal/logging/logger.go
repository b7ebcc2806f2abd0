// Package logging provides structured logging with file output support.
// It is configured from config.Config and supports file cleanup.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"vtscan/internal/config"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer, cfg config.Config) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	level, _ := cfg.Level()
	lg.SetLevel(level)

	prefix := cfg.LogPrefix
	if prefix == "" {
		prefix = "vtscan "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger writing to stderr, or to a timestamped
// file in the working directory when cfg.LogToFile is set.
func NewLogger(cfg config.Config) *LoggerCloser {
	output := io.Writer(os.Stderr)

	if cfg.LogToFile {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("vtscan-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output, cfg)
}
