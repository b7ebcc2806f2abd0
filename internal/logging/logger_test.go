package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"vtscan/internal/config"
)

func TestNewLoggerWithWriter(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Config
		wantLevel log.Level
		logDebug  bool
	}{
		{name: "default level", cfg: config.Config{}, wantLevel: log.InfoLevel},
		{name: "debug", cfg: config.Config{LogLevel: "debug"}, wantLevel: log.DebugLevel, logDebug: true},
		{name: "error", cfg: config.Config{LogLevel: "error"}, wantLevel: log.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := NewLoggerWithWriter(&buf, tt.cfg)
			defer lg.Close()

			if lg.GetLevel() != tt.wantLevel {
				t.Errorf("GetLevel() = %v, want %v", lg.GetLevel(), tt.wantLevel)
			}

			lg.Debug("candidate", "addr", "0x40e164")
			if got := strings.Contains(buf.String(), "candidate"); got != tt.logDebug {
				t.Errorf("debug line written = %v, want %v (output %q)", got, tt.logDebug, buf.String())
			}
		})
	}
}

func TestLoggerPrefix(t *testing.T) {
	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, config.Config{LogPrefix: "scan "})
	lg.Warn("missing section")

	if !strings.Contains(buf.String(), "scan") {
		t.Errorf("output %q lacks prefix", buf.String())
	}

	buf.Reset()
	lg = NewLoggerWithWriter(&buf, config.Config{})
	lg.Warn("missing section")
	if !strings.Contains(buf.String(), "vtscan") {
		t.Errorf("output %q lacks default prefix", buf.String())
	}
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestLoggerCloser(t *testing.T) {
	w := &closeRecorder{}
	lg := NewLoggerWithWriter(w, config.Config{})
	if err := lg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("underlying writer not closed")
	}
}
