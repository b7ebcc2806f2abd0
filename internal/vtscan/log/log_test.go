package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, false)
	if !Initialized() {
		t.Fatal("Initialized() = false after Setup")
	}

	cleaned := false
	func() {
		defer RecoverPanic("worker", func() { cleaned = true })
		panic("boom")
	}()

	if !cleaned {
		t.Error("cleanup not called")
	}
	if !strings.Contains(buf.String(), "Panic in worker") {
		t.Errorf("panic not logged, output %q", buf.String())
	}
}

func TestRecoverPanicNoPanic(t *testing.T) {
	cleaned := false
	func() {
		defer RecoverPanic("idle", func() { cleaned = true })
	}()
	if cleaned {
		t.Error("cleanup called without a panic")
	}
}
