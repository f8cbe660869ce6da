package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, err := New(debug)
		if err != nil {
			t.Fatalf("New(%v) error = %v", debug, err)
		}
		if got := logger.Core().Enabled(zap.DebugLevel); got != debug {
			t.Errorf("New(%v) debug enabled = %v", debug, got)
		}
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, false)
	logger.Debug("hidden")
	logger.Info("visible", zap.String("backend", "gpt-test"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "visible" || line["backend"] != "gpt-test" {
		t.Errorf("unexpected entry: %v", line)
	}
}
