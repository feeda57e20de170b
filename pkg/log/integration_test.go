package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	brainerrors "github.com/YuminosukeSato/brainage/pkg/errors"
)

func TestTestLoggerCapturesLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), ModelNameKey, "ridge")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField("error", "boom") {
		t.Error("Expected error field not found")
	}
	if !testLogger.ContainsField(ModelNameKey, "ridge") {
		t.Error("Expected model name field not found")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(ModelNameKey, "gauss", RepeatKey, "repeat_1")
	contextLogger.Info("contextual message", FoldKey, 3)

	if !testLogger.ContainsField(ModelNameKey, "gauss") {
		t.Error("Model name context not found")
	}
	if !testLogger.ContainsField(RepeatKey, "repeat_1") {
		t.Error("Repeat context not found")
	}
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	provider, _ := NewTestLoggerProvider(LevelWarn)
	logger := provider.GetLoggerWithName("cv")

	logger.Info("hidden")
	logger.Warn("shown")

	if provider.Logger().ContainsMessage("hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !provider.Logger().ContainsField(ComponentKey, "cv") {
		t.Error("component field missing")
	}

	provider.SetLevel(LevelDebug)
	if !logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be enabled after SetLevel")
	}
}

func TestZerologProviderWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProvider(&buf, LevelInfo)
	logger := provider.GetLoggerWithName("workflow.train").With(RunIDKey, "run-1")

	logger.Debug("dropped")
	logger.Info("fold evaluated", MAEKey, 4.5, SamplesKey, 20)
	logger.Error("fit failed", brainerrors.NewValueError("Fit", "bad input"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["message"] != "fold evaluated" || first[ComponentKey] != "workflow.train" || first[RunIDKey] != "run-1" {
		t.Errorf("unexpected record: %v", first)
	}
	if first[MAEKey] != 4.5 {
		t.Errorf("metrics.mae = %v", first[MAEKey])
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fmt.Sprint(second["error"]), "bad input") {
		t.Errorf("error field missing: %v", second)
	}
}

func TestWarningsRouteToProvider(t *testing.T) {
	var buf bytes.Buffer
	SetProvider(NewZerologProvider(&buf, LevelDebug))
	t.Cleanup(func() { SetProvider(NewConsoleProvider(LevelInfo)) })

	brainerrors.Warn(brainerrors.NewSplitWarning("StratifiedKFold", 5, 1))

	out := buf.String()
	if !strings.Contains(out, "StratifiedKFold") || !strings.Contains(out, `"type":"SplitWarning"`) {
		t.Errorf("warning not logged as structured record: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
