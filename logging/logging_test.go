package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("drain")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[drain]") {
		t.Errorf("expected component 'drain' in log, got: %s", output)
	}
}

func TestLogger_DerivedLoggersShareSink(t *testing.T) {
	var buf bytes.Buffer
	root := New()
	root.SetOutput(&buf)

	child := root.WithComponent("behavior")
	child.Warn("bit flipped")
	root.SetLevel(LevelError)
	child.Warn("filtered but counted")

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("expected 1 line, got %d: %s", got, buf.String())
	}
	if root.Count(LevelWarn) != 2 {
		t.Errorf("Count(WARN) = %d, want 2", root.Count(LevelWarn))
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRunID("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run ID in log, got: %s", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("test", map[string]interface{}{
		"b": 2,
		"a": 1,
	})

	if !strings.Contains(buf.String(), "test a=1 b=2") {
		t.Errorf("expected sorted fields, got: %s", buf.String())
	}
}

func TestLogger_SimulatedClock(t *testing.T) {
	var buf bytes.Buffer
	now := 15 * time.Nanosecond
	logger := New().WithClock(func() time.Duration { return now })
	logger.SetOutput(&buf)

	logger.WithComponent("drain").ShuttingDown("stimulus")

	want := "INFO  15ns [drain] Shutting down stimulus\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestLogger_ComponentLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetComponentLevel("observer", LevelDebug)

	logger.WithComponent("observer").Debug("observed")
	logger.WithComponent("stimulus").Debug("hidden")

	output := buf.String()
	if !strings.Contains(output, "observed") {
		t.Error("observer debug should be visible")
	}
	if strings.Contains(output, "hidden") {
		t.Error("stimulus debug should be filtered")
	}
}

func TestLogger_ObjectionEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.ObjectionRaised("stimulus", 1)
	logger.ObjectionDropped("stimulus", 0)
	logger.Draining("stimulus", 2*time.Nanosecond)

	output := buf.String()
	for _, want := range []string{
		"raised objection count=1 objection=stimulus",
		"dropped objection count=0 objection=stimulus",
		"draining drain=2ns reason=stimulus",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
}

func TestLogger_TimedOut(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.TimedOut(100*time.Nanosecond, 1)

	if !strings.HasPrefix(buf.String(), "WARN ") {
		t.Errorf("expected warning, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "Timed out - shutting down") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if logger.Count(LevelWarn) != 1 {
		t.Errorf("Count(WARN) = %d", logger.Count(LevelWarn))
	}
}

func TestLogger_Summary(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("started")
	logger.Summary(true)
	if !strings.Contains(buf.String(), "PASSED errors=0 infos=1 warnings=0") {
		t.Errorf("unexpected summary: %s", buf.String())
	}

	// The PASSED line itself counts as an info.
	buf.Reset()
	logger.Warn("oops")
	logger.Summary(false)
	if !strings.Contains(buf.String(), "FAILED errors=0 infos=2 warnings=1") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Error("failed")

	// LEVEL TIMESTAMP message
	parts := strings.Fields(buf.String())
	if len(parts) != 3 {
		t.Fatalf("expected 3 fields, got %v", parts)
	}
	if parts[0] != "ERROR" {
		t.Errorf("level = %s", parts[0])
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", parts[1]); err != nil {
		t.Errorf("timestamp %q not parseable: %v", parts[1], err)
	}
}
