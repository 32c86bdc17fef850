// Package logging provides leveled console output for the coordinator and the
// processes it supervises. Lines are stamped with simulated time when a clock
// is attached, and every logger derived from the same root shares one sink so
// per-level counts can drive the end-of-run verdict.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// sink is shared by a root logger and every logger derived from it.
type sink struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	overrides map[string]Level
	counts    map[Level]int
	clock     func() time.Duration
}

// Logger provides leveled logging to stdout.
type Logger struct {
	sink      *sink
	component string
	runID     string
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		sink: &sink{
			output:    os.Stdout,
			minLevel:  LevelInfo,
			overrides: make(map[string]Level),
			counts:    make(map[Level]int),
		},
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, runID: l.runID}
}

// WithRunID returns a new logger tagging every line with a run ID.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, runID: runID}
}

// Component returns the logger's component name.
func (l *Logger) Component() string {
	return l.component
}

// WithClock stamps lines with the given simulated clock instead of wall time.
// The clock applies to every logger sharing this one's sink.
func (l *Logger) WithClock(clock func() time.Duration) *Logger {
	l.sink.mu.Lock()
	l.sink.clock = clock
	l.sink.mu.Unlock()
	return l
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// SetComponentLevel overrides the minimum level for one component.
func (l *Logger) SetComponentLevel(component string, level Level) {
	l.sink.mu.Lock()
	l.sink.overrides[component] = level
	l.sink.mu.Unlock()
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Count returns how many lines at the given level were emitted or
// suppressed. Warnings and errors are counted even when filtered.
func (l *Logger) Count(level Level) int {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.counts[level]
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL STAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[level]++

	min := s.minLevel
	if override, ok := s.overrides[l.component]; ok {
		min = override
	}
	if levelPriority[level] < levelPriority[min] {
		return
	}

	var stamp string
	if s.clock != nil {
		stamp = s.clock().String()
	} else {
		stamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr += " run=" + l.runID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, stamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, stamp, msg, fieldStr)
	}
	s.output.Write([]byte(line))
}

// --- Coordinator logging methods ---

// ObjectionRaised logs an objection being raised.
func (l *Logger) ObjectionRaised(name string, count int) {
	l.Debug("raised objection", map[string]interface{}{
		"objection": name,
		"count":     count,
	})
}

// ObjectionDropped logs an objection being released.
func (l *Logger) ObjectionDropped(name string, count int) {
	l.Debug("dropped objection", map[string]interface{}{
		"objection": name,
		"count":     count,
	})
}

// Draining logs that the last objection dropped and the drain period began.
func (l *Logger) Draining(reason string, drain time.Duration) {
	l.Debug("draining", map[string]interface{}{
		"reason": reason,
		"drain":  drain.String(),
	})
}

// ShuttingDown logs a quiescence-triggered shutdown.
func (l *Logger) ShuttingDown(reason string) {
	l.Info("Shutting down " + reason)
}

// TimedOut logs a forced shutdown by the absolute timeout.
func (l *Logger) TimedOut(timeout time.Duration, outstanding int) {
	l.Warn("Timed out - shutting down", map[string]interface{}{
		"timeout":     timeout.String(),
		"outstanding": outstanding,
	})
}

// Summary logs the end-of-run verdict with the info, warning and error
// counts seen so far.
func (l *Logger) Summary(passed bool) {
	l.sink.mu.Lock()
	infos := l.sink.counts[LevelInfo]
	warnings, errs := l.sink.counts[LevelWarn], l.sink.counts[LevelError]
	l.sink.mu.Unlock()

	fields := map[string]interface{}{
		"infos":    infos,
		"warnings": warnings,
		"errors":   errs,
	}
	if passed {
		l.Info("PASSED", fields)
	} else {
		l.Error("FAILED", fields)
	}
}
