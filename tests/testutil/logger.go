package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLogger captures log output in memory so tests can assert on the
// records a component writes.
//
//	logger := NewTestLogger(t)
//	client := registrar.NewClient(store, creds, logger)
//	...
//	logger.AssertLogCount(t, "info", 1)
type TestLogger struct {
	buffer *bytes.Buffer
	debug  bool
	mu     sync.Mutex
}

// NewTestLogger creates a TestLogger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return &TestLogger{buffer: &bytes.Buffer{}}
}

// NewTestLoggerWithDebug creates a TestLogger that also captures Debug calls.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()
	return &TestLogger{buffer: &bytes.Buffer{}, debug: debug}
}

// Info logs an informational message.
func (l *TestLogger) Info(format string, args ...interface{}) {
	l.write("✓", format, args...)
}

// Warn logs a warning message.
func (l *TestLogger) Warn(format string, args ...interface{}) {
	l.write("⚠", format, args...)
}

// Error logs an error message.
func (l *TestLogger) Error(format string, args ...interface{}) {
	l.write("✗", format, args...)
}

// Debug logs a debug message if debug mode is enabled.
func (l *TestLogger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write("[DEBUG]", format, args...)
}

func (l *TestLogger) write(marker, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.buffer, "%s %s\n", marker, fmt.Sprintf(format, args...))
}

// GetOutput returns everything captured so far.
func (l *TestLogger) GetOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.String()
}

// Clear discards captured output.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer.Reset()
}

// AssertContains asserts that the log output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does NOT contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertLogCount asserts how many records of a level were written.
// Levels: "info", "warn", "error", "debug".
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	var marker string
	switch level {
	case "info":
		marker = "✓ "
	case "warn":
		marker = "⚠ "
	case "error":
		marker = "✗ "
	case "debug":
		marker = "[DEBUG] "
	default:
		t.Fatalf("Unknown log level: %s", level)
	}

	actual := 0
	for _, line := range l.Records() {
		if strings.HasPrefix(line, marker) {
			actual++
		}
	}
	assert.Equal(t, count, actual, "Expected %d %s log records, got %d", count, level, actual)
}

// AssertEmpty asserts that nothing was logged.
func (l *TestLogger) AssertEmpty(t *testing.T) {
	t.Helper()
	output := l.GetOutput()
	assert.Empty(t, output, "Expected no log output, but got:\n%s", output)
}

// Records returns the captured output split into records. A record starts
// at a level marker, so multi-line messages stay together.
func (l *TestLogger) Records() []string {
	output := l.GetOutput()

	var records []string
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		if isRecordStart(line) || len(records) == 0 {
			records = append(records, line)
			continue
		}
		records[len(records)-1] += "\n" + line
	}
	return records
}

func isRecordStart(line string) bool {
	for _, marker := range []string{"✓ ", "⚠ ", "✗ ", "[DEBUG] "} {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return false
}
