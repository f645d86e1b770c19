package logging

import "testing"

func TestNew_BuildsLoggerForEveryLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", ""} {
		logger := New(level)
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", level)
		}
		logger.Logf("INFO test message for level %s", level)
	}
}
