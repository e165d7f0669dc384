package logger

import (
	"os"
	"strings"
	"testing"
)

func TestLoggerWritesTimestampedLines(t *testing.T) {
	l := NewLogger()
	if err := l.Init(t.TempDir()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	l.Log("[TEST] hello")
	l.Logf("[TEST] value=%d", 42)
	path := l.Path()
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[TEST] hello") || !strings.Contains(content, "value=42") {
		t.Errorf("log content missing messages:\n%s", content)
	}
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") {
			t.Errorf("line without timestamp prefix: %q", line)
		}
	}
}

func TestLoggerSafeBeforeInit(t *testing.T) {
	l := NewLogger()
	l.Log("dropped")
	l.Close()
}

func TestLoggerNumbersRunsPerDay(t *testing.T) {
	dir := t.TempDir()
	first := NewLogger()
	if err := first.Init(dir); err != nil {
		t.Fatal(err)
	}
	firstPath := first.Path()
	first.Close()

	second := NewLogger()
	if err := second.Init(dir); err != nil {
		t.Fatal(err)
	}
	secondPath := second.Path()
	second.Close()

	if firstPath == secondPath {
		t.Errorf("second run reused the first run's log file %q", firstPath)
	}
}
