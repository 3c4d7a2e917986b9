package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// setupTestSinks installs a buffer console and an optional temp log dir, and
// restores the defaults when the test ends.
func setupTestSinks(t *testing.T, lvl string, withDir bool) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	dir := ""
	if withDir {
		dir = t.TempDir()
	}

	if err := Setup(Options{Level: lvl, Dir: dir, Console: buf, NoColor: true}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	t.Cleanup(func() {
		_ = Setup(Options{})
	})
	return buf, dir
}

func TestNewLogger(t *testing.T) {
	_, dir := setupTestSinks(t, "info", true)

	logger := NewLogger("test-component")

	if logger.Component() != "test-component" {
		t.Errorf("Expected component 'test-component', got %q", logger.Component())
	}

	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}

	if filepath.Dir(logger.LogPath()) != dir {
		t.Errorf("Expected log file in %s, got %s", dir, logger.LogPath())
	}

	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestLoggerLevels(t *testing.T) {
	buf, _ := setupTestSinks(t, "debug", false)

	logger := NewLogger("test")
	logger.Debugf("Debug message")
	logger.Infof("Info message %d", 123)
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	out := buf.String()
	for _, pattern := range []string{
		"DBG Debug message",
		"INF Info message 123",
		"WRN Warning message",
		"ERR Error message",
		"component=test",
	} {
		if !strings.Contains(out, pattern) {
			t.Errorf("Console output missing %q\nContent:\n%s", pattern, out)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	buf, _ := setupTestSinks(t, "warn", false)

	logger := NewLogger("test")
	logger.Infof("should be dropped")
	logger.Warnf("should be kept")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Errorf("Info message written at warn level:\n%s", out)
	}
	if !strings.Contains(out, "should be kept") {
		t.Errorf("Warn message missing:\n%s", out)
	}
}

func TestMultipleComponentsShareFile(t *testing.T) {
	setupTestSinks(t, "info", true)

	logger1 := NewLogger("component1")
	logger2 := NewLogger("component2")

	if logger1.SessionID() != logger2.SessionID() {
		t.Errorf("Expected same session ID, got %q and %q", logger1.SessionID(), logger2.SessionID())
	}
	if logger1.LogPath() != logger2.LogPath() {
		t.Errorf("Expected same log path, got %q and %q", logger1.LogPath(), logger2.LogPath())
	}

	logger1.Infof("Message from component1")
	logger2.Infof("Message from component2")

	content, err := os.ReadFile(logger1.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)
	if !strings.Contains(logContent, `"component":"component1"`) {
		t.Error("Log missing component1 entries")
	}
	if !strings.Contains(logContent, `"component":"component2"`) {
		t.Error("Log missing component2 entries")
	}
}

func TestLogPathFormat(t *testing.T) {
	setupTestSinks(t, "info", true)

	logger := NewLogger("test")

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-farmrunner.log") {
		t.Errorf("Expected log file to end with '-farmrunner.log', got %q", fileName)
	}

	sessionPart := strings.TrimSuffix(fileName, "-farmrunner.log")
	if sessionPart != GetSessionID() {
		t.Errorf("Expected file name to start with session ID %q, got %q", GetSessionID(), sessionPart)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	setupTestSinks(t, "info", true)

	if err := Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
