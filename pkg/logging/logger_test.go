package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temporary log directory and resets global state
func setupTestDir(t *testing.T) {
	t.Helper()

	origLogDir := logDir
	origInitErr := initErr
	origSessionID := sessionID

	logDir = t.TempDir()
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		sessionID = origSessionID
		sessionIDOnce = sync.Once{}
	})
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("projectstore")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "projectstore" {
		t.Errorf("Expected component 'projectstore', got %q", logger.component)
	}
	if logger.SessionID() == "" {
		t.Error("Expected non-empty session ID")
	}
	if _, err := os.Stat(logger.LogPath()); err != nil {
		t.Errorf("Log file does not exist at %s: %v", logger.LogPath(), err)
	}
	if !strings.HasSuffix(filepath.Base(logger.LogPath()), "-folish.log") {
		t.Errorf("Unexpected log file name %q", logger.LogPath())
	}
}

func TestLoggerLevels(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debugf("Debug message")
	logger.Infof("Saved %q", "sketch")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	for _, pattern := range []string{
		"[test] [DEBUG] Debug message",
		`[test] [INFO] Saved "sketch"`,
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	} {
		if !strings.Contains(string(content), pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, content)
		}
	}
}

func TestComponentsShareSessionFile(t *testing.T) {
	setupTestDir(t)

	a, err := NewLogger("codec")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer a.Close()
	b, err := NewLogger("server")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer b.Close()

	if a.LogPath() != b.LogPath() {
		t.Errorf("Expected same log path, got %q and %q", a.LogPath(), b.LogPath())
	}
	if a.SessionID() != GetSessionID() {
		t.Errorf("Expected logger session to match global session")
	}
}

func TestWriterLoggerAndWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("commands", &buf)
	logger.Infof("hello")
	logger.With("autosave").Warnf("skipped %d", 3)

	out := buf.String()
	if !strings.Contains(out, "[commands] [INFO] hello") {
		t.Errorf("Missing base component entry: %s", out)
	}
	if !strings.Contains(out, "[autosave] [WARN] skipped 3") {
		t.Errorf("Missing derived component entry: %s", out)
	}
	if logger.LogPath() != "" {
		t.Errorf("Writer logger should have no path, got %q", logger.LogPath())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Infof("dropped")
	Discard().Errorf("dropped")
}

func TestSetDirectory(t *testing.T) {
	setupTestDir(t)
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	SetDirectory(dir)

	got, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("GetLogDirectory failed: %v", err)
	}
	if got != dir {
		t.Errorf("Expected %s, got %s", dir, got)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected directory to be created at %s", dir)
	}
}

func TestLoggerClose(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
