package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/seqstack/internal/logging"
)

func TestSetupNoLogReturnsNil(t *testing.T) {
	l, err := logging.Setup(t.TempDir(), false, true, []string{"seqstack", "stack"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if l != nil {
		t.Fatal("expected nil Logger when noLog is true")
	}
	// Nil-receiver methods must be safe no-ops.
	l.Info("unreachable %d", 1)
	l.Debug("unreachable %d", 2)
	if err := l.Close(); err != nil {
		t.Fatalf("Close on nil Logger: %v", err)
	}
}

func TestSetupWritesTimestampedLogFile(t *testing.T) {
	dir := t.TempDir()
	l, err := logging.Setup(dir, false, false, []string{"seqstack", "frame"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if l == nil {
		t.Fatal("expected a non-nil Logger")
	}
	defer l.Close()

	l.Info("hello %s", "world")
	l.Debug("should not appear in non-verbose mode")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files in log dir, want 1", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "seqstack_run_") {
		t.Fatalf("unexpected log file name %q", entries[0].Name())
	}

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(contents)
	if !strings.Contains(text, "hello world") {
		t.Fatalf("log contents missing Info message: %s", text)
	}
	if strings.Contains(text, "should not appear") {
		t.Fatalf("log contents contain a Debug message while not verbose: %s", text)
	}
}

func TestSetupVerboseEnablesDebug(t *testing.T) {
	dir := t.TempDir()
	l, err := logging.Setup(dir, true, false, []string{"seqstack"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer l.Close()

	l.Debug("debug message %d", 7)

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("got %d files in log dir, want 1", len(entries))
	}
	contents, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if !strings.Contains(string(contents), "debug message 7") {
		t.Fatalf("verbose log missing Debug message: %s", contents)
	}
}

func TestDefaultLogDirHonorsXDGStateHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state-test")
	got := logging.DefaultLogDir()
	want := filepath.Join("/tmp/xdg-state-test", "seqstack", "logs")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
