package util_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/seqstack/internal/util"
)

func TestEnsureDirectoryWritableAcceptsTempDir(t *testing.T) {
	if err := util.EnsureDirectoryWritable(t.TempDir()); err != nil {
		t.Fatalf("EnsureDirectoryWritable: %v", err)
	}
}

func TestEnsureDirectoryWritableRejectsMissingDir(t *testing.T) {
	if err := util.EnsureDirectoryWritable(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a nonexistent directory")
	}
}

func TestEnsureDirectoryWritableRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := util.EnsureDirectoryWritable(file); err == nil {
		t.Fatal("expected error for a path that is a regular file")
	}
}

func TestGetAvailableSpaceReturnsPositiveForRealPath(t *testing.T) {
	if got := util.GetAvailableSpace(t.TempDir()); got == 0 {
		t.Fatal("expected nonzero available space for an existing directory")
	}
}

func TestGetAvailableSpaceReturnsZeroForMissingPath(t *testing.T) {
	if got := util.GetAvailableSpace(filepath.Join(t.TempDir(), "does-not-exist")); got != 0 {
		t.Fatalf("got %d, want 0 for a nonexistent path", got)
	}
}

func TestCheckDiskSpaceWarnsBelowMinimum(t *testing.T) {
	var logged string
	ok := util.CheckDiskSpace(t.TempDir(), func(format string, args ...any) {
		logged = format
	})
	// A real tmp filesystem almost always has plenty of space, so this
	// should report sufficient and never call the logger.
	if !ok {
		t.Fatal("expected CheckDiskSpace to report sufficient space")
	}
	if logged != "" {
		t.Fatalf("did not expect a low-space warning, got %q", logged)
	}
}

func TestCreateTempFilePathIsUniqueAndUnderDir(t *testing.T) {
	dir := t.TempDir()
	a, err := util.CreateTempFilePath(dir, "stack", "fits")
	if err != nil {
		t.Fatalf("CreateTempFilePath: %v", err)
	}
	b, err := util.CreateTempFilePath(dir, "stack", "fits")
	if err != nil {
		t.Fatalf("CreateTempFilePath: %v", err)
	}
	if a == b {
		t.Fatalf("expected two distinct temp paths, got the same: %s", a)
	}
	if filepath.Dir(a) != dir || filepath.Dir(b) != dir {
		t.Fatalf("expected both paths under %s, got %s and %s", dir, a, b)
	}
	if !strings.HasSuffix(a, ".fits") || !strings.HasSuffix(b, ".fits") {
		t.Fatalf("expected .fits extension, got %s and %s", a, b)
	}
}

func TestCreateTempFilePathRejectsMissingDir(t *testing.T) {
	if _, err := util.CreateTempFilePath(filepath.Join(t.TempDir(), "missing"), "stack", "fits"); err == nil {
		t.Fatal("expected error for a nonexistent directory")
	}
}
