package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRemovePID(t *testing.T) {
	dir := t.TempDir()

	if err := WritePID(dir); err != nil {
		t.Fatalf("WritePID: %v", err)
	}

	pid, err := ReadPID(dir)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid: got %d, want %d", pid, os.Getpid())
	}

	if err := RemovePID(dir); err != nil {
		t.Fatalf("RemovePID: %v", err)
	}
	if _, err := ReadPID(dir); err == nil {
		t.Fatal("ReadPID succeeded after RemovePID")
	}

	// Removing an already-removed PID file is not an error.
	if err := RemovePID(dir); err != nil {
		t.Fatalf("second RemovePID: %v", err)
	}
}

func TestWritePID_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	if err := WritePID(dir); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pidFilename)); err != nil {
		t.Fatalf("PID file missing: %v", err)
	}
}

func TestReadPID_Garbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, pidFilename), []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPID(dir); err == nil {
		t.Fatal("ReadPID parsed garbage")
	}
}

func TestIsRunning(t *testing.T) {
	dir := t.TempDir()

	if IsRunning(dir) {
		t.Error("IsRunning true with no PID file")
	}

	// Our own PID is alive by definition.
	if err := WritePID(dir); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	if !IsRunning(dir) {
		t.Error("IsRunning false for the current process")
	}

	// A PID far beyond pid_max never maps to a live process.
	if err := os.WriteFile(filepath.Join(dir, pidFilename), []byte("4999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	if IsRunning(dir) {
		t.Error("IsRunning true for a nonexistent process")
	}
}
