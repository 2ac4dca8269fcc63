package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteCreatesFileWithPid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pid")

	if err := Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := fmt.Sprintf("%d", os.Getpid())
	if string(got) != want {
		t.Errorf("pidfile contents = %q, want %q", got, want)
	}
}

func TestWriteTruncatesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pid")
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != fmt.Sprintf("%d", os.Getpid()) {
		t.Errorf("pidfile contents = %q, stale data was not truncated", got)
	}
}

func TestRemoveIsANoOpWhenFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.pid")
	if err := Remove(path); err != nil {
		t.Errorf("Remove of an absent pidfile should not error, got %v", err)
	}
}

func TestRemoveDeletesAnExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.pid")
	if err := Write(path); err != nil {
		t.Fatal(err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pidfile should no longer exist after Remove")
	}
}
