package file

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "r1", "report.json")
	if err := WriteJSONAtomic(path, map[string]int{"tasks": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["tasks"] != 2 {
		t.Fatalf("unexpected content: %s", b)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestCopyAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := CopyAtomic(dest, io.MultiReader(strings.NewReader("partial"), failingReader{})); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected no destination file, stat err=%v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected temp files cleaned up, got %d entries", len(entries))
	}
}

func TestCopyAtomicReplacesExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := os.WriteFile(dest, []byte("old"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := CopyAtomic(dest, strings.NewReader("new")); err != nil {
		t.Fatalf("copy: %v", err)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != "new" {
		t.Fatalf("expected replaced content, got %q", b)
	}
}

func TestEnsureDirRejectsEmpty(t *testing.T) {
	if err := EnsureDir(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
