package zipenc

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"davbackup/internal/crypt"
)

func makeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "documents")
	if err := os.MkdirAll(filepath.Join(src, "taxes"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "taxes", "2023.pdf"), []byte("pdf bytes"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "todo.txt"), []byte("buy milk"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return src
}

func decryptToZip(t *testing.T, path, key string) *zip.Reader {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	var plain bytes.Buffer
	if err := crypt.Decrypt(&plain, f, key); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(plain.Bytes()), int64(plain.Len()))
	if err != nil {
		t.Fatalf("zip reader: %v", err)
	}
	return zr
}

func TestZipEncryptProducesArtifactAndRemovesZip(t *testing.T) {
	src := makeSource(t)
	out, err := Run(Options{Source: src, Key: "hunter2", Mode: ModeZipEncrypt}, zerolog.Nop())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != src+EncryptedSuffix {
		t.Fatalf("unexpected output path %q", out)
	}
	if _, err := os.Stat(src + ".zip"); !os.IsNotExist(err) {
		t.Fatalf("intermediate zip should be removed, stat err=%v", err)
	}

	zr := decryptToZip(t, out, "hunter2")
	found := map[string]string{}
	for _, f := range zr.File {
		rc, _ := f.Open()
		b, _ := io.ReadAll(rc)
		_ = rc.Close()
		found[f.Name] = string(b)
	}
	if found["taxes/2023.pdf"] != "pdf bytes" || found["todo.txt"] != "buy milk" {
		t.Fatalf("unexpected archive content: %v", found)
	}
}

func TestZipEncryptKeepRetainsZip(t *testing.T) {
	src := makeSource(t)
	keyFile := filepath.Join(t.TempDir(), "k.key")
	if err := os.WriteFile(keyFile, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	out, err := Run(Options{Source: src, Key: keyFile, Keep: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(src + ".zip"); err != nil {
		t.Fatalf("expected zip kept: %v", err)
	}
	decryptToZip(t, out, "from-file")
}

func TestZipEncryptFailureRemovesZip(t *testing.T) {
	src := makeSource(t)
	emptyKey := filepath.Join(t.TempDir(), "empty.key")
	if err := os.WriteFile(emptyKey, nil, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if _, err := Run(Options{Source: src, Key: emptyKey}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for empty key file")
	}
	if _, err := os.Stat(src + EncryptedSuffix); !os.IsNotExist(err) {
		t.Fatalf("no artifact expected, stat err=%v", err)
	}

	// unwritable output directory makes encryption fail after zipping
	out := filepath.Join(src+"-missing", "sub", "x.enc")
	if err := os.WriteFile(src+"-missing", nil, 0o600); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if _, err := Run(Options{Source: src, Key: "k", Output: out}, zerolog.Nop()); err == nil {
		t.Fatalf("expected encryption failure")
	}
	if _, err := os.Stat(src + ".zip"); !os.IsNotExist(err) {
		t.Fatalf("zip should be removed after encryption failure, stat err=%v", err)
	}
}

func TestZipOnlyAndEncryptOnly(t *testing.T) {
	src := makeSource(t)
	zipped, err := Run(Options{Source: src, Mode: ModeZipOnly}, zerolog.Nop())
	if err != nil {
		t.Fatalf("ozip: %v", err)
	}
	if zipped != src+".zip" {
		t.Fatalf("unexpected zip path %q", zipped)
	}

	sealed, err := Run(Options{Source: zipped, Key: "k", Mode: ModeEncryptOnly}, zerolog.Nop())
	if err != nil {
		t.Fatalf("oenc: %v", err)
	}
	if sealed != zipped+".enc" {
		t.Fatalf("unexpected enc path %q", sealed)
	}
	decryptToZip(t, sealed, "k")
}

func TestRunMissingSource(t *testing.T) {
	_, err := Run(Options{Source: filepath.Join(t.TempDir(), "nope"), Key: "k"}, zerolog.Nop())
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeZipEncrypt {
		t.Fatalf("default mode: %v %v", m, err)
	}
	if _, err := ParseMode("rar"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
