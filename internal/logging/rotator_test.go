package logging

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTestRotator(t *testing.T, backups int, compress bool) (*FileRotator, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	r, err := NewFileRotator(&Config{FilePath: path, MaxSize: 1, MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	// 1 KiB keeps the tests fast.
	r.maxBytes = 1024
	t.Cleanup(func() { r.Close() })
	return r, path
}

func TestFileRotatorWrite(t *testing.T) {
	r, path := newTestRotator(t, 3, false)

	data := []byte("test log line\n")
	n, err := r.Write(data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(data) {
		t.Errorf("expected to write %d bytes, wrote %d", len(data), n)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
	if err := r.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	r, path := newTestRotator(t, 2, false)

	line := bytes.Repeat([]byte("x"), 400)
	for i := 0; i < 10; i++ {
		if _, err := r.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	files := r.Files()
	if len(files) != 3 {
		t.Fatalf("expected current file plus 2 backups, got %v", files)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond MaxBackups exists")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > 1024 {
		t.Errorf("current file exceeds limit: %d", info.Size())
	}
}

func TestFileRotatorCompress(t *testing.T) {
	r, path := newTestRotator(t, 1, true)

	first := bytes.Repeat([]byte("a"), 800)
	second := bytes.Repeat([]byte("b"), 800)
	if _, err := r.Write(first); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Write(second); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, first) {
		t.Errorf("backup content mismatch: %d bytes", len(got))
	}
}

func TestFileRotatorNoBackups(t *testing.T) {
	r, path := newTestRotator(t, 0, false)

	for i := 0; i < 5; i++ {
		if _, err := r.Write(bytes.Repeat([]byte("z"), 600)); err != nil {
			t.Fatal(err)
		}
	}
	if files := r.Files(); len(files) != 1 || files[0] != path {
		t.Errorf("expected only the current file, got %v", files)
	}
}
