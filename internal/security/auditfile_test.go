package security

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenAuditLog_CreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit", "audit.jsonl")
	w, err := OpenAuditLog(path, 0)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	if _, err := w.Write([]byte("{\"type\":\"message_received\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "message_received") {
		t.Errorf("file content = %q, want the written entry", data)
	}
}

func TestOpenAuditLog_AppendsAcrossOpens(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	for _, line := range []string{"first\n", "second\n"} {
		w, err := OpenAuditLog(path, 0)
		if err != nil {
			t.Fatalf("OpenAuditLog: %v", err)
		}
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := string(data); !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("file content = %q, want both entries preserved", got)
	}
}

func TestOpenAuditLog_RotatesAtSizeLimit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")
	w, err := OpenAuditLog(path, 1)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	defer w.Close()

	// Two writes that together exceed the 1 MB limit force a rotation
	// on the second one.
	entry := append(bytes.Repeat([]byte("x"), 600*1024), '\n')
	for i := 0; i < 2; i++ {
		if _, err := w.Write(entry); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("dir entries = %v, want the live log plus one rotated generation", names)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat live log: %v", err)
	}
	if got, want := info.Size(), int64(len(entry)); got != want {
		t.Errorf("live log size = %d, want %d (only the post-rotation write)", got, want)
	}
}
