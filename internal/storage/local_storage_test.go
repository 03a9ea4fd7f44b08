package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return ls
}

func TestLocalStorage_CreateRecording(t *testing.T) {
	ls := setupTestStorage(t)

	rec, err := ls.CreateRecording("session one")
	if err != nil {
		t.Fatalf("Failed to create recording: %v", err)
	}

	if !strings.HasPrefix(rec.Name(), "session-one-") {
		t.Errorf("Expected sanitized hint prefix, got %s", rec.Name())
	}
	if !strings.HasSuffix(rec.Name(), ".webm") {
		t.Errorf("Expected .webm suffix, got %s", rec.Name())
	}

	if _, err := rec.Write([]byte("recording data")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := rec.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	f, err := ls.OpenFile(rec.Name())
	if err != nil {
		t.Fatalf("Failed to open committed file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "recording data" {
		t.Errorf("Expected written data, got %q", data)
	}
}

func TestLocalStorage_Discard(t *testing.T) {
	ls := setupTestStorage(t)

	rec, err := ls.CreateRecording("")
	if err != nil {
		t.Fatalf("Failed to create recording: %v", err)
	}
	if _, err := rec.Write([]byte("partial")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if err := rec.Discard(); err != nil {
		t.Fatalf("Failed to discard: %v", err)
	}

	if _, err := ls.OpenFile(rec.Name()); err == nil {
		t.Error("Expected discarded file to be gone")
	}
}

func TestLocalStorage_DeleteFile(t *testing.T) {
	ls := setupTestStorage(t)

	rec, err := ls.CreateRecording("gone")
	if err != nil {
		t.Fatalf("Failed to create recording: %v", err)
	}
	if err := rec.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	if err := ls.DeleteFile(rec.Name()); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}

	if _, err := ls.OpenFile(rec.Name()); err == nil {
		t.Error("Expected deleted file to be gone")
	}
}

func TestLocalStorage_PathTraversal(t *testing.T) {
	base := t.TempDir()
	ls, err := NewLocalStorage(base)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	outside := filepath.Join(filepath.Dir(base), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	if _, err := ls.OpenFile("../secret.txt"); err == nil {
		t.Error("Expected traversal open to be rejected")
	}
	if err := ls.DeleteFile("../secret.txt"); err == nil {
		t.Error("Expected traversal delete to be rejected")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("Expected outside file to survive: %v", err)
	}
}

func TestSanitizeHint(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"two words", "two-words"},
		{"../../etc/passwd", "etcpasswd"},
		{"  trimmed  ", "trimmed"},
		{"", ""},
		{strings.Repeat("a", 100), strings.Repeat("a", 48)},
	}

	for _, c := range cases {
		if got := sanitizeHint(c.in); got != c.want {
			t.Errorf("sanitizeHint(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
