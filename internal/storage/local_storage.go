package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) CreateRecording(nameHint string) (RecordingFile, error) {
	name := uuid.New().String()
	if hint := sanitizeHint(nameHint); hint != "" {
		name = hint + "-" + name
	}
	name += ".webm"

	fullPath := filepath.Join(ls.basePath, name)
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	return &localRecording{file: f, name: name, path: fullPath}, nil
}

func (ls *LocalStorage) OpenFile(path string) (io.ReadSeekCloser, error) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(ls.basePath, cleanPath)
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (ls *LocalStorage) DeleteFile(path string) error {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(ls.basePath, cleanPath)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

type localRecording struct {
	file *os.File
	name string
	path string
}

func (r *localRecording) Write(p []byte) (int, error) {
	return r.file.Write(p)
}

func (r *localRecording) Commit() error {
	if err := r.file.Sync(); err != nil {
		r.file.Close()
		return fmt.Errorf("failed to sync recording: %w", err)
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}

func (r *localRecording) Discard() error {
	r.file.Close()
	if err := os.Remove(r.path); err != nil {
		return fmt.Errorf("failed to remove partial recording: %w", err)
	}
	return nil
}

func (r *localRecording) Name() string {
	return r.name
}

// sanitizeHint reduces a user-provided name hint to a safe filename prefix.
func sanitizeHint(hint string) string {
	hint = strings.TrimSpace(hint)
	var b strings.Builder
	for _, c := range hint {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteByte('-')
		}
	}
	s := b.String()
	if len(s) > 48 {
		s = s[:48]
	}
	return s
}
