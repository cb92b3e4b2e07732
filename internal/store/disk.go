package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps files under a root directory on the local filesystem.
// All paths handed to it are slash-separated and relative to the root.
type DiskStore struct {
	Root string
}

func DefaultRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "note-assistant", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "note-assistant", "storage")
	}
	return filepath.Join(os.TempDir(), "note-assistant", "storage")
}

func NewDiskStore(root string) *DiskStore {
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot()
	}
	return &DiskStore{Root: root}
}

func (s *DiskStore) abs(path string) string {
	return filepath.Join(s.Root, filepath.FromSlash(path))
}

func (s *DiskStore) Read(path string) ([]byte, error) {
	b, err := os.ReadFile(s.abs(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *DiskStore) Write(path string, data []byte) error {
	full := s.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (s *DiskStore) Exists(path string) bool {
	info, err := os.Stat(s.abs(path))
	return err == nil && !info.IsDir()
}

func (s *DiskStore) Delete(path string) error {
	err := os.Remove(s.abs(path))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *DiskStore) Copy(path, newPath string) error {
	data, err := s.Read(path)
	if err != nil {
		return err
	}
	return s.Write(newPath, data)
}

func (s *DiskStore) CreateDir(path string) error {
	return os.MkdirAll(s.abs(path), 0o755)
}

func (s *DiskStore) List(prefix string) ([]string, error) {
	base := s.abs(prefix)
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	return out, nil
}
