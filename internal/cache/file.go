package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/a2yt/internal/shared"
)

// FileStore keeps one JSON file per entry, named <kind>_<id>.json, in a directory.
// The file modification time is the stored-at time.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created on first write.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Dir returns the directory entries are written to.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(kind Kind, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: cache id %q", shared.ErrInvalidInput, id)
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", kind, id)), nil
}

// Load reads an entry, returning [ErrMiss] when the file does not exist.
func (s *FileStore) Load(kind Kind, id string) (Entry, error) {
	path, err := s.path(kind, id)
	if err != nil {
		return Entry{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Data: data, StoredAt: info.ModTime()}, nil
}

// Save writes an entry through a temporary file so readers never observe a partial write.
func (s *FileStore) Save(kind Kind, id string, data []byte) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".a2yt-cache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// files returns every entry file in the directory.
func (s *FileStore) files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, kind := range Kinds {
		matches, err := filepath.Glob(filepath.Join(s.dir, string(kind)+"_*.json"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

// Clear removes every entry file. Other files in the directory are left alone.
func (s *FileStore) Clear() error {
	files, err := s.files()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}

// Count returns the number of entry files.
func (s *FileStore) Count() (int, error) {
	files, err := s.files()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}
