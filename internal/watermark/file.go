package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DefaultFile is the watermark file name, also used as the artifact payload.
const DefaultFile = "artifact-file.txt"

// FileStore keeps the watermark in a plain text file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at path, or DefaultFile when path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Name() string { return "file" }

// Load reads the watermark. A missing file reports ok=false.
func (s *FileStore) Load(_ context.Context) (time.Time, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read %s: %w", s.path, err)
	}

	t, err := Parse(string(data))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return t, true, nil
}

// Save overwrites the file with t.
func (s *FileStore) Save(_ context.Context, t time.Time) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Format(t)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
