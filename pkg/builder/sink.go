package builder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Sink stores built artifacts by file name.
type Sink interface {
	Exists(ctx context.Context, name string) (bool, error)
	Write(ctx context.Context, name string, data []byte) error
	// Location describes where name is stored, for logs and reports.
	Location(name string) string
}

// DirSink writes artifacts into a local directory.
type DirSink struct {
	Dir string
}

// NewDirSink returns a sink rooted at dir. The directory is created on the
// first write.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

func (s *DirSink) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.Dir, name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("builder: stat %s: %w", s.Location(name), err)
	}
}

// Write replaces name through a temporary file so readers never observe a
// partial artifact.
func (s *DirSink) Write(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("builder: create %s: %w", s.Dir, err)
	}
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("builder: write %s: %w", s.Location(name), err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("builder: write %s: %w", s.Location(name), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("builder: write %s: %w", s.Location(name), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("builder: write %s: %w", s.Location(name), err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("builder: write %s: %w", s.Location(name), err)
	}
	return nil
}

func (s *DirSink) Location(name string) string {
	return filepath.Join(s.Dir, name)
}

// MemorySink keeps artifacts in memory; used by dry runs and tests.
type MemorySink struct {
	Files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{Files: map[string][]byte{}}
}

func (s *MemorySink) Exists(_ context.Context, name string) (bool, error) {
	_, ok := s.Files[name]
	return ok, nil
}

func (s *MemorySink) Write(_ context.Context, name string, data []byte) error {
	if s.Files == nil {
		s.Files = map[string][]byte{}
	}
	s.Files[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemorySink) Location(name string) string { return "memory://" + name }
