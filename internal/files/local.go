package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var _ BlobStore = (*LocalStore)(nil)

// LocalStore keeps workbooks as files in one directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Scheme() string { return "file" }

func (s *LocalStore) Put(_ context.Context, name string, data []byte) (string, error) {
	p, err := s.path(name)
	if err != nil {
		return "", err
	}
	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return "file://" + filepath.ToSlash(p), nil
}

func (s *LocalStore) Get(_ context.Context, location string) ([]byte, error) {
	p, err := s.fromLocation(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, location string) error {
	p, err := s.fromLocation(location)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", location, err)
	}
	return nil
}

func (s *LocalStore) path(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.dir, base), nil
}

// fromLocation maps a file:// location back to a path inside the directory.
func (s *LocalStore) fromLocation(location string) (string, error) {
	if !strings.HasPrefix(location, "file://") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLocation, location)
	}
	p := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(location, "file://")))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("location %s is outside %s", location, s.dir)
	}
	return p, nil
}
