package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"budgetrecon/internal/core"
	ports "budgetrecon/internal/sheets"
)

var (
	_ ports.ClassificationStore = (*Store)(nil)
	_ ports.ClassificationIndex = (*Store)(nil)
	_ ports.FileRegistry        = (*Store)(nil)
)

// Store keeps classifications and the file registry in process memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]core.ClassificationEntry
	files   map[string]core.UploadedFile
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string][]core.ClassificationEntry),
		files:   make(map[string]core.UploadedFile),
		now:     time.Now,
	}
}

// NewFromDir registers every tagged workbook ("name~opex.xlsx" and so on)
// already present in dir, so a restart with a local blob directory keeps its
// file list.
func NewFromDir(dir string) *Store {
	s := New()
	items, err := os.ReadDir(dir)
	if err != nil {
		return s
	}
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		ft, ok := core.FileTypeFromName(it.Name())
		if !ok {
			continue
		}
		info, err := it.Info()
		if err != nil {
			continue
		}
		s.files[it.Name()] = core.UploadedFile{
			Name:       it.Name(),
			Type:       ft,
			UploadedAt: info.ModTime().UTC(),
			Location:   "file://" + filepath.Join(dir, it.Name()),
		}
	}
	return s
}

// Load returns a copy of the saved entries of fileKey.
func (s *Store) Load(_ context.Context, fileKey string) ([]core.ClassificationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.ClassificationEntry{}, s.entries[fileKey]...), nil
}

// Save replaces the entries of fileKey.
func (s *Store) Save(_ context.Context, fileKey string, entries []core.ClassificationEntry, actor string) error {
	stamp := s.now().UTC()
	out := make([]core.ClassificationEntry, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("validate entry: %w", err)
		}
		e.FileKey = fileKey
		e.UpdatedBy = actor
		e.UpdatedAt = stamp
		out[i] = e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fileKey] = out
	return nil
}

// FileKeys lists files with saved entries, sorted.
func (s *Store) FileKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Register(_ context.Context, f core.UploadedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[f.Name]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicateFile, f.Name)
	}
	s.files[f.Name] = f
	return nil
}

func (s *Store) File(_ context.Context, name string) (core.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[name]
	if !ok {
		return core.UploadedFile{}, fmt.Errorf("%w: %s", core.ErrFileNotFound, name)
	}
	return f, nil
}

// ListFiles returns the registry, newest first.
func (s *Store) ListFiles(_ context.Context) ([]core.UploadedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.UploadedFile, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
