package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgetrecon/internal/cache"
	"budgetrecon/internal/core"
	ports "budgetrecon/internal/sheets"
	"budgetrecon/internal/workbook"
)

// DownloadTTL bounds how long downloaded workbook bytes are reused.
const DownloadTTL = 10 * time.Minute

// UploadRequest is one workbook submitted for storage.
type UploadRequest struct {
	Name     string
	Type     core.FileType
	Uploader string
	Data     []byte
}

// Service stores uploads in one blob store, records them in the registry and
// reads any registered workbook back as a grid.
type Service struct {
	registry ports.FileRegistry
	upload   BlobStore
	stores   map[string]BlobStore
	grids    ports.GridReader
	blobs    cache.Cache[[]byte]
	now      func() time.Time
}

// NewService uploads into upload; readers lists the stores consulted by
// scheme when reading, upload included. grids may be nil when no sheets://
// locations are registered; blobs may be nil to disable caching.
func NewService(registry ports.FileRegistry, upload BlobStore, grids ports.GridReader, blobs cache.Cache[[]byte], readers ...BlobStore) *Service {
	s := &Service{
		registry: registry,
		upload:   upload,
		stores:   make(map[string]BlobStore),
		grids:    grids,
		blobs:    blobs,
		now:      time.Now,
	}
	for _, r := range append(readers, upload) {
		if r != nil {
			s.stores[r.Scheme()] = r
		}
	}
	return s
}

// Upload stores req under its tagged name and registers it.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (core.UploadedFile, error) {
	if strings.TrimSpace(req.Name) == "" {
		return core.UploadedFile{}, errors.New("missing file name")
	}
	if len(req.Data) == 0 {
		return core.UploadedFile{}, errors.New("empty file")
	}
	if s.upload == nil {
		return core.UploadedFile{}, errors.New("no upload store configured")
	}
	name := core.TaggedName(req.Name, req.Type)
	if _, err := s.registry.File(ctx, name); err == nil {
		return core.UploadedFile{}, fmt.Errorf("%w: %s", core.ErrDuplicateFile, name)
	} else if !errors.Is(err, core.ErrFileNotFound) {
		return core.UploadedFile{}, fmt.Errorf("check registry: %w", err)
	}

	loc, err := s.upload.Put(ctx, name, req.Data)
	if err != nil {
		return core.UploadedFile{}, fmt.Errorf("store file: %w", err)
	}
	f := core.UploadedFile{
		Name:       name,
		Type:       req.Type,
		Uploader:   req.Uploader,
		UploadedAt: s.now().UTC(),
		Location:   loc,
	}
	if err := s.registry.Register(ctx, f); err != nil {
		if derr := s.upload.Delete(ctx, loc); derr != nil {
			slog.WarnContext(ctx, "Failed to remove orphaned upload", "location", loc, "error", derr)
		}
		return core.UploadedFile{}, fmt.Errorf("register file: %w", err)
	}
	slog.InfoContext(ctx, "File uploaded",
		"name", f.Name, "type", f.Type, "uploader", f.Uploader, "location", f.Location, "bytes", len(req.Data))
	return f, nil
}

// Link registers a workbook that already lives elsewhere, such as a
// sheets:// tab, without copying it.
func (s *Service) Link(ctx context.Context, name string, t core.FileType, uploader, location string) (core.UploadedFile, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return core.UploadedFile{}, err
	}
	if _, ok := s.stores[loc.Scheme]; !ok && loc.Scheme != "sheets" {
		return core.UploadedFile{}, fmt.Errorf("%w: %s", ErrUnsupportedLocation, location)
	}
	f := core.UploadedFile{
		Name:       core.TaggedName(name, t),
		Type:       t,
		Uploader:   uploader,
		UploadedAt: s.now().UTC(),
		Location:   loc.String(),
	}
	if err := s.registry.Register(ctx, f); err != nil {
		return core.UploadedFile{}, fmt.Errorf("register file: %w", err)
	}
	return f, nil
}

func (s *Service) List(ctx context.Context) ([]core.UploadedFile, error) {
	return s.registry.ListFiles(ctx)
}

func (s *Service) File(ctx context.Context, name string) (core.UploadedFile, error) {
	return s.registry.File(ctx, name)
}

// Bytes returns the raw workbook stored at f.Location.
func (s *Service) Bytes(ctx context.Context, f core.UploadedFile) ([]byte, error) {
	if s.blobs != nil {
		if data, ok := s.blobs.Get(f.Location); ok {
			return data, nil
		}
	}
	loc, err := ParseLocation(f.Location)
	if err != nil {
		return nil, err
	}
	store, ok := s.stores[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocation, f.Location)
	}
	data, err := store.Get(ctx, f.Location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.Name, err)
	}
	if s.blobs != nil {
		s.blobs.Set(f.Location, data)
	}
	return data, nil
}

// Grid reads one sheet of f; an empty sheet means the location's tab for
// sheets:// files and the first sheet otherwise.
func (s *Service) Grid(ctx context.Context, f core.UploadedFile, sheet string) (workbook.Grid, error) {
	loc, err := ParseLocation(f.Location)
	if err != nil {
		return workbook.Grid{}, err
	}
	if loc.Scheme == "sheets" {
		if s.grids == nil {
			return workbook.Grid{}, fmt.Errorf("%w: no Sheets reader for %s", ErrUnsupportedLocation, f.Location)
		}
		if sheet == "" {
			sheet = loc.Path
		}
		g, err := s.grids.ReadGrid(ctx, loc.Host, sheet)
		if errors.Is(err, workbook.ErrSheetNotFound) {
			return workbook.Grid{}, &core.ParseError{Source: f.Name, Reason: err.Error()}
		}
		if err != nil {
			return workbook.Grid{}, fmt.Errorf("read hosted sheet %s: %w", f.Name, err)
		}
		return g, nil
	}
	data, err := s.Bytes(ctx, f)
	if err != nil {
		return workbook.Grid{}, err
	}
	g, err := workbook.Open(data, sheet)
	if errors.Is(err, workbook.ErrSheetNotFound) {
		return workbook.Grid{}, &core.ParseError{Source: f.Name, Reason: err.Error()}
	}
	if err != nil {
		return workbook.Grid{}, core.CorruptFile(f.Name, err)
	}
	return g, nil
}
