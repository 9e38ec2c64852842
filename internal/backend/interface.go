package backend

import (
	"context"
	"errors"

	"budgetrecon/internal/files"
	"budgetrecon/internal/services"
	ports "budgetrecon/internal/sheets"
)

// Backend bundles the stores selected by configuration.
type Backend struct {
	Type BackendType

	Classifications ports.ClassificationStore
	Index           ports.ClassificationIndex
	Registry        ports.FileRegistry
	// Grids is nil when no Google credentials are configured.
	Grids ports.GridReader

	Upload  files.BlobStore
	Readers []files.BlobStore

	// Publisher is nil unless the sqlite backend runs with AMQP.
	Publisher services.Publisher

	Checks   []Check
	cleanups []CleanupFunc
}

// Check is a readiness probe of one backend dependency.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

func (b *Backend) addCleanup(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

// Close runs the cleanups in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// UploadStoreType selects where uploaded workbook bytes live.
type UploadStoreType string

const (
	LocalUploads UploadStoreType = "local"
	GCSUploads   UploadStoreType = "gcs"
	DriveUploads UploadStoreType = "drive"
)
