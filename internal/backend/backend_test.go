package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budgetrecon/internal/config"
	"budgetrecon/internal/core"
	"budgetrecon/internal/files"
	"budgetrecon/internal/storage"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"bad type", Config{Type: "postgres"}, "invalid backend type"},
		{"sqlite without path", Config{Type: SQLiteBackend, UploadDir: "x"}, "SQLite database path"},
		{"sheets without id", Config{Type: SheetsBackend, UploadDir: "x"}, "Spreadsheet ID"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", UploadDir: "x"}, "credentials"},
		{"local without dir", Config{Type: MemoryBackend}, "upload directory"},
		{"gcs without bucket", Config{Type: MemoryBackend, UploadStore: GCSUploads}, "GCS bucket"},
		{"drive without folder", Config{Type: MemoryBackend, UploadStore: DriveUploads}, "Drive folder"},
		{"unknown store", Config{Type: MemoryBackend, UploadStore: "s3"}, "invalid upload store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want %q", err, tt.want)
			}
		})
	}

	if err := (Config{Type: MemoryBackend, UploadDir: "x"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "mongo"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "db.sqlite",
		UploadStore:  "gcs",
		GCSBucket:    "bucket",
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.UploadStore != GCSUploads || cfg.GCSBucket != "bucket" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plan~opex.xlsx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, UploadDir: dir})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer b.Close()

	if b.Grids != nil || b.Publisher != nil {
		t.Fatal("no Google client or publisher expected without configuration")
	}
	if _, ok := b.Upload.(*files.LocalStore); !ok {
		t.Fatalf("upload store = %T", b.Upload)
	}
	f, err := b.Registry.File(context.Background(), "plan~opex.xlsx")
	if err != nil || f.Type != core.FileTypeBudgetOPEX {
		t.Fatalf("registry file = %+v, %v", f, err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(dir, "db", "budgetrecon.db"),
		UploadDir:    filepath.Join(dir, "uploads"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}

	if _, ok := b.Classifications.(*storage.SQLiteRepository); !ok {
		t.Fatalf("classification store = %T", b.Classifications)
	}
	if len(b.Checks) != 1 || b.Checks[0].Check(context.Background()) != nil {
		t.Fatalf("sqlite readiness check missing or failing: %+v", b.Checks)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
