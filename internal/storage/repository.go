package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetrecon/internal/core"
	ports "budgetrecon/internal/sheets"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	_ ports.ClassificationStore = (*SQLiteRepository)(nil)
	_ ports.ClassificationIndex = (*SQLiteRepository)(nil)
	_ ports.FileRegistry        = (*SQLiteRepository)(nil)
)

// Fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements sheets.ClassificationStore
func (r *SQLiteRepository) Load(ctx context.Context, fileKey string) ([]core.ClassificationEntry, error) {
	rows, err := r.queries.ListClassifications(ctx, fileKey)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	out := make([]core.ClassificationEntry, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("classification %d: invalid amount %q: %w", row.ID, row.Amount, err)
		}
		updatedAt, _ := time.Parse(timeLayout, row.UpdatedAt)
		out = append(out, core.ClassificationEntry{
			FileKey:     row.FileKey,
			Category:    row.Category,
			SubCategory: row.SubCategory,
			Period:      row.Period,
			Status:      core.StatusLabel(row.Status),
			Amount:      amount,
			UpdatedBy:   row.UpdatedBy,
			UpdatedAt:   updatedAt,
		})
	}
	return out, nil
}

// Save implements sheets.ClassificationStore. The delete and inserts run in
// one transaction, so readers see either the old or the new set.
func (r *SQLiteRepository) Save(ctx context.Context, fileKey string, entries []core.ClassificationEntry, actor string) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("validate entry: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteClassifications(ctx, fileKey); err != nil {
		return fmt.Errorf("delete classifications: %w", err)
	}
	stamp := r.now().UTC().Format(timeLayout)
	for _, e := range entries {
		if err := q.InsertClassification(ctx, InsertClassificationParams{
			FileKey:     fileKey,
			Category:    e.Category,
			SubCategory: e.SubCategory,
			Period:      e.Period,
			Status:      string(e.Status),
			Amount:      e.Amount.String(),
			UpdatedBy:   actor,
			UpdatedAt:   stamp,
		}); err != nil {
			return fmt.Errorf("insert classification %s/%s/%s: %w", e.Category, e.SubCategory, e.Period, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit classifications: %w", err)
	}

	slog.InfoContext(ctx, "Classifications saved to SQLite",
		"file_key", fileKey,
		"entries", len(entries),
		"actor", actor)
	return nil
}

// FileKeys implements sheets.ClassificationIndex
func (r *SQLiteRepository) FileKeys(ctx context.Context) ([]string, error) {
	keys, err := r.queries.ListClassificationFileKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classification file keys: %w", err)
	}
	return keys, nil
}

// Register implements sheets.FileRegistry
func (r *SQLiteRepository) Register(ctx context.Context, f core.UploadedFile) error {
	if _, err := r.queries.GetUploadedFile(ctx, f.Name); err == nil {
		return fmt.Errorf("%w: %s", core.ErrDuplicateFile, f.Name)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("get uploaded file: %w", err)
	}
	if err := r.queries.InsertUploadedFile(ctx, UploadedFile{
		Name:       f.Name,
		FileType:   string(f.Type),
		Uploader:   f.Uploader,
		UploadedAt: f.UploadedAt.UTC().Format(timeLayout),
		Location:   f.Location,
	}); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("%w: %s", core.ErrDuplicateFile, f.Name)
		}
		return fmt.Errorf("insert uploaded file: %w", err)
	}
	return nil
}

// File implements sheets.FileRegistry
func (r *SQLiteRepository) File(ctx context.Context, name string) (core.UploadedFile, error) {
	row, err := r.queries.GetUploadedFile(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UploadedFile{}, fmt.Errorf("%w: %s", core.ErrFileNotFound, name)
	}
	if err != nil {
		return core.UploadedFile{}, fmt.Errorf("get uploaded file: %w", err)
	}
	return toUploadedFile(row), nil
}

// ListFiles implements sheets.FileRegistry
func (r *SQLiteRepository) ListFiles(ctx context.Context) ([]core.UploadedFile, error) {
	rows, err := r.queries.ListUploadedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list uploaded files: %w", err)
	}
	out := make([]core.UploadedFile, len(rows))
	for i, row := range rows {
		out[i] = toUploadedFile(row)
	}
	return out, nil
}

func toUploadedFile(row UploadedFile) core.UploadedFile {
	at, _ := time.Parse(timeLayout, row.UploadedAt)
	return core.UploadedFile{
		Name:       row.Name,
		Type:       core.FileType(row.FileType),
		Uploader:   row.Uploader,
		UploadedAt: at,
		Location:   row.Location,
	}
}
