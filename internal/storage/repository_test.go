package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"budgetrecon/internal/core"

	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "budgetrecon.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entry(sub, period string, status core.StatusLabel) core.ClassificationEntry {
	return core.ClassificationEntry{
		Category:    "Utilities",
		SubCategory: sub,
		Period:      period,
		Status:      status,
		Amount:      decimal.RequireFromString("100.50"),
	}
}

func TestSaveAndLoad(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	got, err := repo.Load(ctx, "plan~opex.xlsx")
	if err != nil || len(got) != 0 {
		t.Fatalf("load of unknown file = %v, %v", got, err)
	}

	first := []core.ClassificationEntry{
		entry("Electricity", "January", core.StatusSpent),
		entry("Electricity", "February", core.StatusWishlist),
	}
	if err := repo.Save(ctx, "plan~opex.xlsx", first, "alice"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = repo.Load(ctx, "plan~opex.xlsx")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Status != core.StatusSpent || got[0].UpdatedBy != "alice" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if !got[0].UpdatedAt.Equal(fixed) || !got[0].Amount.Equal(decimal.RequireFromString("100.5")) || got[0].FileKey != "plan~opex.xlsx" {
		t.Fatalf("unexpected stamp or amount: %+v", got[0])
	}

	// A save replaces the whole set.
	if err := repo.Save(ctx, "plan~opex.xlsx", []core.ClassificationEntry{entry("Water", "March", core.StatusToBeSpent)}, "bob"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = repo.Load(ctx, "plan~opex.xlsx")
	if len(got) != 1 || got[0].SubCategory != "Water" || got[0].UpdatedBy != "bob" {
		t.Fatalf("expected replaced set, got %+v", got)
	}
}

func TestSaveRejectsInvalidEntriesAtomically(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, "f", []core.ClassificationEntry{entry("Gas", "Jan", core.StatusSpent)}, "a"); err != nil {
		t.Fatalf("save: %v", err)
	}
	bad := []core.ClassificationEntry{entry("Gas", "Feb", core.StatusSpent), entry("Gas", "Smarch", core.StatusSpent)}
	if err := repo.Save(ctx, "f", bad, "a"); err == nil {
		t.Fatalf("expected validation error")
	}
	got, _ := repo.Load(ctx, "f")
	if len(got) != 1 || got[0].Period != "Jan" {
		t.Fatalf("previous state must survive a failed save: %+v", got)
	}
}

func TestConcurrentSavesOfDifferentFiles(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if err := repo.Save(ctx, key, []core.ClassificationEntry{entry(key, "May", core.StatusSpent)}, key); err != nil {
					t.Errorf("save %s: %v", key, err)
				}
			}
		}(key)
	}
	wg.Wait()

	keys, err := repo.FileKeys(ctx)
	if err != nil || len(keys) != 4 {
		t.Fatalf("file keys = %v, %v", keys, err)
	}
	for _, key := range keys {
		got, _ := repo.Load(ctx, key)
		if len(got) != 1 || got[0].SubCategory != key {
			t.Fatalf("file %s corrupted: %+v", key, got)
		}
	}
}

func TestFileRegistry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	f := core.UploadedFile{Name: "plan~opex.xlsx", Type: core.FileTypeBudgetOPEX, Uploader: "alice", UploadedAt: at, Location: "file:///tmp/plan~opex.xlsx"}
	if err := repo.Register(ctx, f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := repo.Register(ctx, f); !errors.Is(err, core.ErrDuplicateFile) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	later := f
	later.Name, later.Type, later.UploadedAt = "spend~expense.xlsx", core.FileTypeExpense, at.Add(time.Hour)
	if err := repo.Register(ctx, later); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := repo.File(ctx, "plan~opex.xlsx")
	if err != nil || got.Type != core.FileTypeBudgetOPEX || !got.UploadedAt.Equal(at) {
		t.Fatalf("file = %+v, %v", got, err)
	}
	if _, err := repo.File(ctx, "missing.xlsx"); !errors.Is(err, core.ErrFileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	files, err := repo.ListFiles(ctx)
	if err != nil || len(files) != 2 || files[0].Name != "spend~expense.xlsx" {
		t.Fatalf("list = %+v, %v", files, err)
	}
}
