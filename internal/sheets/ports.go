package sheets

import (
	"context"

	"budgetrecon/internal/core"
	"budgetrecon/internal/workbook"
)

// Ports for outbound adapters.
type (
	// ClassificationStore persists the per-period status labels of a budget
	// file. Load returns an empty slice for an unknown file. Save replaces
	// every entry of fileKey at once, stamping actor and the current time;
	// concurrent saves of the same file are last-writer-wins.
	ClassificationStore interface {
		Load(ctx context.Context, fileKey string) ([]core.ClassificationEntry, error)
		Save(ctx context.Context, fileKey string, entries []core.ClassificationEntry, actor string) error
	}

	// ClassificationIndex lists the file keys that have saved entries.
	ClassificationIndex interface {
		FileKeys(ctx context.Context) ([]string, error)
	}

	// FileRegistry records uploaded workbooks.
	FileRegistry interface {
		// Register fails with core.ErrDuplicateFile when the name is taken.
		Register(ctx context.Context, f core.UploadedFile) error
		// File fails with core.ErrFileNotFound for an unknown name.
		File(ctx context.Context, name string) (core.UploadedFile, error)
		ListFiles(ctx context.Context) ([]core.UploadedFile, error)
	}

	// GridReader reads one tab of a hosted spreadsheet.
	GridReader interface {
		ReadGrid(ctx context.Context, spreadsheetID, sheet string) (workbook.Grid, error)
	}
)
