package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetrecon/internal/amqp"
	"budgetrecon/internal/budget"
	"budgetrecon/internal/classification"
	"budgetrecon/internal/core"
	ports "budgetrecon/internal/sheets"
	"budgetrecon/internal/workbook"

	"github.com/shopspring/decimal"
)

var ErrNotBudget = errors.New("file is not a budget")

// BudgetFiles resolves registered budget workbooks.
type BudgetFiles interface {
	File(ctx context.Context, name string) (core.UploadedFile, error)
	Grid(ctx context.Context, f core.UploadedFile, sheet string) (workbook.Grid, error)
}

// Publisher announces saved classifications.
type Publisher interface {
	PublishClassificationSync(ctx context.Context, msg *amqp.ClassificationSyncMessage) error
}

// ClassificationView is the editable grid of a budget file with its header
// summary.
type ClassificationView struct {
	File    core.UploadedFile      `json:"file"`
	Labels  []core.StatusLabel     `json:"labels"`
	Grid    classification.Grid    `json:"grid"`
	Summary classification.Summary `json:"summary"`
}

// ClassificationService orchestrates classification edits across the store
// and AMQP.
type ClassificationService struct {
	files         BudgetFiles
	store         ports.ClassificationStore
	publisher     Publisher
	defaultStatus core.StatusLabel
}

// NewClassificationService wires the collaborators; publisher may be nil to
// skip sync messages.
func NewClassificationService(files BudgetFiles, store ports.ClassificationStore, publisher Publisher, defaultStatus core.StatusLabel) *ClassificationService {
	return &ClassificationService{
		files:         files,
		store:         store,
		publisher:     publisher,
		defaultStatus: defaultStatus,
	}
}

// Get returns the grid of fileKey with saved statuses applied. The summary
// carries no spend; a report fills that in.
func (s *ClassificationService) Get(ctx context.Context, fileKey, sheet string) (*ClassificationView, error) {
	f, plan, err := s.loadBudget(ctx, fileKey, sheet)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Load(ctx, f.Name)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}
	grid := classification.BuildGrid(plan.Lines, saved, s.defaultStatus)
	return s.view(f, plan, grid), nil
}

// Update applies updates to the current grid and saves the whole grid as
// actor. The store save is authoritative; a failed publish is only logged.
func (s *ClassificationService) Update(ctx context.Context, fileKey, sheet, actor string, updates []classification.Update) (*ClassificationView, error) {
	f, plan, err := s.loadBudget(ctx, fileKey, sheet)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Load(ctx, f.Name)
	if err != nil {
		return nil, fmt.Errorf("load classifications: %w", err)
	}
	grid := classification.BuildGrid(plan.Lines, saved, s.defaultStatus)
	if err := grid.Apply(updates); err != nil {
		return nil, fmt.Errorf("apply updates: %w", err)
	}

	entries := grid.Entries(f.Name)
	if err := s.store.Save(ctx, f.Name, entries, actor); err != nil {
		return nil, fmt.Errorf("save classifications: %w", err)
	}
	slog.InfoContext(ctx, "Classifications saved",
		"file", f.Name,
		"updates", len(updates),
		"entries", len(entries),
		"actor", actor)

	if err := s.publishSyncMessage(ctx, amqp.NewClassificationSyncMessage(f.Name, actor, len(entries))); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "file", f.Name, "error", err)
	}
	return s.view(f, plan, grid), nil
}

func (s *ClassificationService) loadBudget(ctx context.Context, fileKey, sheet string) (core.UploadedFile, *budget.Ledger, error) {
	f, err := s.files.File(ctx, fileKey)
	if err != nil {
		return core.UploadedFile{}, nil, err
	}
	if !f.Type.IsBudget() {
		return core.UploadedFile{}, nil, fmt.Errorf("%w: %s is %s", ErrNotBudget, f.Name, f.Type)
	}
	grid, err := s.files.Grid(ctx, f, sheet)
	if err != nil {
		return core.UploadedFile{}, nil, err
	}
	plan, err := budget.Parse(grid, f.Name)
	if err != nil {
		return core.UploadedFile{}, nil, err
	}
	return f, plan, nil
}

func (s *ClassificationService) view(f core.UploadedFile, plan *budget.Ledger, grid classification.Grid) *ClassificationView {
	return &ClassificationView{
		File:    f,
		Labels:  core.StatusLabels(),
		Grid:    grid,
		Summary: classification.Summarize(grid.Entries(f.Name), plan.Lines, decimal.Zero),
	}
}

func (s *ClassificationService) publishSyncMessage(ctx context.Context, msg *amqp.ClassificationSyncMessage) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishClassificationSync(ctx, msg)
}
