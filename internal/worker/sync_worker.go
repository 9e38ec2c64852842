package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetrecon/internal/amqp"
	ports "budgetrecon/internal/sheets"
)

// Source is the authoritative classification store.
type Source interface {
	ports.ClassificationStore
	ports.ClassificationIndex
}

// SyncWorker mirrors saved classifications from the database into the
// spreadsheet store.
type SyncWorker struct {
	source Source
	mirror ports.ClassificationStore
	index  ports.ClassificationIndex
}

// NewSyncWorker wires the worker. index lists what the mirror already holds
// and may be nil, in which case the startup check resyncs everything.
func NewSyncWorker(source Source, mirror ports.ClassificationStore, index ports.ClassificationIndex) *SyncWorker {
	return &SyncWorker{source: source, mirror: mirror, index: index}
}

// HandleSyncMessage copies the current entries of the announced file. The
// message only names the file, so a redelivered or late message writes the
// latest state.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.ClassificationSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"file_key", msg.FileKey,
		"actor", msg.Actor,
		"sent_at", msg.Timestamp)

	if err := w.syncFile(ctx, msg.FileKey); err != nil {
		return fmt.Errorf("sync %s: %w", msg.FileKey, err)
	}
	return nil
}

// FullResync mirrors every file with saved entries. A failing file does not
// stop the others; the failures are returned joined.
func (w *SyncWorker) FullResync(ctx context.Context) (int, error) {
	keys, err := w.source.FileKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source files: %w", err)
	}
	return w.syncAll(ctx, keys)
}

// StartupSyncCheck mirrors the files the spreadsheet does not hold yet, which
// covers messages lost while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	start := time.Now()
	keys, err := w.source.FileKeys(ctx)
	if err != nil {
		return fmt.Errorf("list source files: %w", err)
	}

	missing := keys
	if w.index != nil {
		mirrored, err := w.index.FileKeys(ctx)
		if err != nil {
			return fmt.Errorf("list mirrored files: %w", err)
		}
		have := make(map[string]bool, len(mirrored))
		for _, k := range mirrored {
			have[k] = true
		}
		missing = missing[:0:0]
		for _, k := range keys {
			if !have[k] {
				missing = append(missing, k)
			}
		}
	}

	if len(missing) == 0 {
		slog.InfoContext(ctx, "Startup sync check: mirror up to date", "files", len(keys))
		return nil
	}
	n, err := w.syncAll(ctx, missing)
	slog.InfoContext(ctx, "Startup sync check completed",
		"missing", len(missing),
		"synced", n,
		"duration", time.Since(start))
	return err
}

func (w *SyncWorker) syncAll(ctx context.Context, keys []string) (int, error) {
	var (
		synced int
		errs   []error
	)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := w.syncFile(ctx, k); err != nil {
			slog.ErrorContext(ctx, "Failed to sync file", "file_key", k, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

func (w *SyncWorker) syncFile(ctx context.Context, fileKey string) error {
	entries, err := w.source.Load(ctx, fileKey)
	if err != nil {
		return fmt.Errorf("load from storage: %w", err)
	}
	actor := ""
	var latest time.Time
	for _, e := range entries {
		if e.UpdatedAt.After(latest) {
			latest, actor = e.UpdatedAt, e.UpdatedBy
		}
	}
	if err := w.mirror.Save(ctx, fileKey, entries, actor); err != nil {
		return fmt.Errorf("save to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored classifications",
		"file_key", fileKey,
		"entries", len(entries),
		"updated_by", actor)
	return nil
}
