package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"budgetrecon/internal/amqp"
	"budgetrecon/internal/core"
	"budgetrecon/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

func entry(sub, period string, status core.StatusLabel) core.ClassificationEntry {
	return core.ClassificationEntry{
		Category:    "Utilities",
		SubCategory: sub,
		Period:      period,
		Status:      status,
		Amount:      decimal.NewFromInt(10),
	}
}

type failingMirror struct {
	*memory.Store
	fail string
}

func (m failingMirror) Save(ctx context.Context, fileKey string, entries []core.ClassificationEntry, actor string) error {
	if fileKey == m.fail {
		return errors.New("quota exceeded")
	}
	return m.Store.Save(ctx, fileKey, entries, actor)
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	src := memory.New()
	ctx := context.Background()
	if err := src.Save(ctx, "a~opex.xlsx", []core.ClassificationEntry{entry("Water", "Jan", core.StatusSpent)}, "ana"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := src.Save(ctx, "b~capex.xlsx", []core.ClassificationEntry{entry("Power", "Feb", core.StatusWishlist)}, "ben"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return src
}

func TestHandleSyncMessage(t *testing.T) {
	src := seed(t)
	mirror := memory.New()
	w := NewSyncWorker(src, mirror, mirror)

	ctx := context.Background()
	if err := w.HandleSyncMessage(ctx, amqp.NewClassificationSyncMessage("a~opex.xlsx", "ana", 1)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := mirror.Load(ctx, "a~opex.xlsx")
	if len(got) != 1 || got[0].Status != core.StatusSpent || got[0].UpdatedBy != "ana" {
		t.Fatalf("mirrored = %+v", got)
	}

	// A newer save reaches the mirror even through an older message.
	_ = src.Save(ctx, "a~opex.xlsx", []core.ClassificationEntry{entry("Water", "Jan", core.StatusToBeSpent)}, "cy")
	stale := &amqp.ClassificationSyncMessage{FileKey: "a~opex.xlsx", Actor: "ana"}
	if err := w.HandleSyncMessage(ctx, stale); err != nil {
		t.Fatalf("handle stale: %v", err)
	}
	got, _ = mirror.Load(ctx, "a~opex.xlsx")
	if got[0].Status != core.StatusToBeSpent || got[0].UpdatedBy != "cy" {
		t.Fatalf("mirror should carry the latest save, got %+v", got[0])
	}
}

func TestHandleSyncMessageFailure(t *testing.T) {
	w := NewSyncWorker(seed(t), failingMirror{Store: memory.New(), fail: "a~opex.xlsx"}, nil)
	err := w.HandleSyncMessage(context.Background(), amqp.NewClassificationSyncMessage("a~opex.xlsx", "ana", 1))
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected mirror error, got %v", err)
	}
}

func TestFullResync(t *testing.T) {
	mirror := failingMirror{Store: memory.New(), fail: "a~opex.xlsx"}
	w := NewSyncWorker(seed(t), mirror, nil)

	n, err := w.FullResync(context.Background())
	if n != 1 {
		t.Fatalf("synced = %d, want 1", n)
	}
	if err == nil || !strings.Contains(err.Error(), "a~opex.xlsx") {
		t.Fatalf("expected the failing file in the error, got %v", err)
	}
	if got, _ := mirror.Load(context.Background(), "b~capex.xlsx"); len(got) != 1 {
		t.Fatalf("b should be mirrored, got %+v", got)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	src := seed(t)
	mirror := memory.New()
	_ = mirror.Save(ctx, "a~opex.xlsx", nil, "old")

	w := NewSyncWorker(src, mirror, mirror)
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if got, _ := mirror.Load(ctx, "b~capex.xlsx"); len(got) != 1 {
		t.Fatalf("missing file should be mirrored, got %+v", got)
	}
	if got, _ := mirror.Load(ctx, "a~opex.xlsx"); len(got) != 0 {
		t.Fatalf("already mirrored file should be left alone, got %+v", got)
	}
}
