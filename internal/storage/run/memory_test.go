package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/report"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeRun(id, symbol, strategy string, at time.Time) report.Response {
	return report.Response{
		ID:          id,
		CreatedAt:   at,
		Summary:     report.Summary{AnnReturnPct: 1.5, Trades: 2},
		EquityCurve: []float64{1, 1.01},
		Trades:      []report.Trade{},
		Config:      report.Config{Symbol: symbol, Strategy: strategy, Params: map[string]float64{}},
	}
}

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}

func TestMemoryStore_SaveGet(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	if err := store.Save(ctx, makeRun("a", "SPY", "rsi", base)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Config.Symbol != "SPY" || got.Summary.Trades != 2 {
		t.Errorf("unexpected run %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want NOT_FOUND", err)
	}

	if err := store.Save(ctx, makeRun("", "SPY", "rsi", base)); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("Save without id error = %v", err)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()

	store.Save(ctx, makeRun("1", "SPY", "rsi", base))
	store.Save(ctx, makeRun("2", "AAPL", "sma_crossover", base.Add(time.Hour)))
	store.Save(ctx, makeRun("3", "SPY", "sma_crossover", base.Add(2*time.Hour)))

	all, _ := store.List(ctx, ListFilter{})
	if len(all) != 3 || all[0].ID != "3" || all[2].ID != "1" {
		t.Errorf("List order = %v", ids(all))
	}

	spy, _ := store.List(ctx, ListFilter{Symbol: "SPY"})
	if len(spy) != 2 {
		t.Errorf("expected 2 SPY runs, got %d", len(spy))
	}

	spySMA, _ := store.List(ctx, ListFilter{Symbol: "SPY", Strategy: "sma_crossover"})
	if len(spySMA) != 1 || spySMA[0].ID != "3" {
		t.Errorf("filtered = %v", ids(spySMA))
	}

	page, _ := store.List(ctx, ListFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != "2" {
		t.Errorf("page = %v", ids(page))
	}

	empty, _ := store.List(ctx, ListFilter{Offset: 5})
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}

	n, _ := store.Count(ctx, ListFilter{Strategy: "sma_crossover"})
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestMemoryStore_MaxSize(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Save(ctx, makeRun(fmt.Sprint(i), "SPY", "rsi", base.Add(time.Duration(i)*time.Minute)))
	}

	n, _ := store.Count(ctx, ListFilter{})
	if n != 3 {
		t.Errorf("expected 3 runs, got %d", n)
	}
	if _, err := store.Get(ctx, "0"); !errors.Is(err, core.ErrNotFound) {
		t.Error("oldest run should be evicted")
	}
	if _, err := store.Get(ctx, "4"); err != nil {
		t.Errorf("newest run missing: %v", err)
	}
}

func TestMemoryStore_SaveReplacesSameID(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()

	store.Save(ctx, makeRun("x", "SPY", "rsi", base))
	updated := makeRun("x", "SPY", "rsi", base)
	updated.Summary.Trades = 9
	store.Save(ctx, updated)

	n, _ := store.Count(ctx, ListFilter{})
	got, _ := store.Get(ctx, "x")
	if n != 1 || got.Summary.Trades != 9 {
		t.Errorf("count %d trades %d, want 1/9", n, got.Summary.Trades)
	}
}

func ids(runs []report.Response) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
