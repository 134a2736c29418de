package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/metrics"
	"github.com/newthinker/algotrade/internal/strategy/builtin"
)

// mockProvider implements OHLCVProvider for testing
type mockProvider struct {
	data    []core.OHLCV
	err     error
	queries []core.HistoryQuery
}

func (m *mockProvider) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

type mockRecorder struct {
	mu         sync.Mutex
	strategies []string
	statuses   []string
	trades     []int
}

func (m *mockRecorder) RecordBacktest(strategy, status string, duration float64, trades int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, strategy)
	m.statuses = append(m.statuses, status)
	m.trades = append(m.trades, trades)
}

func zigzag(n int) []float64 {
	prices := make([]float64, n)
	for i := range prices {
		// slow upward drift with a 20-bar swing
		swing := float64(i%20) - 10
		if swing < 0 {
			swing = -swing
		}
		prices[i] = 100 + float64(i)*0.2 + swing
	}
	return prices
}

func newTestBacktester(p OHLCVProvider, opts ...Option) *Backtester {
	return New(p, builtin.NewEngine(nil), opts...)
}

func TestBacktester_Run(t *testing.T) {
	provider := &mockProvider{data: makeBars(zigzag(120))}
	rec := &mockRecorder{}
	bt := newTestBacktester(provider, WithRecorder(rec))

	start := testBase
	end := testBase.AddDate(0, 0, 120)
	result, err := bt.Run(context.Background(), Request{
		Symbol:   "SPY",
		Strategy: "sma_crossover",
		Params:   map[string]float64{"fast": 3, "slow": 8},
		Start:    &start,
		End:      &end,
		CostBps:  5,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Bars != 120 {
		t.Errorf("Bars = %d, want 120", result.Bars)
	}
	if len(result.Equity()) != 120 || result.Equity()[0] != 1 {
		t.Errorf("unexpected equity curve head/length")
	}
	if len(result.Trades()) == 0 {
		t.Error("expected trades on a swinging series")
	}
	if result.PeriodsPerYear != 252 {
		t.Errorf("PeriodsPerYear = %d, want 252", result.PeriodsPerYear)
	}
	if result.Strategy != "SMA Crossover (3/8)" {
		t.Errorf("Strategy = %q", result.Strategy)
	}
	if result.Benchmarks.ReferenceSymbol != "SPY" {
		t.Errorf("ReferenceSymbol = %q, want SPY", result.Benchmarks.ReferenceSymbol)
	}

	if len(provider.queries) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(provider.queries))
	}
	q := provider.queries[0]
	if q.Symbol != "SPY" || q.Interval != "1d" || !q.Start.Equal(start) || !q.End.Equal(end) {
		t.Errorf("unexpected query %+v", q)
	}

	if len(rec.statuses) != 1 || rec.statuses[0] != "success" || rec.trades[0] != len(result.Trades()) {
		t.Errorf("recorder saw %v/%v", rec.statuses, rec.trades)
	}
}

func TestBacktester_Run_Deterministic(t *testing.T) {
	provider := &mockProvider{data: makeBars(zigzag(80))}
	bt := newTestBacktester(provider)

	req := Request{Symbol: "SPY", Strategy: "rsi", Params: map[string]float64{"period": 5}}
	a, err := bt.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	b, err := bt.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if a.Metrics != b.Metrics || a.Benchmarks != b.Benchmarks || len(a.Trades()) != len(b.Trades()) {
		t.Error("repeated runs differ")
	}
}

func TestBacktester_Run_DefaultDates(t *testing.T) {
	provider := &mockProvider{data: makeBars(zigzag(40))}
	now := time.Date(2025, 6, 15, 13, 30, 0, 0, time.UTC)
	bt := newTestBacktester(provider,
		WithClock(func() time.Time { return now }),
		WithLookback(30*24*time.Hour),
		WithDefaultInterval("1wk"),
	)

	result, err := bt.Run(context.Background(), Request{Symbol: "AAPL", Strategy: "rsi"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	q := provider.queries[0]
	wantEnd := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !q.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", q.End, wantEnd)
	}
	if !q.Start.Equal(wantEnd.AddDate(0, 0, -30)) {
		t.Errorf("Start = %v", q.Start)
	}
	if q.Interval != "1wk" || result.PeriodsPerYear != 52 {
		t.Errorf("interval %q ppy %d, want 1wk/52", q.Interval, result.PeriodsPerYear)
	}
}

func TestBacktester_Run_PeriodsOverride(t *testing.T) {
	bt := newTestBacktester(&mockProvider{data: makeBars(zigzag(40))}, WithPeriodsPerYear(365))

	result, err := bt.Run(context.Background(), Request{Symbol: "BTC-USD", Strategy: "rsi"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.PeriodsPerYear != 365 {
		t.Errorf("PeriodsPerYear = %d, want 365", result.PeriodsPerYear)
	}
}

func TestBacktester_Run_Errors(t *testing.T) {
	start := testBase
	before := testBase.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		provider  *mockProvider
		req       Request
		wantErr   error
		wantFetch bool
	}{
		{
			name:     "missing symbol",
			provider: &mockProvider{},
			req:      Request{Strategy: "rsi"},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:     "unknown strategy",
			provider: &mockProvider{},
			req:      Request{Symbol: "SPY", Strategy: "macd"},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:     "bad params",
			provider: &mockProvider{},
			req:      Request{Symbol: "SPY", Strategy: "sma_crossover", Params: map[string]float64{"fast": 30, "slow": 10}},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:     "end before start",
			provider: &mockProvider{},
			req:      Request{Symbol: "SPY", Strategy: "rsi", Start: &start, End: &before},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:     "negative cost",
			provider: &mockProvider{},
			req:      Request{Symbol: "SPY", Strategy: "rsi", CostBps: -5},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:     "unsupported interval",
			provider: &mockProvider{},
			req:      Request{Symbol: "SPY", Strategy: "rsi", Interval: "1h"},
			wantErr:  core.ErrInvalidParameter,
		},
		{
			name:      "provider failure",
			provider:  &mockProvider{err: core.ErrSymbolNotFound},
			req:       Request{Symbol: "NOPE", Strategy: "rsi"},
			wantErr:   core.ErrSymbolNotFound,
			wantFetch: true,
		},
		{
			name:      "no data",
			provider:  &mockProvider{},
			req:       Request{Symbol: "SPY", Strategy: "rsi"},
			wantErr:   core.ErrNoData,
			wantFetch: true,
		},
		{
			name:      "too few bars for slow window",
			provider:  &mockProvider{data: makeBars(zigzag(10))},
			req:       Request{Symbol: "SPY", Strategy: "sma_crossover"},
			wantErr:   core.ErrInsufficientData,
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			bt := newTestBacktester(tt.provider, WithRecorder(rec))

			_, err := bt.Run(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if fetched := len(tt.provider.queries) > 0; fetched != tt.wantFetch {
				t.Errorf("fetched = %v, want %v", fetched, tt.wantFetch)
			}
			if len(rec.statuses) != 1 || rec.statuses[0] != "error" {
				t.Errorf("recorder saw %v", rec.statuses)
			}
		})
	}
}

func TestBacktester_Run_UnregisteredStrategyLabel(t *testing.T) {
	rec := &mockRecorder{}
	bt := newTestBacktester(&mockProvider{data: makeBars(zigzag(120))}, WithRecorder(rec))

	for i := 0; i < 50; i++ {
		_, err := bt.Run(context.Background(), Request{Symbol: "SPY", Strategy: fmt.Sprintf("bogus-%d", i)})
		if !errors.Is(err, core.ErrInvalidParameter) {
			t.Fatalf("Run() error = %v, want INVALID_PARAMETER", err)
		}
	}
	if _, err := bt.Run(context.Background(), Request{Symbol: "SPY", Strategy: " rsi "}); err != nil {
		t.Fatalf("Run(rsi) error = %v", err)
	}

	labels := make(map[string]int)
	for _, s := range rec.strategies {
		labels[s]++
	}
	if len(labels) != 2 || labels["unknown"] != 50 || labels["rsi"] != 1 {
		t.Errorf("recorded strategy labels = %v, want 50 unknown and 1 rsi", labels)
	}
}

func TestBacktester_Run_StrategySeriesStayBounded(t *testing.T) {
	reg := metrics.NewRegistry()
	bt := newTestBacktester(&mockProvider{}, WithRecorder(reg))

	for i := 0; i < 20; i++ {
		bt.Run(context.Background(), Request{Symbol: "SPY", Strategy: fmt.Sprintf("bogus-%d", i)})
	}

	n, err := testutil.GatherAndCount(reg, "algotrade_backtests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("algotrade_backtests_total has %d series, want 1", n)
	}
}

func TestBacktester_Run_Cancelled(t *testing.T) {
	bt := newTestBacktester(&mockProvider{data: makeBars(zigzag(50))})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bt.Run(ctx, Request{Symbol: "SPY", Strategy: "rsi"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
