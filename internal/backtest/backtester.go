package backtest

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/strategy"
	"go.uber.org/zap"
)

const (
	defaultInterval     = "1d"
	defaultLookbackDays = 1825
)

// OHLCVProvider defines the interface for fetching historical OHLCV data
type OHLCVProvider interface {
	FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error)
}

const unknownStrategy = "unknown"

// Recorder receives the outcome of every run.
type Recorder interface {
	RecordBacktest(strategy, status string, duration float64, trades int)
}

// Backtester runs strategy backtests against historical data
type Backtester struct {
	provider   OHLCVProvider
	strategies *strategy.Engine
	logger     *zap.Logger
	recorder   Recorder

	periodsPerYear int
	lookback       time.Duration
	interval       string
	now            func() time.Time
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backtester) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder reports run outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(b *Backtester) { b.recorder = r }
}

// WithPeriodsPerYear overrides the interval-derived annualization base.
// Zero keeps the interval default.
func WithPeriodsPerYear(n int) Option {
	return func(b *Backtester) { b.periodsPerYear = n }
}

// WithLookback sets the window used when a request has no start date.
func WithLookback(d time.Duration) Option {
	return func(b *Backtester) {
		if d > 0 {
			b.lookback = d
		}
	}
}

// WithDefaultInterval sets the bar interval used when a request has none.
func WithDefaultInterval(interval string) Option {
	return func(b *Backtester) {
		if interval != "" {
			b.interval = interval
		}
	}
}

// WithClock replaces time.Now for default date resolution.
func WithClock(now func() time.Time) Option {
	return func(b *Backtester) { b.now = now }
}

// New creates a new Backtester with the given OHLCV provider
func New(provider OHLCVProvider, strategies *strategy.Engine, opts ...Option) *Backtester {
	b := &Backtester{
		provider:   provider,
		strategies: strategies,
		logger:     zap.NewNop(),
		lookback:   defaultLookbackDays * 24 * time.Hour,
		interval:   defaultInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run executes a backtest: load prices, generate the signal, simulate and
// compute metrics and benchmarks.
func (b *Backtester) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	result, err := b.run(ctx, req)

	duration := time.Since(started)
	status, trades := "success", 0
	if err != nil {
		status = "error"
		b.logger.Warn("backtest failed",
			zap.String("symbol", req.Symbol),
			zap.String("strategy", req.Strategy),
			zap.Error(err),
		)
	} else {
		result.Duration = duration
		trades = len(result.Trades())
		b.logger.Info("backtest completed",
			zap.String("symbol", result.Request.Symbol),
			zap.String("strategy", result.Strategy),
			zap.Int("bars", result.Bars),
			zap.Int("trades", trades),
			zap.Float64("ann_return_pct", result.Metrics.AnnReturnPct),
			zap.Duration("duration", duration),
		)
	}
	if b.recorder != nil {
		b.recorder.RecordBacktest(b.strategyLabel(req.Strategy), status, duration.Seconds(), trades)
	}

	return result, err
}

// strategyLabel bounds metric label values to registered strategy names.
func (b *Backtester) strategyLabel(name string) string {
	name = strings.TrimSpace(name)
	if b.strategies.Has(name) {
		return name
	}
	return unknownStrategy
}

func (b *Backtester) run(ctx context.Context, req Request) (*Result, error) {
	req, err := b.normalize(req)
	if err != nil {
		return nil, err
	}

	// Resolve the strategy before any network work.
	strat, err := b.strategies.New(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	bars, err := b.provider.FetchHistory(ctx, core.HistoryQuery{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Start:    *req.Start,
		End:      *req.End,
		Refresh:  req.Refresh,
	})
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no price data for %s between %s and %s",
			req.Symbol, req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	signal, err := strat.Generate(bars)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sim, err := Simulate(bars, signal, Frictions{CostBps: req.CostBps, SlippageBps: req.SlippageBps})
	if err != nil {
		return nil, err
	}

	ppy := b.periodsPerYear
	if ppy <= 0 {
		ppy = PeriodsPerYear(req.Interval)
	}

	metrics, err := ComputeMetrics(sim.Equity, req.RFRatePct, ppy)
	if err != nil {
		return nil, err
	}

	bh, err := BuyAndHoldPct(bars)
	if err != nil {
		return nil, err
	}

	return &Result{
		Request:        req,
		Strategy:       strat.Description(),
		StartDate:      bars[0].Time,
		EndDate:        bars[len(bars)-1].Time,
		Bars:           len(bars),
		PeriodsPerYear: ppy,
		Signal:         signal,
		Simulation:     sim,
		Metrics:        metrics,
		Benchmarks: Benchmarks{
			BuyAndHoldPct:   bh,
			RFRatePct:       req.RFRatePct,
			ReferenceSymbol: req.Symbol,
		},
	}, nil
}

// normalize validates req and fills defaults.
func (b *Backtester) normalize(req Request) (Request, error) {
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Symbol == "" {
		return req, core.Errorf(core.ErrInvalidParameter, "symbol is required")
	}
	req.Strategy = strings.TrimSpace(req.Strategy)
	if req.Strategy == "" {
		return req, core.Errorf(core.ErrInvalidParameter, "strategy is required")
	}
	if req.Interval == "" {
		req.Interval = b.interval
	}
	if !ValidInterval(req.Interval) {
		return req, core.Errorf(core.ErrInvalidParameter, "unsupported interval %q, want 1d, 1wk or 1mo", req.Interval)
	}

	for name, v := range map[string]float64{
		"cost_bps":     req.CostBps,
		"slippage_bps": req.SlippageBps,
	} {
		if !nonNegative(v) {
			return req, core.Errorf(core.ErrInvalidParameter, "%s must be finite and >= 0, got %v", name, v)
		}
	}
	if math.IsNaN(req.RFRatePct) || math.IsInf(req.RFRatePct, 0) {
		return req, core.Errorf(core.ErrInvalidParameter, "rf_rate_pct must be finite, got %v", req.RFRatePct)
	}

	end := b.now().UTC().Truncate(24 * time.Hour)
	if req.End != nil {
		end = *req.End
	}
	start := end.Add(-b.lookback)
	if req.Start != nil {
		start = *req.Start
	}
	if !end.After(start) {
		return req, core.Errorf(core.ErrInvalidParameter, "end %s must be after start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	req.Start, req.End = &start, &end

	return req, nil
}
