package backtest

import (
	"time"

	"github.com/newthinker/algotrade/internal/core"
)

// Frictions are per-trade costs in basis points, charged on every bar
// where the signal changes.
type Frictions struct {
	CostBps     float64
	SlippageBps float64
}

// PerTurnover is the return deducted on a bar with a position change.
func (f Frictions) PerTurnover() float64 {
	return (f.CostBps + f.SlippageBps) / 10000
}

// Simulation holds every per-bar series of a run. All slices have the
// length of the input bar series.
type Simulation struct {
	Returns   []float64 // close-to-close returns, 0 on the first bar
	Positions []float64 // signal lagged by one bar
	Gross     []float64
	Turnover  []float64
	Net       []float64
	Equity    []float64
	Trades    []core.Trade
}

// Metrics summarizes an equity curve. Percentages are in percent units.
type Metrics struct {
	AnnReturnPct   float64
	AnnVolPct      float64
	Sharpe         float64
	MaxDrawdownPct float64
	WinRatePct     float64
}

// Benchmarks are reference figures computed from raw prices.
type Benchmarks struct {
	BuyAndHoldPct   float64
	RFRatePct       float64
	ReferenceSymbol string
}

// Request describes a single backtest.
type Request struct {
	Symbol      string
	Strategy    string
	Params      map[string]float64
	Start       *time.Time // inclusive
	End         *time.Time // exclusive
	Interval    string
	CostBps     float64
	SlippageBps float64
	RFRatePct   float64
	Refresh     bool
}

// Result holds the complete backtest output
type Result struct {
	Request        Request
	Strategy       string // strategy description with resolved parameters
	StartDate      time.Time
	EndDate        time.Time
	Bars           int
	PeriodsPerYear int
	Signal         core.SignalSeries
	Simulation     *Simulation
	Metrics        Metrics
	Benchmarks     Benchmarks
	Duration       time.Duration
}

// Trades returns the trade log of the run.
func (r *Result) Trades() []core.Trade {
	if r.Simulation == nil {
		return nil
	}
	return r.Simulation.Trades
}

// Equity returns the equity curve of the run.
func (r *Result) Equity() []float64 {
	if r.Simulation == nil {
		return nil
	}
	return r.Simulation.Equity
}
