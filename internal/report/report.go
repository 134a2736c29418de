// Package report shapes backtest results for the HTTP API and the CLI.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/core"
	"github.com/shopspring/decimal"
)

const (
	statPlaces     = 2 // percentages and ratios
	fractionPlaces = 8 // per-fill fees and slippage
)

// Summary is the rounded metrics block of a response.
type Summary struct {
	AnnReturnPct   float64 `json:"ann_return_pct"`
	AnnVolPct      float64 `json:"ann_vol_pct"`
	Sharpe         float64 `json:"sharpe"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	WinRatePct     float64 `json:"win_rate_pct"`
	Trades         int     `json:"trades"`
}

// Trade is one fill as exposed to clients.
type Trade struct {
	TS       string  `json:"ts"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Qty      float64 `json:"qty"`
	Fees     float64 `json:"fees"`
	Slippage float64 `json:"slippage"`
}

// Benchmarks are reference returns for the same window.
type Benchmarks struct {
	BuyAndHoldReturnPct float64 `json:"buy_and_hold_return_pct"`
	RFRatePct           float64 `json:"rf_rate_pct"`
	ReferenceSymbol     string  `json:"reference_symbol"`
}

// Config echoes the resolved inputs of a run.
type Config struct {
	Symbol      string             `json:"symbol"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	Strategy    string             `json:"strategy"`
	Params      map[string]float64 `json:"params"`
	Interval    string             `json:"interval"`
	CostBps     float64            `json:"cost_bps"`
	SlippageBps float64            `json:"slippage_bps"`
	RFRatePct   float64            `json:"rf_rate_pct"`
}

// Response is the complete record of one backtest.
type Response struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Summary     Summary    `json:"summary"`
	EquityCurve []float64  `json:"equity_curve"`
	Trades      []Trade    `json:"trades"`
	Benchmarks  Benchmarks `json:"benchmarks"`
	Config      Config     `json:"config"`
}

// FromResult builds the response record for a completed run.
func FromResult(id string, createdAt time.Time, r *backtest.Result) Response {
	trades := r.Trades()
	out := Response{
		ID:        id,
		CreatedAt: createdAt.UTC(),
		Summary: Summary{
			AnnReturnPct:   Round(r.Metrics.AnnReturnPct, statPlaces),
			AnnVolPct:      Round(r.Metrics.AnnVolPct, statPlaces),
			Sharpe:         Round(r.Metrics.Sharpe, statPlaces),
			MaxDrawdownPct: Round(r.Metrics.MaxDrawdownPct, statPlaces),
			WinRatePct:     Round(r.Metrics.WinRatePct, statPlaces),
			Trades:         len(trades),
		},
		EquityCurve: append([]float64{}, r.Equity()...),
		Trades:      make([]Trade, len(trades)),
		Benchmarks: Benchmarks{
			BuyAndHoldReturnPct: Round(r.Benchmarks.BuyAndHoldPct, statPlaces),
			RFRatePct:           r.Benchmarks.RFRatePct,
			ReferenceSymbol:     r.Benchmarks.ReferenceSymbol,
		},
		Config: configEcho(r.Request),
	}
	for i, t := range trades {
		out.Trades[i] = fromTrade(t)
	}
	return out
}

func fromTrade(t core.Trade) Trade {
	return Trade{
		TS:       t.Time.UTC().Format(time.RFC3339),
		Side:     string(t.Side),
		Price:    t.Price,
		Qty:      t.Qty,
		Fees:     Round(t.Fees, fractionPlaces),
		Slippage: Round(t.Slippage, fractionPlaces),
	}
}

func configEcho(req backtest.Request) Config {
	params := make(map[string]float64, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}
	c := Config{
		Symbol:      req.Symbol,
		Strategy:    req.Strategy,
		Params:      params,
		Interval:    req.Interval,
		CostBps:     req.CostBps,
		SlippageBps: req.SlippageBps,
		RFRatePct:   req.RFRatePct,
	}
	if req.Start != nil {
		c.Start = req.Start.Format(time.DateOnly)
	}
	if req.End != nil {
		c.End = req.End.Format(time.DateOnly)
	}
	return c
}

// Round rounds v half away from zero to places decimals. Non-finite
// values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dates returns the bar dates of r, aligned with its equity curve.
func Dates(r *backtest.Result) []string {
	out := make([]string, len(r.Signal))
	for i, p := range r.Signal {
		out[i] = p.Time.UTC().Format(time.DateOnly)
	}
	return out
}
