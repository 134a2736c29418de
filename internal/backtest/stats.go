package backtest

import (
	"math"

	"github.com/newthinker/algotrade/internal/core"
)

// sharpeEpsilon keeps the Sharpe ratio finite on zero-volatility curves.
const sharpeEpsilon = 1e-12

// ValidInterval reports whether interval is a supported bar size.
func ValidInterval(interval string) bool {
	switch interval {
	case "1d", "1wk", "1mo":
		return true
	}
	return false
}

// PeriodsPerYear returns the annualization base for a bar interval.
func PeriodsPerYear(interval string) int {
	switch interval {
	case "1wk":
		return 52
	case "1mo":
		return 12
	default:
		return 252
	}
}

// ComputeMetrics derives performance statistics from an equity curve.
// rfRatePct is the annualized risk-free rate in percent.
func ComputeMetrics(equity []float64, rfRatePct float64, periodsPerYear int) (Metrics, error) {
	if len(equity) < 2 {
		return Metrics{}, core.Errorf(core.ErrEmptySeries, "need at least 2 equity points, got %d", len(equity))
	}
	if periodsPerYear <= 0 {
		return Metrics{}, core.Errorf(core.ErrInvalidParameter, "periods per year must be positive, got %d", periodsPerYear)
	}
	if math.IsNaN(rfRatePct) || math.IsInf(rfRatePct, 0) {
		return Metrics{}, core.Errorf(core.ErrInvalidParameter, "rf_rate_pct must be finite, got %v", rfRatePct)
	}
	// Frictions larger than a bar's move can wipe out the account; a curve
	// at or below zero has no defined compounded return.
	for i, v := range equity {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return Metrics{}, core.Errorf(core.ErrDataQuality, "invalid equity value %v at point %d", v, i)
		}
	}

	returns := periodReturns(equity)
	ppy := float64(periodsPerYear)

	mean := calculateMean(returns)
	stdDev := calculateStdDev(returns, mean)

	rfPerPeriod := rfRatePct / 100 / ppy
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfPerPeriod
	}
	excessMean := calculateMean(excess)
	excessStd := calculateStdDev(excess, excessMean)

	var wins int
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}

	m := Metrics{
		AnnReturnPct:   (math.Pow(1+mean, ppy) - 1) * 100,
		AnnVolPct:      stdDev * math.Sqrt(ppy) * 100,
		Sharpe:         math.Sqrt(ppy) * excessMean / (excessStd + sharpeEpsilon),
		MaxDrawdownPct: calculateMaxDrawdown(equity) * 100,
		WinRatePct:     float64(wins) / float64(len(returns)) * 100,
	}
	for name, v := range map[string]float64{
		"ann_return_pct": m.AnnReturnPct,
		"ann_vol_pct":    m.AnnVolPct,
		"sharpe":         m.Sharpe,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Metrics{}, core.Errorf(core.ErrDataQuality, "%s is not finite (%v)", name, v)
		}
	}
	return m, nil
}

// BuyAndHoldPct is the percentage change from the first to the last close.
func BuyAndHoldPct(bars []core.OHLCV) (float64, error) {
	if len(bars) == 0 {
		return 0, core.Errorf(core.ErrEmptySeries, "price series is empty")
	}
	first, last := bars[0].Close, bars[len(bars)-1].Close
	if first <= 0 || math.IsNaN(first) || math.IsNaN(last) {
		return 0, core.Errorf(core.ErrDataQuality, "invalid closes %v -> %v", first, last)
	}
	return (last/first - 1) * 100, nil
}

// periodReturns computes simple returns between consecutive equity points.
func periodReturns(equity []float64) []float64 {
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		returns[i-1] = equity[i]/equity[i-1] - 1
	}
	return returns
}

// calculateMaxDrawdown returns the most negative decline from the running
// peak as a fraction in [-1, 0].
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD float64
	peak := equity[0]

	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := v/peak - 1; dd < maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

func calculateMean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev is the sample standard deviation. A single observation
// has no spread and yields 0.
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)-1))
}
