package backtest

import (
	"math"

	"github.com/newthinker/algotrade/internal/core"
)

// Simulate runs a long-only, single-unit simulation of signal over bars.
//
// A signal decided on bar t-1 is held during bar t, so bar 0 is always
// flat. Every change of the signal is a fill on the bar it changes, charged
// (cost + slippage) bps and logged at that bar's open, or its close when
// the open is missing.
func Simulate(bars []core.OHLCV, signal core.SignalSeries, fr Frictions) (*Simulation, error) {
	if err := validateInputs(bars, signal, fr); err != nil {
		return nil, err
	}

	n := len(bars)
	sim := &Simulation{
		Returns:   make([]float64, n),
		Positions: make([]float64, n),
		Gross:     make([]float64, n),
		Turnover:  make([]float64, n),
		Net:       make([]float64, n),
		Equity:    make([]float64, n),
	}

	friction := fr.PerTurnover()
	fees := fr.CostBps / 10000
	slippage := fr.SlippageBps / 10000

	equity := 1.0
	for t := 0; t < n; t++ {
		if t > 0 {
			sim.Returns[t] = bars[t].Close/bars[t-1].Close - 1
			sim.Positions[t] = signal[t-1].Value
			sim.Turnover[t] = math.Abs(signal[t].Value - signal[t-1].Value)
		}

		sim.Gross[t] = sim.Returns[t] * sim.Positions[t]
		sim.Net[t] = sim.Gross[t] - sim.Turnover[t]*friction

		equity *= 1 + sim.Net[t]
		sim.Equity[t] = equity

		if sim.Turnover[t] == 0 {
			continue
		}

		side := core.SideSell
		if signal[t].Value > signal[t-1].Value {
			side = core.SideBuy
		}
		sim.Trades = append(sim.Trades, core.Trade{
			Time:     bars[t].Time,
			Side:     side,
			Price:    bars[t].ExecutionPrice(),
			Qty:      1.0,
			Fees:     fees,
			Slippage: slippage,
		})
	}

	return sim, nil
}

func validateInputs(bars []core.OHLCV, signal core.SignalSeries, fr Frictions) error {
	if len(bars) == 0 {
		return core.Errorf(core.ErrEmptySeries, "price series is empty")
	}
	if !nonNegative(fr.CostBps) || !nonNegative(fr.SlippageBps) {
		return core.Errorf(core.ErrInvalidParameter,
			"cost_bps and slippage_bps must be finite and >= 0, got %v/%v", fr.CostBps, fr.SlippageBps)
	}

	if len(signal) != len(bars) {
		return core.Errorf(core.ErrAlignment, "signal has %d points, price series has %d bars", len(signal), len(bars))
	}
	for i := range bars {
		if !signal[i].Time.Equal(bars[i].Time) {
			return core.Errorf(core.ErrAlignment, "timestamp mismatch at bar %d: signal %s, price %s",
				i, signal[i].Time.Format("2006-01-02T15:04:05Z07:00"), bars[i].Time.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return core.Errorf(core.ErrDataQuality, "timestamps not strictly increasing at bar %d", i)
		}
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			return core.Errorf(core.ErrDataQuality, "invalid close %v at bar %d", b.Close, i)
		}
	}

	for i, p := range signal {
		if p.Value != core.Flat && p.Value != core.Long {
			return core.Errorf(core.ErrDataQuality, "signal value %v at bar %d is not 0 or 1", p.Value, i)
		}
	}

	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
