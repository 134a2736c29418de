package rsi_band

import (
	"fmt"
	"math"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/indicator"
	"github.com/newthinker/algotrade/internal/strategy"
)

const (
	defaultPeriod = 14
	defaultLower  = 30.0
	defaultUpper  = 70.0
)

// RSIBand enters when RSI drops below the lower band and exits when it
// rises above the upper band. Inside the band the previous exposure is kept.
type RSIBand struct {
	period int
	lower  float64
	upper  float64
}

// New creates a new RSI band strategy
func New(period int, lower, upper float64) *RSIBand {
	return &RSIBand{period: period, lower: lower, upper: upper}
}

// Factory builds RSI band strategies with the default period and bands.
func Factory() strategy.Strategy {
	return New(defaultPeriod, defaultLower, defaultUpper)
}

func (r *RSIBand) Name() string {
	return "rsi"
}

func (r *RSIBand) Description() string {
	return fmt.Sprintf("RSI Band (%d, %.0f/%.0f)", r.period, r.lower, r.upper)
}

func (r *RSIBand) Defaults() map[string]float64 {
	return map[string]float64{"period": defaultPeriod, "lower": defaultLower, "upper": defaultUpper}
}

// RequiredData needs two bars: RSI is defined from the first close-to-close move.
func (r *RSIBand) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		MinBars:    2,
		Indicators: []string{"RSI"},
	}
}

func (r *RSIBand) Init(cfg strategy.Config) error {
	period, err := strategy.IntParam(cfg.Params, "period", r.period)
	if err != nil {
		return err
	}
	lower, err := strategy.FloatParam(cfg.Params, "lower", r.lower)
	if err != nil {
		return err
	}
	upper, err := strategy.FloatParam(cfg.Params, "upper", r.upper)
	if err != nil {
		return err
	}

	if lower < 0 || upper > 100 {
		return core.Errorf(core.ErrInvalidParameter, "bands must lie within 0-100, got %v/%v", lower, upper)
	}
	if lower >= upper {
		return core.Errorf(core.ErrInvalidParameter, "lower (%v) must be below upper (%v)", lower, upper)
	}

	r.period = period
	r.lower = lower
	r.upper = upper
	return nil
}

func (r *RSIBand) Generate(bars []core.OHLCV) (core.SignalSeries, error) {
	if err := strategy.CheckBars(bars, r.RequiredData().MinBars); err != nil {
		return nil, err
	}

	rsi := indicator.RSI(core.Closes(bars), r.period)

	values := make([]float64, len(bars))
	values[0] = core.Flat
	for i := 1; i < len(bars); i++ {
		switch {
		case math.IsNaN(rsi[i]):
			values[i] = values[i-1]
		case rsi[i] < r.lower:
			values[i] = core.Long
		case rsi[i] > r.upper:
			values[i] = core.Flat
		default:
			values[i] = values[i-1]
		}
	}

	return core.NewSignalSeries(bars, values), nil
}
