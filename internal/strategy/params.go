package strategy

import (
	"math"

	"github.com/newthinker/algotrade/internal/core"
)

// IntParam reads a positive whole-number parameter, falling back to def
// when the key is absent.
func IntParam(params map[string]float64, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be a whole number, got %v", name, v)
	}
	if v < 1 {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be positive, got %v", name, v)
	}
	return int(v), nil
}

// FloatParam reads a finite parameter, falling back to def when the key is absent.
func FloatParam(params map[string]float64, name string, def float64) (float64, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be finite, got %v", name, v)
	}
	return v, nil
}

// CheckBars verifies a bar series is long enough and carries usable closes.
func CheckBars(bars []core.OHLCV, minBars int) error {
	if len(bars) == 0 {
		return core.Errorf(core.ErrInsufficientData, "price series is empty")
	}
	if len(bars) < minBars {
		return core.Errorf(core.ErrInsufficientData, "need at least %d bars, got %d", minBars, len(bars))
	}
	for i, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return core.Errorf(core.ErrDataQuality, "close at bar %d is not finite", i)
		}
	}
	return nil
}

func copyDefaults(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
