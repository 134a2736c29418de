package strategy

import (
	"github.com/newthinker/algotrade/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]float64
}

// DataRequirements specifies what data a strategy needs
type DataRequirements struct {
	MinBars    int // Bars needed before the first non-warm-up signal
	Indicators []string
}

// Strategy turns a bar series into a long/flat signal series.
//
// Instances hold their parameters and are not shared between runs;
// use Engine.New to obtain a fresh, initialized one.
type Strategy interface {
	Name() string
	Description() string
	Defaults() map[string]float64
	RequiredData() DataRequirements
	Init(cfg Config) error
	Generate(bars []core.OHLCV) (core.SignalSeries, error)
}

// Factory creates an uninitialized strategy.
type Factory func() Strategy
