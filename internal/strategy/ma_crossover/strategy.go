package ma_crossover

import (
	"fmt"
	"math"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/indicator"
	"github.com/newthinker/algotrade/internal/strategy"
)

const (
	defaultFast = 10
	defaultSlow = 30
)

// MACrossover holds long while the fast simple moving average of the close
// is above the slow one.
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// Factory builds crossover strategies with the default windows.
func Factory() strategy.Strategy {
	return New(defaultFast, defaultSlow)
}

func (m *MACrossover) Name() string {
	return "sma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("SMA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) Defaults() map[string]float64 {
	return map[string]float64{"fast": defaultFast, "slow": defaultSlow}
}

func (m *MACrossover) RequiredData() strategy.DataRequirements {
	return strategy.DataRequirements{
		MinBars:    m.slowPeriod,
		Indicators: []string{"SMA"},
	}
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	fast, err := strategy.IntParam(cfg.Params, "fast", m.fastPeriod)
	if err != nil {
		return err
	}
	slow, err := strategy.IntParam(cfg.Params, "slow", m.slowPeriod)
	if err != nil {
		return err
	}
	if slow <= fast {
		return core.Errorf(core.ErrInvalidParameter, "slow (%d) must be greater than fast (%d)", slow, fast)
	}

	m.fastPeriod = fast
	m.slowPeriod = slow
	return nil
}

func (m *MACrossover) Generate(bars []core.OHLCV) (core.SignalSeries, error) {
	if err := strategy.CheckBars(bars, m.RequiredData().MinBars); err != nil {
		return nil, err
	}

	prices := core.Closes(bars)
	fastMA := indicator.SMASeries(prices, m.fastPeriod)
	slowMA := indicator.SMASeries(prices, m.slowPeriod)

	values := make([]float64, len(bars))
	for i := range bars {
		// Warm-up stays flat: NaN compares false.
		if math.IsNaN(fastMA[i]) || math.IsNaN(slowMA[i]) {
			continue
		}
		if fastMA[i] > slowMA[i] {
			values[i] = core.Long
		}
	}

	return core.NewSignalSeries(bars, values), nil
}
