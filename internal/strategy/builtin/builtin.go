// Package builtin wires the shipped strategies into a strategy engine.
package builtin

import (
	"github.com/newthinker/algotrade/internal/strategy"
	"github.com/newthinker/algotrade/internal/strategy/ma_crossover"
	"github.com/newthinker/algotrade/internal/strategy/rsi_band"
	"go.uber.org/zap"
)

// Register adds every shipped strategy to e.
func Register(e *strategy.Engine) {
	e.Register(ma_crossover.Factory)
	e.Register(rsi_band.Factory)
}

// NewEngine returns an engine with the shipped strategies registered.
func NewEngine(logger *zap.Logger) *strategy.Engine {
	e := strategy.NewEngine(logger)
	Register(e)
	return e
}
