package strategy

import (
	"sort"
	"sync"

	"github.com/newthinker/algotrade/internal/core"
	"go.uber.org/zap"
)

// Info describes a registered strategy.
type Info struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Defaults    map[string]float64 `json:"defaults"`
}

// Engine manages strategy factories
type Engine struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a strategy factory under the name its strategies report
func (e *Engine) Register(f Factory) {
	name := f().Name()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[name] = f
}

// Has reports whether a strategy is registered
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.factories[name]
	return ok
}

// New creates a fresh strategy initialized with params.
func (e *Engine) New(name string, params map[string]float64) (Strategy, error) {
	e.mu.RLock()
	f, ok := e.factories[name]
	e.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.ErrInvalidParameter, "unsupported strategy: %q", name)
	}

	s := f()
	if err := s.Init(Config{Params: params}); err != nil {
		e.logger.Debug("strategy init rejected",
			zap.String("strategy", name),
			zap.Any("params", params),
			zap.Error(err),
		)
		return nil, err
	}
	return s, nil
}

// Names returns registered strategy names in sorted order
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]string, 0, len(e.factories))
	for name := range e.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Describe lists every registered strategy with its default parameters
func (e *Engine) Describe() []Info {
	names := e.Names()

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Info, 0, len(names))
	for _, name := range names {
		s := e.factories[name]()
		result = append(result, Info{
			Name:        name,
			Description: s.Description(),
			Defaults:    copyDefaults(s.Defaults()),
		})
	}
	return result
}
