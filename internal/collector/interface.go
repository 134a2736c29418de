package collector

import (
	"context"
	"time"

	"github.com/newthinker/algotrade/internal/core"
)

// Config holds collector configuration
type Config struct {
	BaseURL string        // override of the provider endpoint, mainly for tests
	Timeout time.Duration // per-request HTTP timeout
	Extra   map[string]any
}

// Collector defines the interface for historical market data providers
type Collector interface {
	Name() string
	Init(cfg Config) error

	// FetchHistory returns bars for q ordered by time. q.End is exclusive.
	FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error)
}
