// Package run persists completed backtest reports.
package run

import (
	"context"

	"github.com/newthinker/algotrade/internal/report"
)

// Store defines the interface for run history persistence.
type Store interface {
	// Save persists a completed run. The record must carry an ID.
	Save(ctx context.Context, rec report.Response) error

	// Get retrieves a run by its ID.
	Get(ctx context.Context, id string) (*report.Response, error)

	// List retrieves runs matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]report.Response, error)

	// Count returns the number of runs matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Symbol   string
	Strategy string
	Limit    int
	Offset   int
}

func (f ListFilter) matches(rec report.Response) bool {
	if f.Symbol != "" && rec.Config.Symbol != f.Symbol {
		return false
	}
	if f.Strategy != "" && rec.Config.Strategy != f.Strategy {
		return false
	}
	return true
}
