package run

import (
	"context"
	"sync"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/report"
)

// DefaultMaxRuns bounds the memory store when no size is configured.
const DefaultMaxRuns = 500

// MemoryStore is an in-memory run store.
type MemoryStore struct {
	runs    []report.Response // oldest first
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxRuns
	}
	return &MemoryStore{
		runs:    make([]report.Response, 0, min(maxSize, 64)),
		maxSize: maxSize,
	}
}

// Save adds a run to the store.
func (m *MemoryStore) Save(ctx context.Context, rec report.Response) error {
	if rec.ID == "" {
		return core.Errorf(core.ErrInvalidParameter, "run id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.runs {
		if m.runs[i].ID == rec.ID {
			m.runs[i] = rec
			return nil
		}
	}
	m.runs = append(m.runs, rec)

	// Trim if over capacity (remove oldest)
	if len(m.runs) > m.maxSize {
		m.runs = append([]report.Response(nil), m.runs[len(m.runs)-m.maxSize:]...)
	}

	return nil
}

// Get retrieves a run by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*report.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.runs {
		if m.runs[i].ID == id {
			rec := m.runs[i]
			return &rec, nil
		}
	}
	return nil, core.Errorf(core.ErrNotFound, "run %s", id)
}

// List returns runs matching the filter, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]report.Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []report.Response{}
	for i := len(m.runs) - 1; i >= 0; i-- {
		if filter.matches(m.runs[i]) {
			result = append(result, m.runs[i])
		}
	}

	// Apply offset and limit
	if filter.Offset >= len(result) {
		return []report.Response{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching runs.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.runs {
		if filter.matches(rec) {
			count++
		}
	}
	return count, nil
}
