// Package pricedata loads bar series through a persistent cache in front of
// a market data collector.
package pricedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/algotrade/internal/core"
	"github.com/newthinker/algotrade/internal/storage/archive"
)

const keyPrefix = "prices"

// Entry is one cached bar series and the window it was fetched for.
type Entry struct {
	Symbol    string       `json:"symbol"`
	Interval  string       `json:"interval"`
	FetchedAt time.Time    `json:"fetched_at"`
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"` // exclusive
	Bars      []core.OHLCV `json:"bars"`
}

// Covers reports whether the entry was fetched for a window containing [start, end).
func (e *Entry) Covers(start, end time.Time) bool {
	return !start.Before(e.Start) && !end.After(e.End)
}

// EntryInfo summarizes an entry without its bars.
type EntryInfo struct {
	Key       string    `json:"key"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	FetchedAt time.Time `json:"fetched_at"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Bars      int       `json:"bars"`
}

// Cache persists bar series in archive storage.
type Cache struct {
	store  archive.Storage
	maxAge time.Duration
	now    func() time.Time
}

// NewCache creates a cache over store. A zero maxAge never expires entries.
func NewCache(store archive.Storage, maxAge time.Duration) *Cache {
	return &Cache{store: store, maxAge: maxAge, now: time.Now}
}

// Key returns the storage key for a (symbol, interval) pair.
func Key(symbol, interval string) string {
	name := strings.ReplaceAll(symbol, "=", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return path.Join(keyPrefix, fmt.Sprintf("%s_%s.json", name, interval))
}

// Get returns the cached entry. ok is false for missing or expired entries;
// err is non-nil only when the entry exists but cannot be used.
func (c *Cache) Get(ctx context.Context, symbol, interval string) (entry *Entry, ok bool, err error) {
	data, err := c.store.Read(ctx, Key(symbol, interval))
	if errors.Is(err, archive.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, core.WrapError(core.ErrCacheFailed, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, core.Errorf(core.ErrCacheFailed, "decoding %s: %w", Key(symbol, interval), err)
	}
	if len(e.Bars) == 0 {
		return nil, false, nil
	}
	if c.maxAge > 0 && c.now().Sub(e.FetchedAt) > c.maxAge {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores e, replacing any previous entry for its key.
func (c *Cache) Put(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return core.WrapError(core.ErrCacheFailed, err)
	}
	if err := c.store.Write(ctx, Key(e.Symbol, e.Interval), data); err != nil {
		return core.WrapError(core.ErrCacheFailed, err)
	}
	return nil
}

// List summarizes every cached entry. Unreadable entries are skipped.
func (c *Cache) List(ctx context.Context) ([]EntryInfo, error) {
	keys, err := c.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrCacheFailed, err)
	}

	infos := make([]EntryInfo, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := c.store.Read(ctx, key)
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		infos = append(infos, EntryInfo{
			Key:       key,
			Symbol:    e.Symbol,
			Interval:  e.Interval,
			FetchedAt: e.FetchedAt,
			Start:     e.Start,
			End:       e.End,
			Bars:      len(e.Bars),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Clear removes cached entries for symbol, or all entries when symbol is
// empty. It returns the number of entries removed.
func (c *Cache) Clear(ctx context.Context, symbol string) (int, error) {
	keys, err := c.store.List(ctx, keyPrefix)
	if err != nil {
		return 0, core.WrapError(core.ErrCacheFailed, err)
	}

	var prefix string
	if symbol != "" {
		prefix = strings.TrimSuffix(Key(symbol, ""), ".json")
	}

	var removed int
	for _, key := range keys {
		if prefix != "" {
			// "SPY" must not match "SPY=X" stored as "SPY_X_1d.json"
			rest, found := strings.CutPrefix(key, prefix)
			if !found || strings.Contains(rest, "_") {
				continue
			}
		}
		if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, archive.ErrNotExist) {
			return removed, core.WrapError(core.ErrCacheFailed, err)
		}
		removed++
	}
	return removed, nil
}

// Remove deletes the entry for one (symbol, interval) pair and reports
// whether there was one.
func (c *Cache) Remove(ctx context.Context, symbol, interval string) (bool, error) {
	key := Key(symbol, interval)
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, core.WrapError(core.ErrCacheFailed, err)
	}
	if !ok {
		return false, nil
	}
	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, archive.ErrNotExist) {
		return false, core.WrapError(core.ErrCacheFailed, err)
	}
	return true, nil
}
