package pricedata

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/newthinker/algotrade/internal/collector"
	"github.com/newthinker/algotrade/internal/core"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache lookup outcomes reported to the Recorder.
const (
	LookupHit     = "hit"
	LookupMiss    = "miss"
	LookupRefresh = "refresh"
	LookupError   = "error"
)

// Recorder receives cache and fetch observations.
type Recorder interface {
	RecordCacheLookup(result string)
	RecordPriceFetch(duration float64)
}

// Loader serves bar series from the cache, fetching from the collector on
// a miss.
type Loader struct {
	source       collector.Collector
	cache        *Cache // nil disables caching
	fetchTimeout time.Duration
	logger       *zap.Logger
	recorder     Recorder
	now          func() time.Time

	group singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCache enables the persistent cache.
func WithCache(c *Cache) LoaderOption {
	return func(l *Loader) { l.cache = c }
}

// WithFetchTimeout bounds each collector fetch.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.fetchTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRecorder reports cache lookups and fetch timings to r.
func WithRecorder(r Recorder) LoaderOption {
	return func(l *Loader) { l.recorder = r }
}

// NewLoader creates a loader fetching from source.
func NewLoader(source collector.Collector, opts ...LoaderOption) *Loader {
	l := &Loader{
		source: source,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FetchHistory returns the normalized bars of q.Symbol in [q.Start, q.End).
func (l *Loader) FetchHistory(ctx context.Context, q core.HistoryQuery) ([]core.OHLCV, error) {
	if !q.End.After(q.Start) {
		return nil, core.Errorf(core.ErrInvalidParameter, "end %s must be after start %s",
			q.End.Format(time.DateOnly), q.Start.Format(time.DateOnly))
	}

	window := q
	if l.cache != nil && !q.Refresh {
		entry, ok, err := l.cache.Get(ctx, q.Symbol, q.Interval)
		switch {
		case err != nil:
			// An unreadable entry is refetched and overwritten.
			l.logger.Warn("price cache entry unusable",
				zap.String("symbol", q.Symbol),
				zap.String("interval", q.Interval),
				zap.Error(err),
			)
			l.record(LookupError)
		case ok && entry.Covers(q.Start, q.End):
			l.record(LookupHit)
			return slice(entry.Bars, q.Start, q.End), nil
		case ok:
			// Widen the fetch so the rewritten entry still serves the old window.
			l.record(LookupMiss)
			if entry.Start.Before(window.Start) {
				window.Start = entry.Start
			}
			if entry.End.After(window.End) {
				window.End = entry.End
			}
		default:
			l.record(LookupMiss)
		}
	} else if l.cache != nil {
		l.record(LookupRefresh)
	}

	entry, err := l.fetch(ctx, window)
	if err != nil {
		return nil, err
	}
	return slice(entry.Bars, q.Start, q.End), nil
}

// fetch loads the window from the collector and caches it. Concurrent
// fetches of the same window share one request. The shared request is
// detached from any single caller's cancellation and bounded by the fetch
// timeout instead; a caller whose ctx ends stops waiting on its own.
func (l *Loader) fetch(ctx context.Context, q core.HistoryQuery) (*Entry, error) {
	key := Key(q.Symbol, q.Interval) + "|" + q.Start.Format(time.RFC3339) + "|" + q.End.Format(time.RFC3339)

	ch := l.group.DoChan(key, func() (any, error) {
		fetchCtx := context.WithoutCancel(ctx)
		if l.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, l.fetchTimeout)
			defer cancel()
		}

		started := time.Now()
		bars, err := l.source.FetchHistory(fetchCtx, core.HistoryQuery{
			Symbol:   q.Symbol,
			Interval: q.Interval,
			Start:    q.Start,
			End:      q.End,
		})
		if l.recorder != nil {
			l.recorder.RecordPriceFetch(time.Since(started).Seconds())
		}
		if err != nil {
			if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
				return nil, core.WrapError(core.ErrCollectorTimeout, err)
			}
			return nil, err
		}

		entry := &Entry{
			Symbol:    q.Symbol,
			Interval:  q.Interval,
			FetchedAt: l.now().UTC(),
			Start:     q.Start,
			End:       q.End,
			Bars:      Normalize(bars),
		}
		if len(entry.Bars) == 0 {
			return nil, core.Errorf(core.ErrNoData, "no usable bars for %s between %s and %s",
				q.Symbol, q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly))
		}

		l.logger.Debug("fetched price history",
			zap.String("source", l.source.Name()),
			zap.String("symbol", q.Symbol),
			zap.String("interval", q.Interval),
			zap.Int("bars", len(entry.Bars)),
		)

		if l.cache != nil {
			if err := l.cache.Put(fetchCtx, entry); err != nil {
				l.logger.Warn("failed to write price cache",
					zap.String("symbol", q.Symbol),
					zap.Error(err),
				)
			}
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			l.logger.Debug("shared in-flight price fetch", zap.String("key", key))
		}
		return res.Val.(*Entry), nil
	}
}

func (l *Loader) record(result string) {
	if l.recorder != nil {
		l.recorder.RecordCacheLookup(result)
	}
}

// Normalize returns bars sorted by time with non-finite or non-positive
// closes dropped. Of bars sharing a timestamp the last one wins.
func Normalize(bars []core.OHLCV) []core.OHLCV {
	out := make([]core.OHLCV, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) || b.Close <= 0 {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	deduped := out[:0]
	for i, b := range out {
		if i+1 < len(out) && out[i+1].Time.Equal(b.Time) {
			continue
		}
		deduped = append(deduped, b)
	}
	return deduped
}

// slice returns the bars with start <= Time < end. bars must be sorted.
func slice(bars []core.OHLCV, start, end time.Time) []core.OHLCV {
	lo := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(start) })
	hi := sort.Search(len(bars), func(i int) bool { return !bars[i].Time.Before(end) })
	if lo >= hi {
		return nil
	}
	out := make([]core.OHLCV, hi-lo)
	copy(out, bars[lo:hi])
	return out
}
