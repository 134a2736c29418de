package main

import (
	"context"
	"fmt"

	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/collector"
	"github.com/newthinker/algotrade/internal/collector/yahoo"
	"github.com/newthinker/algotrade/internal/config"
	"github.com/newthinker/algotrade/internal/logger"
	"github.com/newthinker/algotrade/internal/metrics"
	"github.com/newthinker/algotrade/internal/pricedata"
	"github.com/newthinker/algotrade/internal/storage/archive"
	"github.com/newthinker/algotrade/internal/storage/run"
	"github.com/newthinker/algotrade/internal/strategy"
	"github.com/newthinker/algotrade/internal/strategy/builtin"
	"go.uber.org/zap"
)

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Development: debug,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
	})
}

// newCollector returns the configured market data collector.
func newCollector(cfg *config.Config) (collector.Collector, error) {
	return collector.NewRegistry(yahoo.New()).Open(cfg.Data.Provider, collector.Config{
		BaseURL: cfg.Data.BaseURL,
		Timeout: cfg.Data.FetchTimeout,
	})
}

// newCache returns the price cache, or nil when caching is disabled.
func newCache(cfg *config.Config) (*pricedata.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	var store archive.Storage
	var err error
	switch cfg.Cache.Type {
	case "s3":
		store, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.Cache.S3.Bucket,
			Endpoint:  cfg.Cache.S3.Endpoint,
			Region:    cfg.Cache.S3.Region,
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
			Prefix:    cfg.Cache.S3.Prefix,
		})
	default:
		store, err = archive.NewLocalFS(cfg.Cache.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s price cache: %w", cfg.Cache.Type, err)
	}
	return pricedata.NewCache(store, cfg.Cache.MaxAge), nil
}

// engine bundles the services a backtest needs.
type engine struct {
	cache      *pricedata.Cache
	strategies *strategy.Engine
	backtester *backtest.Backtester
}

// newEngine wires collector, cache and strategies into a backtester.
// reg may be nil.
func newEngine(cfg *config.Config, log *zap.Logger, reg *metrics.Registry) (*engine, error) {
	source, err := newCollector(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := newCache(cfg)
	if err != nil {
		return nil, err
	}

	loaderOpts := []pricedata.LoaderOption{
		pricedata.WithFetchTimeout(cfg.Data.FetchTimeout),
		pricedata.WithLogger(log),
	}
	if cache != nil {
		loaderOpts = append(loaderOpts, pricedata.WithCache(cache))
	}
	btOpts := []backtest.Option{
		backtest.WithLogger(log),
		backtest.WithLookback(cfg.Lookback()),
		backtest.WithDefaultInterval(cfg.Data.Interval),
	}
	if cfg.Backtest.PeriodsPerYear > 0 {
		btOpts = append(btOpts, backtest.WithPeriodsPerYear(cfg.Backtest.PeriodsPerYear))
	}
	if reg != nil {
		loaderOpts = append(loaderOpts, pricedata.WithRecorder(reg))
		btOpts = append(btOpts, backtest.WithRecorder(reg))
	}

	strategies := builtin.NewEngine(log)
	loader := pricedata.NewLoader(source, loaderOpts...)
	return &engine{
		cache:      cache,
		strategies: strategies,
		backtester: backtest.New(loader, strategies, btOpts...),
	}, nil
}

// newRunStore returns the configured run history store and its closer.
func newRunStore(ctx context.Context, cfg *config.Config) (run.Store, func(), error) {
	switch cfg.Storage.Runs.Type {
	case "postgres":
		store, err := run.NewPostgresStore(ctx, cfg.Storage.Runs.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return run.NewMemoryStore(cfg.Storage.Runs.MaxRuns), func() {}, nil
	}
}
