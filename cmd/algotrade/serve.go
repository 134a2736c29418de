package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/algotrade/internal/api"
	apihandler "github.com/newthinker/algotrade/internal/api/handler/api"
	"github.com/newthinker/algotrade/internal/api/job"
	"github.com/newthinker/algotrade/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the backtest HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	var reg *metrics.Registry
	metricsPath := ""
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		metricsPath = cfg.Metrics.Path
	}

	eng, err := newEngine(cfg, log, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs, closeRuns, err := newRunStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer closeRuns()

	log.Info("starting algotrade server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Data.Provider),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.String("run_store", cfg.Storage.Runs.Type),
	)

	server, err := api.NewServer(api.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		APIKey:          cfg.Server.APIKey,
		CORSOrigins:     cfg.Server.CORSOrigins,
		MetricsPath:     metricsPath,
		BacktestTimeout: cfg.Server.BacktestTimeout,
		Defaults: apihandler.Defaults{
			Strategy:    cfg.Backtest.Strategy,
			CostBps:     cfg.Backtest.CostBps,
			SlippageBps: cfg.Backtest.SlippageBps,
			RFRatePct:   cfg.Backtest.RFRatePct,
		},
	}, api.Dependencies{
		Backtester: eng.backtester,
		Strategies: eng.strategies,
		Runs:       runs,
		Jobs:       job.NewStore(cfg.Server.MaxJobs, cfg.JobTTL()),
		Metrics:    reg,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down algotrade server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
