package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/algotrade/internal/backtest"
	"github.com/newthinker/algotrade/internal/report"
	"github.com/spf13/cobra"
)

var (
	backtestSymbol      string
	backtestFrom        string
	backtestTo          string
	backtestParams      []string
	backtestInterval    string
	backtestCostBps     float64
	backtestSlippageBps float64
	backtestRF          float64
	backtestRefresh     bool
	backtestJSON        bool
	backtestShowTrades  bool
	backtestTradesCSV   string
	backtestEquityCSV   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [strategy]",
	Short: "Run backtest on a strategy",
	Long: `Run a strategy against historical data and show performance statistics.

Strategies: sma_crossover (params fast, slow) and rsi (params period, lower, upper).
Dates are YYYY-MM-DD; the end date is exclusive. Without dates the configured
lookback window ending today is used.`,
	Example: `  algotrade backtest sma_crossover --symbol SPY --from 2020-01-01 --to 2024-01-01 --param fast=20 --param slow=50
  algotrade backtest rsi --symbol EURUSD=X --cost-bps 2 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runBacktest,
}

func init() {
	f := backtestCmd.Flags()
	f.StringVar(&backtestSymbol, "symbol", "", "Symbol to backtest (required)")
	f.StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	f.StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD (exclusive)")
	f.StringArrayVar(&backtestParams, "param", nil, "Strategy parameter name=value (repeatable)")
	f.StringVar(&backtestInterval, "interval", "", "Bar interval: 1d, 1wk or 1mo (default from config)")
	f.Float64Var(&backtestCostBps, "cost-bps", 0, "Commission per unit of turnover, in basis points")
	f.Float64Var(&backtestSlippageBps, "slippage-bps", 0, "Slippage per unit of turnover, in basis points")
	f.Float64Var(&backtestRF, "rf", 0, "Annual risk-free rate in percent")
	f.BoolVar(&backtestRefresh, "refresh", false, "Bypass the price cache")
	f.BoolVar(&backtestJSON, "json", false, "Print the full result as JSON")
	f.BoolVar(&backtestShowTrades, "trades", false, "Print the trade log")
	f.StringVar(&backtestTradesCSV, "trades-csv", "", "Write the trade log to a CSV file")
	f.StringVar(&backtestEquityCSV, "equity-csv", "", "Write the equity curve to a CSV file")

	backtestCmd.MarkFlagRequired("symbol")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	req, err := buildBacktestRequest(cmd, args[0])
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("cost-bps") {
		req.CostBps = cfg.Backtest.CostBps
	}
	if !flags.Changed("slippage-bps") {
		req.SlippageBps = cfg.Backtest.SlippageBps
	}
	if !flags.Changed("rf") {
		req.RFRatePct = cfg.Backtest.RFRatePct
	}

	eng, err := newEngine(cfg, log, nil)
	if err != nil {
		return err
	}

	result, err := eng.backtester.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	resp := report.FromResult(uuid.NewString(), time.Now(), result)

	if backtestTradesCSV != "" {
		if err := writeFile(backtestTradesCSV, func(w io.Writer) error {
			return report.WriteTradesCSV(w, resp.Trades)
		}); err != nil {
			return err
		}
	}
	if backtestEquityCSV != "" {
		if err := writeFile(backtestEquityCSV, func(w io.Writer) error {
			return report.WriteEquityCSV(w, report.Dates(result), resp.EquityCurve)
		}); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if backtestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(out, "=== Backtest: %s ===\n", result.Strategy)
	if err := report.WriteSummary(out, resp); err != nil {
		return err
	}
	if backtestShowTrades && len(resp.Trades) > 0 {
		fmt.Fprintln(out)
		return report.WriteTradeTable(out, resp.Trades)
	}
	return nil
}

// buildBacktestRequest turns the command line into a request.
func buildBacktestRequest(cmd *cobra.Command, strategyName string) (backtest.Request, error) {
	req := backtest.Request{
		Symbol:      backtestSymbol,
		Strategy:    strategyName,
		Interval:    backtestInterval,
		CostBps:     backtestCostBps,
		SlippageBps: backtestSlippageBps,
		RFRatePct:   backtestRF,
		Refresh:     backtestRefresh,
	}

	params, err := parseParams(backtestParams)
	if err != nil {
		return req, err
	}
	req.Params = params

	if req.Start, err = parseDateFlag("from", backtestFrom); err != nil {
		return req, err
	}
	if req.End, err = parseDateFlag("to", backtestTo); err != nil {
		return req, err
	}
	if req.Start != nil && req.End != nil && !req.End.After(*req.Start) {
		return req, fmt.Errorf("end date must be after start date")
	}
	return req, nil
}

// parseParams parses name=value pairs.
func parseParams(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q (expected name=value)", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --param %q: value must be a number", pair)
		}
		params[name] = v
	}
	return params, nil
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s date format (expected YYYY-MM-DD): %w", name, err)
	}
	return &t, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
