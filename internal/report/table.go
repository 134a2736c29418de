package report

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummary prints a human-readable summary of r.
func WriteSummary(w io.Writer, r Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Symbol:\t%s\n", r.Config.Symbol)
	fmt.Fprintf(tw, "Strategy:\t%s %s\n", r.Config.Strategy, formatParams(r.Config.Params))
	fmt.Fprintf(tw, "Period:\t%s to %s (%s, %d bars)\n", r.Config.Start, r.Config.End, r.Config.Interval, len(r.EquityCurve))
	fmt.Fprintf(tw, "Frictions:\tcost %g bps, slippage %g bps\n", r.Config.CostBps, r.Config.SlippageBps)
	fmt.Fprintln(tw, "\t")
	fmt.Fprintf(tw, "Annual return:\t%.2f%%\n", r.Summary.AnnReturnPct)
	fmt.Fprintf(tw, "Annual volatility:\t%.2f%%\n", r.Summary.AnnVolPct)
	fmt.Fprintf(tw, "Sharpe (rf %g%%):\t%.2f\n", r.Benchmarks.RFRatePct, r.Summary.Sharpe)
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", r.Summary.MaxDrawdownPct)
	fmt.Fprintf(tw, "Win rate:\t%.2f%%\n", r.Summary.WinRatePct)
	fmt.Fprintf(tw, "Trades:\t%d\n", r.Summary.Trades)
	if n := len(r.EquityCurve); n > 0 {
		fmt.Fprintf(tw, "Final equity:\t%.4f\n", r.EquityCurve[n-1])
	}
	fmt.Fprintf(tw, "Buy & hold:\t%.2f%%\n", r.Benchmarks.BuyAndHoldReturnPct)

	return tw.Flush()
}

// WriteTradeTable prints the trade log as aligned columns.
func WriteTradeTable(w io.Writer, trades []Trade) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tPRICE\tFEES\tSLIPPAGE")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%g\t%g\n", t.TS, t.Side, t.Price, t.Fees, t.Slippage)
	}
	return tw.Flush()
}

func formatParams(params map[string]float64) string {
	if len(params) == 0 {
		return "(defaults)"
	}
	keys := sortedKeys(params)
	s := "("
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%g", k, params[k])
	}
	return s + ")"
}
