package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// WriteTradesCSV writes the trade log with a header row.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ts", "side", "price", "qty", "fees", "slippage"}); err != nil {
		return err
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.TS, t.Side, formatF(t.Price), formatF(t.Qty), formatF(t.Fees), formatF(t.Slippage),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes one row per bar. dates must match equity in length;
// when nil the bar index is written instead.
func WriteEquityCSV(w io.Writer, dates []string, equity []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bar", "equity"}); err != nil {
		return err
	}
	for i, v := range equity {
		label := strconv.Itoa(i)
		if i < len(dates) {
			label = dates[i]
		}
		if err := cw.Write([]string{label, formatF(v)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
