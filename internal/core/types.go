package core

import (
	"math"
	"time"
)

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // "1d", "1wk", "1mo"
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	Time     time.Time `json:"time"`
}

// HasOpen reports whether the bar carries a usable opening price.
// Providers record a missing open as zero.
func (b OHLCV) HasOpen() bool {
	return b.Open > 0 && !math.IsInf(b.Open, 0)
}

// ExecutionPrice is the price a fill on this bar is recorded at:
// the open when present, the close otherwise.
func (b OHLCV) ExecutionPrice() float64 {
	if b.HasOpen() {
		return b.Open
	}
	return b.Close
}

// Closes extracts closing prices in bar order.
func Closes(bars []OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Exposure values a signal may take.
const (
	Flat = 0.0
	Long = 1.0
)

// SignalPoint is the desired exposure decided with the information
// available at the close of the bar stamped Time.
type SignalPoint struct {
	Time  time.Time
	Value float64
}

// SignalSeries is a signal aligned one-to-one with a bar series.
type SignalSeries []SignalPoint

// Values returns the raw signal values.
func (s SignalSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// NewSignalSeries stamps values with the timestamps of bars.
// The caller guarantees len(values) == len(bars).
func NewSignalSeries(bars []OHLCV, values []float64) SignalSeries {
	out := make(SignalSeries, len(bars))
	for i, b := range bars {
		out[i] = SignalPoint{Time: b.Time, Value: values[i]}
	}
	return out
}

// Side is the direction of a simulated fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is a single entry or exit fill. Fees and Slippage are fractions
// of notional, Qty is always one notional unit.
type Trade struct {
	Time     time.Time
	Side     Side
	Price    float64
	Qty      float64
	Fees     float64
	Slippage float64
}

// HistoryQuery selects a bar series. End is exclusive.
type HistoryQuery struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
	Refresh  bool // bypass cached data
}
