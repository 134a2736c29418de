package core

import (
	"math"
	"testing"
	"time"
)

func TestOHLCV_ExecutionPrice(t *testing.T) {
	tests := []struct {
		name string
		bar  OHLCV
		want float64
	}{
		{"open present", OHLCV{Open: 101, Close: 102}, 101},
		{"open missing", OHLCV{Open: 0, Close: 102}, 102},
		{"open negative", OHLCV{Open: -1, Close: 102}, 102},
		{"open infinite", OHLCV{Open: math.Inf(1), Close: 102}, 102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bar.ExecutionPrice(); got != tt.want {
				t.Errorf("ExecutionPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewSignalSeries(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []OHLCV{
		{Close: 1, Time: base},
		{Close: 2, Time: base.AddDate(0, 0, 1)},
	}

	s := NewSignalSeries(bars, []float64{Flat, Long})

	if len(s) != 2 {
		t.Fatalf("expected 2 points, got %d", len(s))
	}
	if !s[1].Time.Equal(bars[1].Time) || s[1].Value != Long {
		t.Errorf("unexpected point: %+v", s[1])
	}

	values := s.Values()
	if values[0] != 0 || values[1] != 1 {
		t.Errorf("Values() = %v", values)
	}
}

func TestCloses(t *testing.T) {
	got := Closes([]OHLCV{{Close: 3}, {Close: 4}})
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("Closes() = %v", got)
	}
}

func TestSide_Constants(t *testing.T) {
	if string(SideBuy) != "buy" || string(SideSell) != "sell" {
		t.Error("unexpected side values")
	}
}
