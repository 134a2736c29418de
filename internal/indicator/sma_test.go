package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMASeries(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		prices []float64
		period int
		want   []float64
	}{
		{"window of three", []float64{10, 11, 12, 13, 14, 15}, 3, []float64{nan, nan, 11, 12, 13, 14}},
		{"window of one", []float64{4, 8, 6}, 1, []float64{4, 8, 6}},
		{"window equals length", []float64{2, 4, 6, 8}, 4, []float64{nan, nan, nan, 5}},
		{"too short", []float64{1, 2}, 5, []float64{nan, nan}},
		{"zero period", []float64{1, 2, 3}, 0, []float64{nan, nan, nan}},
		{"empty", nil, 3, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SMASeries(tt.prices, tt.period)
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				if math.IsNaN(want) {
					assert.True(t, math.IsNaN(got[i]), "index %d = %f, want NaN", i, got[i])
					continue
				}
				assert.InDelta(t, want, got[i], 1e-9, "index %d", i)
			}
		})
	}
}

func TestSMASeries_LongRollingWindowStaysAccurate(t *testing.T) {
	prices := make([]float64, 5000)
	for i := range prices {
		prices[i] = 100 + 0.1*float64(i%37)
	}

	got := SMASeries(prices, 200)
	for _, i := range []int{199, 2500, 4999} {
		var sum float64
		for _, p := range prices[i-199 : i+1] {
			sum += p
		}
		assert.InDelta(t, sum/200, got[i], 1e-9, "index %d", i)
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
