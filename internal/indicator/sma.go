package indicator

import "math"

// SMASeries returns the simple moving average of prices aligned index for
// index with the input. Indexes before period-1 hold NaN, as does every
// index when period is not positive.
func SMASeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	var sum float64
	for i, p := range prices {
		sum += p
		if period > 0 && i >= period {
			sum -= prices[i-period]
		}
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}
