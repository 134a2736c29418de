package indicator

import "math"

// rsiEpsilon keeps the relative strength finite when there are no losses.
const rsiEpsilon = 1e-12

// RSI calculates Wilder's Relative Strength Index aligned with prices.
//
// Gains and losses of successive closes are smoothed exponentially with
// alpha = 1/period, seeded with the first difference. Index 0 has no
// difference and holds NaN.
func RSI(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	if len(prices) == 0 {
		return out
	}
	out[0] = math.NaN()
	if period <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64

	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)

		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = (1-alpha)*avgGain + alpha*gain
			avgLoss = (1-alpha)*avgLoss + alpha*loss
		}

		rs := avgGain / (avgLoss + rsiEpsilon)
		out[i] = 100 - 100/(1+rs)
	}

	return out
}
