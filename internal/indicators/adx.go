package indicators

import "math"

// adxPeriod is the Wilder smoothing period for the trend-strength
// reading in MarketConditions.
const adxPeriod = 14

// adxStrength computes the Average Directional Index over a tick
// series, treating each price as its own high, low and close. With
// identical highs and lows the true range collapses to the absolute
// tick delta and the directional movements to its signed halves, which
// is exactly what a single-price feed can support. Returns 0 until
// 2x period points are available.
func adxStrength(prices []float64, period int) float64 {
	n := len(prices)
	if period < 1 || n < period*2 {
		return 0
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		delta := prices[i] - prices[i-1]
		tr[i] = math.Abs(delta)
		if delta > 0 {
			plusDM[i] = delta
		} else {
			minusDM[i] = -delta
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlus := smoothWilder(plusDM, period)
	smoothMinus := smoothWilder(minusDM, period)

	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothPlus[i] / smoothTR[i]
		minusDI := 100 * smoothMinus[i] / smoothTR[i]
		if sum := plusDI + minusDI; sum != 0 {
			dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}

	return smoothWilder(dx, period)[n-1]
}

// smoothWilder seeds with a simple average and then folds each value
// in at weight 1/period.
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n < period {
		return result
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + data[i]) / float64(period)
	}
	return result
}
