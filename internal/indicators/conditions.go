package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/volatility"

	"github.com/quantlabhq/tradelab/internal/strategy"
)

// MarketConditions is the descriptive market snapshot attached to
// versions and fed to the advisor. The first four numeric fields form
// the similarity vector used for version ranking; trend strength and
// band width are advisor context only and never feed signal scoring.
type MarketConditions struct {
	Price         float64 `json:"price"`
	RSI           float64 `json:"rsi"`
	Volatility    float64 `json:"volatility"`
	Trend         float64 `json:"trend"`
	Momentum      float64 `json:"momentum"`
	TrendStrength float64 `json:"trend_strength,omitempty"`
	BandWidthPct  float64 `json:"band_width_pct,omitempty"`
}

// Conditions derives the market snapshot from a price series.
func Conditions(prices []float64, cfg strategy.GraphConfig) MarketConditions {
	if len(prices) == 0 {
		return MarketConditions{RSI: 50}
	}

	mc := MarketConditions{
		Price:      prices[len(prices)-1],
		RSI:        RSI(prices, cfg.RSIPeriod),
		Volatility: Volatility(prices),
		Trend:      TrendSlope(prices),
		Momentum:   Momentum(prices, cfg.MomentumPeriod),
	}

	mc.TrendStrength = adxStrength(prices, adxPeriod)
	mc.BandWidthPct = bandWidthPct(prices, cfg.BBPeriod)
	return mc
}

// bandWidthPct is the Bollinger band width relative to the middle
// band, in percent, over the configured period.
func bandWidthPct(prices []float64, period int) float64 {
	if period < 2 || len(prices) < period {
		return 0
	}

	pricesChan := make(chan float64, len(prices))
	for _, p := range prices {
		pricesChan <- p
	}
	close(pricesChan)

	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	lowerChan, middleChan, upperChan := bb.Compute(pricesChan)

	var lower, middle, upper float64
	var any bool
	for {
		l, lok := <-lowerChan
		m, mok := <-middleChan
		u, uok := <-upperChan
		if !lok || !mok || !uok {
			break
		}
		lower, middle, upper = l, m, u
		any = true
	}

	if !any || middle == 0 {
		return 0
	}
	return math.Abs(upper-lower) / middle * 100
}

// Vector flattens the similarity fields for the persistence layer.
func (m MarketConditions) Vector() []float32 {
	return []float32{
		float32(m.RSI),
		float32(m.Volatility),
		float32(m.Trend),
		float32(m.Momentum),
	}
}

// Distance is the mean absolute normalised difference over the
// similarity fields, each scaled by 100.
func Distance(a, b MarketConditions) float64 {
	sum := math.Abs(a.RSI-b.RSI) +
		math.Abs(a.Volatility-b.Volatility) +
		math.Abs(a.Trend-b.Trend) +
		math.Abs(a.Momentum-b.Momentum)
	return sum / 4 / 100
}
