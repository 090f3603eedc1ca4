package indicators

import (
	"math"

	"github.com/quantlabhq/tradelab/internal/strategy"
)

// rsiEpsilon substitutes for a zero average loss so a one-sided window
// yields an RSI near the rail instead of a division by zero.
const rsiEpsilon = 1e-4

// trendDeadZone is the normalised slope below which the trend counts
// as flat, in percent per tick.
const trendDeadZone = 0.01

// shortLookback is the tail length volatility, ATR and trend read.
const shortLookback = 10

// Snapshot is the full indicator state for one tick. Everything here
// is a pure function of the price series and the parameter set.
type Snapshot struct {
	Price float64 `json:"price"`

	RSI float64 `json:"rsi"`

	EMAFast  float64 `json:"ema_fast"`
	EMASlow  float64 `json:"ema_slow"`
	EMACross int     `json:"ema_cross"` // +1 bullish, -1 bearish, 0 none

	MACD float64 `json:"macd"`

	BBUpper      float64 `json:"bb_upper"`
	BBMiddle     float64 `json:"bb_middle"`
	BBLower      float64 `json:"bb_lower"`
	BBPosition   float64 `json:"bb_position"` // -1 at lower band, +1 at upper
	BBTouchLower bool    `json:"bb_touch_lower"`
	BBTouchUpper bool    `json:"bb_touch_upper"`

	Momentum          float64         `json:"momentum"` // at the configured horizon
	MomentumByHorizon map[int]float64 `json:"momentum_by_horizon"`

	Volatility float64 `json:"volatility"`
	ATR        float64 `json:"atr"`

	TrendSlope     float64 `json:"trend_slope"` // percent per tick
	TrendDirection int     `json:"trend_direction"`

	ReversalUp   bool `json:"reversal_up"`
	ReversalDown bool `json:"reversal_down"`

	TickChangePct float64 `json:"tick_change_pct"`
	MicroMove     bool    `json:"micro_move"`
}

// Compute evaluates every indicator over the series, most recent last.
// An empty series yields the zero snapshot.
func Compute(prices []float64, cfg strategy.GraphConfig) Snapshot {
	n := len(prices)
	if n == 0 {
		return Snapshot{RSI: 50}
	}

	snap := Snapshot{
		Price: prices[n-1],
		RSI:   RSI(prices, cfg.RSIPeriod),
	}

	snap.EMAFast = EMA(prices, cfg.EMAFastPeriod)
	snap.EMASlow = EMA(prices, cfg.EMASlowPeriod)
	snap.EMACross = emaCross(prices, cfg.EMAFastPeriod, cfg.EMASlowPeriod)

	snap.MACD = EMA(prices, cfg.MACDFast) - EMA(prices, cfg.MACDSlow)

	snap.BBUpper, snap.BBMiddle, snap.BBLower = bollinger(prices, cfg.BBPeriod, cfg.BBStdDev)
	snap.BBPosition, snap.BBTouchLower, snap.BBTouchUpper =
		bollingerPosition(snap.Price, snap.BBUpper, snap.BBLower)

	snap.MomentumByHorizon = make(map[int]float64, 4)
	for _, k := range []int{cfg.MomentumPeriod, 3, 5, 10} {
		if _, seen := snap.MomentumByHorizon[k]; seen {
			continue
		}
		snap.MomentumByHorizon[k] = Momentum(prices, k)
	}
	snap.Momentum = snap.MomentumByHorizon[cfg.MomentumPeriod]

	snap.Volatility = Volatility(prices)
	snap.ATR = ATR(prices)

	snap.TrendSlope = TrendSlope(prices)
	switch {
	case snap.TrendSlope > trendDeadZone:
		snap.TrendDirection = 1
	case snap.TrendSlope < -trendDeadZone:
		snap.TrendDirection = -1
	}

	if n >= 3 {
		snap.ReversalUp = prices[n-2] < prices[n-3] && prices[n-1] > prices[n-2]
		snap.ReversalDown = prices[n-2] > prices[n-3] && prices[n-1] < prices[n-2]
	}

	if n >= 2 && prices[n-2] != 0 {
		snap.TickChangePct = (prices[n-1] - prices[n-2]) / prices[n-2] * 100
		snap.MicroMove = math.Abs(snap.TickChangePct) >= cfg.TickScalpThreshold
	}

	return snap
}

// RSI computes the Relative Strength Index from simple averages of the
// gains and losses over the last period diffs. Returns 50 when the
// series is too short or flat.
func RSI(prices []float64, period int) float64 {
	if period < 1 || len(prices) < period+1 {
		return 50
	}

	tail := prices[len(prices)-period-1:]
	var gains, losses float64
	for i := 1; i < len(tail); i++ {
		delta := tail[i] - tail[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss < rsiEpsilon {
		if avgGain < rsiEpsilon {
			return 50
		}
		avgLoss = rsiEpsilon
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA computes an exponential moving average seeded with the SMA of
// the first period points. Short series fall back to the running mean.
func EMA(prices []float64, period int) float64 {
	n := len(prices)
	if n == 0 {
		return 0
	}
	if period < 1 || n < period {
		return mean(prices)
	}

	ema := mean(prices[:period])
	k := 2.0 / (float64(period) + 1)
	for _, p := range prices[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

// emaCross detects a fast/slow crossover on this tick by comparing the
// EMAs of the full series against the series without its last point.
func emaCross(prices []float64, fast, slow int) int {
	if len(prices) < 2 {
		return 0
	}

	prevFast := EMA(prices[:len(prices)-1], fast)
	prevSlow := EMA(prices[:len(prices)-1], slow)
	curFast := EMA(prices, fast)
	curSlow := EMA(prices, slow)

	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		return 1
	case prevFast >= prevSlow && curFast < curSlow:
		return -1
	default:
		return 0
	}
}

func bollinger(prices []float64, period int, stdDev float64) (upper, middle, lower float64) {
	tail := prices
	if period > 0 && len(prices) > period {
		tail = prices[len(prices)-period:]
	}

	middle = mean(tail)
	sd := stddev(tail, middle)
	return middle + stdDev*sd, middle, middle - stdDev*sd
}

func bollingerPosition(price, upper, lower float64) (pos float64, touchLower, touchUpper bool) {
	width := upper - lower
	if width <= 0 {
		return 0, false, false
	}

	pos = (price-lower)/width*2 - 1
	pos = math.Max(-1, math.Min(1, pos))
	return pos, price <= lower, price >= upper
}

// Momentum returns the percent change over the last k ticks.
func Momentum(prices []float64, k int) float64 {
	n := len(prices)
	if k < 1 || n < k+1 {
		return 0
	}
	base := prices[n-1-k]
	if base == 0 {
		return 0
	}
	return (prices[n-1] - base) / base * 100
}

// Volatility is the coefficient of variation over the short lookback,
// in percent.
func Volatility(prices []float64) float64 {
	tail := lookbackTail(prices)
	if len(tail) < 2 {
		return 0
	}
	m := mean(tail)
	if m == 0 {
		return 0
	}
	return stddev(tail, m) / m * 100
}

// ATR is the mean absolute tick-to-tick delta over the short lookback.
func ATR(prices []float64) float64 {
	tail := lookbackTail(prices)
	if len(tail) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(tail); i++ {
		sum += math.Abs(tail[i] - tail[i-1])
	}
	return sum / float64(len(tail)-1)
}

// TrendSlope fits a least-squares line over the short lookback and
// returns its slope normalised by the mean price, in percent per tick.
func TrendSlope(prices []float64) float64 {
	tail := lookbackTail(prices)
	n := len(tail)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range tail {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / denom

	m := sumY / fn
	if m == 0 {
		return 0
	}
	return slope / m * 100
}

func lookbackTail(prices []float64) []float64 {
	if len(prices) > shortLookback {
		return prices[len(prices)-shortLookback:]
	}
	return prices
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
