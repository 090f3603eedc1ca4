package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlabhq/tradelab/internal/strategy"
)

func risingSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSI(t *testing.T) {
	t.Run("short series defaults to 50", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI([]float64{100, 101}, 14))
	})

	t.Run("flat series is 50", func(t *testing.T) {
		flat := make([]float64, 20)
		for i := range flat {
			flat[i] = 100
		}
		assert.Equal(t, 50.0, RSI(flat, 14))
	})

	t.Run("pure uptrend approaches 100", func(t *testing.T) {
		assert.InDelta(t, 100.0, RSI(risingSeries(20, 100, 1), 14), 0.01)
	})

	t.Run("pure downtrend approaches 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, RSI(risingSeries(20, 100, -1), 14), 0.01)
	})

	t.Run("mixed series stays inside the rails", func(t *testing.T) {
		prices := []float64{100, 102, 101, 103, 102, 104, 103, 105, 104, 106, 105, 107, 106, 108, 107}
		rsi := RSI(prices, 14)
		assert.Greater(t, rsi, 50.0)
		assert.Less(t, rsi, 100.0)
	})
}

func TestEMA(t *testing.T) {
	t.Run("short series falls back to running mean", func(t *testing.T) {
		assert.InDelta(t, 101.0, EMA([]float64{100, 101, 102}, 5), 1e-9)
	})

	t.Run("constant series equals the constant", func(t *testing.T) {
		flat := []float64{50, 50, 50, 50, 50, 50, 50, 50}
		assert.InDelta(t, 50.0, EMA(flat, 5), 1e-9)
	})

	t.Run("weights recent prices more than SMA", func(t *testing.T) {
		prices := risingSeries(20, 100, 1)
		ema := EMA(prices, 5)
		assert.Greater(t, ema, mean(prices))
		assert.Less(t, ema, prices[len(prices)-1]+1e-9)
	})
}

func TestEMACross(t *testing.T) {
	// Downtrend rolling into a sharp rally flips the fast EMA above
	// the slow one on the final tick.
	prices := []float64{110, 108, 106, 104, 102, 100, 98, 96, 94, 92, 90, 112}
	cfg := strategy.Scalping()

	snap := Compute(prices, cfg)
	assert.Equal(t, 1, snap.EMACross)

	// The mirror image crosses bearishly
	down := make([]float64, len(prices))
	for i, p := range prices {
		down[i] = 200 - p
	}
	assert.Equal(t, -1, Compute(down, cfg).EMACross)

	// Steady series has no cross event
	assert.Equal(t, 0, Compute(risingSeries(20, 100, 0.1), cfg).EMACross)
}

func TestBollinger(t *testing.T) {
	cfg := strategy.Baseline()

	t.Run("position clamped at the lower band", func(t *testing.T) {
		prices := append(risingSeries(25, 100, 0.2), 80)
		snap := Compute(prices, cfg)
		assert.True(t, snap.BBTouchLower)
		assert.False(t, snap.BBTouchUpper)
		assert.Equal(t, -1.0, snap.BBPosition)
	})

	t.Run("position clamped at the upper band", func(t *testing.T) {
		prices := append(risingSeries(25, 100, 0.2), 130)
		snap := Compute(prices, cfg)
		assert.True(t, snap.BBTouchUpper)
		assert.Equal(t, 1.0, snap.BBPosition)
	})

	t.Run("flat series has zero width and no touches", func(t *testing.T) {
		flat := make([]float64, 25)
		for i := range flat {
			flat[i] = 100
		}
		snap := Compute(flat, cfg)
		assert.Equal(t, 0.0, snap.BBPosition)
		assert.False(t, snap.BBTouchLower)
		assert.False(t, snap.BBTouchUpper)
	})
}

func TestMomentum(t *testing.T) {
	prices := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 110}

	assert.InDelta(t, 10.0, Momentum(prices, 1), 1e-9)
	assert.InDelta(t, 10.0, Momentum(prices, 3), 1e-9)
	assert.Equal(t, 0.0, Momentum(prices, 20))

	cfg := strategy.Baseline()
	snap := Compute(prices, cfg)
	require.Contains(t, snap.MomentumByHorizon, cfg.MomentumPeriod)
	require.Contains(t, snap.MomentumByHorizon, 10)
	assert.Equal(t, snap.MomentumByHorizon[cfg.MomentumPeriod], snap.Momentum)
}

func TestVolatilityAndATR(t *testing.T) {
	flat := make([]float64, 15)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, 0.0, Volatility(flat))
	assert.Equal(t, 0.0, ATR(flat))

	// Alternating +-1 around 100: every tick moves exactly 2
	prices := make([]float64, 15)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 101
		} else {
			prices[i] = 99
		}
	}
	assert.InDelta(t, 2.0, ATR(prices), 1e-9)
	assert.Greater(t, Volatility(prices), 0.0)
}

func TestTrendSlope(t *testing.T) {
	cfg := strategy.Baseline()

	up := Compute(risingSeries(15, 100, 1), cfg)
	assert.Equal(t, 1, up.TrendDirection)
	assert.Greater(t, up.TrendSlope, 0.0)

	down := Compute(risingSeries(15, 100, -1), cfg)
	assert.Equal(t, -1, down.TrendDirection)

	flat := Compute(risingSeries(15, 100, 0), cfg)
	assert.Equal(t, 0, flat.TrendDirection)
}

func TestReversalFlags(t *testing.T) {
	cfg := strategy.Baseline()

	up := Compute([]float64{102, 100, 101}, cfg)
	assert.True(t, up.ReversalUp)
	assert.False(t, up.ReversalDown)

	down := Compute([]float64{100, 102, 101}, cfg)
	assert.True(t, down.ReversalDown)
	assert.False(t, down.ReversalUp)

	trending := Compute([]float64{100, 101, 102}, cfg)
	assert.False(t, trending.ReversalUp)
	assert.False(t, trending.ReversalDown)
}

func TestMicroMove(t *testing.T) {
	cfg := strategy.Scalping() // tick_scalp_threshold 0.02

	snap := Compute([]float64{100, 100.05}, cfg)
	assert.True(t, snap.MicroMove)
	assert.InDelta(t, 0.05, snap.TickChangePct, 1e-9)

	snap = Compute([]float64{100, 100.005}, cfg)
	assert.False(t, snap.MicroMove)
}

func TestComputeDeterministic(t *testing.T) {
	cfg := strategy.Scalping()
	prices := []float64{100, 101.5, 99.8, 102.2, 101.1, 103.4, 102.9, 104.1, 103.2, 105.6, 104.8, 106.1}

	first := Compute(prices, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compute(prices, cfg))
	}
}

func TestComputeEmptyWindow(t *testing.T) {
	snap := Compute(nil, strategy.Baseline())
	assert.Equal(t, 50.0, snap.RSI)
	assert.Equal(t, 0.0, snap.Price)
}
