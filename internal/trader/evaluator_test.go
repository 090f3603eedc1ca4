package trader

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openPosition(entry float64, age time.Duration) *Order {
	return &Order{
		ID:         "test1234",
		Symbol:     "BTC-USD",
		EntryPrice: entry,
		Quantity:   0.01,
		EntryTime:  evalNow.Add(-age),
		Status:     StatusOpen,
	}
}

func TestEvaluateTimeExitPrecedence(t *testing.T) {
	cfg := strategy.Baseline() // max_position_duration 300s
	pos := openPosition(100, 301*time.Second)

	// Even inside the post-loss cooldown the expired position must go
	lastLoss := evalNow.Add(-10 * time.Second)
	sig := Evaluate(indicators.Snapshot{Price: 100, RSI: 50}, pos, evalNow, cfg, time.Time{}, lastLoss)

	require.Equal(t, ActionSell, sig.Action)
	assert.Equal(t, 0.5, sig.Confidence)
	assert.Equal(t, ReasonTimeExit, sig.Reason)
}

func TestEvaluateGates(t *testing.T) {
	cfg := strategy.Baseline()

	// A snapshot that would otherwise score well past min_buy_score
	snap := indicators.Snapshot{Price: 90, RSI: 20, BBTouchLower: true, BBPosition: -1}

	t.Run("min time between trades", func(t *testing.T) {
		lastTrade := evalNow.Add(-30 * time.Second) // < 60s
		sig := Evaluate(snap, nil, evalNow, cfg, lastTrade, time.Time{})
		assert.Equal(t, ActionHold, sig.Action)
	})

	t.Run("cooldown after loss", func(t *testing.T) {
		lastLoss := evalNow.Add(-60 * time.Second) // < 120s
		sig := Evaluate(snap, nil, evalNow, cfg, time.Time{}, lastLoss)
		assert.Equal(t, ActionHold, sig.Action)
	})

	t.Run("gates expired", func(t *testing.T) {
		lastTrade := evalNow.Add(-61 * time.Second)
		lastLoss := evalNow.Add(-121 * time.Second)
		sig := Evaluate(snap, nil, evalNow, cfg, lastTrade, lastLoss)
		assert.Equal(t, ActionBuy, sig.Action)
	})
}

func TestBuyScoring(t *testing.T) {
	cfg := strategy.Baseline() // all weights 1.0, min_buy_score 2.5

	tests := []struct {
		name      string
		snap      indicators.Snapshot
		wantScore float64
		wantBuy   bool
		wantTags  []string
	}{
		{
			name:      "oversold plus band touch",
			snap:      indicators.Snapshot{Price: 90, RSI: 25, BBTouchLower: true, BBPosition: -1},
			wantScore: 2.0 + 2.0 + 1.0,
			wantBuy:   true,
			wantTags:  []string{"rsi_oversold", "bb_lower_touch", "bb_low"},
		},
		{
			name:      "mild rsi alone holds",
			snap:      indicators.Snapshot{Price: 100, RSI: 42},
			wantScore: 0,
			wantBuy:   false,
		},
		{
			name:      "bullish cross with positive macd",
			snap:      indicators.Snapshot{Price: 100, RSI: 50, EMACross: 1, MACD: 0.5},
			wantScore: 2.5 + 1.5,
			wantBuy:   true,
			wantTags:  []string{"ema_bullish_cross", "macd_positive"},
		},
		{
			name:      "strong momentum and reversal",
			snap:      indicators.Snapshot{Price: 100, RSI: 50, Momentum: 1.0, ReversalUp: true},
			wantScore: 2.0 + 1.5,
			wantBuy:   true,
		},
		{
			name:      "mild momentum only",
			snap:      indicators.Snapshot{Price: 100, RSI: 50, Momentum: 0.2},
			wantScore: 0,
			wantBuy:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Evaluate(tt.snap, nil, evalNow, cfg, time.Time{}, time.Time{})
			if !tt.wantBuy {
				assert.Equal(t, ActionHold, sig.Action)
				return
			}

			require.Equal(t, ActionBuy, sig.Action)
			assert.InDelta(t, tt.wantScore, sig.Score, 1e-9)
			assert.InDelta(t, math.Min(tt.wantScore/confidenceScale, 1), sig.Confidence, 1e-9)
			for _, tag := range tt.wantTags {
				assert.Contains(t, sig.Tags, tag)
			}
		})
	}
}

func TestBuyScoringRespectsWeights(t *testing.T) {
	cfg := strategy.Baseline()
	cfg.WeightRSI = 2.0
	cfg.MinBuyScore = 3.5

	snap := indicators.Snapshot{Price: 90, RSI: 25}
	sig := Evaluate(snap, nil, evalNow, cfg, time.Time{}, time.Time{})

	require.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 4.0, sig.Score, 1e-9)
}

func TestSellScoring(t *testing.T) {
	cfg := strategy.Baseline()
	pos := openPosition(100, time.Minute)

	t.Run("overbought with bearish cross", func(t *testing.T) {
		// +5% on a 5% take-profit also crosses the 0.7 mark
		snap := indicators.Snapshot{Price: 105, RSI: 75, EMACross: -1}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		require.Equal(t, ActionSell, sig.Action)
		assert.InDelta(t, 2.0+2.5+1.5, sig.Score, 1e-9)
		assert.Contains(t, sig.Tags, "near_take_profit")
	})

	t.Run("near take profit adds pressure", func(t *testing.T) {
		// +4% on a 5% take-profit crosses the 0.7 mark
		snap := indicators.Snapshot{Price: 104, RSI: 60, MACD: -1}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		require.Equal(t, ActionSell, sig.Action)
		assert.InDelta(t, 0.5+1.5+1.5, sig.Score, 1e-9)
		assert.Contains(t, sig.Tags, "near_take_profit")
	})

	t.Run("weak evidence holds", func(t *testing.T) {
		snap := indicators.Snapshot{Price: 101, RSI: 60}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		assert.Equal(t, ActionHold, sig.Action)
	})
}

func TestScalpingSellTriggers(t *testing.T) {
	cfg := strategy.Scalping()
	pos := openPosition(100, 5*time.Second)

	t.Run("micro profit target", func(t *testing.T) {
		// +0.1% >= micro_profit_target 0.08
		snap := indicators.Snapshot{Price: 100.1, RSI: 50}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		require.Equal(t, ActionSell, sig.Action)
		assert.Contains(t, sig.Tags, "micro_profit")
	})

	t.Run("micro stop forces exit", func(t *testing.T) {
		// -0.1% <= -micro_stop_loss 0.05
		snap := indicators.Snapshot{Price: 99.9, RSI: 50}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		require.Equal(t, ActionSell, sig.Action)
		assert.Contains(t, sig.Tags, "micro_stop")
		assert.GreaterOrEqual(t, sig.Score, 5.0)
	})

	t.Run("downward micro move", func(t *testing.T) {
		snap := indicators.Snapshot{Price: 100.0, RSI: 50, MicroMove: true, TickChangePct: -0.03}
		sig := Evaluate(snap, pos, evalNow, cfg, time.Time{}, time.Time{})
		require.Equal(t, ActionSell, sig.Action)
		assert.Contains(t, sig.Tags, "micro_move_down")
	})
}

func TestScalpingBuyTriggers(t *testing.T) {
	cfg := strategy.Scalping()

	snap := indicators.Snapshot{Price: 100, RSI: 50, MicroMove: true, TickChangePct: 0.03, TrendDirection: 1}
	sig := Evaluate(snap, nil, evalNow, cfg, time.Time{}, time.Time{})

	require.Equal(t, ActionBuy, sig.Action)
	assert.Contains(t, sig.Tags, "micro_move_up")
	assert.Contains(t, sig.Tags, "trend_up")
	// 2.0 * weight_price_action 1.5 + 0.5 * weight_momentum 1.5
	assert.InDelta(t, 3.0+0.75, sig.Score, 1e-9)
}
