package trader

import (
	"math"
	"strings"
	"time"

	"github.com/quantlabhq/tradelab/internal/indicators"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

// Action is the evaluator's verdict for one tick.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// confidenceScale maps an accumulated score onto [0,1].
const confidenceScale = 8.0

// Signal is the scored outcome of one evaluation. Tags list the
// triggers that fired; Reason is their joined human-readable form.
type Signal struct {
	Action     Action   `json:"action"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Tags       []string `json:"tags,omitempty"`
}

func hold() Signal {
	return Signal{Action: ActionHold}
}

// Evaluate scores the current tick. Scoring is additive and
// order-independent; the time-exit rule on an expired position beats
// every gate and every score.
func Evaluate(snap indicators.Snapshot, pos *Order, now time.Time, cfg strategy.GraphConfig, lastTrade, lastLoss time.Time) Signal {
	if pos != nil && now.Sub(pos.EntryTime) > time.Duration(cfg.MaxPositionDuration)*time.Second {
		return Signal{
			Action:     ActionSell,
			Confidence: 0.5,
			Reason:     ReasonTimeExit,
			Tags:       []string{ReasonTimeExit},
		}
	}

	if !lastTrade.IsZero() && now.Sub(lastTrade) < time.Duration(cfg.MinTimeBetweenTrades)*time.Second {
		return hold()
	}
	if !lastLoss.IsZero() && now.Sub(lastLoss) < time.Duration(cfg.CooldownAfterLoss)*time.Second {
		return hold()
	}

	if pos == nil {
		return scoreBuy(snap, cfg)
	}
	return scoreSell(snap, pos, cfg)
}

func scoreBuy(snap indicators.Snapshot, cfg strategy.GraphConfig) Signal {
	var score float64
	var tags []string

	add := func(contribution float64, tag string) {
		score += contribution
		tags = append(tags, tag)
	}

	switch {
	case snap.RSI <= cfg.RSIOversold:
		add(2.0*cfg.WeightRSI, "rsi_oversold")
	case snap.RSI < 45:
		add(0.5*cfg.WeightRSI, "rsi_low")
	}

	if snap.EMACross == 1 {
		add(2.5*cfg.WeightEMA, "ema_bullish_cross")
	}
	if diff := emaDiffPct(snap); diff > 0 && diff < 0.1 {
		add(1.0*cfg.WeightEMA, "ema_converging")
	}

	if snap.MACD > 0 {
		add(1.5*cfg.WeightMACD, "macd_positive")
	}

	if snap.BBTouchLower {
		add(2.0*cfg.WeightBB, "bb_lower_touch")
	}
	if snap.BBPosition < -0.5 {
		add(1.0*cfg.WeightBB, "bb_low")
	}

	switch {
	case snap.Momentum > cfg.PriceChangeThreshold:
		add(2.0*cfg.WeightMomentum, "momentum_strong")
	case snap.Momentum > 0:
		add(0.5*cfg.WeightMomentum, "momentum_positive")
	}

	if snap.ReversalUp {
		add(1.5*cfg.WeightPriceAction, "reversal_up")
	}

	if cfg.IsScalping() {
		if snap.MicroMove && snap.TickChangePct > 0 {
			add(2.0*cfg.WeightPriceAction, "micro_move_up")
		}
		if snap.TrendDirection == 1 {
			add(0.5*cfg.WeightMomentum, "trend_up")
		}
	}

	if score < cfg.MinBuyScore {
		return hold()
	}
	return signal(ActionBuy, score, tags)
}

func scoreSell(snap indicators.Snapshot, pos *Order, cfg strategy.GraphConfig) Signal {
	var score float64
	var tags []string

	add := func(contribution float64, tag string) {
		score += contribution
		tags = append(tags, tag)
	}

	switch {
	case snap.RSI >= cfg.RSIOverbought:
		add(2.0*cfg.WeightRSI, "rsi_overbought")
	case snap.RSI > 55:
		add(0.5*cfg.WeightRSI, "rsi_high")
	}

	if snap.EMACross == -1 {
		add(2.5*cfg.WeightEMA, "ema_bearish_cross")
	}
	if emaDiffPct(snap) < 0 {
		add(1.0*cfg.WeightEMA, "ema_negative")
	}

	if snap.MACD < 0 {
		add(1.5*cfg.WeightMACD, "macd_negative")
	}

	if snap.BBTouchUpper {
		add(2.0*cfg.WeightBB, "bb_upper_touch")
	}
	if snap.BBPosition > 0.5 {
		add(1.0*cfg.WeightBB, "bb_high")
	}

	if snap.Momentum < -cfg.PriceChangeThreshold {
		add(2.0*cfg.WeightMomentum, "momentum_falling")
	}

	if snap.ReversalDown {
		add(1.5*cfg.WeightPriceAction, "reversal_down")
	}

	pnlPct := pos.unrealizedPct(snap.Price)
	if cfg.IsScalping() {
		if snap.MicroMove && snap.TickChangePct < 0 {
			add(1.5*cfg.WeightPriceAction, "micro_move_down")
		}
		if pnlPct >= cfg.MicroProfitTarget {
			add(3.0, "micro_profit")
		}
		if pnlPct <= -cfg.MicroStopLoss {
			// Large enough to clear any valid sell threshold
			add(5.0, "micro_stop")
		}
	} else if pnlPct > 0.7*cfg.TakeProfitPct {
		add(1.5, "near_take_profit")
	}

	if score < cfg.MinSellScore {
		return hold()
	}
	return signal(ActionSell, score, tags)
}

func signal(action Action, score float64, tags []string) Signal {
	return Signal{
		Action:     action,
		Score:      score,
		Confidence: math.Min(score/confidenceScale, 1),
		Reason:     strings.Join(tags, ","),
		Tags:       tags,
	}
}

// emaDiffPct is the fast/slow EMA spread relative to the slow EMA, in
// percent.
func emaDiffPct(snap indicators.Snapshot) float64 {
	if snap.EMASlow == 0 {
		return 0
	}
	return (snap.EMAFast - snap.EMASlow) / snap.EMASlow * 100
}
