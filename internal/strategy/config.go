// Package strategy defines the parameter sheet driving the indicator
// kernel, the signal evaluator and the paper trader, together with the
// preset variants, the advisor clamp ranges and the deterministic
// post-simulation recommendation rules.
package strategy

import (
	"fmt"
	"math"
)

// Strategy variants. The variant selects the micro vs coarse stop and
// profit parameters and enables the scalping-only scoring triggers.
const (
	TypeConservative = "conservative"
	TypeScalping     = "scalping"
	TypeMomentum     = "momentum"
)

// GraphConfig is one immutable parameter set. Every numeric knob the
// kernel, evaluator or trader reads lives here; there are no optional
// attributes. Adopting a config for a simulation freezes it.
type GraphConfig struct {
	Version      string `json:"version"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	StrategyType string `json:"strategy_type"`

	// Indicator periods
	RSIPeriod     int     `json:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	EMAFastPeriod int     `json:"ema_fast_period"`
	EMASlowPeriod int     `json:"ema_slow_period"`
	MACDFast      int     `json:"macd_fast"`
	MACDSlow      int     `json:"macd_slow"`
	MACDSignal    int     `json:"macd_signal"`
	BBPeriod      int     `json:"bb_period"`
	BBStdDev      float64 `json:"bb_std_dev"`

	// Momentum / price action
	PriceChangeThreshold float64 `json:"price_change_threshold"` // percent
	MomentumPeriod       int     `json:"momentum_period"`        // ticks

	// Scalping
	MicroProfitTarget  float64 `json:"micro_profit_target"`  // percent
	MicroStopLoss      float64 `json:"micro_stop_loss"`      // percent
	TickScalpThreshold float64 `json:"tick_scalp_threshold"` // percent per tick

	// Risk management
	PositionSizePct float64 `json:"position_size_pct"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`

	// Timing, in seconds
	MinTimeBetweenTrades int `json:"min_time_between_trades"`
	CooldownAfterLoss    int `json:"cooldown_after_loss"`
	MaxPositionDuration  int `json:"max_position_duration"`

	// Signal weights
	WeightRSI         float64 `json:"weight_rsi"`
	WeightEMA         float64 `json:"weight_ema"`
	WeightMACD        float64 `json:"weight_macd"`
	WeightBB          float64 `json:"weight_bb"`
	WeightMomentum    float64 `json:"weight_momentum"`
	WeightPriceAction float64 `json:"weight_price_action"`

	// Entry / exit score thresholds
	MinBuyScore  float64 `json:"min_buy_score"`
	MinSellScore float64 `json:"min_sell_score"`
}

// IsScalping reports whether the scalping-only triggers apply.
func (c GraphConfig) IsScalping() bool {
	return c.StrategyType == TypeScalping
}

// EntryStops returns the stop-loss and take-profit percentages used at
// position open: the micro pair for scalping, the coarse pair otherwise.
func (c GraphConfig) EntryStops() (stopPct, takePct float64) {
	if c.IsScalping() {
		return c.MicroStopLoss, c.MicroProfitTarget
	}
	return c.StopLossPct, c.TakeProfitPct
}

// Validate checks the invariants a simulation relies on. A config that
// fails validation must never be adopted.
func (c GraphConfig) Validate() error {
	if c.RSIPeriod < 2 {
		return fmt.Errorf("rsi_period %d must be >= 2", c.RSIPeriod)
	}
	if c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi_oversold %.1f must be below rsi_overbought %.1f", c.RSIOversold, c.RSIOverbought)
	}
	if c.EMAFastPeriod < 1 || c.EMASlowPeriod <= c.EMAFastPeriod {
		return fmt.Errorf("ema periods invalid (fast=%d, slow=%d)", c.EMAFastPeriod, c.EMASlowPeriod)
	}
	if c.BBPeriod < 2 || c.BBStdDev <= 0 {
		return fmt.Errorf("bollinger settings invalid (period=%d, std_dev=%.2f)", c.BBPeriod, c.BBStdDev)
	}
	if c.MomentumPeriod < 1 {
		return fmt.Errorf("momentum_period %d must be >= 1", c.MomentumPeriod)
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 100 {
		return fmt.Errorf("position_size_pct %.1f must be in (0, 100]", c.PositionSizePct)
	}
	if c.StopLossPct <= 0 || c.TakeProfitPct <= 0 {
		return fmt.Errorf("stop/take percentages must be > 0 (sl=%.2f, tp=%.2f)", c.StopLossPct, c.TakeProfitPct)
	}
	if c.MicroStopLoss <= 0 || c.MicroProfitTarget <= 0 {
		return fmt.Errorf("micro stop/target must be > 0 (sl=%.3f, tp=%.3f)", c.MicroStopLoss, c.MicroProfitTarget)
	}
	if c.TrailingStopPct <= 0 {
		return fmt.Errorf("trailing_stop_pct %.2f must be > 0", c.TrailingStopPct)
	}
	if c.MinTimeBetweenTrades < 0 || c.CooldownAfterLoss < 0 || c.MaxPositionDuration <= 0 {
		return fmt.Errorf("timing settings invalid (between=%d, cooldown=%d, max_duration=%d)",
			c.MinTimeBetweenTrades, c.CooldownAfterLoss, c.MaxPositionDuration)
	}
	if c.MinBuyScore <= 0 || c.MinSellScore <= 0 {
		return fmt.Errorf("score thresholds must be > 0 (buy=%.2f, sell=%.2f)", c.MinBuyScore, c.MinSellScore)
	}
	return nil
}

// Overlay returns a copy of c with the named numeric parameters
// replaced. Unknown names are collected and returned, not rejected, so
// forward-compatible advisor replies degrade to warnings.
func (c GraphConfig) Overlay(params map[string]float64) (GraphConfig, []string) {
	out := c
	var unknown []string

	for name, value := range params {
		if !out.setParam(name, value) {
			unknown = append(unknown, name)
		}
	}
	return out, unknown
}

// setParam is the single total mapping from parameter name to effect.
// Adding a knob to GraphConfig means adding a case here.
func (c *GraphConfig) setParam(name string, value float64) bool {
	switch name {
	case "rsi_period":
		c.RSIPeriod = roundInt(value)
	case "rsi_oversold":
		c.RSIOversold = value
	case "rsi_overbought":
		c.RSIOverbought = value
	case "ema_fast_period":
		c.EMAFastPeriod = roundInt(value)
	case "ema_slow_period":
		c.EMASlowPeriod = roundInt(value)
	case "macd_fast":
		c.MACDFast = roundInt(value)
	case "macd_slow":
		c.MACDSlow = roundInt(value)
	case "macd_signal":
		c.MACDSignal = roundInt(value)
	case "bb_period":
		c.BBPeriod = roundInt(value)
	case "bb_std_dev":
		c.BBStdDev = value
	case "price_change_threshold":
		c.PriceChangeThreshold = value
	case "momentum_period":
		c.MomentumPeriod = roundInt(value)
	case "micro_profit_target":
		c.MicroProfitTarget = value
	case "micro_stop_loss":
		c.MicroStopLoss = value
	case "tick_scalp_threshold":
		c.TickScalpThreshold = value
	case "position_size_pct":
		c.PositionSizePct = value
	case "stop_loss_pct":
		c.StopLossPct = value
	case "take_profit_pct":
		c.TakeProfitPct = value
	case "trailing_stop_pct":
		c.TrailingStopPct = value
	case "min_time_between_trades":
		c.MinTimeBetweenTrades = roundInt(value)
	case "cooldown_after_loss":
		c.CooldownAfterLoss = roundInt(value)
	case "max_position_duration":
		c.MaxPositionDuration = roundInt(value)
	case "weight_rsi":
		c.WeightRSI = value
	case "weight_ema":
		c.WeightEMA = value
	case "weight_macd":
		c.WeightMACD = value
	case "weight_bb":
		c.WeightBB = value
	case "weight_momentum":
		c.WeightMomentum = value
	case "weight_price_action":
		c.WeightPriceAction = value
	case "min_buy_score":
		c.MinBuyScore = value
	case "min_sell_score":
		c.MinSellScore = value
	default:
		return false
	}
	return true
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
