package strategy

import "math"

// RunSummary is the slice of simulation results the recommendation
// rules consume.
type RunSummary struct {
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"` // fraction, 0..1
	PnLPct         float64 `json:"pnl_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	BuyHoldPnLPct  float64 `json:"buy_hold_pnl_pct"`
}

// Recommendation is one suggested parameter change with its rationale.
type Recommendation struct {
	Param  string  `json:"param"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason"`
}

// Recommend derives parameter changes from a finished simulation. The
// rules are deterministic so the agent can improve without the advisor:
// no trades loosens entries, a poor win rate tightens them, deep
// drawdowns shrink risk, overtrading slows the pace and underperforming
// buy-and-hold stretches the profit target.
func Recommend(cfg GraphConfig, run RunSummary) []Recommendation {
	var recs []Recommendation

	if run.Trades == 0 {
		recs = append(recs,
			Recommendation{
				Param:  "rsi_oversold",
				Value:  math.Min(cfg.RSIOversold+5, 40),
				Reason: "no trades executed, loosening entry threshold",
			},
			Recommendation{
				Param:  "price_change_threshold",
				Value:  cfg.PriceChangeThreshold * 0.7,
				Reason: "no trades executed, lowering momentum threshold",
			},
		)
	} else if run.WinRate < 0.4 {
		recs = append(recs,
			Recommendation{
				Param:  "rsi_oversold",
				Value:  math.Max(cfg.RSIOversold-5, 20),
				Reason: "low win rate, tightening entry threshold",
			},
			Recommendation{
				Param:  "price_change_threshold",
				Value:  cfg.PriceChangeThreshold * 1.3,
				Reason: "low win rate, demanding stronger momentum",
			},
		)
	}

	if run.MaxDrawdownPct > 5 {
		recs = append(recs,
			Recommendation{
				Param:  "position_size_pct",
				Value:  math.Max(cfg.PositionSizePct*0.7, 5),
				Reason: "drawdown exceeded 5%, reducing position size",
			},
			Recommendation{
				Param:  "stop_loss_pct",
				Value:  math.Max(cfg.StopLossPct*0.8, 1.0),
				Reason: "drawdown exceeded 5%, tightening stop loss",
			},
		)
	}

	if run.Trades > 10 {
		recs = append(recs, Recommendation{
			Param:  "min_time_between_trades",
			Value:  float64(cfg.MinTimeBetweenTrades) * 1.5,
			Reason: "overtrading, increasing time between trades",
		})
	}

	if run.PnLPct < run.BuyHoldPnLPct-1 {
		recs = append(recs, Recommendation{
			Param:  "take_profit_pct",
			Value:  cfg.TakeProfitPct * 1.2,
			Reason: "underperforming buy-and-hold, letting winners run",
		})
	}

	return recs
}

// Params flattens recommendations into an overlay map. Later entries
// for the same parameter win, matching the rule ordering above.
func Params(recs []Recommendation) map[string]float64 {
	if len(recs) == 0 {
		return nil
	}
	out := make(map[string]float64, len(recs))
	for _, r := range recs {
		out[r.Param] = r.Value
	}
	return out
}
