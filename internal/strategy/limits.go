package strategy

import "fmt"

// paramRange is the inclusive safety range for one advisor-tunable knob.
type paramRange struct {
	Min float64
	Max float64
}

// tunableLimits bounds every parameter the advisor may adjust. Values
// outside a range are clamped, never rejected, so a single wild
// suggestion cannot abort an optimization cycle.
var tunableLimits = map[string]paramRange{
	"rsi_oversold":            {25, 45},
	"rsi_overbought":          {55, 80},
	"stop_loss_pct":           {0.1, 2.0},
	"take_profit_pct":         {0.2, 5.0},
	"micro_profit_target":     {0.05, 1.0},
	"micro_stop_loss":         {0.03, 1.0},
	"position_size_pct":       {5, 25},
	"min_time_between_trades": {1, 60},
	"min_buy_score":           {0.5, 5},
	"min_sell_score":          {0.5, 5},
	"price_change_threshold":  {0.01, 2.0},
}

// Adjustment records one clamp applied to a suggested parameter.
type Adjustment struct {
	Param     string  `json:"param"`
	Suggested float64 `json:"suggested"`
	Applied   float64 `json:"applied"`
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s: %.4f -> %.4f", a.Param, a.Suggested, a.Applied)
}

// ClampParams forces every known parameter into its safety range and
// returns the clamped copy plus the adjustments made. Parameters
// without a registered range pass through unchanged.
func ClampParams(params map[string]float64) (map[string]float64, []Adjustment) {
	out := make(map[string]float64, len(params))
	var adjusted []Adjustment

	for name, value := range params {
		applied := value
		if r, ok := tunableLimits[name]; ok {
			if applied < r.Min {
				applied = r.Min
			} else if applied > r.Max {
				applied = r.Max
			}
		}
		if applied != value {
			adjusted = append(adjusted, Adjustment{Param: name, Suggested: value, Applied: applied})
		}
		out[name] = applied
	}
	return out, adjusted
}
