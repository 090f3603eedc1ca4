package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{TypeConservative, TypeScalping, TypeMomentum} {
		t.Run(name, func(t *testing.T) {
			cfg := Preset(name)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, name, cfg.StrategyType)
		})
	}

	// Unknown names fall back to the baseline
	assert.Equal(t, TypeConservative, Preset("bogus").StrategyType)
}

func TestEntryStops(t *testing.T) {
	scalp := Scalping()
	sl, tp := scalp.EntryStops()
	assert.Equal(t, scalp.MicroStopLoss, sl)
	assert.Equal(t, scalp.MicroProfitTarget, tp)

	base := Baseline()
	sl, tp = base.EntryStops()
	assert.Equal(t, base.StopLossPct, sl)
	assert.Equal(t, base.TakeProfitPct, tp)
}

func TestOverlay(t *testing.T) {
	cfg := Baseline()
	out, unknown := cfg.Overlay(map[string]float64{
		"rsi_period":      7.4,
		"rsi_oversold":    35,
		"weight_momentum": 1.5,
		"not_a_param":     1,
	})

	assert.Equal(t, 7, out.RSIPeriod)
	assert.Equal(t, 35.0, out.RSIOversold)
	assert.Equal(t, 1.5, out.WeightMomentum)
	assert.Equal(t, []string{"not_a_param"}, unknown)

	// Original untouched
	assert.Equal(t, 14, cfg.RSIPeriod)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GraphConfig)
	}{
		{"rsi bands inverted", func(c *GraphConfig) { c.RSIOversold = 70; c.RSIOverbought = 30 }},
		{"ema slow not above fast", func(c *GraphConfig) { c.EMAFastPeriod = 10; c.EMASlowPeriod = 10 }},
		{"zero position size", func(c *GraphConfig) { c.PositionSizePct = 0 }},
		{"negative stop loss", func(c *GraphConfig) { c.StopLossPct = -1 }},
		{"zero max duration", func(c *GraphConfig) { c.MaxPositionDuration = 0 }},
		{"zero buy score", func(c *GraphConfig) { c.MinBuyScore = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Baseline()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestClampParams(t *testing.T) {
	clamped, adjusted := ClampParams(map[string]float64{
		"rsi_oversold":      10,  // below min 25
		"position_size_pct": 90,  // above max 25
		"stop_loss_pct":     1.0, // in range
		"weight_rsi":        3.0, // no registered range
	})

	assert.Equal(t, 25.0, clamped["rsi_oversold"])
	assert.Equal(t, 25.0, clamped["position_size_pct"])
	assert.Equal(t, 1.0, clamped["stop_loss_pct"])
	assert.Equal(t, 3.0, clamped["weight_rsi"])

	require.Len(t, adjusted, 2)
	byParam := map[string]Adjustment{}
	for _, a := range adjusted {
		byParam[a.Param] = a
	}
	assert.Equal(t, 10.0, byParam["rsi_oversold"].Suggested)
	assert.Equal(t, 25.0, byParam["rsi_oversold"].Applied)
	assert.Equal(t, 25.0, byParam["position_size_pct"].Applied)
}

func TestRecommendNoTrades(t *testing.T) {
	cfg := Baseline()
	recs := Recommend(cfg, RunSummary{Trades: 0})

	params := Params(recs)
	assert.Equal(t, 35.0, params["rsi_oversold"])
	assert.InDelta(t, cfg.PriceChangeThreshold*0.7, params["price_change_threshold"], 1e-9)
}

func TestRecommendNoTradesCapsOversold(t *testing.T) {
	cfg := Baseline()
	cfg.RSIOversold = 38
	params := Params(Recommend(cfg, RunSummary{Trades: 0}))
	assert.Equal(t, 40.0, params["rsi_oversold"])
}

func TestRecommendLowWinRate(t *testing.T) {
	cfg := Baseline()
	params := Params(Recommend(cfg, RunSummary{Trades: 5, WinRate: 0.2}))

	assert.Equal(t, 25.0, params["rsi_oversold"])
	assert.InDelta(t, cfg.PriceChangeThreshold*1.3, params["price_change_threshold"], 1e-9)
}

func TestRecommendDrawdownAndOvertrading(t *testing.T) {
	cfg := Baseline()
	params := Params(Recommend(cfg, RunSummary{
		Trades:         12,
		WinRate:        0.6,
		MaxDrawdownPct: 8,
	}))

	assert.InDelta(t, cfg.PositionSizePct*0.7, params["position_size_pct"], 1e-9)
	assert.InDelta(t, cfg.StopLossPct*0.8, params["stop_loss_pct"], 1e-9)
	assert.InDelta(t, float64(cfg.MinTimeBetweenTrades)*1.5, params["min_time_between_trades"], 1e-9)
}

func TestRecommendUnderperformance(t *testing.T) {
	cfg := Baseline()
	params := Params(Recommend(cfg, RunSummary{
		Trades:        3,
		WinRate:       0.66,
		PnLPct:        0.5,
		BuyHoldPnLPct: 2.5,
	}))

	assert.InDelta(t, cfg.TakeProfitPct*1.2, params["take_profit_pct"], 1e-9)
	// Win rate healthy, entry rules untouched
	_, hasOversold := params["rsi_oversold"]
	assert.False(t, hasOversold)
}

func TestRecommendHealthyRunIsEmpty(t *testing.T) {
	recs := Recommend(Baseline(), RunSummary{
		Trades:         5,
		WinRate:        0.8,
		PnLPct:         3.0,
		MaxDrawdownPct: 1.0,
		BuyHoldPnLPct:  1.0,
	})
	assert.Empty(t, recs)
	assert.Nil(t, Params(recs))
}

func TestCheckSchemaCompat(t *testing.T) {
	assert.NoError(t, CheckSchemaCompat("1.0.0"))
	assert.NoError(t, CheckSchemaCompat("1.3.7"))
	assert.Error(t, CheckSchemaCompat("2.0.0"))
	assert.Error(t, CheckSchemaCompat(""))
	assert.Error(t, CheckSchemaCompat("not-semver"))
}

func TestLoadPresetOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	content := `presets:
  scalping:
    rsi_period: 7
    min_buy_score: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lookup, err := LoadPresetOverrides(path)
	require.NoError(t, err)

	scalp := lookup(TypeScalping)
	assert.Equal(t, 7, scalp.RSIPeriod)
	assert.Equal(t, 0.8, scalp.MinBuyScore)
	// Untouched fields keep the built-in values
	assert.Equal(t, 45.0, scalp.RSIOversold)

	// Presets without an overlay stay stock
	assert.Equal(t, Baseline(), lookup(TypeConservative))
}

func TestLoadPresetOverridesMissingFile(t *testing.T) {
	lookup, err := LoadPresetOverrides("/nonexistent/strategies.yaml")
	require.NoError(t, err)
	assert.Equal(t, Scalping(), lookup(TypeScalping))
}

func TestLoadPresetOverridesRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	content := `presets:
  scalping:
    position_size_pct: -5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadPresetOverrides(path)
	assert.Error(t, err)
}
