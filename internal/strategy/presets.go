package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Baseline returns the conservative default parameter sheet.
func Baseline() GraphConfig {
	return GraphConfig{
		Version:      "v1",
		Name:         "Conservative Momentum",
		Description:  "Classic RSI and momentum strategy with coarse stops",
		StrategyType: TypeConservative,

		RSIPeriod:     14,
		RSIOversold:   30.0,
		RSIOverbought: 70.0,
		EMAFastPeriod: 5,
		EMASlowPeriod: 12,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BBPeriod:      20,
		BBStdDev:      2.0,

		PriceChangeThreshold: 0.5,
		MomentumPeriod:       6,

		MicroProfitTarget:  0.15,
		MicroStopLoss:      0.10,
		TickScalpThreshold: 0.05,

		PositionSizePct: 10.0,
		StopLossPct:     2.0,
		TakeProfitPct:   5.0,
		TrailingStopPct: 1.5,

		MinTimeBetweenTrades: 60,
		CooldownAfterLoss:    120,
		MaxPositionDuration:  300,

		WeightRSI:         1.0,
		WeightEMA:         1.0,
		WeightMACD:        1.0,
		WeightBB:          1.0,
		WeightMomentum:    1.0,
		WeightPriceAction: 1.0,

		MinBuyScore:  2.5,
		MinSellScore: 2.5,
	}
}

// Scalping returns the high-frequency preset the agent starts from.
// Thresholds are deliberately loose so early simulations produce
// enough trades to learn from.
func Scalping() GraphConfig {
	c := Baseline()
	c.Version = "scalping"
	c.Name = "Ultra Scalper"
	c.Description = "High-frequency scalping tuned for fast optimization cycles"
	c.StrategyType = TypeScalping

	c.RSIPeriod = 5
	c.RSIOversold = 45.0
	c.RSIOverbought = 55.0
	c.EMAFastPeriod = 2
	c.EMASlowPeriod = 5
	c.MACDFast = 3
	c.MACDSlow = 7
	c.MACDSignal = 2
	c.BBPeriod = 10
	c.BBStdDev = 1.5

	c.PriceChangeThreshold = 0.03
	c.MomentumPeriod = 2

	c.MicroProfitTarget = 0.08
	c.MicroStopLoss = 0.05
	c.TickScalpThreshold = 0.02

	c.PositionSizePct = 20.0
	c.StopLossPct = 0.2
	c.TakeProfitPct = 0.3
	c.TrailingStopPct = 0.1

	c.MinTimeBetweenTrades = 1
	c.CooldownAfterLoss = 5
	c.MaxPositionDuration = 30

	c.WeightMomentum = 1.5
	c.WeightPriceAction = 1.5
	c.WeightMACD = 0.5

	c.MinBuyScore = 0.5
	c.MinSellScore = 0.5
	return c
}

// Momentum returns the trend-following preset.
func Momentum() GraphConfig {
	c := Baseline()
	c.Version = "momentum"
	c.Name = "Trend Follower"
	c.Description = "Follows strong trends via EMA crossovers"
	c.StrategyType = TypeMomentum

	c.RSIOversold = 25.0
	c.RSIOverbought = 75.0
	c.EMAFastPeriod = 5
	c.EMASlowPeriod = 15

	c.PriceChangeThreshold = 0.2

	c.PositionSizePct = 12.0
	c.StopLossPct = 1.5
	c.TakeProfitPct = 3.0
	c.TrailingStopPct = 0.8

	c.MinTimeBetweenTrades = 15
	c.CooldownAfterLoss = 30

	c.WeightEMA = 1.5
	c.WeightMomentum = 1.3

	c.MinBuyScore = 2.0
	c.MinSellScore = 2.0
	return c
}

// Preset returns the named preset, defaulting to the baseline.
func Preset(name string) GraphConfig {
	switch name {
	case TypeScalping:
		return Scalping()
	case TypeMomentum:
		return Momentum()
	default:
		return Baseline()
	}
}

// presetsFile is the optional on-disk override format: numeric
// parameter overlays keyed by preset name.
type presetsFile struct {
	Presets map[string]map[string]float64 `yaml:"presets"`
}

// LoadPresetOverrides reads the optional strategies file and returns a
// preset lookup with the file's overlays applied. A missing file is not
// an error; the built-in presets are used unchanged.
func LoadPresetOverrides(path string) (func(name string) GraphConfig, error) {
	if path == "" {
		return Preset, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preset, nil
		}
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}

	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategies file: %w", err)
	}

	for name, overrides := range file.Presets {
		cfg, _ := Preset(name).Overlay(overrides)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s preset override: %w", name, err)
		}
	}

	return func(name string) GraphConfig {
		cfg := Preset(name)
		if overrides, ok := file.Presets[name]; ok {
			cfg, _ = cfg.Overlay(overrides)
		}
		return cfg
	}, nil
}
