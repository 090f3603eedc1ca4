package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(nodeID string, params map[string]float64, result float64) Sample {
	return Sample{
		NodeID:     nodeID,
		Parameters: params,
		Result:     result,
		Timestamp:  time.Now(),
	}
}

func TestRecorderBounded(t *testing.T) {
	rec := NewRecorder(3)
	for i := 0; i < 5; i++ {
		rec.Add(sample("opt", map[string]float64{"n": float64(i)}, float64(i)))
	}
	assert.Equal(t, 3, rec.Len())

	// Oldest evicted: the remaining results are 2, 3, 4
	perf := rec.NodePerformance("opt")
	assert.Equal(t, 3, perf.Count)
	assert.Equal(t, 2.0, perf.Min)
	assert.Equal(t, 4.0, perf.Max)
}

func TestBestParametersNeedsTenSamples(t *testing.T) {
	rec := NewRecorder(0)
	for i := 0; i < 9; i++ {
		rec.Add(sample("opt", map[string]float64{"rsi_oversold": 40}, 1.0))
	}

	_, ok := rec.BestParameters("opt")
	assert.False(t, ok)

	rec.Add(sample("opt", map[string]float64{"rsi_oversold": 40}, 1.0))
	_, ok = rec.BestParameters("opt")
	assert.True(t, ok)
}

func TestBestParametersPicksBestMean(t *testing.T) {
	rec := NewRecorder(0)

	loose := map[string]float64{"rsi_oversold": 40, "stop_loss_pct": 0.5}
	tight := map[string]float64{"rsi_oversold": 30, "stop_loss_pct": 0.2}

	// loose averages 2.0, tight averages 0.5 despite one big winner
	for _, r := range []float64{1, 2, 3, 2, 2} {
		rec.Add(sample("opt", loose, r))
	}
	for _, r := range []float64{5, -1, -1, -1, 0.5} {
		rec.Add(sample("opt", tight, r))
	}

	best, ok := rec.BestParameters("opt")
	require.True(t, ok)
	assert.Equal(t, loose, best)

	// The returned map is a copy
	best["rsi_oversold"] = 99
	again, _ := rec.BestParameters("opt")
	assert.Equal(t, 40.0, again["rsi_oversold"])
}

func TestBestParametersIgnoresOtherNodes(t *testing.T) {
	rec := NewRecorder(0)
	for i := 0; i < 10; i++ {
		rec.Add(sample("other", map[string]float64{"x": 1}, 1.0))
	}
	rec.Add(sample("opt", map[string]float64{"x": 2}, 1.0))

	_, ok := rec.BestParameters("opt")
	assert.False(t, ok)
}

func TestNodePerformance(t *testing.T) {
	rec := NewRecorder(0)
	for _, r := range []float64{-2, 4, 1} {
		rec.Add(sample("opt", nil, r))
	}

	perf := rec.NodePerformance("opt")
	assert.Equal(t, 3, perf.Count)
	assert.InDelta(t, 1.0, perf.Avg, 1e-9)
	assert.Equal(t, 4.0, perf.Max)
	assert.Equal(t, -2.0, perf.Min)

	assert.Equal(t, NodePerformance{}, rec.NodePerformance("missing"))
}
