// Package learning accumulates optimisation outcomes so repeated
// parameter sets can be ranked by how they actually performed.
package learning

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantlabhq/tradelab/internal/indicators"
)

// minSamplesForBest is how many samples a node needs before
// BestParameters will answer.
const minSamplesForBest = 10

// defaultCapacity bounds the recorder history.
const defaultCapacity = 1000

// Sample is one optimisation outcome: the parameter overlay that was
// applied, the market it ran in and the result label (pnl percent).
type Sample struct {
	NodeID           string                      `json:"node_id"`
	Parameters       map[string]float64          `json:"parameters"`
	MarketConditions indicators.MarketConditions `json:"market_conditions"`
	Result           float64                     `json:"result"`
	Timestamp        time.Time                   `json:"timestamp"`
}

// NodePerformance aggregates the recorded results for one node.
type NodePerformance struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
	Min   float64 `json:"min"`
}

// Recorder keeps a bounded history of samples, newest last.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	samples  []Sample
}

// NewRecorder creates a recorder holding up to capacity samples;
// capacity <= 0 selects the default.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// Add appends a sample, evicting the oldest once full.
func (r *Recorder) Add(sample Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == r.capacity {
		r.samples = append(r.samples[:0], r.samples[1:]...)
		r.samples = r.samples[:r.capacity-1]
	}
	r.samples = append(r.samples, sample)
}

// Len returns the number of retained samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// BestParameters groups a node's samples by identical parameter sets
// and returns the set with the best mean result. It refuses to answer
// until the node has at least ten samples.
func (r *Recorder) BestParameters(nodeID string) (map[string]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type group struct {
		params map[string]float64
		sum    float64
		count  int
	}
	groups := make(map[string]*group)
	total := 0

	for _, s := range r.samples {
		if s.NodeID != nodeID {
			continue
		}
		total++
		key := paramKey(s.Parameters)
		g, ok := groups[key]
		if !ok {
			g = &group{params: s.Parameters}
			groups[key] = g
		}
		g.sum += s.Result
		g.count++
	}

	if total < minSamplesForBest {
		return nil, false
	}

	var best *group
	bestMean := 0.0
	for _, g := range groups {
		mean := g.sum / float64(g.count)
		if best == nil || mean > bestMean {
			best = g
			bestMean = mean
		}
	}
	if best == nil {
		return nil, false
	}

	out := make(map[string]float64, len(best.params))
	for k, v := range best.params {
		out[k] = v
	}
	return out, true
}

// NodePerformance aggregates results for one node. A zero Count means
// the node has never been recorded.
func (r *Recorder) NodePerformance(nodeID string) NodePerformance {
	r.mu.Lock()
	defer r.mu.Unlock()

	var perf NodePerformance
	for _, s := range r.samples {
		if s.NodeID != nodeID {
			continue
		}
		if perf.Count == 0 {
			perf.Max = s.Result
			perf.Min = s.Result
		} else {
			if s.Result > perf.Max {
				perf.Max = s.Result
			}
			if s.Result < perf.Min {
				perf.Min = s.Result
			}
		}
		perf.Avg += s.Result
		perf.Count++
	}
	if perf.Count > 0 {
		perf.Avg /= float64(perf.Count)
	}
	return perf
}

// paramKey builds a deterministic identity for a parameter set.
func paramKey(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%.6f;", k, params[k])
	}
	return b.String()
}
