package advisor

import "fmt"

// Score thresholds shared with the agent's decision logic.
const (
	HighScoreThreshold   = 65.0
	MediumScoreThreshold = 50.0
)

// fallbackConfidence is the ceiling for deterministic replies.
const fallbackConfidence = 0.3

// fallbackResponse produces the node-specific deterministic default.
// The agent treats these identically to advisor replies; only the
// reasoning string and the Fallback flag reveal the difference.
func fallbackResponse(node Node, context map[string]interface{}, reason string) Response {
	resp := Response{
		Success:    true,
		Node:       node,
		Confidence: fallbackConfidence,
		Reasoning:  fmt.Sprintf("fallback heuristic (%s)", reason),
		Fallback:   true,
	}

	switch node {
	case NodeEvaluateMarket:
		resp.Content = map[string]interface{}{
			"market_state": "unknown",
			"tradeable":    true,
		}

	case NodeEvaluateSimulation, NodeDecideNextStep:
		score := contextFloat(context, "score")
		action := ActionSearchHistory
		switch {
		case score >= HighScoreThreshold:
			action = ActionRunShortSim
		case score >= MediumScoreThreshold:
			action = ActionOptimize
		}
		resp.Content = map[string]interface{}{
			"assessment":  fmt.Sprintf("score %.1f routed by threshold", score),
			"next_action": action,
		}

	case NodeOptimizeParameters:
		// Empty set: the agent overlays the trader's deterministic
		// recommendations instead.
		resp.Content = map[string]interface{}{
			"parameters": map[string]interface{}{},
		}

	case NodeSearchHistory:
		// Empty id: the agent falls back to the version store's
		// similarity ranking.
		resp.Content = map[string]interface{}{
			"best_version_id": "",
		}

	case NodeAnalyzeFailure:
		resp.Content = map[string]interface{}{
			"cause": "unknown",
			"suggestions": []interface{}{
				"reduce position size",
				"loosen entry thresholds",
			},
		}

	case NodeGenerateStrategy:
		resp.Content = map[string]interface{}{
			"strategy_type": "scalping",
			"parameters":    map[string]interface{}{},
		}

	default:
		resp.Content = map[string]interface{}{}
	}

	return resp
}

func contextFloat(context map[string]interface{}, key string) float64 {
	if context == nil {
		return 0
	}
	switch v := context[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
