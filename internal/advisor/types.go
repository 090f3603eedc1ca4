// Package advisor asks a language model for trading decisions through
// an OpenAI-compatible chat endpoint, with deterministic node-specific
// fallbacks so the agent keeps improving when no model is reachable.
package advisor

// Node identifies one decision prompt.
type Node string

const (
	NodeEvaluateMarket     Node = "EVALUATE_MARKET"
	NodeEvaluateSimulation Node = "EVALUATE_SIMULATION"
	NodeOptimizeParameters Node = "OPTIMIZE_PARAMETERS"
	NodeSearchHistory      Node = "SEARCH_HISTORY"
	NodeDecideNextStep     Node = "DECIDE_NEXT_STEP"
	NodeAnalyzeFailure     Node = "ANALYZE_FAILURE"
	NodeGenerateStrategy   Node = "GENERATE_STRATEGY"
)

// Next-action verdicts the agent understands in replies.
const (
	ActionRunShortSim   = "run_short_sim"
	ActionOptimize      = "optimize"
	ActionSearchHistory = "search_history"
)

// Response is the parsed outcome of one Think call. Fallback responses
// still report Success so the agent treats them like advisor replies.
type Response struct {
	Success    bool                   `json:"success"`
	Node       Node                   `json:"node"`
	Content    map[string]interface{} `json:"content"`
	Reasoning  string                 `json:"reasoning"`
	Confidence float64                `json:"confidence"`
	TokensUsed int                    `json:"tokens_used"`
	Fallback   bool                   `json:"fallback"`
}

// NextAction returns the reply's next_action field, if any.
func (r Response) NextAction() string {
	if s, ok := r.Content["next_action"].(string); ok {
		return s
	}
	return ""
}

// Parameters returns the reply's numeric parameters map, if any.
func (r Response) Parameters() map[string]float64 {
	raw, ok := r.Content["parameters"].(map[string]interface{})
	if !ok {
		return nil
	}

	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out
}

// Stats is the cumulative usage and cost accounting.
type Stats struct {
	Requests   int     `json:"requests"`
	Fallbacks  int     `json:"fallbacks"`
	Errors     int     `json:"errors"`
	TokensUsed int     `json:"tokens_used"`
	CostUSD    float64 `json:"cost_usd"`
}

// chatRequest is the OpenAI-compatible completion payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
