package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPrompt pins the reply format for every node.
const systemPrompt = "You are an expert cryptocurrency trading advisor. Reply only with valid JSON."

// promptTemplates holds the fixed user prompt per node. Placeholders
// of the form {name} are replaced with JSON-encoded context values.
var promptTemplates = map[Node]string{
	NodeEvaluateMarket: `Assess the current market conditions for {symbol}.

Market snapshot:
{conditions}

Reply with JSON:
{"market_state": "trending_up|trending_down|ranging|volatile", "tradeable": true|false, "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeEvaluateSimulation: `Evaluate this paper-trading simulation result and decide the next step.

Result:
{result}

Current strategy configuration:
{current_config}

Market conditions during the run:
{conditions}

Decide between:
- "run_short_sim": the strategy looks strong, validate it on a longer run
- "optimize": the strategy is promising but needs parameter tuning
- "search_history": the strategy is weak, look for a better historical version

Reply with JSON:
{"assessment": "...", "next_action": "run_short_sim|optimize|search_history", "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeOptimizeParameters: `Optimize the trading strategy parameters based on recent performance.

Recent simulation results (newest first):
{recent_results}

Current configuration:
{current_config}

Performance patterns:
{patterns}

Suggest new values only for parameters that should change. Allowed
parameters: rsi_oversold, rsi_overbought, price_change_threshold,
micro_profit_target, micro_stop_loss, position_size_pct, stop_loss_pct,
take_profit_pct, min_time_between_trades, min_buy_score, min_sell_score.

Reply with JSON:
{"parameters": {"param_name": value, ...}, "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeSearchHistory: `Pick the best historical strategy version for the current market.

Current market conditions:
{conditions}

Available versions:
{versions}

Reply with JSON:
{"best_version_id": "..." or "", "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeDecideNextStep: `Decide the agent's next step.

Agent state:
{state}

Recent results:
{recent_results}

Reply with JSON:
{"next_action": "run_short_sim|optimize|search_history", "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeAnalyzeFailure: `Analyze why this simulation failed and suggest corrections.

Failure:
{failure}

Configuration in use:
{current_config}

Reply with JSON:
{"cause": "...", "suggestions": ["...", ...], "reasoning": "...", "confidence": 0.0-1.0}`,

	NodeGenerateStrategy: `Generate a fresh strategy parameter set for the current market.

Market conditions:
{conditions}

Baseline configuration:
{current_config}

Reply with JSON:
{"strategy_type": "conservative|scalping|momentum", "parameters": {"param_name": value, ...}, "reasoning": "...", "confidence": 0.0-1.0}`,
}

// buildPrompt renders a node's template with the given context.
// Unknown placeholders are left in place; unknown context keys are
// ignored.
func buildPrompt(node Node, context map[string]interface{}) (string, error) {
	template, ok := promptTemplates[node]
	if !ok {
		return "", fmt.Errorf("unknown advisor node %q", node)
	}

	prompt := template
	for key, value := range context {
		placeholder := "{" + key + "}"
		if !strings.Contains(prompt, placeholder) {
			continue
		}
		prompt = strings.ReplaceAll(prompt, placeholder, renderValue(value))
	}
	return prompt, nil
}

// renderValue encodes a context value for prompt embedding. Strings
// pass through unquoted; everything else is JSON.
func renderValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
