package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlabhq/tradelab/internal/events"
)

// advisorServer fakes the chat-completions endpoint with a fixed reply.
func advisorServer(t *testing.T, replyContent string, tokens int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)

		reply := map[string]interface{}{
			"id":    "chatcmpl-test",
			"model": req.Model,
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": replyContent}},
			},
			"usage": map[string]int{"total_tokens": tokens},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
}

func newTestClient(endpoint string, bus *events.Bus) *Client {
	return New(Config{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Timeout:  5 * time.Second,
	}, nil, bus, zerolog.Nop())
}

func TestThinkParsesReply(t *testing.T) {
	content := "Here is my analysis:\n```json\n" +
		`{"assessment": "strong", "next_action": "run_short_sim", "reasoning": "winrate is high", "confidence": 0.85}` +
		"\n```"
	srv := advisorServer(t, content, 420)
	defer srv.Close()

	client := newTestClient(srv.URL, nil)
	resp := client.Think(context.Background(), NodeEvaluateSimulation, map[string]interface{}{
		"result": map[string]interface{}{"win_rate": 75.0},
	})

	require.True(t, resp.Success)
	assert.False(t, resp.Fallback)
	assert.Equal(t, ActionRunShortSim, resp.NextAction())
	assert.Equal(t, "winrate is high", resp.Reasoning)
	assert.Equal(t, 0.85, resp.Confidence)
	assert.Equal(t, 420, resp.TokensUsed)

	stats := client.Stats()
	assert.Equal(t, 1, stats.Requests)
	assert.Equal(t, 0, stats.Fallbacks)
	assert.Equal(t, 420, stats.TokensUsed)
	assert.InDelta(t, 420*costPerToken, stats.CostUSD, 1e-9)
}

func TestThinkMalformedReplyFallsBack(t *testing.T) {
	srv := advisorServer(t, "I cannot answer in JSON right now.", 50)
	defer srv.Close()

	client := newTestClient(srv.URL, nil)
	resp := client.Think(context.Background(), NodeEvaluateSimulation, map[string]interface{}{"score": 70.0})

	require.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.LessOrEqual(t, resp.Confidence, 0.3)
	assert.Equal(t, ActionRunShortSim, resp.NextAction())
	assert.Contains(t, resp.Reasoning, "fallback")

	// Tokens were still consumed and accounted
	assert.Equal(t, 50, client.Stats().TokensUsed)
	assert.Equal(t, 1, client.Stats().Fallbacks)
}

func TestThinkWithoutCredential(t *testing.T) {
	client := New(Config{Endpoint: "http://127.0.0.1:1"}, nil, nil, zerolog.Nop())

	resp := client.Think(context.Background(), NodeOptimizeParameters, nil)
	require.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.NotNil(t, resp.Content["parameters"])
}

func TestThinkServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, nil)
	resp := client.Think(context.Background(), NodeSearchHistory, nil)

	require.True(t, resp.Success)
	assert.True(t, resp.Fallback)
	assert.Equal(t, "", resp.Content["best_version_id"])
	assert.Equal(t, 1, client.Stats().Errors)
}

func TestThinkClampsOptimizedParameters(t *testing.T) {
	content := `{"parameters": {"rsi_oversold": 5, "position_size_pct": 15, "stop_loss_pct": 99}, "reasoning": "aggressive", "confidence": 0.9}`
	srv := advisorServer(t, content, 100)
	defer srv.Close()

	bus := events.NewBus(50)
	client := newTestClient(srv.URL, bus)
	resp := client.Think(context.Background(), NodeOptimizeParameters, nil)

	require.True(t, resp.Success)
	params := resp.Parameters()
	assert.Equal(t, 25.0, params["rsi_oversold"])
	assert.Equal(t, 15.0, params["position_size_pct"])
	assert.Equal(t, 2.0, params["stop_loss_pct"])

	// One warning event per clamped field
	warnings := 0
	for _, ev := range bus.Get(0, "", time.Time{}) {
		if ev.Severity == events.SeverityWarning {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"leading prose", `Sure: {"a": 1} trailing`, `{"a": 1}`, true},
		{"nested objects", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, true},
		{"braces inside strings", `{"a": "}{"}`, `{"a": "}{"}`, true},
		{"markdown fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackRouting(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{80, ActionRunShortSim},
		{65, ActionRunShortSim},
		{55, ActionOptimize},
		{50, ActionOptimize},
		{30, ActionSearchHistory},
	}

	for _, tt := range tests {
		resp := fallbackResponse(NodeEvaluateSimulation, map[string]interface{}{"score": tt.score}, "test")
		assert.Equal(t, tt.want, resp.NextAction(), "score %.0f", tt.score)
		assert.True(t, resp.Success)
		assert.True(t, resp.Fallback)
		assert.LessOrEqual(t, resp.Confidence, 0.3)
	}
}

func TestFallbackNodes(t *testing.T) {
	market := fallbackResponse(NodeEvaluateMarket, nil, "test")
	assert.Equal(t, true, market.Content["tradeable"])

	failure := fallbackResponse(NodeAnalyzeFailure, nil, "test")
	assert.NotEmpty(t, failure.Content["suggestions"])

	gen := fallbackResponse(NodeGenerateStrategy, nil, "test")
	assert.Equal(t, "scalping", gen.Content["strategy_type"])
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := buildPrompt(NodeEvaluateMarket, map[string]interface{}{
		"symbol":     "BTC-USD",
		"conditions": map[string]interface{}{"rsi": 55.5},
		"ignored":    "value",
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "BTC-USD")
	assert.Contains(t, prompt, `"rsi": 55.5`)
	assert.NotContains(t, prompt, "{symbol}")

	_, err = buildPrompt(Node("BOGUS"), nil)
	assert.Error(t, err)
}

func TestResponseParameters(t *testing.T) {
	resp := Response{Content: map[string]interface{}{
		"parameters": map[string]interface{}{
			"rsi_oversold": 30.0,
			"note":         "not a number",
		},
	}}

	params := resp.Parameters()
	assert.Equal(t, map[string]float64{"rsi_oversold": 30.0}, params)

	assert.Nil(t, Response{Content: map[string]interface{}{}}.Parameters())
}
