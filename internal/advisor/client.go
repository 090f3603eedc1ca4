package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/metrics"
	"github.com/quantlabhq/tradelab/internal/strategy"
)

// costPerToken converts token usage to an approximate USD cost.
const costPerToken = 0.00003

// Config configures the advisor client.
type Config struct {
	Endpoint    string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint. With
// no API key every Think call resolves through the deterministic
// fallbacks. One call is in flight at a time.
type Client struct {
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	bus         *events.Bus
	log         zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates an advisor client. The breaker may be nil.
func New(cfg Config, breaker *gobreaker.CircuitBreaker, bus *events.Bus, log zerolog.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1500
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		breaker:     breaker,
		bus:         bus,
		log:         log.With().Str("component", "advisor").Logger(),
	}
}

// Think runs one decision node. Every failure path resolves to the
// node's deterministic fallback; the returned Response always has
// Success set.
func (c *Client) Think(ctx context.Context, node Node, nodeContext map[string]interface{}) Response {
	c.mu.Lock()
	c.stats.Requests++
	c.mu.Unlock()

	if c.apiKey == "" {
		return c.fallback(node, nodeContext, "no advisor credential configured")
	}

	prompt, err := buildPrompt(node, nodeContext)
	if err != nil {
		return c.fallback(node, nodeContext, err.Error())
	}

	start := time.Now()
	content, tokens, err := c.complete(ctx, prompt)
	durationMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordAdvisorRequest(string(node), "error", durationMs, 0)
		c.mu.Lock()
		c.stats.Errors++
		c.mu.Unlock()
		c.log.Warn().Err(err).Str("node", string(node)).Msg("Advisor request failed")
		return c.fallback(node, nodeContext, fmt.Sprintf("advisor request failed: %v", err))
	}

	c.recordUsage(tokens)

	parsed, ok := parseReply(content)
	if !ok {
		metrics.RecordAdvisorRequest(string(node), "malformed", durationMs, tokens)
		c.log.Warn().Str("node", string(node)).Msg("Advisor reply was not valid JSON")
		return c.fallback(node, nodeContext, "advisor reply was not valid JSON")
	}
	metrics.RecordAdvisorRequest(string(node), "success", durationMs, tokens)

	resp := Response{
		Success:    true,
		Node:       node,
		Content:    parsed,
		Reasoning:  stringField(parsed, "reasoning"),
		Confidence: clamp01(floatField(parsed, "confidence")),
		TokensUsed: tokens,
	}

	if node == NodeOptimizeParameters {
		c.validateParameters(&resp)
	}
	return resp
}

// Stats returns the cumulative usage accounting.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Client) complete(ctx context.Context, prompt string) (string, int, error) {
	call := func() (interface{}, error) {
		return c.doRequest(ctx, prompt)
	}

	var res interface{}
	var err error
	if c.breaker != nil {
		res, err = c.breaker.Execute(call)
	} else {
		res, err = call()
	}
	if err != nil {
		return "", 0, err
	}

	reply := res.(*chatResponse)
	if len(reply.Choices) == 0 {
		return "", reply.Usage.TotalTokens, fmt.Errorf("no choices in reply")
	}
	return reply.Choices[0].Message.Content, reply.Usage.TotalTokens, nil
}

func (c *Client) doRequest(ctx context.Context, prompt string) (*chatResponse, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("advisor API error: %s", errResp.Error.Message)
		}
		return nil, fmt.Errorf("advisor API error (status %d)", resp.StatusCode)
	}

	var reply chatResponse
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &reply, nil
}

// validateParameters clamps every suggested numeric into its safety
// range, emitting a warning event per adjustment.
func (c *Client) validateParameters(resp *Response) {
	params := resp.Parameters()
	if params == nil {
		return
	}

	clamped, adjusted := strategy.ClampParams(params)
	for _, adj := range adjusted {
		c.log.Warn().
			Str("param", adj.Param).
			Float64("suggested", adj.Suggested).
			Float64("applied", adj.Applied).
			Msg("Advisor parameter clamped into safe range")
		if c.bus != nil {
			c.bus.Emit(events.TypeInfo, events.SeverityWarning,
				fmt.Sprintf("Advisor suggestion clamped: %s", adj),
				map[string]interface{}{
					"param":     adj.Param,
					"suggested": adj.Suggested,
					"applied":   adj.Applied,
				})
		}
	}

	normalized := make(map[string]interface{}, len(clamped))
	for k, v := range clamped {
		normalized[k] = v
	}
	resp.Content["parameters"] = normalized
}

func (c *Client) fallback(node Node, nodeContext map[string]interface{}, reason string) Response {
	c.mu.Lock()
	c.stats.Fallbacks++
	c.mu.Unlock()

	metrics.RecordAdvisorRequest(string(node), "fallback", 0, 0)
	c.log.Debug().Str("node", string(node)).Str("reason", reason).Msg("Using deterministic fallback")
	return fallbackResponse(node, nodeContext, reason)
}

func (c *Client) recordUsage(tokens int) {
	cost := float64(tokens) * costPerToken
	metrics.RecordAdvisorCost(cost)

	c.mu.Lock()
	c.stats.TokensUsed += tokens
	c.stats.CostUSD += cost
	c.mu.Unlock()
}

// parseReply extracts and parses the first balanced JSON object in the
// reply; markdown code fences are tolerated since the scan just looks
// for the first opening brace.
func parseReply(content string) (map[string]interface{}, bool) {
	block, ok := firstJSONObject(content)
	if !ok {
		return nil, false
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// firstJSONObject scans for the first balanced {...} block, honouring
// string literals and escapes.
func firstJSONObject(content string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return content[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
