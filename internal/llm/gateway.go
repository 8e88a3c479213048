package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// emptyPayload is what degraded results carry instead of parsed data.
var emptyPayload = json.RawMessage("{}")

// Attempt records one provider call inside a Complete exchange.
type Attempt struct {
	Provider string
	Kind     string // transport, auth, quota, server, api, empty
	Err      string
}

// Result is the outcome of a Complete call. It is always usable: when every
// provider fails, AllFailed is set and Data holds an empty object.
type Result struct {
	Provider  string          // provider that produced the accepted response
	Raw       string          // raw response text, for diagnostics
	Data      json.RawMessage // parsed structured payload
	Attempts  []Attempt       // providers tried before (and including) success
	Repaired  bool            // truncation repair was applied
	AllFailed bool            // the whole chain was exhausted
}

// Gateway sends prompts across a fixed, ordered provider chain. A provider
// that fails on transport, auth, quota, or with an empty or degenerate
// response is skipped in favor of the next one. Gateway never panics and
// never blocks past the caller's context.
type Gateway struct {
	chain  []Client
	logger *zap.Logger
}

// NewGateway builds a gateway over the given chain. Order is significant:
// chain[0] is the primary. Nil clients are skipped.
func NewGateway(logger *zap.Logger, chain ...Client) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{logger: logger}
	for _, c := range chain {
		if c != nil {
			g.chain = append(g.chain, c)
		}
	}
	return g
}

// Available reports whether at least one provider is configured.
func (g *Gateway) Available() bool { return len(g.chain) > 0 }

// Providers lists the chain in failover order.
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.chain))
	for i, c := range g.chain {
		names[i] = c.Provider()
	}
	return names
}

// Complete sends the prompt down the failover chain and parses the first
// acceptable response as structured data.
func (g *Gateway) Complete(ctx context.Context, prompt string) Result {
	var attempts []Attempt

	for _, client := range g.chain {
		raw, err := client.Complete(ctx, prompt)
		if err != nil {
			attempt := Attempt{Provider: client.Provider(), Kind: "transport", Err: err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				attempt.Kind = apiErr.Kind()
			}
			attempts = append(attempts, attempt)
			g.logger.Warn("LLM provider failed, falling through",
				zap.String("provider", client.Provider()),
				zap.String("kind", attempt.Kind),
				zap.String("error", attempt.Err))
			continue
		}

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || trimmed == "{}" {
			attempts = append(attempts, Attempt{Provider: client.Provider(), Kind: "empty", Err: "empty or degenerate response"})
			g.logger.Warn("LLM provider returned degenerate response, falling through",
				zap.String("provider", client.Provider()))
			continue
		}

		attempts = append(attempts, Attempt{Provider: client.Provider()})
		data, repaired, ok := parseStructured(trimmed)
		if !ok {
			// Transport succeeded but the payload is unusable even after
			// repair: degrade rather than spend another provider call.
			g.logger.Warn("LLM response unparsable after repair",
				zap.String("provider", client.Provider()),
				zap.String("prefix", clip(trimmed, 120, false)),
				zap.String("suffix", clip(trimmed, 120, true)))
			return Result{
				Provider: client.Provider(),
				Raw:      raw,
				Data:     emptyPayload,
				Attempts: attempts,
			}
		}

		if repaired {
			g.logger.Info("LLM response repaired after truncation",
				zap.String("provider", client.Provider()))
		}
		return Result{
			Provider: client.Provider(),
			Raw:      raw,
			Data:     data,
			Attempts: attempts,
			Repaired: repaired,
		}
	}

	g.logger.Error("All LLM providers failed", zap.Int("attempts", len(attempts)))
	return Result{
		Data:      emptyPayload,
		Attempts:  attempts,
		AllFailed: true,
	}
}

// parseStructured turns raw LLM output into a JSON payload: direct parse,
// then fenced/embedded block, then a single truncation-repair retry.
func parseStructured(raw string) (data json.RawMessage, repaired, ok bool) {
	if isStructured(raw) {
		return json.RawMessage(raw), false, true
	}

	if fenced := extractFenced(raw); fenced != "" && isStructured(fenced) {
		return json.RawMessage(fenced), false, true
	}

	if balanced := extractBalanced(raw); balanced != "" && isStructured(balanced) {
		return json.RawMessage(balanced), false, true
	}

	candidate := structuredCandidate(raw)
	if candidate == "" {
		return nil, false, false
	}
	fixed := repairTruncated(candidate)
	if isStructured(fixed) {
		return json.RawMessage(fixed), true, true
	}

	return nil, false, false
}

// isStructured reports whether s is a valid JSON object or array.
func isStructured(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s[0] != '{' && s[0] != '[' {
		return false
	}
	return json.Valid([]byte(s))
}

// clip returns a short prefix (or suffix) of s for diagnostics.
func clip(s string, n int, fromEnd bool) string {
	if len(s) <= n {
		return s
	}
	if fromEnd {
		return s[len(s)-n:]
	}
	return s[:n]
}
