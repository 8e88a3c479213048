// Package llm provides the multi-provider gateway used for planning calls.
// Each provider client speaks its native HTTP API; the Gateway applies a
// fixed failover chain across them and repairs truncated structured replies.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Client is the interface every LLM provider implements.
type Client interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)
	// Provider returns the provider name for logging and attempt records.
	Provider() string
}

// APIError is a non-transport failure reported by a provider: auth, quota,
// or a server-side error. Transport failures stay plain wrapped errors.
type APIError struct {
	ProviderName string
	StatusCode   int
	Message      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.ProviderName, e.StatusCode, e.Message)
}

// Kind classifies the failure for logging.
func (e *APIError) Kind() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return "auth"
	case e.StatusCode == http.StatusTooManyRequests:
		return "quota"
	case e.StatusCode >= 500:
		return "server"
	default:
		return "api"
	}
}
