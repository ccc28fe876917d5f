package llm

import (
	"context"
	"strings"
)

// CompletionRequest is one call to the generative backend: a system turn, a
// user turn and a schema expectation.
type CompletionRequest struct {
	System      string
	User        string
	Model       string // empty uses the client default
	Temperature float64
	JSONOnly    bool
	Kind        string // metric label: "intent" or "synthesis"
}

// Client is the generative backend. Implementations enforce their own call
// timeout; callers treat every error the same as a timeout.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StripFences removes a markdown code fence around a completion. Models in
// JSON mode occasionally wrap the object anyway.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
