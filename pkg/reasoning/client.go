// Package reasoning is the boundary to the external natural-language
// completion capability. Everything behind it is prompt-in, text-out; callers
// decide what the text means and what to do when the service is unreachable.
package reasoning

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks any failure to obtain a completion: network errors,
// non-2xx responses, rate limiting, timeouts. Callers match it with
// errors.Is and fall back to their deterministic substitutes.
var ErrUnavailable = errors.New("reasoning service unavailable")

// Client is the interface for obtaining a text completion.
type Client interface {
	// Complete sends a prompt and returns the response text. A Client makes
	// at most one attempt; retry policy belongs to callers.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Disabled is a Client that always reports the service as unavailable. It is
// used for offline runs where every pipeline fallback should engage.
type Disabled struct{}

// Complete always fails with ErrUnavailable.
func (Disabled) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", fmt.Errorf("reasoning disabled: %w", ErrUnavailable)
}
