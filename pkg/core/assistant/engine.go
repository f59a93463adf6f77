// Package assistant wraps the generative model behind a capability
// interface and provides the deterministic intent classifier and the
// heuristic suggested-action extraction.
package assistant

import (
	"context"

	"github.com/voxcart/voxcart/pkg/core/types"
)

// Engine produces an assistant reply for a user utterance given the
// conversation history and the commerce context snapshot.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// Generate returns the reply, the classified intent, the suggested
	// actions, and token usage. Implementations classify intent with
	// ClassifyIntent, never by asking the model.
	Generate(ctx context.Context, history []types.Turn, snapshot types.ContextSnapshot, utterance string) (*Result, error)
}

// Result is the structured output of one engine call.
type Result struct {
	Text    string
	Intent  string
	Actions []types.SuggestedAction
	Usage   types.Usage
}

// FallbackReply is the fixed apology substituted when the engine fails.
// The user must always receive a response.
const FallbackReply = "Sorry, I'm having trouble answering right now. Could you say that again?"

// Fallback returns the safe reply used when generation fails.
func Fallback() *Result {
	return &Result{
		Text:   FallbackReply,
		Intent: IntentUnknown,
	}
}
