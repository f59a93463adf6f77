package assistant

import (
	"context"
	"fmt"

	"github.com/voxcart/voxcart/pkg/core/types"
)

// RuleEngine is a deterministic engine that answers from the intent
// classifier alone. It backs deployments without a model API key and keeps
// tests free of network calls.
type RuleEngine struct{}

// NewRuleEngine creates a rule-based engine.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// Name returns the engine identifier.
func (e *RuleEngine) Name() string {
	return "rules"
}

// Generate produces a canned reply per intent. Token usage is zero.
func (e *RuleEngine) Generate(_ context.Context, _ []types.Turn, snapshot types.ContextSnapshot, utterance string) (*Result, error) {
	intent := ClassifyIntent(utterance)
	actions := DeriveActions(intent, utterance, "", snapshot)

	var text string
	switch intent {
	case IntentProductSearch:
		query := ExtractQuery(utterance)
		if query == "" {
			text = "Sure, what should I look for?"
		} else {
			text = fmt.Sprintf("Let me look for %q in the catalog.", query)
		}
	case IntentAddToCart:
		if len(snapshot.CurrentProducts) > 0 {
			text = fmt.Sprintf("I've noted %s. Confirm on screen to add it to your cart.", snapshot.CurrentProducts[0].Name)
		} else {
			text = "Which product would you like to add? Open one first."
		}
	case IntentCheckout:
		text = "Taking you to checkout."
	case IntentOrderStatus:
		text = "Here are your recent orders."
	case IntentFunnelNavigation:
		text = "On it, one moment."
	default:
		text = "I can search products, manage your cart, or check your orders. What would you like?"
	}

	return &Result{Text: text, Intent: intent, Actions: actions}, nil
}
