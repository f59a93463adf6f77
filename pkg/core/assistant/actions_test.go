package assistant

import (
	"testing"

	"github.com/voxcart/voxcart/pkg/core/types"
)

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		utterance string
		want      string
	}{
		{"find me a red dress", "red dress"},
		{"search for running shoes", "running shoes"},
		{"I'm looking for a gift for my mom", "gift for my mom"},
		{"do you have any wireless headphones", "wireless headphones"},
		{"show me some blue jeans", "blue jeans"},
		{"i want a new phone case", "new phone case"},
		// No lead-in: the whole cleaned utterance is the query.
		{"red dress size medium", "red dress size medium"},
		// Lead-in with nothing after it.
		{"find me some", ""},
	}

	for _, tt := range tests {
		if got := ExtractQuery(tt.utterance); got != tt.want {
			t.Errorf("ExtractQuery(%q) = %q, want %q", tt.utterance, got, tt.want)
		}
	}
}

func TestDeriveActions_ProductSearch(t *testing.T) {
	actions := DeriveActions(IntentProductSearch, "find me a red dress", "", types.ContextSnapshot{})
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Type != types.ActionSearchProducts {
		t.Errorf("type = %q, want %q", actions[0].Type, types.ActionSearchProducts)
	}
	if actions[0].Query != "red dress" {
		t.Errorf("query = %q, want %q", actions[0].Query, "red dress")
	}
}

func TestDeriveActions_ProductSearch_QuotedReplyWins(t *testing.T) {
	reply := `Let me look for "noise cancelling headphones" in the catalog.`
	actions := DeriveActions(IntentProductSearch, "find me headphones", reply, types.ContextSnapshot{})
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Query != "noise cancelling headphones" {
		t.Errorf("query = %q, want quoted phrase from reply", actions[0].Query)
	}
}

func TestDeriveActions_AddToCart(t *testing.T) {
	snapshot := types.ContextSnapshot{
		CurrentProducts: []types.Product{{ID: "prod_123", Name: "Red Dress"}},
	}
	actions := DeriveActions(IntentAddToCart, "add this to my cart", "", snapshot)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Type != types.ActionAddToCart || actions[0].ProductID != "prod_123" {
		t.Errorf("got %+v, want add_to_cart for prod_123", actions[0])
	}

	// No product in context: nothing to add.
	if got := DeriveActions(IntentAddToCart, "add this to my cart", "", types.ContextSnapshot{}); got != nil {
		t.Errorf("expected no actions without context products, got %+v", got)
	}
}

func TestDeriveActions_CheckoutAndOrders(t *testing.T) {
	actions := DeriveActions(IntentCheckout, "checkout", "", types.ContextSnapshot{})
	if len(actions) != 1 || actions[0].Type != types.ActionNavigateToCheckout {
		t.Errorf("checkout: got %+v", actions)
	}

	actions = DeriveActions(IntentOrderStatus, "where is my order", "", types.ContextSnapshot{})
	if len(actions) != 1 || actions[0].Type != types.ActionShowOrders {
		t.Errorf("order status: got %+v", actions)
	}
}

func TestDeriveActions_FunnelNavigation(t *testing.T) {
	tests := []struct {
		utterance string
		wantStage string
	}{
		{"go to the catalog", "catalog"},
		{"take me to my basket", "cart"},
		{"go back to the homepage", "home"},
		{"open the orders page", "orders"},
		{"go to checkout", "checkout"},
	}

	for _, tt := range tests {
		actions := DeriveActions(IntentFunnelNavigation, tt.utterance, "", types.ContextSnapshot{})
		if len(actions) != 1 {
			t.Errorf("%q: expected 1 action, got %d", tt.utterance, len(actions))
			continue
		}
		if actions[0].Type != types.ActionNavigateFunnel || actions[0].Stage != tt.wantStage {
			t.Errorf("%q: got %+v, want navigate_funnel to %q", tt.utterance, actions[0], tt.wantStage)
		}
	}

	// No recognizable stage: best effort means no action.
	if got := DeriveActions(IntentFunnelNavigation, "go to the thing", "", types.ContextSnapshot{}); got != nil {
		t.Errorf("expected no actions for unknown stage, got %+v", got)
	}
}

func TestDeriveActions_NoActionsForHelp(t *testing.T) {
	if got := DeriveActions(IntentGeneralHelp, "hello", "", types.ContextSnapshot{}); got != nil {
		t.Errorf("expected no actions, got %+v", got)
	}
	if got := DeriveActions(IntentUnknown, "hello", "", types.ContextSnapshot{}); got != nil {
		t.Errorf("expected no actions, got %+v", got)
	}
}

func TestQuotedPhrase(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{`I found "red dress" for you`, "red dress"},
		{"Results for “blue jeans” below", "blue jeans"},
		// Apostrophes must not be mistaken for quotes.
		{"Here's what I found, it's great", ""},
		{"no quotes at all", ""},
		{`unterminated "quote`, ""},
	}

	for _, tt := range tests {
		if got := quotedPhrase(tt.reply); got != tt.want {
			t.Errorf("quotedPhrase(%q) = %q, want %q", tt.reply, got, tt.want)
		}
	}
}
