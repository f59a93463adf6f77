package assistant

import "strings"

// Known intents.
const (
	IntentProductSearch    = "product_search"
	IntentAddToCart        = "add_to_cart"
	IntentCheckout         = "checkout"
	IntentOrderStatus      = "order_status"
	IntentFunnelNavigation = "funnel_navigation"
	IntentGeneralHelp      = "general_help"
	IntentUnknown          = "unknown"
)

type intentRule struct {
	intent  string
	phrases []string
}

// Rule order is precedence: the first matching rule wins. Overlapping
// utterances ("show me my order status") resolve to the earlier rule, so
// keep the more specific intents first.
var intentRules = []intentRule{
	{IntentCheckout, []string{
		"checkout", "check out", "buy now", "buy it", "purchase", "pay",
		"place my order", "place the order", "complete my order",
	}},
	{IntentAddToCart, []string{
		"add to cart", "add this", "add it", "add that", "to my cart",
		"to my basket", "put this in", "put it in",
	}},
	{IntentOrderStatus, []string{
		"order status", "my order", "my orders", "track", "tracking",
		"where is my", "delivery", "shipped", "shipping status",
	}},
	{IntentFunnelNavigation, []string{
		"go to", "go back", "take me to", "take me back", "open the",
		"navigate to", "show me the cart", "show me the catalog",
	}},
	{IntentProductSearch, []string{
		"find", "search", "looking for", "look for", "show me",
		"do you have", "i want", "i need", "any recommendations",
		"recommend",
	}},
}

// ClassifyIntent maps an utterance to a coarse intent. It is a pure function
// of the utterance text: case-insensitive phrase matching on word
// boundaries, first matching rule wins, default general_help.
func ClassifyIntent(utterance string) string {
	padded := padWords(utterance)
	if padded == "  " {
		return IntentGeneralHelp
	}
	for _, rule := range intentRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(padded, " "+phrase+" ") {
				return rule.intent
			}
		}
	}
	return IntentGeneralHelp
}

// padWords lowercases the text, folds punctuation into spaces, and pads the
// result so every word and phrase can be matched against " phrase ".
func padWords(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	if !lastSpace {
		b.WriteByte(' ')
	}
	b.WriteByte(' ')
	return b.String()
}
