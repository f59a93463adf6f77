package assistant

import (
	"strings"

	"github.com/voxcart/voxcart/pkg/core/types"
)

// Funnel stages recognized by navigate_funnel extraction.
var funnelStages = []string{"home", "catalog", "product", "cart", "checkout", "orders"}

var stageSynonyms = map[string]string{
	"basket":   "cart",
	"bag":      "cart",
	"shop":     "catalog",
	"products": "catalog",
	"order":    "orders",
	"homepage": "home",
	"start":    "home",
}

// Lead-in phrases stripped from a search utterance to recover the query.
// Longer phrases first so "looking for" wins over "look".
var searchLeadIns = []string{
	"do you have any", "do you have", "i am looking for", "i'm looking for",
	"looking for", "look for", "search for", "show me some", "show me",
	"find me", "find", "search", "i want", "i need", "recommend",
}

var queryArticles = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "some": {}, "me": {}, "any": {},
}

// DeriveActions turns a classified intent plus the reply's extractable
// entities into suggested actions. Extraction is heuristic and best-effort;
// no extractable action is not an error.
func DeriveActions(intent, utterance, reply string, snapshot types.ContextSnapshot) []types.SuggestedAction {
	switch intent {
	case IntentProductSearch:
		query := quotedPhrase(reply)
		if query == "" {
			query = ExtractQuery(utterance)
		}
		if query == "" {
			return nil
		}
		return []types.SuggestedAction{{Type: types.ActionSearchProducts, Query: query}}

	case IntentAddToCart:
		// Cart adds need a concrete product from context; the dispatcher
		// only records it as discussed, the actual cart mutation is a
		// separate user-confirmed endpoint.
		if len(snapshot.CurrentProducts) == 0 {
			return nil
		}
		return []types.SuggestedAction{{
			Type:      types.ActionAddToCart,
			ProductID: snapshot.CurrentProducts[0].ID,
		}}

	case IntentCheckout:
		return []types.SuggestedAction{{Type: types.ActionNavigateToCheckout}}

	case IntentOrderStatus:
		return []types.SuggestedAction{{Type: types.ActionShowOrders}}

	case IntentFunnelNavigation:
		stage := extractStage(utterance)
		if stage == "" {
			return nil
		}
		return []types.SuggestedAction{{Type: types.ActionNavigateFunnel, Stage: stage}}
	}
	return nil
}

// ExtractQuery recovers the search phrase from a product-search utterance by
// stripping the lead-in phrase and leading articles.
func ExtractQuery(utterance string) string {
	padded := padWords(utterance)
	for _, lead := range searchLeadIns {
		idx := strings.Index(padded, " "+lead+" ")
		if idx < 0 {
			continue
		}
		rest := padded[idx+len(lead)+2:]
		words := strings.Fields(rest)
		for len(words) > 0 {
			if _, ok := queryArticles[words[0]]; !ok {
				break
			}
			words = words[1:]
		}
		if len(words) == 0 {
			return ""
		}
		return strings.Join(words, " ")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(padded), " "))
}

func extractStage(utterance string) string {
	padded := padWords(utterance)
	for _, stage := range funnelStages {
		if strings.Contains(padded, " "+stage+" ") {
			return stage
		}
	}
	for synonym, stage := range stageSynonyms {
		if strings.Contains(padded, " "+synonym+" ") {
			return stage
		}
	}
	return ""
}

// quotedPhrase returns the first double- or single-quoted phrase in the
// reply, if any.
func quotedPhrase(reply string) string {
	// Straight single quotes are skipped: apostrophes would false-match.
	for _, quote := range []string{`"`, "“"} {
		start := strings.Index(reply, quote)
		if start < 0 {
			continue
		}
		closing := quote
		if quote == "“" {
			closing = "”"
		}
		end := strings.Index(reply[start+len(quote):], closing)
		if end <= 0 {
			continue
		}
		phrase := strings.TrimSpace(reply[start+len(quote) : start+len(quote)+end])
		if phrase != "" && len(phrase) <= 120 {
			return phrase
		}
	}
	return ""
}
