package types

// ActionType tags a suggested action.
type ActionType string

const (
	ActionAddToCart          ActionType = "add_to_cart"
	ActionSearchProducts     ActionType = "search_products"
	ActionNavigateFunnel     ActionType = "navigate_funnel"
	ActionNavigateToCheckout ActionType = "navigate_to_checkout"
	ActionShowOrders         ActionType = "show_orders"
)

// SuggestedAction is a side effect an assistant reply implies should happen.
// It is produced by the assistant engine and consumed exactly once by the
// action dispatcher. Unknown types are ignored by the dispatcher so that new
// action types do not break older deployments.
type SuggestedAction struct {
	Type      ActionType `json:"type"`
	ProductID string     `json:"product_id,omitempty"`
	Query     string     `json:"query,omitempty"`
	Stage     string     `json:"stage,omitempty"`
}
