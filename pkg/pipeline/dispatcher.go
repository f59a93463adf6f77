package pipeline

import (
	"context"
	"log/slog"

	"github.com/voxcart/voxcart/pkg/core/commerce"
	"github.com/voxcart/voxcart/pkg/core/types"
)

const searchForwardLimit = 5

// Dispatcher interprets suggested actions against the loaded session. It
// mutates the in-memory session only; the orchestrator persists the result
// under the same per-session lock. Every handler error is isolated: dispatch
// always completes and never fails the turn.
type Dispatcher struct {
	commerce commerce.Client
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. commerce may be nil; search forwarding
// then becomes a no-op.
func NewDispatcher(commerceClient commerce.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{commerce: commerceClient, logger: logger}
}

// Dispatch executes each action in order and returns the subset that
// actually took effect. Unknown action types are skipped so new action types
// do not crash old deployments.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *types.Session, actions []types.SuggestedAction) []types.SuggestedAction {
	dispatched := make([]types.SuggestedAction, 0, len(actions))
	for _, action := range actions {
		ok := false
		switch action.Type {
		case types.ActionAddToCart:
			ok = d.handleAddToCart(sess, action)
		case types.ActionSearchProducts:
			ok = d.handleSearch(ctx, sess, action)
		case types.ActionNavigateFunnel:
			ok = d.handleNavigate(sess, action.Stage)
		case types.ActionNavigateToCheckout:
			ok = d.handleNavigate(sess, "checkout")
		case types.ActionShowOrders:
			// Rendering orders is the UI's job; nothing to record here.
			ok = true
		default:
			d.logger.Debug("ignoring unknown action type",
				"session_id", sess.ID, "action_type", string(action.Type))
		}
		if ok {
			dispatched = append(dispatched, action)
		}
	}
	return dispatched
}

// handleAddToCart records the product as discussed. It does not mutate the
// cart: cart side effects require explicit user confirmation on a separate
// endpoint.
func (d *Dispatcher) handleAddToCart(sess *types.Session, action types.SuggestedAction) bool {
	if action.ProductID == "" {
		return false
	}
	sess.Analytics.AddProductDiscussed(action.ProductID)
	return true
}

// handleSearch forwards the query to the commerce collaborator and stashes
// the results into the context snapshot. Lookup failures are logged and
// swallowed.
func (d *Dispatcher) handleSearch(ctx context.Context, sess *types.Session, action types.SuggestedAction) bool {
	if action.Query == "" {
		return false
	}
	sess.Context.LastQuery = action.Query
	if d.commerce == nil {
		return true
	}
	products, err := d.commerce.SearchProducts(ctx, action.Query, searchForwardLimit)
	if err != nil {
		d.logger.Warn("product search forwarding failed",
			"session_id", sess.ID, "query", action.Query, "error", err)
		return true
	}
	if len(products) > 0 {
		sess.Context.CurrentProducts = products
	}
	return true
}

func (d *Dispatcher) handleNavigate(sess *types.Session, stage string) bool {
	if stage == "" {
		return false
	}
	sess.Context.FunnelStage = stage
	return true
}
