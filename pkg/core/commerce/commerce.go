// Package commerce is the read-only collaborator contract over the store's
// commerce platform. Lookups enrich turn context; their failures are
// non-fatal enrichment misses, never turn failures.
package commerce

import (
	"context"

	"github.com/voxcart/voxcart/pkg/core/types"
)

// Client is the commerce collaborator contract.
type Client interface {
	// Cart returns the current cart state for context enrichment.
	Cart(ctx context.Context, cartID string) (*Cart, error)

	// SearchProducts runs a catalog search for a free-text query.
	SearchProducts(ctx context.Context, query string, limit int) ([]types.Product, error)
}

// Cart is a read-only view of a shopper's cart.
type Cart struct {
	ID         string     `json:"id"`
	Items      []CartItem `json:"items"`
	TotalCents int64      `json:"total_cents"`
	Currency   string     `json:"currency"`
}

// CartItem is one cart line.
type CartItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}
