package commerce

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/client"

	"github.com/voxcart/voxcart/pkg/core/types"
)

const defaultSearchLimit = 5

// StripeClient implements Client over the Stripe API. Carts are Stripe
// checkout sessions; products come from product search.
type StripeClient struct {
	api *client.API
}

// NewStripe creates a Stripe-backed commerce client.
func NewStripe(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// Cart fetches a checkout session and its line items.
func (c *StripeClient) Cart(ctx context.Context, cartID string) (*Cart, error) {
	cs, err := c.api.CheckoutSessions.Get(cartID, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session %s: %w", cartID, err)
	}

	cart := &Cart{
		ID:         cs.ID,
		TotalCents: cs.AmountTotal,
		Currency:   string(cs.Currency),
	}

	itemParams := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(cartID),
	}
	itemParams.Context = ctx
	iter := c.api.CheckoutSessions.ListLineItems(itemParams)
	for iter.Next() {
		li := iter.LineItem()
		item := CartItem{
			Name:       li.Description,
			Quantity:   li.Quantity,
			PriceCents: li.AmountTotal,
		}
		if li.Price != nil && li.Price.Product != nil {
			item.ProductID = li.Price.Product.ID
		}
		cart.Items = append(cart.Items, item)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe line items %s: %w", cartID, err)
	}
	return cart, nil
}

// SearchProducts searches active products by name.
func (c *StripeClient) SearchProducts(ctx context.Context, query string, limit int) ([]types.Product, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	params := &stripe.ProductSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("active:'true' AND name~'%s'", escapeQuery(query)),
			Context: ctx,
		},
	}
	params.Limit = stripe.Int64(int64(limit))

	out := make([]types.Product, 0, limit)
	iter := c.api.Products.Search(params)
	for iter.Next() {
		p := iter.Product()
		prod := types.Product{
			ID:   p.ID,
			Name: p.Name,
			URL:  p.URL,
		}
		if p.DefaultPrice != nil {
			prod.PriceCents = p.DefaultPrice.UnitAmount
			prod.Currency = string(p.DefaultPrice.Currency)
		}
		out = append(out, prod)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe product search: %w", err)
	}
	return out, nil
}

// escapeQuery strips quote characters that would break the Stripe search
// query syntax.
func escapeQuery(q string) string {
	q = strings.ReplaceAll(q, `\`, ``)
	q = strings.ReplaceAll(q, `'`, `\'`)
	return q
}
