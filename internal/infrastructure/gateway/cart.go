package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/catalog"
)

type cartLineWire struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   catalog.Product `json:"product"`
}

// ListCart fetches the authoritative cart
func (c *Client) ListCart(ctx context.Context) (cart.Items, error) {
	var raw listPayload
	if err := c.do(ctx, http.MethodGet, "/cart", "/cart", nil, &raw); err != nil {
		return nil, err
	}

	items := make(cart.Items, 0, len(raw))
	for _, entry := range raw {
		var w cartLineWire
		if err := json.Unmarshal(entry, &w); err != nil {
			return nil, fmt.Errorf("failed to decode cart line: %w", err)
		}
		id := w.Product.ID
		if id == "" {
			id = w.ProductID
		}
		if id == "" {
			id = w.ID
		}
		if w.Product.ID == "" {
			w.Product.ID = id
		}
		items = append(items, cart.LineItem{ID: id, Quantity: w.Quantity, Product: w.Product})
	}
	return items.Normalize(), nil
}

// AddCartItem creates or increments the line for productID
func (c *Client) AddCartItem(ctx context.Context, productID string, quantity int) error {
	body := map[string]any{"productId": productID, "quantity": quantity}
	return c.do(ctx, http.MethodPost, "/cart", "/cart", body, nil)
}

// UpdateCartItem sets the quantity of a line
func (c *Client) UpdateCartItem(ctx context.Context, id string, quantity int) error {
	body := map[string]any{"quantity": quantity}
	return c.do(ctx, http.MethodPut, "/cart/{id}", "/cart/"+url.PathEscape(id), body, nil)
}

// RemoveCartItem deletes a line
func (c *Client) RemoveCartItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cart/{id}", "/cart/"+url.PathEscape(id), nil, nil)
}

// ClearCart deletes every line
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", "/cart", nil, nil)
}
