package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/domain/favorites"
)

// ListFavorites fetches the authoritative favorites. Entries may be bare
// products or {"product": {...}} wrappers.
func (c *Client) ListFavorites(ctx context.Context) (favorites.Items, error) {
	var raw listPayload
	if err := c.do(ctx, http.MethodGet, "/favorites", "/favorites", nil, &raw); err != nil {
		return nil, err
	}

	items := make(favorites.Items, 0, len(raw))
	for _, entry := range raw {
		p, err := decodeFavorite(entry)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items.Dedupe(), nil
}

func decodeFavorite(entry json.RawMessage) (catalog.Product, error) {
	var wrapped struct {
		Product   *catalog.Product `json:"product"`
		ProductID string           `json:"productId"`
	}
	if err := json.Unmarshal(entry, &wrapped); err != nil {
		return catalog.Product{}, fmt.Errorf("failed to decode favorite: %w", err)
	}
	if wrapped.Product != nil {
		p := *wrapped.Product
		if p.ID == "" {
			p.ID = wrapped.ProductID
		}
		return p, nil
	}

	var p catalog.Product
	if err := json.Unmarshal(entry, &p); err != nil {
		return catalog.Product{}, fmt.Errorf("failed to decode favorite: %w", err)
	}
	return p, nil
}

// AddFavorite marks productID as a favorite
func (c *Client) AddFavorite(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodPost, "/favorites", "/favorites", map[string]string{"productId": productID}, nil)
}

// RemoveFavorite unmarks productID
func (c *Client) RemoveFavorite(ctx context.Context, productID string) error {
	return c.do(ctx, http.MethodDelete, "/favorites/{productId}", "/favorites/"+url.PathEscape(productID), nil, nil)
}
