package gueststore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"go.uber.org/zap"
)

// Guest collection key suffixes
const (
	CartKey      = "cart"
	FavoritesKey = "favorites"
	TokenKey     = "token"
)

// Snapshot reads and writes one guest's cart, favorites and bearer token in
// a Store. Keys are "<scope>:cart", "<scope>:favorites" and "<scope>:token".
type Snapshot struct {
	store  Store
	scope  string
	logger *zap.Logger
}

// NewSnapshot binds store to the guest identified by scope
func NewSnapshot(store Store, scope string, logger *zap.Logger) *Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snapshot{store: store, scope: scope, logger: logger}
}

// Key returns the full store key for a collection suffix
func (s *Snapshot) Key(suffix string) string {
	return s.scope + ":" + suffix
}

// ReadCart returns the stored guest cart. An absent or unparseable value
// yields an empty cart; only store failures are returned as errors.
func (s *Snapshot) ReadCart(ctx context.Context) (cart.Items, error) {
	var items cart.Items
	found, err := s.read(ctx, CartKey, &items)
	if err != nil || !found {
		return cart.Items{}, err
	}
	return items.Normalize(), nil
}

// ReadFavorites returns the stored guest favorites with the same absent and
// malformed handling as ReadCart.
func (s *Snapshot) ReadFavorites(ctx context.Context) (favorites.Items, error) {
	var items favorites.Items
	found, err := s.read(ctx, FavoritesKey, &items)
	if err != nil || !found {
		return favorites.Items{}, err
	}
	return items.Dedupe(), nil
}

// WriteCart replaces the stored guest cart
func (s *Snapshot) WriteCart(ctx context.Context, items cart.Items) error {
	return s.write(ctx, CartKey, items.Clone())
}

// WriteFavorites replaces the stored guest favorites
func (s *Snapshot) WriteFavorites(ctx context.Context, items favorites.Items) error {
	return s.write(ctx, FavoritesKey, items.Clone())
}

// DeleteCart removes the stored guest cart
func (s *Snapshot) DeleteCart(ctx context.Context) error {
	return s.store.Delete(ctx, s.Key(CartKey))
}

// Clear removes both guest collections. The token is left alone.
func (s *Snapshot) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.Key(CartKey), s.Key(FavoritesKey))
}

// ReadToken returns the stored bearer token, or "" when none is stored
func (s *Snapshot) ReadToken(ctx context.Context) (string, error) {
	raw, ok, err := s.store.Get(ctx, s.Key(TokenKey))
	if err != nil || !ok {
		return "", err
	}
	return string(raw), nil
}

// WriteToken stores the bearer token
func (s *Snapshot) WriteToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, s.Key(TokenKey), []byte(token))
}

// DeleteToken removes the stored bearer token
func (s *Snapshot) DeleteToken(ctx context.Context) error {
	return s.store.Delete(ctx, s.Key(TokenKey))
}

func (s *Snapshot) read(ctx context.Context, suffix string, dst any) (bool, error) {
	raw, ok, err := s.store.Get(ctx, s.Key(suffix))
	if err != nil {
		return false, err
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Discarding malformed guest snapshot",
			zap.String("key", s.Key(suffix)),
			zap.Int("bytes", len(raw)),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *Snapshot) write(ctx context.Context, suffix string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode guest %s: %w", suffix, err)
	}
	return s.store.Set(ctx, s.Key(suffix), raw)
}
