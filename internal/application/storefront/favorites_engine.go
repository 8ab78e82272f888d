package storefront

import (
	"context"

	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
)

// FavoritesEngine is the favorites counterpart of CartEngine
type FavoritesEngine struct {
	*engineCore
	gateway FavoritesGateway
	items   favorites.Items
}

// NewFavoritesEngine creates an engine with an empty, unloaded list
func NewFavoritesEngine(gw FavoritesGateway, deps EngineDeps) *FavoritesEngine {
	e := &FavoritesEngine{
		engineCore: newEngineCore("favorites", notify.KeyFavoritesLoadFailed, deps),
		gateway:    gw,
		items:      favorites.Items{},
	}
	e.resync = e.refresh
	e.reload = e.Load
	e.rewriteGuest = e.writeGuest
	return e
}

// Load replaces the favorites with the server or guest copy
func (e *FavoritesEngine) Load(ctx context.Context) error {
	return e.load(ctx, func(ctx context.Context, authed bool) error {
		var (
			items favorites.Items
			err   error
		)
		if authed {
			items, err = e.gateway.ListFavorites(ctx)
		} else {
			items, err = e.deps.Guest.ReadFavorites(ctx)
		}
		if err != nil || items == nil {
			items = favorites.Items{}
		}

		e.mu.Lock()
		e.items = items
		e.mu.Unlock()
		return err
	})
}

func (e *FavoritesEngine) refresh(ctx context.Context) error {
	items, err := e.gateway.ListFavorites(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = favorites.Items{}
	}
	e.mu.Lock()
	e.items = items
	e.source = SourceServer
	e.mu.Unlock()
	return nil
}

// AddToFavorites adds product. Adding a present product is a no-op.
func (e *FavoritesEngine) AddToFavorites(ctx context.Context, product catalog.Product) error {
	return e.mutate(ctx, mutation{
		op: "add",
		id: product.ID,
		apply: func() (func(), bool, error) {
			added, err := e.items.Add(product)
			if err != nil || !added {
				return nil, false, err
			}
			return func() { e.items.Remove(product.ID) }, true, nil
		},
		remote: func(ctx context.Context) error {
			return e.gateway.AddFavorite(ctx, product.ID)
		},
		guest:     e.writeGuest,
		okKey:     notify.KeyFavoriteAdded,
		okArgs:    []any{product.Name},
		failedKey: notify.KeyFavoriteAddFailed,
	})
}

// RemoveFromFavorites removes the product with the given id. Removing a
// missing id is a no-op.
func (e *FavoritesEngine) RemoveFromFavorites(ctx context.Context, id string) error {
	return e.mutate(ctx, mutation{
		op: "remove",
		id: id,
		apply: func() (func(), bool, error) {
			removed, idx, ok := e.items.Remove(id)
			if !ok {
				return nil, false, nil
			}
			return func() { e.items.Restore(removed, idx) }, true, nil
		},
		remote: func(ctx context.Context) error {
			return e.gateway.RemoveFavorite(ctx, id)
		},
		guest:     e.writeGuest,
		okKey:     notify.KeyFavoriteRemoved,
		failedKey: notify.KeyFavoriteRemoveFailed,
	})
}

// Toggle removes product when it is a favorite and adds it otherwise. It
// reports whether the product is a favorite afterwards.
func (e *FavoritesEngine) Toggle(ctx context.Context, product catalog.Product) (bool, error) {
	if e.IsFavorite(product.ID) {
		err := e.RemoveFromFavorites(ctx, product.ID)
		return e.IsFavorite(product.ID), err
	}
	err := e.AddToFavorites(ctx, product)
	return e.IsFavorite(product.ID), err
}

func (e *FavoritesEngine) writeGuest(ctx context.Context) error {
	return e.persistGuest(ctx, func(ctx context.Context) error {
		return e.deps.Guest.WriteFavorites(ctx, e.Items())
	})
}

// IsFavorite reports whether the product id is a favorite
func (e *FavoritesEngine) IsFavorite(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Contains(id)
}

// Items returns a copy of the favorites
func (e *FavoritesEngine) Items() favorites.Items {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Clone()
}
