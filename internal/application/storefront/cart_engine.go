package storefront

import (
	"context"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
)

// CartEngine keeps a session's cart in sync with the backend when signed in
// and with the guest store otherwise. Mutations are applied locally first
// and undone if the sync fails.
type CartEngine struct {
	*engineCore
	gateway CartGateway
	items   cart.Items
}

// NewCartEngine creates an engine with an empty, unloaded cart
func NewCartEngine(gw CartGateway, deps EngineDeps) *CartEngine {
	e := &CartEngine{
		engineCore: newEngineCore("cart", notify.KeyCartLoadFailed, deps),
		gateway:    gw,
		items:      cart.Items{},
	}
	e.resync = e.refresh
	e.reload = e.Load
	e.rewriteGuest = e.writeGuest
	return e
}

// Load replaces the cart with the server copy when signed in, or the guest
// copy otherwise. On failure the cart is left empty and Err is set.
func (e *CartEngine) Load(ctx context.Context) error {
	return e.load(ctx, func(ctx context.Context, authed bool) error {
		var (
			items cart.Items
			err   error
		)
		if authed {
			items, err = e.gateway.ListCart(ctx)
		} else {
			items, err = e.deps.Guest.ReadCart(ctx)
		}
		if err != nil || items == nil {
			items = cart.Items{}
		}

		e.mu.Lock()
		e.items = items
		e.mu.Unlock()
		return err
	})
}

func (e *CartEngine) refresh(ctx context.Context) error {
	items, err := e.gateway.ListCart(ctx)
	if err != nil {
		return err
	}
	if items == nil {
		items = cart.Items{}
	}
	e.mu.Lock()
	e.items = items
	e.source = SourceServer
	e.mu.Unlock()
	return nil
}

// AddToCart adds qty units of product, creating the line or incrementing it
func (e *CartEngine) AddToCart(ctx context.Context, product catalog.Product, qty int) error {
	return e.mutate(ctx, mutation{
		op: "add",
		id: product.ID,
		apply: func() (func(), bool, error) {
			prev, existed, err := e.items.Add(product, qty)
			if err != nil {
				return nil, false, err
			}
			return func() {
				if existed {
					e.items.Restore(prev, -1)
					return
				}
				e.items.Remove(product.ID)
			}, true, nil
		},
		remote: func(ctx context.Context) error {
			return e.gateway.AddCartItem(ctx, product.ID, qty)
		},
		guest:     e.writeGuest,
		okKey:     notify.KeyCartAdded,
		okArgs:    []any{product.Name},
		failedKey: notify.KeyCartAddFailed,
	})
}

// AddOne adds a single unit of product
func (e *CartEngine) AddOne(ctx context.Context, product catalog.Product) error {
	return e.AddToCart(ctx, product, 1)
}

// RemoveFromCart removes the line with the given id. A missing id is a no-op.
func (e *CartEngine) RemoveFromCart(ctx context.Context, id string) error {
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
			return e.gateway.RemoveCartItem(ctx, id)
		},
		guest:     e.writeGuest,
		okKey:     notify.KeyCartRemoved,
		failedKey: notify.KeyCartRemoveFailed,
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line; an unknown id returns cart.ErrCartItemNotFound.
func (e *CartEngine) UpdateQuantity(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return e.RemoveFromCart(ctx, id)
	}
	return e.mutate(ctx, mutation{
		op: "update",
		id: id,
		apply: func() (func(), bool, error) {
			prev, idx, err := e.items.SetQuantity(id, qty)
			if err != nil {
				return nil, false, err
			}
			if prev.Quantity == qty {
				return nil, false, nil
			}
			return func() { e.items.Restore(prev, idx) }, true, nil
		},
		remote: func(ctx context.Context) error {
			return e.gateway.UpdateCartItem(ctx, id, qty)
		},
		guest:     e.writeGuest,
		okKey:     notify.KeyCartUpdated,
		okArgs:    []any{qty},
		failedKey: notify.KeyCartUpdateFailed,
	})
}

// ClearCart empties the cart. It waits for in-flight item mutations.
func (e *CartEngine) ClearCart(ctx context.Context) error {
	return e.mutate(ctx, mutation{
		op: "clear",
		apply: func() (func(), bool, error) {
			snapshot := e.items
			e.items = cart.Items{}
			return func() { e.items = snapshot }, true, nil
		},
		remote: e.gateway.ClearCart,
		guest: func(ctx context.Context) error {
			return e.persistGuest(ctx, e.deps.Guest.DeleteCart)
		},
		okKey:     notify.KeyCartCleared,
		failedKey: notify.KeyCartClearFailed,
	})
}

func (e *CartEngine) writeGuest(ctx context.Context) error {
	return e.persistGuest(ctx, func(ctx context.Context) error {
		return e.deps.Guest.WriteCart(ctx, e.Items())
	})
}

// IsInCart reports whether a line with the given id exists
func (e *CartEngine) IsInCart(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Contains(id)
}

// GetCartItemByID returns the line with the given id
func (e *CartEngine) GetCartItemByID(id string) (cart.LineItem, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	line, _, ok := e.items.Find(id)
	return line, ok
}

// Items returns a copy of the cart lines
func (e *CartEngine) Items() cart.Items {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Clone()
}

// Summary returns line and unit counts and the subtotal
func (e *CartEngine) Summary() cart.Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Summary()
}
