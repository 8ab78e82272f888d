package storefront

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/domain/session"
	"github.com/biyariq/storefront/internal/infrastructure/gueststore"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListCart(ctx context.Context) (cart.Items, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(cart.Items), args.Error(1)
}

func (m *MockGateway) AddCartItem(ctx context.Context, productID string, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *MockGateway) UpdateCartItem(ctx context.Context, id string, quantity int) error {
	return m.Called(ctx, id, quantity).Error(0)
}

func (m *MockGateway) RemoveCartItem(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockGateway) ClearCart(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockGateway) ListFavorites(ctx context.Context) (favorites.Items, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(favorites.Items), args.Error(1)
}

func (m *MockGateway) AddFavorite(ctx context.Context, productID string) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockGateway) RemoveFavorite(ctx context.Context, productID string) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockGateway) Login(ctx context.Context, creds session.Credentials) (session.Auth, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(session.Auth), args.Error(1)
}

func (m *MockGateway) Register(ctx context.Context, reg session.Registration) (session.Auth, error) {
	args := m.Called(ctx, reg)
	return args.Get(0).(session.Auth), args.Error(1)
}

func (m *MockGateway) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockGateway) Profile(ctx context.Context) (session.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(session.User), args.Error(1)
}

// authFlag is a switchable AuthState
type authFlag struct{ atomic.Bool }

func (a *authFlag) IsAuthenticated() bool { return a.Load() }

// failingGuest wraps guest storage and fails writes while failWrites is set,
// or for the next failNext writes
type failingGuest struct {
	*gueststore.Snapshot
	failWrites atomic.Bool
	failNext   atomic.Int32
	failReads  atomic.Bool
}

var errStoreDown = errors.New("store down")

func (f *failingGuest) writeFails() bool {
	if f.failWrites.Load() {
		return true
	}
	for {
		n := f.failNext.Load()
		if n <= 0 {
			return false
		}
		if f.failNext.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (f *failingGuest) WriteCart(ctx context.Context, items cart.Items) error {
	if f.writeFails() {
		return errStoreDown
	}
	return f.Snapshot.WriteCart(ctx, items)
}

func (f *failingGuest) WriteFavorites(ctx context.Context, items favorites.Items) error {
	if f.writeFails() {
		return errStoreDown
	}
	return f.Snapshot.WriteFavorites(ctx, items)
}

func (f *failingGuest) ReadCart(ctx context.Context) (cart.Items, error) {
	if f.failReads.Load() {
		return nil, errStoreDown
	}
	return f.Snapshot.ReadCart(ctx)
}

var errBackend = errors.New("backend unavailable")

func product(id string) catalog.Product {
	return catalog.Product{
		ID:    id,
		Name:  catalog.LocalizedText{Ar: "منتج " + id, En: "Product " + id},
		Price: decimal.NewFromInt(100),
		Kind:  catalog.ProductKindPhysical,
	}
}

func newGuestStore(t *testing.T) (*gueststore.MemoryStore, *failingGuest) {
	t.Helper()
	store := gueststore.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	return store, &failingGuest{Snapshot: gueststore.NewSnapshot(store, "g1", nil)}
}

func newInbox(t *testing.T) *notify.Inbox {
	t.Helper()
	cat, err := notify.NewCatalog()
	require.NoError(t, err)
	return notify.NewInbox(cat, notify.English, 50, nil)
}

func keys(ns []notify.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Key)
	}
	return out
}

func lineIDs(items cart.Items) []string {
	out := make([]string, 0, len(items))
	for _, l := range items {
		out = append(out, l.ID)
	}
	return out
}
