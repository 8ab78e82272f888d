package storefront

import (
	"context"
	"testing"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedGuest(t *testing.T, guest *failingGuest, lines cart.Items, favs favorites.Items) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, guest.Snapshot.WriteCart(ctx, lines))
	require.NoError(t, guest.Snapshot.WriteFavorites(ctx, favs))
}

func TestMigrator_ReplaysEveryLineAndClears(t *testing.T) {
	ctx := context.Background()
	_, guest := newGuestStore(t)
	seedGuest(t, guest,
		cart.Items{
			{ID: "p1", Quantity: 2, Product: product("p1")},
			{ID: "p2", Quantity: 1, Product: product("p2")},
			{ID: "p3", Quantity: 5, Product: product("p3")},
		},
		favorites.Items{product("p4"), product("p5")},
	)

	gw := new(MockGateway)
	gw.On("AddCartItem", mock.Anything, "p1", 2).Return(nil).Once()
	gw.On("AddCartItem", mock.Anything, "p2", 1).Return(errBackend).Once()
	gw.On("AddCartItem", mock.Anything, "p3", 5).Return(nil).Once()
	gw.On("AddFavorite", mock.Anything, "p4").Return(nil).Once()
	gw.On("AddFavorite", mock.Anything, "p5").Return(nil).Once()
	inbox := newInbox(t)

	m := NewMigrator(guest, gw, MigrationConfig{RatePerSecond: 1000, Burst: 10}, EngineDeps{Notifier: inbox})
	report, err := m.Migrate(ctx)
	require.NoError(t, err)

	assert.Equal(t, MigrationReport{CartAttempted: 3, CartFailed: 1, FavoritesAttempted: 2}, report)
	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "AddCartItem", 3)
	gw.AssertNumberOfCalls(t, "AddFavorite", 2)

	lines, err := guest.ReadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines, "guest cart cleared despite a failed replay")
	favs, err := guest.ReadFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favs)

	assert.Equal(t, []string{notify.KeyMigrationPartial}, keys(inbox.Drain()))
}

func TestMigrator_EmptyGuestMakesNoCalls(t *testing.T) {
	_, guest := newGuestStore(t)
	gw := new(MockGateway)
	inbox := newInbox(t)

	report, err := NewMigrator(guest, gw, MigrationConfig{}, EngineDeps{Notifier: inbox}).Migrate(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report)
	gw.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, inbox.Drain())
}

func TestMigrator_ReadFailureKeepsGuestData(t *testing.T) {
	ctx := context.Background()
	_, guest := newGuestStore(t)
	seedGuest(t, guest, cart.Items{{ID: "p1", Quantity: 1, Product: product("p1")}}, nil)
	guest.failReads.Store(true)

	_, err := NewMigrator(guest, new(MockGateway), MigrationConfig{}, EngineDeps{}).Migrate(ctx)
	assert.ErrorIs(t, err, errStoreDown)

	guest.failReads.Store(false)
	lines, err := guest.ReadCart(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestMigrator_CancelledContextCountsUnsentReplays(t *testing.T) {
	_, guest := newGuestStore(t)
	seedGuest(t, guest,
		cart.Items{{ID: "p1", Quantity: 1, Product: product("p1")}},
		favorites.Items{product("p2")},
	)
	gw := new(MockGateway)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := NewMigrator(guest, gw, MigrationConfig{RatePerSecond: 1, Burst: 1}, EngineDeps{}).Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed())
	gw.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)

	lines, err := guest.ReadCart(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}
