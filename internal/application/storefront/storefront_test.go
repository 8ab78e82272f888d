package storefront

import (
	"context"
	"testing"
	"time"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type storefrontFixture struct {
	sf     *Storefront
	gw     *MockGateway
	guest  *failingGuest
	tokens func() string
}

func newStorefrontFixture(t *testing.T) *storefrontFixture {
	t.Helper()
	_, guest := newGuestStore(t)
	f := &storefrontFixture{gw: new(MockGateway), guest: guest}
	f.sf = New("g1", Options{
		Gateways: func(tokens func() string) Gateway {
			f.tokens = tokens
			return f.gw
		},
		Guest: guest,
		Inbox: newInbox(t),
	})
	return f
}

func TestStorefront_GuestThenLoginMigrates(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)

	require.NoError(t, f.sf.Init(ctx))
	assert.Equal(t, session.StatusAnonymous, f.sf.Session().Status())
	assert.Equal(t, SourceGuest, f.sf.Cart().Source())

	require.NoError(t, f.sf.Cart().AddToCart(ctx, product("p1"), 2))
	require.NoError(t, f.sf.Favorites().AddToFavorites(ctx, product("p3")))
	assert.Empty(t, f.tokens())

	server := cart.Items{{ID: "p1", Quantity: 2, Product: product("p1")}}
	f.gw.On("Login", mock.Anything, mock.Anything).Return(session.Auth{Token: "tok", User: buyer}, nil).Once()
	f.gw.On("AddCartItem", mock.Anything, "p1", 2).Return(nil).Once()
	f.gw.On("AddFavorite", mock.Anything, "p3").Return(nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(server, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{product("p3")}, nil).Once()

	report, err := f.sf.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, MigrationReport{CartAttempted: 1, FavoritesAttempted: 1}, report)
	assert.Equal(t, "tok", f.tokens(), "gateway authenticates with the session token")

	assert.Equal(t, SourceServer, f.sf.Cart().Source())
	assert.Equal(t, SourceServer, f.sf.Favorites().Source())
	assert.True(t, f.sf.Cart().IsInCart("p1"))
	assert.True(t, f.sf.Favorites().IsFavorite("p3"))

	lines, err := f.guest.ReadCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines, "guest cart cleared after migration")
	f.gw.AssertExpectations(t)
}

func TestStorefront_InitWithStoredToken(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	require.NoError(t, f.guest.WriteToken(ctx, "tok"))

	f.gw.On("Profile", mock.Anything).Return(buyer, nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(cart.Items{}, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{}, nil).Once()

	require.NoError(t, f.sf.Init(ctx))
	assert.True(t, f.sf.Session().IsAuthenticated())
	assert.Equal(t, SourceServer, f.sf.Cart().Source())
	f.gw.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)
	f.gw.AssertExpectations(t)
}

func TestStorefront_LogoutReloadsGuestData(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	require.NoError(t, f.guest.WriteToken(ctx, "tok"))

	f.gw.On("Profile", mock.Anything).Return(buyer, nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(cart.Items{{ID: "p1", Quantity: 1, Product: product("p1")}}, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{}, nil).Once()
	require.NoError(t, f.sf.Init(ctx))
	require.True(t, f.sf.Cart().IsInCart("p1"))

	f.gw.On("Logout", mock.Anything).Return(errBackend).Once()
	f.sf.Logout(ctx)

	assert.False(t, f.sf.Session().IsAuthenticated())
	assert.Equal(t, SourceGuest, f.sf.Cart().Source())
	assert.Empty(t, f.sf.Cart().Items())
}

func TestStorefront_CheckProfileLosingSession(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	require.NoError(t, f.guest.WriteToken(ctx, "tok"))

	f.gw.On("Profile", mock.Anything).Return(buyer, nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(cart.Items{{ID: "p1", Quantity: 1, Product: product("p1")}}, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{}, nil).Once()
	require.NoError(t, f.sf.Init(ctx))

	f.gw.On("Profile", mock.Anything).Return(session.User{}, errBackend).Once()
	assert.ErrorIs(t, f.sf.CheckProfile(ctx), errBackend)
	assert.Equal(t, SourceGuest, f.sf.Cart().Source())
	assert.Empty(t, f.sf.Cart().Items())
}

func TestStorefront_LoginFailureKeepsGuestData(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	require.NoError(t, f.sf.Init(ctx))
	require.NoError(t, f.sf.Cart().AddToCart(ctx, product("p1"), 1))

	f.gw.On("Login", mock.Anything, mock.Anything).Return(session.Auth{}, errBackend).Once()
	_, err := f.sf.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, errBackend)

	lines, err := f.guest.ReadCart(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	f.gw.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)
}

func loginWithExpiringToken(t *testing.T, f *storefrontFixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.sf.Init(ctx))

	f.gw.On("Login", mock.Anything, mock.Anything).
		Return(session.Auth{Token: signedToken(t, time.Now().Add(time.Hour)), User: buyer}, nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(cart.Items{{ID: "s1", Quantity: 4, Product: product("s1")}}, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{product("s2")}, nil).Once()
	_, err := f.sf.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Equal(t, SourceServer, f.sf.Cart().Source())

	f.sf.session.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	require.False(t, f.sf.Session().IsAuthenticated())
}

func TestStorefront_ExpiredTokenKeepsAccountDataOutOfGuestStore(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	loginWithExpiringToken(t, f)

	require.NoError(t, f.sf.Cart().AddToCart(ctx, product("p9"), 1))
	assert.Equal(t, SourceGuest, f.sf.Cart().Source())
	assert.Equal(t, []string{"p9"}, lineIDs(f.sf.Cart().Items()))

	stored, err := f.guest.ReadCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, lineIDs(stored), "only the guest line is stored")
	f.gw.AssertNotCalled(t, "AddCartItem", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, f.sf.Favorites().AddToFavorites(ctx, product("p8")))
	favs, err := f.guest.ReadFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, "p8", favs[0].ID)

	f.gw.On("Login", mock.Anything, mock.Anything).Return(session.Auth{Token: "tok", User: buyer}, nil).Once()
	f.gw.On("AddCartItem", mock.Anything, "p9", 1).Return(nil).Once()
	f.gw.On("AddFavorite", mock.Anything, "p8").Return(nil).Once()
	f.gw.On("ListCart", mock.Anything).Return(cart.Items{}, nil).Once()
	f.gw.On("ListFavorites", mock.Anything).Return(favorites.Items{}, nil).Once()
	report, err := f.sf.Login(ctx, session.Credentials{Email: "sara@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, MigrationReport{CartAttempted: 1, FavoritesAttempted: 1}, report)
	f.gw.AssertNotCalled(t, "AddCartItem", mock.Anything, "s1", mock.Anything)
}

func TestStorefront_CheckProfileAfterExpiryReloadsGuestData(t *testing.T) {
	ctx := context.Background()
	f := newStorefrontFixture(t)
	loginWithExpiringToken(t, f)

	require.NoError(t, f.sf.CheckProfile(ctx))
	assert.Equal(t, session.StatusAnonymous, f.sf.Session().Status())
	assert.Equal(t, SourceGuest, f.sf.Cart().Source())
	assert.Equal(t, SourceGuest, f.sf.Favorites().Source())
	assert.Empty(t, f.sf.Cart().Items())
	f.gw.AssertNotCalled(t, "Profile", mock.Anything)
}
