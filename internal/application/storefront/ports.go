package storefront

import (
	"context"

	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/domain/session"
)

// CartGateway is the server-side cart of an authenticated customer
type CartGateway interface {
	ListCart(ctx context.Context) (cart.Items, error)
	AddCartItem(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, id string, quantity int) error
	RemoveCartItem(ctx context.Context, id string) error
	ClearCart(ctx context.Context) error
}

// FavoritesGateway is the server-side favorites list of an authenticated customer
type FavoritesGateway interface {
	ListFavorites(ctx context.Context) (favorites.Items, error)
	AddFavorite(ctx context.Context, productID string) error
	RemoveFavorite(ctx context.Context, productID string) error
}

// AuthGateway exchanges credentials for bearer tokens
type AuthGateway interface {
	Login(ctx context.Context, creds session.Credentials) (session.Auth, error)
	Register(ctx context.Context, reg session.Registration) (session.Auth, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (session.User, error)
}

// Gateway is the full backend API as seen by one session
type Gateway interface {
	CartGateway
	FavoritesGateway
	AuthGateway
}

// GatewayFactory returns a Gateway that authenticates with tokens()
type GatewayFactory func(tokens func() string) Gateway

// GuestSnapshot is the persisted copy of a guest's collections
type GuestSnapshot interface {
	ReadCart(ctx context.Context) (cart.Items, error)
	WriteCart(ctx context.Context, items cart.Items) error
	DeleteCart(ctx context.Context) error
	ReadFavorites(ctx context.Context) (favorites.Items, error)
	WriteFavorites(ctx context.Context, items favorites.Items) error
	Clear(ctx context.Context) error
}

// TokenStore keeps a session's bearer token across process restarts
type TokenStore interface {
	ReadToken(ctx context.Context) (string, error)
	WriteToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// GuestStorage is everything a storefront persists under its guest id
type GuestStorage interface {
	GuestSnapshot
	TokenStore
}

// AuthState reports whether mutations go to the server or the guest store
type AuthState interface {
	IsAuthenticated() bool
}
