package handler

import (
	"github.com/biyariq/storefront/internal/application/storefront"
	"github.com/biyariq/storefront/internal/domain/cart"
	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/biyariq/storefront/internal/domain/favorites"
	"github.com/biyariq/storefront/internal/domain/session"
)

// AddCartItemRequest adds a product snapshot to the cart. Quantity
// defaults to 1 when omitted.
type AddCartItemRequest struct {
	Product  catalog.Product `json:"product"`
	Quantity *int            `json:"quantity" binding:"omitempty,max=9999"`
}

// UpdateCartItemRequest sets a line's quantity; zero or less removes it
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,max=9999"`
}

// FavoriteRequest carries the product snapshot to favorite
type FavoriteRequest struct {
	Product catalog.Product `json:"product"`
}

// LoginRequest is the sign-in payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// RegisterRequest is the sign-up payload
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// CollectionState is shared by the cart and favorites responses
type CollectionState struct {
	Source  storefront.Source `json:"source"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

// CartResponse is the cart as the storefront currently holds it
type CartResponse struct {
	Items   cart.Items   `json:"items"`
	Summary cart.Summary `json:"summary"`
	CollectionState
}

// CartItemResponse is a single cart line lookup
type CartItemResponse struct {
	InCart bool           `json:"in_cart"`
	Item   *cart.LineItem `json:"item,omitempty"`
}

// FavoritesResponse is the favorites list as the storefront currently holds it
type FavoritesResponse struct {
	Items favorites.Items `json:"items"`
	CollectionState
}

// FavoriteStatusResponse reports whether one product is a favorite
type FavoriteStatusResponse struct {
	ProductID string `json:"product_id"`
	Favorite  bool   `json:"favorite"`
}

// SessionResponse describes the signed-in state
type SessionResponse struct {
	Status        session.Status `json:"status"`
	Authenticated bool           `json:"authenticated"`
	Loading       bool           `json:"loading"`
	User          *session.User  `json:"user,omitempty"`
}

// MigrationResponse reports the guest replay done at sign-in
type MigrationResponse struct {
	CartAttempted      int `json:"cart_attempted"`
	CartFailed         int `json:"cart_failed"`
	FavoritesAttempted int `json:"favorites_attempted"`
	FavoritesFailed    int `json:"favorites_failed"`
}

// AuthResponse is returned by login and registration
type AuthResponse struct {
	Session   SessionResponse   `json:"session"`
	Migration MigrationResponse `json:"migration"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func toCartResponse(e *storefront.CartEngine) CartResponse {
	items := e.Items()
	if items == nil {
		items = cart.Items{}
	}
	return CartResponse{
		Items:   items,
		Summary: items.Summary(),
		CollectionState: CollectionState{
			Source:  e.Source(),
			Loading: e.Loading(),
			Error:   errString(e.Err()),
		},
	}
}

func toFavoritesResponse(e *storefront.FavoritesEngine) FavoritesResponse {
	items := e.Items()
	if items == nil {
		items = favorites.Items{}
	}
	return FavoritesResponse{
		Items: items,
		CollectionState: CollectionState{
			Source:  e.Source(),
			Loading: e.Loading(),
			Error:   errString(e.Err()),
		},
	}
}

func toSessionResponse(s *storefront.SessionState) SessionResponse {
	return SessionResponse{
		Status:        s.Status(),
		Authenticated: s.IsAuthenticated(),
		Loading:       s.Loading(),
		User:          s.User(),
	}
}

func toMigrationResponse(r storefront.MigrationReport) MigrationResponse {
	return MigrationResponse{
		CartAttempted:      r.CartAttempted,
		CartFailed:         r.CartFailed,
		FavoritesAttempted: r.FavoritesAttempted,
		FavoritesFailed:    r.FavoritesFailed,
	}
}
