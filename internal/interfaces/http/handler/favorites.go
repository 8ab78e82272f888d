package handler

import (
	"github.com/biyariq/storefront/internal/domain/catalog"
	"github.com/gin-gonic/gin"
)

// FavoritesHandler serves the session favorites list
type FavoritesHandler struct {
	BaseHandler
}

// NewFavoritesHandler creates a new FavoritesHandler
func NewFavoritesHandler() *FavoritesHandler {
	return &FavoritesHandler{}
}

// List returns the favorites.
// GET /favorites
func (h *FavoritesHandler) List(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	h.Success(c, toFavoritesResponse(sf.Favorites()))
}

// Status reports whether one product is a favorite.
// GET /favorites/:id
func (h *FavoritesHandler) Status(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	id := c.Param("id")
	h.Success(c, FavoriteStatusResponse{ProductID: id, Favorite: sf.Favorites().IsFavorite(id)})
}

// Add favorites a product. Adding a present product succeeds unchanged.
// POST /favorites
func (h *FavoritesHandler) Add(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	var req FavoriteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := sf.Favorites().AddToFavorites(c.Request.Context(), req.Product); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toFavoritesResponse(sf.Favorites()))
}

// Remove unfavorites a product. Removing a missing product succeeds.
// DELETE /favorites/:id
func (h *FavoritesHandler) Remove(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	if err := sf.Favorites().RemoveFromFavorites(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toFavoritesResponse(sf.Favorites()))
}

// Toggle flips a product's favorite state. The body carries the product
// snapshot; it may be omitted only when the product is being removed.
// POST /favorites/:id/toggle
func (h *FavoritesHandler) Toggle(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var req FavoriteRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	switch req.Product.ID {
	case "":
		req.Product.ID = id
	case id:
	default:
		h.BadRequest(c, "Product id does not match the path")
		return
	}
	if req.Product.Name == (catalog.LocalizedText{}) && !sf.Favorites().IsFavorite(id) {
		h.BadRequest(c, "Product details are required to add a favorite")
		return
	}

	favorite, err := sf.Favorites().Toggle(c.Request.Context(), req.Product)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, FavoriteStatusResponse{ProductID: id, Favorite: favorite})
}
