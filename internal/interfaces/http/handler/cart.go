package handler

import (
	"github.com/gin-gonic/gin"
)

// CartHandler serves the session cart
type CartHandler struct {
	BaseHandler
}

// NewCartHandler creates a new CartHandler
func NewCartHandler() *CartHandler {
	return &CartHandler{}
}

// GetCart returns the cart, its summary and where it was loaded from.
// GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	h.Success(c, toCartResponse(sf.Cart()))
}

// GetItem reports whether a product is in the cart.
// GET /cart/:id
func (h *CartHandler) GetItem(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	line, found := sf.Cart().GetCartItemByID(c.Param("id"))
	resp := CartItemResponse{InCart: found}
	if found {
		resp.Item = &line
	}
	h.Success(c, resp)
}

// AddItem adds a product or increments its line.
// POST /cart
func (h *CartHandler) AddItem(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if err := sf.Cart().AddToCart(c.Request.Context(), req.Product, qty); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCartResponse(sf.Cart()))
}

// UpdateItem sets a line's quantity; zero or less removes the line.
// PUT /cart/:id
func (h *CartHandler) UpdateItem(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := sf.Cart().UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCartResponse(sf.Cart()))
}

// RemoveItem removes a line. Removing a missing line succeeds.
// DELETE /cart/:id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	if err := sf.Cart().RemoveFromCart(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCartResponse(sf.Cart()))
}

// Clear empties the cart.
// DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	if err := sf.Cart().ClearCart(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toCartResponse(sf.Cart()))
}
