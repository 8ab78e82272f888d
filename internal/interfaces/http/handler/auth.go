package handler

import (
	"github.com/biyariq/storefront/internal/domain/session"
	"github.com/gin-gonic/gin"
)

// AuthHandler signs the session in and out
type AuthHandler struct {
	BaseHandler
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Login signs in with the backend and moves the guest cart and favorites
// into the account.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	var req LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	report, err := sf.Login(c.Request.Context(), session.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AuthResponse{
		Session:   toSessionResponse(sf.Session()),
		Migration: toMigrationResponse(report),
	})
}

// Register creates an account, signs in and migrates guest data.
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	var req RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	report, err := sf.Register(c.Request.Context(), session.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AuthResponse{
		Session:   toSessionResponse(sf.Session()),
		Migration: toMigrationResponse(report),
	})
}

// Logout signs out. It always succeeds locally.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	sf.Logout(c.Request.Context())
	h.Success(c, toSessionResponse(sf.Session()))
}

// Me returns the session state. With ?refresh=true the token is first
// re-validated against the backend.
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	if c.Query("refresh") == "true" {
		// A rejected token ends the session; the response shows the outcome.
		_ = sf.CheckProfile(c.Request.Context())
	}
	h.Success(c, toSessionResponse(sf.Session()))
}
