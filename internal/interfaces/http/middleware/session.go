package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/biyariq/storefront/internal/application/storefront"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SessionIDKey is the gin context key holding the guest session ID
	SessionIDKey = "session_id"
	// StorefrontKey is the gin context key holding the resolved *storefront.Storefront
	StorefrontKey = "storefront"
)

// StorefrontResolver returns the live storefront for a guest session ID
type StorefrontResolver interface {
	Get(ctx context.Context, id string) (*storefront.Storefront, error)
}

// SessionConfig describes the guest session cookie
type SessionConfig struct {
	CookieName string
	Domain     string
	Secure     bool
	MaxAge     time.Duration
}

// GuestSession identifies the visitor by a session cookie, issuing a new
// random ID on the first visit, and resolves their storefront. The cookie
// is re-sent on every response so its lifetime slides with activity.
func GuestSession(cfg SessionConfig, resolver StorefrontResolver) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = "sf_session"
	}

	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.CookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.CookieName, id, int(cfg.MaxAge.Seconds()), "/", cfg.Domain, cfg.Secure, true)

		ctx := logger.WithSessionID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Set(SessionIDKey, id)

		sf, err := resolver.Get(ctx, id)
		if err != nil {
			code := dto.ErrCodeInternal
			if errors.Is(err, storefront.ErrRegistryClosed) {
				code = dto.ErrCodeUnavailable
			}
			logger.GetGinLogger(c).Error("Failed to resolve storefront", zap.String("session_id", id), zap.Error(err))
			c.AbortWithStatusJSON(dto.GetHTTPStatus(code),
				dto.NewErrorResponseWithRequestID(code, "Storefront session unavailable", GetRequestID(c)))
			return
		}
		c.Set(StorefrontKey, sf)
		c.Next()
		// long requests count as use until they finish
		sf.Touch()
	}
}

// GetStorefront returns the storefront resolved by GuestSession
func GetStorefront(c *gin.Context) (*storefront.Storefront, bool) {
	v, ok := c.Get(StorefrontKey)
	if !ok {
		return nil, false
	}
	sf, ok := v.(*storefront.Storefront)
	return sf, ok && sf != nil
}
