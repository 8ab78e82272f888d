// Package handler holds the gin handlers of the storefront API.
package handler

import (
	"errors"
	"net/http"

	"github.com/biyariq/storefront/internal/application/storefront"
	"github.com/biyariq/storefront/internal/domain/shared"
	"github.com/biyariq/storefront/internal/infrastructure/gateway"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/interfaces/http/dto"
	"github.com/biyariq/storefront/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps domain errors and backend responses to HTTP responses.
// Anything else is logged and reported as an internal error.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	var backendErr *gateway.Error
	if errors.As(err, &backendErr) {
		h.ErrorWithCode(c, backendErrorCode(backendErr.StatusCode), backendErr.Message)
		return
	}

	_ = c.Error(err)
	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// backendErrorCode maps a backend status to an API error code. Client
// errors keep their meaning; everything else is an upstream failure.
func backendErrorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return dto.ErrCodeUnauthorized
	case http.StatusForbidden:
		return dto.ErrCodeForbidden
	case http.StatusNotFound:
		return dto.ErrCodeNotFound
	case http.StatusConflict:
		return dto.ErrCodeConflict
	}
	if status >= 400 && status < 500 {
		return dto.ErrCodeBadRequest
	}
	return dto.ErrCodeUpstream
}

// bindJSON binds the request body and writes the 400 itself on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// storefront returns the session's storefront, writing a 500 when the
// session middleware did not run
func (h *BaseHandler) storefront(c *gin.Context) (*storefront.Storefront, bool) {
	sf, ok := middleware.GetStorefront(c)
	if !ok {
		h.InternalError(c, "Storefront session missing")
		return nil, false
	}
	return sf, true
}
