package middleware

import (
	"net/http"

	"github.com/biyariq/storefront/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit caps storefront request bodies. The largest payload is a
// product snapshot.
const DefaultBodyLimit int64 = 1 << 20

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID("ERR_REQUEST_TOO_LARGE",
					"Request body exceeds maximum allowed size", GetRequestID(c)))
			return
		}

		// Streaming requests without a Content-Length are cut off while read
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
