package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generated", func(t *testing.T) {
		w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NoError(t, uuid.Validate(w.Body.String()))
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		assert.Equal(t, "abc-123", serve(engine, req).Body.String())
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", MaxRequestIDLength+1))
		assert.NoError(t, uuid.Validate(serve(engine, req).Body.String()))
	})
}

func TestCORSWithConfig(t *testing.T) {
	newEngine := func(origins ...string) *gin.Engine {
		cfg := DefaultCORSConfig()
		cfg.AllowOrigins = origins
		engine := gin.New()
		engine.Use(CORSWithConfig(cfg))
		engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
		return engine
	}
	request := func(method, origin string) *http.Request {
		req := httptest.NewRequest(method, "/", nil)
		req.Header.Set("Origin", origin)
		return req
	}

	t.Run("whitelisted origin with credentials", func(t *testing.T) {
		w := serve(newEngine("https://shop.example.com"), request(http.MethodGet, "https://shop.example.com"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		w := serve(newEngine("https://shop.example.com"), request(http.MethodGet, "https://evil.example.com"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard never allows credentials", func(t *testing.T) {
		w := serve(newEngine("*"), request(http.MethodGet, "https://any.example.com"))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight always 204", func(t *testing.T) {
		w := serve(newEngine(), request(http.MethodOptions, "https://shop.example.com"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestBodyLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID(), BodyLimit(16))
	engine.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")

	w = serve(engine, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecure(t *testing.T) {
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
