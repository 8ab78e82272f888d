package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/biyariq/storefront/internal/application/storefront"
	"github.com/biyariq/storefront/internal/infrastructure/gateway"
	"github.com/biyariq/storefront/internal/infrastructure/gueststore"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendToken = "tok-123"

// fakeBackend is an in-memory stand-in for the storefront REST API
type fakeBackend struct {
	mu        sync.Mutex
	cart      map[string]int
	favorites map[string]bool
	calls     []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{cart: map[string]int{}, favorites: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		b.record(r)
		if creds.Password != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "wrong email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": backendToken,
			"user":  map[string]string{"id": "u1", "name": "Sara", "email": creds.Email},
		})
	})
	mux.HandleFunc("POST /auth/logout", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}))
	mux.HandleFunc("GET /auth/my-profile", b.authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "u1", "name": "Sara", "email": "sara@example.com"})
	}))
	mux.HandleFunc("GET /cart", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		lines := []map[string]any{}
		for _, id := range sortedKeys(b.cart) {
			lines = append(lines, map[string]any{
				"id": id, "productId": id, "quantity": b.cart[id],
				"product": map[string]any{"id": id, "price": 10, "type": "physical"},
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": lines})
	}))
	mux.HandleFunc("POST /cart", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.cart[body.ProductID] += body.Quantity
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	}))
	mux.HandleFunc("GET /favorites", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := []map[string]any{}
		for _, id := range sortedKeys(b.favorites) {
			entries = append(entries, map[string]any{
				"productId": id,
				"product":   map[string]any{"id": id, "price": 10, "type": "physical"},
			})
		}
		writeJSON(w, http.StatusOK, entries)
	}))
	mux.HandleFunc("POST /favorites", b.authed(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.favorites[body.ProductID] = true
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.mu.Unlock()
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.record(r)
		if r.Header.Get("Authorization") != "Bearer "+backendToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiFixture struct {
	engine   http.Handler
	backend  *fakeBackend
	registry *storefront.Registry
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	backend, srv := newFakeBackend(t)

	store := gueststore.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	cat, err := notify.NewCatalog()
	require.NoError(t, err)

	client := gateway.New(gateway.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	registry := storefront.NewRegistry(storefront.RegistryConfig{
		Gateways: func(tokens func() string) storefront.Gateway {
			return client.ForSession(gateway.TokenFunc(tokens))
		},
		Guests: func(id string) storefront.GuestStorage {
			return gueststore.NewSnapshot(store, id, nil)
		},
		Catalog:   cat,
		Migration: storefront.MigrationConfig{RatePerSecond: 1000, Burst: 10},
	})
	t.Cleanup(registry.Close)

	engine, err := New(Config{
		ServiceName: "storefront-test",
		Metrics:     middleware.HTTPMetricsConfig{Enabled: true},
		Profiling:   true,
		CORS:        middleware.CORSConfig{AllowOrigins: []string{"https://shop.example.com"}, AllowMethods: []string{"GET", "POST"}},
		Session:     middleware.SessionConfig{CookieName: "sf_session", MaxAge: time.Hour},
		Storefronts: registry,
		Sessions:    registry,
	})
	require.NoError(t, err)
	return &apiFixture{engine: engine, backend: backend, registry: registry}
}

// visitor replays the session cookie like a browser would
type visitor struct {
	t      *testing.T
	f      *apiFixture
	cookie *http.Cookie
	lang   string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
		Details   []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

func (v *visitor) do(method, path string, body any) (int, envelope) {
	v.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(v.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1/storefront"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v.cookie != nil {
		req.AddCookie(v.cookie)
	}
	if v.lang != "" {
		req.Header.Set("Accept-Language", v.lang)
	}

	w := httptest.NewRecorder()
	v.f.engine.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "sf_session" {
			v.cookie = c
		}
	}

	var env envelope
	require.NoError(v.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type cartData struct {
	Items []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	Summary struct {
		Lines int `json:"lines"`
		Units int `json:"units"`
	} `json:"summary"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

func pen(id string) map[string]any {
	return map[string]any{
		"id":    id,
		"name":  map[string]string{"ar": "قلم", "en": "Pen"},
		"price": "25.50",
		"type":  "physical",
	}
}

func TestAPI_GuestCartMigratesOnLogin(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f}

	code, env := v.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, v.cookie, "first visit issues a session cookie")
	assert.True(t, v.cookie.HttpOnly)
	assert.Equal(t, "guest", decode[cartData](t, env).Source)

	code, _ = v.do(http.MethodPost, "/cart", map[string]any{"product": pen("p1"), "quantity": 2})
	require.Equal(t, http.StatusOK, code)
	code, env = v.do(http.MethodPost, "/cart", map[string]any{"product": pen("p1")})
	require.Equal(t, http.StatusOK, code)
	got := decode[cartData](t, env)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
	assert.Equal(t, 3, got.Summary.Units)

	code, env = v.do(http.MethodPost, "/favorites/p2/toggle", map[string]any{"product": pen("p2")})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[struct {
		Favorite bool `json:"favorite"`
	}](t, env).Favorite)

	code, env = v.do(http.MethodPost, "/auth/login", map[string]string{"email": "sara@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, code, string(env.Data))
	auth := decode[struct {
		Session struct {
			Authenticated bool `json:"authenticated"`
			User          struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"session"`
		Migration struct {
			CartAttempted      int `json:"cart_attempted"`
			CartFailed         int `json:"cart_failed"`
			FavoritesAttempted int `json:"favorites_attempted"`
		} `json:"migration"`
	}](t, env)
	assert.True(t, auth.Session.Authenticated)
	assert.Equal(t, "Sara", auth.Session.User.Name)
	assert.Equal(t, 1, auth.Migration.CartAttempted)
	assert.Zero(t, auth.Migration.CartFailed)
	assert.Equal(t, 1, auth.Migration.FavoritesAttempted)
	assert.Contains(t, f.backend.Calls(), "POST /cart")
	assert.Contains(t, f.backend.Calls(), "POST /favorites")

	code, env = v.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	got = decode[cartData](t, env)
	assert.Equal(t, "server", got.Source)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ID)
	assert.Equal(t, 3, got.Items[0].Quantity)

	code, env = v.do(http.MethodGet, "/favorites/p2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[struct {
		Favorite bool `json:"favorite"`
	}](t, env).Favorite)

	code, _ = v.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)
	code, env = v.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	got = decode[cartData](t, env)
	assert.Equal(t, "guest", got.Source)
	assert.Empty(t, got.Items, "guest cart was cleared by the migration")
}

func TestAPI_SessionsAreIsolated(t *testing.T) {
	f := newAPIFixture(t)
	a := &visitor{t: t, f: f}
	b := &visitor{t: t, f: f}

	code, _ := a.do(http.MethodPost, "/cart", map[string]any{"product": pen("p1")})
	require.Equal(t, http.StatusOK, code)

	code, env := b.do(http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[cartData](t, env).Items)
	assert.NotEqual(t, a.cookie.Value, b.cookie.Value)
	assert.Equal(t, 2, f.registry.Len())
}

func TestAPI_CartErrors(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"zero quantity", http.MethodPost, "/cart", map[string]any{"product": pen("p1"), "quantity": 0}, http.StatusBadRequest, "ERR_INVALID_QUANTITY"},
		{"product without id", http.MethodPost, "/cart", map[string]any{"product": map[string]any{"price": 1, "type": "physical"}}, http.StatusBadRequest, "ERR_INVALID_PRODUCT"},
		{"update unknown line", http.MethodPut, "/cart/ghost", map[string]any{"quantity": 2}, http.StatusNotFound, "ERR_CART_ITEM_NOT_FOUND"},
		{"update without quantity", http.MethodPut, "/cart/p1", map[string]any{}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"add above the quantity limit", http.MethodPost, "/cart", map[string]any{"product": pen("p1"), "quantity": 10000}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"update above the quantity limit", http.MethodPut, "/cart/p1", map[string]any{"quantity": 10000}, http.StatusBadRequest, "ERR_VALIDATION"},
		{"malformed body", http.MethodPost, "/cart", "not an object", http.StatusBadRequest, "ERR_BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v.t = t
			code, env := v.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.RequestID)
		})
	}
}

func TestAPI_ToggleNeedsProductToAdd(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f}

	code, env := v.do(http.MethodPost, "/favorites/p2/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ERR_BAD_REQUEST", env.Error.Code)

	code, _ = v.do(http.MethodPost, "/favorites/p2/toggle", map[string]any{"product": map[string]any{"id": "p2"}})
	assert.Equal(t, http.StatusBadRequest, code, "an id alone is not a product snapshot")

	code, _ = v.do(http.MethodPost, "/favorites/p2/toggle", map[string]any{"product": pen("p2")})
	require.Equal(t, http.StatusOK, code)

	code, env = v.do(http.MethodPost, "/favorites/p2/toggle", nil)
	require.Equal(t, http.StatusOK, code, "removal needs no body")
	assert.Nil(t, env.Error)

	code, env = v.do(http.MethodGet, "/favorites/p2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"favorite":false`)
}

func TestAPI_UpdateAndRemove(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f}
	v.do(http.MethodPost, "/cart", map[string]any{"product": pen("p1"), "quantity": 2})

	code, env := v.do(http.MethodPut, "/cart/p1", map[string]any{"quantity": 5})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, decode[cartData](t, env).Items[0].Quantity)

	code, env = v.do(http.MethodPut, "/cart/p1", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[cartData](t, env).Items, "zero quantity removes the line")

	code, _ = v.do(http.MethodDelete, "/cart/p1", nil)
	assert.Equal(t, http.StatusOK, code, "removing a missing line is a no-op")
}

func TestAPI_LoginValidationAndRejection(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f}

	code, env := v.do(http.MethodPost, "/auth/login", map[string]string{"email": "nope", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ERR_VALIDATION", env.Error.Code)
	require.Len(t, env.Error.Details, 1)
	assert.Equal(t, "email", env.Error.Details[0].Field)

	code, env = v.do(http.MethodPost, "/auth/login", map[string]string{"email": "sara@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ERR_UNAUTHORIZED", env.Error.Code)
	assert.Equal(t, "wrong email or password", env.Error.Message)

	code, env = v.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[struct {
		Authenticated bool `json:"authenticated"`
	}](t, env).Authenticated)
}

func TestAPI_NotificationsFollowLanguage(t *testing.T) {
	f := newAPIFixture(t)
	v := &visitor{t: t, f: f, lang: "en-US,en;q=0.9"}

	v.do(http.MethodPost, "/cart", map[string]any{"product": pen("p1")})
	v.do(http.MethodPost, "/cart", map[string]any{"product": pen("p2"), "quantity": -1})

	code, env := v.do(http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	toasts := decode[[]notify.Notification](t, env)
	require.Len(t, toasts, 2)
	assert.Equal(t, notify.LevelSuccess, toasts[0].Level)
	assert.Contains(t, toasts[0].Message, "Pen", "English product name in an English toast")
	assert.Equal(t, notify.LevelError, toasts[1].Level)

	_, env = v.do(http.MethodGet, "/notifications", nil)
	assert.Empty(t, decode[[]notify.Notification](t, env), "drained")
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"status":"ok"`))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Empty(t, w.Result().Cookies(), "health checks do not open sessions")
}

func TestAPI_Preflight(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/storefront/cart", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Zero(t, f.registry.Len())
}
