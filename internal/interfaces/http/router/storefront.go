package router

import (
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/interfaces/http/handler"
	"github.com/biyariq/storefront/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// healthPath is served unlabelled by the profiler
const healthPath = "/api/v1/health"

// Config wires the engine's middleware and the storefront routes
type Config struct {
	ServiceName    string
	Tracing        bool
	Metrics        middleware.HTTPMetricsConfig
	Profiling      bool
	CORS           middleware.CORSConfig
	Session        middleware.SessionConfig
	BodyLimit      int64
	TrustedProxies []string

	Storefronts middleware.StorefrontResolver
	Sessions    handler.SessionCounter
	Logger      *zap.Logger
}

// New builds the gin engine: global middleware, /api/v1/health and the
// session-bound /api/v1/storefront routes.
func New(cfg Config) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = middleware.DefaultBodyLimit
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.HTTPMetrics(cfg.Metrics),
		middleware.Profiling(middleware.ProfilingConfig{Enabled: cfg.Profiling, SkipPaths: []string{healthPath}}),
		logger.GinMiddleware(cfg.Logger),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.BodyLimit),
	)

	system := handler.NewSystemHandler(cfg.ServiceName, cfg.Sessions)
	r := NewRouter(engine)
	r.Register(NewDomainGroup("system", "").GET("/health", system.Health))
	r.Register(storefrontRoutes(cfg))
	r.Setup()
	return engine, nil
}

func storefrontRoutes(cfg Config) *DomainGroup {
	cart := handler.NewCartHandler()
	favorites := handler.NewFavoritesHandler()
	auth := handler.NewAuthHandler()
	notifications := handler.NewNotificationsHandler()

	sf := NewDomainGroup("storefront", "/storefront").Use(
		middleware.GuestSession(cfg.Session, cfg.Storefronts),
		middleware.SpanAttributes(),
		middleware.Language(),
	)

	sf.Group("cart", "/cart").
		GET("", cart.GetCart).
		POST("", cart.AddItem).
		DELETE("", cart.Clear).
		GET("/:id", cart.GetItem).
		PUT("/:id", cart.UpdateItem).
		DELETE("/:id", cart.RemoveItem)

	sf.Group("favorites", "/favorites").
		GET("", favorites.List).
		POST("", favorites.Add).
		GET("/:id", favorites.Status).
		DELETE("/:id", favorites.Remove).
		POST("/:id/toggle", favorites.Toggle)

	sf.Group("auth", "/auth").
		POST("/login", auth.Login).
		POST("/register", auth.Register).
		POST("/logout", auth.Logout).
		GET("/me", auth.Me)

	sf.GET("/notifications", notifications.Drain)
	return sf
}
