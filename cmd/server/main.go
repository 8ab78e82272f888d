package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biyariq/storefront/internal/application/storefront"
	"github.com/biyariq/storefront/internal/infrastructure/config"
	"github.com/biyariq/storefront/internal/infrastructure/gateway"
	"github.com/biyariq/storefront/internal/infrastructure/gueststore"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"github.com/biyariq/storefront/internal/interfaces/http/middleware"
	"github.com/biyariq/storefront/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}

	logsCfg := telemetryCfg
	logsCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled
	logProvider, err := telemetry.NewLoggerProvider(ctx, logsCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log export", zap.Error(err))
	}

	// Entries at info and above are also shipped over OTLP when enabled
	log, err := logger.New(logCfg, logProvider.ZapCore(zapcore.InfoLevel))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("guest_store", cfg.GuestStore.Driver),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      cfg.Profiling.ApplicationName,
		BasicAuthUser:        cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:    cfg.Profiling.BasicAuthPassword,
		MutexProfileFraction: cfg.Profiling.MutexProfileFraction,
		BlockProfileRate:     cfg.Profiling.BlockProfileRate,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}
	metrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("storefront"))
	if err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	store, err := gueststore.NewFactory(cfg,
		gueststore.WithLogger(log),
		gueststore.WithSQLLogLevel(cfg.Log.Level),
		gueststore.WithTracing(cfg.Telemetry.Enabled),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to open guest store", zap.Error(err))
	}

	cat, err := notify.NewCatalog()
	if err != nil {
		log.Fatal("Failed to build message catalog", zap.Error(err))
	}

	client := gateway.New(gateway.Config{
		BaseURL:         cfg.Gateway.BaseURL,
		Timeout:         cfg.Gateway.Timeout,
		MaxResponseSize: cfg.Gateway.MaxResponseSize,
	}, gateway.WithMetrics(metrics), gateway.WithLogger(log))

	var purger storefront.Purger
	if sqlStore, ok := store.(*gueststore.SQLStore); ok {
		purger = sqlStore
	}

	registry := storefront.NewRegistry(storefront.RegistryConfig{
		Gateways: func(tokens func() string) storefront.Gateway {
			return client.ForSession(gateway.TokenFunc(tokens))
		},
		Guests: func(id string) storefront.GuestStorage {
			return gueststore.NewSnapshot(store, id, log)
		},
		Catalog:       cat,
		Language:      notify.MatchLanguage(cfg.Notify.Language),
		InboxCapacity: cfg.Notify.Capacity,
		Migration: storefront.MigrationConfig{
			RatePerSecond: cfg.Migration.RatePerSecond,
			Burst:         cfg.Migration.Burst,
		},
		IdleTimeout: cfg.Session.IdleTimeout,
		SweepEvery:  cfg.Session.SweepEvery,
		Purger:      purger,
		Metrics:     metrics,
		Logger:      log,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine, err := router.New(router.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     cfg.Telemetry.Enabled,
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.Enabled,
		},
		Profiling: cfg.Profiling.Enabled,
		CORS:      cors,
		Session: middleware.SessionConfig{
			CookieName: cfg.Session.CookieName,
			Domain:     cfg.Session.CookieDomain,
			Secure:     cfg.Session.CookieSecure,
			MaxAge:     cfg.Session.CookieMaxAge,
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Storefronts:    registry,
		Sessions:       registry,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// In-flight requests are done; no storefront is touched past this point
	registry.Close()
	if err := store.Close(); err != nil {
		log.Error("Error closing guest store", zap.Error(err))
	}

	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down metrics", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	_ = logProvider.Shutdown(shutdownCtx)
}
