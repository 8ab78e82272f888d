package gueststore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Factory creates the guest store selected by configuration
type Factory struct {
	cfg     config.GuestStoreConfig
	redis   config.RedisConfig
	db      config.DatabaseConfig
	logger  *zap.Logger
	logSQL  string
	tracing bool
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory and the stores it creates
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) { f.logger = logger }
}

// WithSQLLogLevel sets the gorm log level for SQL stores
func WithSQLLogLevel(level string) FactoryOption {
	return func(f *Factory) { f.logSQL = level }
}

// WithTracing enables query tracing for SQL stores
func WithTracing(enabled bool) FactoryOption {
	return func(f *Factory) { f.tracing = enabled }
}

// NewFactory creates a new Factory
func NewFactory(cfg *config.Config, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:    cfg.GuestStore,
		redis:  cfg.Redis,
		db:     cfg.Database,
		logger: zap.NewNop(),
		logSQL: "warn",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore builds the configured store. When the configured backend is
// unreachable and in-memory fallback is allowed, a MemoryStore is returned
// instead and a warning is logged.
func (f *Factory) CreateStore(ctx context.Context) (Store, error) {
	if f.cfg.Driver == "memory" {
		f.logger.Info("using in-memory guest store")
		return f.CreateMemoryStore(), nil
	}

	store, err := f.createPersistent(ctx)
	if err == nil {
		f.logger.Info("using persistent guest store", zap.String("driver", f.cfg.Driver))
		return store, nil
	}

	if !f.cfg.AllowInMemoryFallback {
		return nil, fmt.Errorf("guest store %s unavailable: %w", f.cfg.Driver, err)
	}

	f.logger.Warn("Guest store unavailable, falling back to in-memory store. "+
		"Guest carts will not survive restarts or be shared between instances.",
		zap.String("driver", f.cfg.Driver),
		zap.Error(err),
	)
	return f.CreateMemoryStore(), nil
}

// CreateMemoryStore creates an in-memory store with the configured TTL
func (f *Factory) CreateMemoryStore() *MemoryStore {
	return NewMemoryStore(f.cfg.TTL, 0)
}

func (f *Factory) createPersistent(ctx context.Context) (Store, error) {
	switch f.cfg.Driver {
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:      f.redis.Addr(),
			Password:  f.redis.Password,
			DB:        f.redis.DB,
			KeyPrefix: f.cfg.KeyPrefix,
			TTL:       f.cfg.TTL,
		})
	case "sqlite":
		db, err := OpenSQL(SQLConfig{
			Driver:   "sqlite",
			DSN:      f.cfg.SQLitePath,
			LogLevel: f.logSQL,
			Tracing:  f.tracing,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		store := NewSQLStore(db, f.cfg.TTL)
		if err := store.AutoMigrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case "postgres":
		db, err := OpenSQL(SQLConfig{
			Driver:          "postgres",
			DSN:             f.db.DSN(),
			MaxOpenConns:    f.db.MaxOpenConns,
			MaxIdleConns:    f.db.MaxIdleConns,
			ConnMaxLifetime: time.Duration(f.db.ConnMaxLifetime) * time.Minute,
			LogLevel:        f.logSQL,
			Tracing:         f.tracing,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		store := NewSQLStore(db, f.cfg.TTL)
		sqlDB, err := db.DB()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := migrateSchema(sqlDB, f.logger); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown guest store driver %q", f.cfg.Driver)
	}
}

func migrateSchema(db *sql.DB, logger *zap.Logger) error {
	m, err := NewSchemaMigrator(db, logger)
	if err != nil {
		return err
	}
	return m.Up()
}
