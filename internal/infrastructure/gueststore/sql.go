package gueststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GuestEntry is one row of the guest_entries table
type GuestEntry struct {
	Key       string     `gorm:"column:entry_key;primaryKey;size:255"`
	Value     []byte     `gorm:"column:value;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index:idx_guest_entries_expires_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

// TableName implements gorm's tabler
func (GuestEntry) TableName() string {
	return "guest_entries"
}

// SQLConfig selects and tunes the SQL backend
type SQLConfig struct {
	Driver          string // sqlite, postgres
	DSN             string // file path for sqlite, URL for postgres
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
	Tracing         bool
}

// OpenSQL opens a gorm connection for the guest store
func OpenSQL(cfg SQLConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.LogLevel), 200*time.Millisecond),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Tracing {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithoutQueryVariables())); err != nil {
			return nil, fmt.Errorf("failed to register gorm tracing: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One writer; also keeps ":memory:" databases on a single connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// SQLStore keeps guest snapshots in a relational table
type SQLStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLStore wraps db. Entries expire ttl after their last write; zero
// keeps them forever.
func NewSQLStore(db *gorm.DB, ttl time.Duration) *SQLStore {
	return &SQLStore{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// AutoMigrate creates the guest_entries table from the model. Postgres
// deployments use the versioned migrations instead.
func (s *SQLStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&GuestEntry{}); err != nil {
		return fmt.Errorf("failed to migrate guest_entries: %w", err)
	}
	return nil
}

// Get implements Store
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e GuestEntry
	err := s.db.WithContext(ctx).
		Where("entry_key = ?", key).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read guest entry %s: %w", key, err)
	}
	return e.Value, true, nil
}

// Set implements Store as an upsert
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	now := s.now()
	e := GuestEntry{Key: key, Value: value, UpdatedAt: now}
	if s.ttl > 0 {
		exp := now.Add(s.ttl)
		e.ExpiresAt = &exp
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write guest entry %s: %w", key, err)
	}
	return nil
}

// Delete implements Store
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("entry_key IN ?", keys).Delete(&GuestEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete guest entries: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and returns how many were deleted
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&GuestEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge guest entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the underlying connection pool
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

var _ Store = (*SQLStore)(nil)
