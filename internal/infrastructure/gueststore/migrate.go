package gueststore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaMigrator applies the versioned guest_entries schema to postgres
type SchemaMigrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// NewSchemaMigrator builds a migrator over an open postgres connection
func NewSchemaMigrator(db *sql.DB, logger *zap.Logger) (*SchemaMigrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &SchemaMigrator{migrate: m, logger: logger}, nil
}

// Up applies all pending migrations
func (m *SchemaMigrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("Guest store schema up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, _ := m.migrate.Version()
	m.logger.Info("Guest store schema migrated", zap.Uint("version", version))
	return nil
}

// Down rolls back every migration
func (m *SchemaMigrator) Down() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// Version reports the applied version and whether it is dirty
func (m *SchemaMigrator) Version() (uint, bool, error) {
	v, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
