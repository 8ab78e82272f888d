package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MigrationReport counts the replays of one session-start migration
type MigrationReport struct {
	CartAttempted      int `json:"cartAttempted"`
	CartFailed         int `json:"cartFailed"`
	FavoritesAttempted int `json:"favoritesAttempted"`
	FavoritesFailed    int `json:"favoritesFailed"`
}

// Failed is the total number of replays that did not succeed
func (r MigrationReport) Failed() int {
	return r.CartFailed + r.FavoritesFailed
}

// MigrationConfig paces replays. RatePerSecond <= 0 disables pacing.
type MigrationConfig struct {
	RatePerSecond float64
	Burst         int
}

// Migrator moves a guest's cart and favorites to the signed-in account
type Migrator struct {
	guest    GuestSnapshot
	cart     CartGateway
	favs     FavoritesGateway
	limiter  *rate.Limiter
	notifier notify.Notifier
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewMigrator creates a migrator replaying into gw
func NewMigrator(guest GuestSnapshot, gw interface {
	CartGateway
	FavoritesGateway
}, cfg MigrationConfig, deps EngineDeps) *Migrator {
	deps = deps.withDefaults("migration")
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Migrator{
		guest:    guest,
		cart:     gw,
		favs:     gw,
		limiter:  rate.NewLimiter(limit, burst),
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Migrate replays every guest cart line and favorite as a create call, then
// deletes both guest collections whatever the individual outcomes. Failed
// replays are logged and counted, never retried. Only a failure to read the
// guest store aborts the migration, leaving the guest data in place.
func (m *Migrator) Migrate(ctx context.Context) (MigrationReport, error) {
	ctx, span := telemetry.StartSpan(ctx, "migration.run")
	defer span.End()
	log := logger.Enrich(ctx, m.logger)

	var report MigrationReport
	lines, err := m.guest.ReadCart(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("failed to read guest cart: %w", err)
	}
	favs, err := m.guest.ReadFavorites(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return report, fmt.Errorf("failed to read guest favorites: %w", err)
	}

	for _, line := range lines {
		report.CartAttempted++
		if err := m.replay(ctx, func(ctx context.Context) error {
			return m.cart.AddCartItem(ctx, line.ID, line.Quantity)
		}); err != nil {
			report.CartFailed++
			log.Warn("Guest cart line not migrated",
				zap.String("product_id", line.ID),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
		}
	}
	for _, p := range favs {
		report.FavoritesAttempted++
		if err := m.replay(ctx, func(ctx context.Context) error {
			return m.favs.AddFavorite(ctx, p.ID)
		}); err != nil {
			report.FavoritesFailed++
			log.Warn("Guest favorite not migrated", zap.String("product_id", p.ID), zap.Error(err))
		}
	}

	if err := m.guest.Clear(context.WithoutCancel(ctx)); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to clear guest data after migration", zap.Error(err))
	}

	m.metrics.RecordMigration(ctx, "cart", report.CartAttempted, report.CartFailed)
	m.metrics.RecordMigration(ctx, "favorites", report.FavoritesAttempted, report.FavoritesFailed)
	telemetry.SetAttributes(span,
		"migration.cart_attempted", report.CartAttempted,
		"migration.favorites_attempted", report.FavoritesAttempted,
		"migration.failed", report.Failed(),
	)
	if report.Failed() > 0 {
		m.notifier.Notify(ctx, notify.LevelError, notify.KeyMigrationPartial, report.Failed())
	}
	if report.CartAttempted+report.FavoritesAttempted > 0 {
		log.Info("Guest data migrated",
			zap.Int("cart_attempted", report.CartAttempted),
			zap.Int("favorites_attempted", report.FavoritesAttempted),
			zap.Int("failed", report.Failed()),
		)
	}
	return report, nil
}

func (m *Migrator) replay(ctx context.Context, call func(ctx context.Context) error) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return errors.Join(errReplayNotSent, err)
	}
	return call(ctx)
}

var errReplayNotSent = errors.New("replay not sent")
