// Package storefront holds the per-visitor storefront state: who is signed
// in, the cart and the favorites, and the migration of guest data into an
// account at sign-in.
package storefront

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biyariq/storefront/internal/domain/session"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Options configures a Storefront
type Options struct {
	Gateways  GatewayFactory
	Guest     GuestStorage
	Inbox     *notify.Inbox
	Migration MigrationConfig
	Metrics   *telemetry.SyncMetrics
	Logger    *zap.Logger
}

// Storefront is the state of one guest session id
type Storefront struct {
	id        string
	session   *SessionState
	cart      *CartEngine
	favorites *FavoritesEngine
	migrator  *Migrator
	inbox     *notify.Inbox
	logger    *zap.Logger

	// authMu serializes sign-in, sign-out and profile checks
	authMu   sync.Mutex
	lastSeen atomic.Int64
}

// New wires a storefront for the guest id. Nothing is loaded until Init.
func New(id string, opts Options) *Storefront {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id))

	var notifier notify.Notifier = notify.Discard{}
	if opts.Inbox != nil {
		notifier = opts.Inbox
	}

	s := &Storefront{id: id, inbox: opts.Inbox, logger: log}
	gw := opts.Gateways(func() string { return s.session.Token() })
	s.session = NewSessionState(gw, opts.Guest, notifier, log.Named("session"))

	deps := EngineDeps{
		Auth:     s.session,
		Guest:    opts.Guest,
		Notifier: notifier,
		Metrics:  opts.Metrics,
		Logger:   log,
	}
	s.cart = NewCartEngine(gw, deps)
	s.favorites = NewFavoritesEngine(gw, deps)
	s.migrator = NewMigrator(opts.Guest, gw, opts.Migration, deps)

	s.session.Subscribe(func(ch SessionChange) {
		log.Debug("Session changed", zap.String("status", string(ch.Status)), zap.Bool("loading", ch.Loading))
	})
	s.Touch()
	return s
}

// ID returns the guest session id
func (s *Storefront) ID() string { return s.id }

// Session returns the session state
func (s *Storefront) Session() *SessionState { return s.session }

// Cart returns the cart engine
func (s *Storefront) Cart() *CartEngine { return s.cart }

// Favorites returns the favorites engine
func (s *Storefront) Favorites() *FavoritesEngine { return s.favorites }

// Inbox returns the notification inbox, which may be nil
func (s *Storefront) Inbox() *notify.Inbox { return s.inbox }

// Touch marks the storefront as used now
func (s *Storefront) Touch() {
	s.touchAt(time.Now())
}

func (s *Storefront) touchAt(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

// LastSeen returns when the storefront was last used
func (s *Storefront) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Init restores a stored token, confirms it and performs the first load of
// both collections. Load failures are reported in each engine's Err and in
// the returned error.
func (s *Storefront) Init(ctx context.Context) error {
	ctx = logger.WithSessionID(ctx, s.id)
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.session.Restore(ctx); err != nil {
		logger.Enrich(ctx, s.logger).Warn("Failed to restore session token", zap.Error(err))
	}
	_ = s.session.CheckProfile(ctx)
	if s.session.IsAuthenticated() {
		s.signedIn(ctx)
		return errors.Join(s.cart.Err(), s.favorites.Err())
	}
	return s.loadAll(ctx)
}

// Login signs in and migrates the guest collections into the account
func (s *Storefront) Login(ctx context.Context, creds session.Credentials) (MigrationReport, error) {
	ctx = logger.WithSessionID(ctx, s.id)
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.session.Login(ctx, creds); err != nil {
		return MigrationReport{}, err
	}
	return s.signedIn(ctx), nil
}

// Register creates an account, signs in and migrates the guest collections
func (s *Storefront) Register(ctx context.Context, reg session.Registration) (MigrationReport, error) {
	ctx = logger.WithSessionID(ctx, s.id)
	s.authMu.Lock()
	defer s.authMu.Unlock()

	if err := s.session.Register(ctx, reg); err != nil {
		return MigrationReport{}, err
	}
	return s.signedIn(ctx), nil
}

// Logout signs out and reloads both collections from the guest store.
// A failed backend logout is logged by the session; local state is cleared
// either way.
func (s *Storefront) Logout(ctx context.Context) {
	ctx = logger.WithSessionID(ctx, s.id)
	s.authMu.Lock()
	defer s.authMu.Unlock()

	_ = s.session.Logout(ctx)
	_ = s.loadAll(ctx)
}

// CheckProfile re-validates the session token. Becoming signed in triggers
// the guest migration; losing the session reloads guest data.
func (s *Storefront) CheckProfile(ctx context.Context) error {
	ctx = logger.WithSessionID(ctx, s.id)
	s.authMu.Lock()
	defer s.authMu.Unlock()

	wasAuthed := s.session.IsAuthenticated()
	err := s.session.CheckProfile(ctx)
	switch nowAuthed := s.session.IsAuthenticated(); {
	case nowAuthed && !wasAuthed:
		s.signedIn(ctx)
	case !nowAuthed && (wasAuthed || s.serverSourced()):
		_ = s.loadAll(ctx)
	}
	return err
}

// serverSourced reports whether either collection still holds account data.
// It stays true after a token expires until the next load.
func (s *Storefront) serverSourced() bool {
	return s.cart.Source() == SourceServer || s.favorites.Source() == SourceServer
}

// signedIn migrates guest data and then loads both collections from the
// server. The migration is not cut short by the caller going away.
func (s *Storefront) signedIn(ctx context.Context) MigrationReport {
	s.cart.beginMigration()
	s.favorites.beginMigration()

	report, err := s.migrator.Migrate(context.WithoutCancel(ctx))
	if err != nil {
		logger.Enrich(ctx, s.logger).Warn("Guest migration skipped", zap.Error(err))
	}
	_ = s.loadAll(ctx)
	return report
}

func (s *Storefront) loadAll(ctx context.Context) error {
	var wg sync.WaitGroup
	var cartErr, favErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		cartErr = s.cart.Load(ctx)
	}()
	go func() {
		defer wg.Done()
		favErr = s.favorites.Load(ctx)
	}()
	wg.Wait()
	return errors.Join(cartErr, favErr)
}
