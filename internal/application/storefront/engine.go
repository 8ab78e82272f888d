package storefront

import (
	"context"
	"sync"

	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EngineDeps are the collaborators shared by the cart and favorites engines
type EngineDeps struct {
	Auth     AuthState
	Guest    GuestSnapshot
	Notifier notify.Notifier
	Metrics  *telemetry.SyncMetrics
	Logger   *zap.Logger
}

func (d EngineDeps) withDefaults(name string) EngineDeps {
	if d.Notifier == nil {
		d.Notifier = notify.Discard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	d.Logger = d.Logger.Named(name)
	return d
}

// engineCore holds the bookkeeping both engines share: status fields,
// locking and the optimistic mutation protocol. The engine owns the items
// and guards them with mu.
type engineCore struct {
	collection    string
	loadFailedKey string
	deps          EngineDeps
	locks         *keyLock
	loads         singleflight.Group
	persistMu     sync.Mutex

	mu      sync.RWMutex
	loading bool
	err     error
	source  Source

	// resync replaces the items with the server's copy; set by the engine
	resync func(ctx context.Context) error
	// reload runs the engine's Load
	reload func(ctx context.Context) error
	// rewriteGuest writes the current items to the guest store
	rewriteGuest func(ctx context.Context) error
}

func newEngineCore(collection, loadFailedKey string, deps EngineDeps) *engineCore {
	return &engineCore{
		collection:    collection,
		loadFailedKey: loadFailedKey,
		deps:          deps.withDefaults(collection),
		locks:         newKeyLock(),
		source:        SourceUninitialized,
	}
}

// Loading reports whether a load is in flight
func (c *engineCore) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Err returns the last load or mutation failure, cleared by the next success
func (c *engineCore) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Source returns where the current items came from
func (c *engineCore) Source() Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

func (c *engineCore) beginMigration() {
	c.mu.Lock()
	c.source = SourceMigrating
	c.mu.Unlock()
}

// mutation is one optimistic change. apply runs with mu held and returns
// the undo for its change; changed=false means nothing to sync.
type mutation struct {
	op    string
	id    string
	apply func() (undo func(), changed bool, err error)
	// remote syncs the change when authenticated, guest otherwise
	remote func(ctx context.Context) error
	guest  func(ctx context.Context) error

	okKey     string
	okArgs    []any
	failedKey string
}

// mutate applies m optimistically and syncs it. On sync failure the change is
// undone; an authenticated failure then resyncs from the server. An empty id
// makes the mutation exclusive with every other one.
func (c *engineCore) mutate(ctx context.Context, m mutation) error {
	ctx, span := telemetry.StartSpan(ctx, c.collection+"."+m.op,
		telemetry.WithAttribute(telemetry.SpanAttrCollection, c.collection),
		telemetry.WithAttribute(telemetry.SpanAttrProductID, m.id),
	)
	defer span.End()

	authed := c.deps.Auth != nil && c.deps.Auth.IsAuthenticated()
	if !authed && c.Source() == SourceServer {
		// The session ended without a sign-out; server items never go to the guest store
		logger.Enrich(ctx, c.deps.Logger).Info("Session no longer authenticated, reloading guest data",
			zap.String("op", m.op),
		)
		if err := c.reload(ctx); err != nil {
			return err
		}
	}
	changed, rolledBack, err := c.applyAndSync(ctx, m, authed)
	if !changed && err == nil {
		return nil
	}

	log := logger.Enrich(ctx, c.deps.Logger)
	c.deps.Metrics.RecordMutation(ctx, c.collection, m.op, err)
	if err == nil {
		c.mu.Lock()
		c.err = nil
		c.mu.Unlock()
		c.deps.Notifier.Notify(ctx, notify.LevelSuccess, m.okKey, m.okArgs...)
		return nil
	}

	telemetry.RecordError(span, err)
	if rolledBack {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		c.deps.Metrics.RecordRollback(ctx, c.collection, m.op)
		log.Warn("Mutation failed, rolled back",
			zap.String("op", m.op),
			zap.String("id", m.id),
			zap.Bool("authenticated", authed),
			zap.Error(err),
		)
		if authed && c.resync != nil {
			c.runResync(ctx)
		}
	}
	c.deps.Notifier.Notify(ctx, notify.LevelError, m.failedKey)
	return err
}

func (c *engineCore) applyAndSync(ctx context.Context, m mutation, authed bool) (changed, rolledBack bool, err error) {
	unlock := c.locks.Lock(m.id)
	defer unlock()

	c.mu.Lock()
	undo, changed, err := m.apply()
	c.mu.Unlock()
	if err != nil || !changed {
		return false, false, err
	}

	push := m.guest
	if authed {
		push = m.remote
	}
	if err := push(ctx); err != nil {
		c.mu.Lock()
		undo()
		c.mu.Unlock()
		if !authed {
			c.reconcileGuest(ctx)
		}
		return true, true, err
	}
	return true, false, nil
}

// reconcileGuest rewrites the guest store after a rollback. A concurrent
// write for another id may already have stored the undone change.
func (c *engineCore) reconcileGuest(ctx context.Context) {
	if c.rewriteGuest == nil {
		return
	}
	if err := c.rewriteGuest(context.WithoutCancel(ctx)); err != nil {
		logger.Enrich(ctx, c.deps.Logger).Warn("Failed to rewrite guest data after rollback", zap.Error(err))
	}
}

// runResync refreshes from the server after a failed authenticated mutation.
// When the refresh fails the rolled-back state stays.
func (c *engineCore) runResync(ctx context.Context) {
	unlock := c.locks.LockAll()
	err := c.resync(ctx)
	unlock()

	c.deps.Metrics.RecordResync(ctx, c.collection, err)
	if err != nil {
		logger.Enrich(ctx, c.deps.Logger).Warn("Resync after failed mutation failed, keeping restored state", zap.Error(err))
	}
}

// load coalesces concurrent loads. fetch runs exclusively and must leave the
// items empty when it fails.
func (c *engineCore) load(ctx context.Context, fetch func(ctx context.Context, authed bool) error) error {
	_, err, _ := c.loads.Do("load", func() (any, error) {
		ctx, span := telemetry.StartSpan(ctx, c.collection+".load",
			telemetry.WithAttribute(telemetry.SpanAttrCollection, c.collection),
		)
		defer span.End()

		unlock := c.locks.LockAll()
		defer unlock()

		authed := c.deps.Auth != nil && c.deps.Auth.IsAuthenticated()
		source := SourceGuest
		if authed {
			source = SourceServer
		}
		telemetry.SetAttributes(span, telemetry.SpanAttrSource, string(source))

		c.mu.Lock()
		c.loading = true
		c.source = SourceLoading
		c.mu.Unlock()

		err := fetch(ctx, authed)

		c.mu.Lock()
		c.loading = false
		c.source = source
		c.err = err
		c.mu.Unlock()

		if err != nil {
			telemetry.RecordError(span, err)
			logger.Enrich(ctx, c.deps.Logger).Warn("Load failed",
				zap.String("source", string(source)),
				zap.Error(err),
			)
			c.deps.Notifier.Notify(ctx, notify.LevelError, c.loadFailedKey)
		}
		return nil, err
	})
	return err
}

// persistGuest runs write with guest writers serialized. write takes its copy
// of the items inside, so the last write carries the latest state.
func (c *engineCore) persistGuest(ctx context.Context, write func(ctx context.Context) error) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return write(ctx)
}
