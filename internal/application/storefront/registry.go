package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message/catalog"
)

// ErrRegistryClosed is returned by Get after Close
var ErrRegistryClosed = errors.New("storefront registry closed")

// Purger drops expired guest data from a backing store
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RegistryConfig configures a Registry
type RegistryConfig struct {
	Gateways GatewayFactory
	// Guests binds guest storage to a session id
	Guests func(id string) GuestStorage

	Catalog       catalog.Catalog
	Language      language.Tag
	InboxCapacity int

	Migration   MigrationConfig
	IdleTimeout time.Duration
	SweepEvery  time.Duration
	// Purger, when set, is run on every sweep
	Purger Purger

	Metrics *telemetry.SyncMetrics
	Logger  *zap.Logger
}

// Registry maps guest session ids to live storefronts. Storefronts are
// created on first use and evicted after IdleTimeout without use; their
// data stays in the guest store and the backend.
type Registry struct {
	cfg     RegistryConfig
	logger  *zap.Logger
	creates singleflight.Group
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*Storefront
	closed  bool

	stop chan struct{}
	done chan struct{}
}

// NewRegistry creates a registry and starts its sweep loop when IdleTimeout is set
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Language == language.Und {
		cfg.Language = notify.Arabic
	}
	r := &Registry{
		cfg:     cfg,
		logger:  cfg.Logger.Named("registry"),
		now:     time.Now,
		entries: make(map[string]*Storefront),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		every := cfg.SweepEvery
		if every <= 0 {
			every = time.Minute
		}
		go r.sweepLoop(every)
	} else {
		close(r.done)
	}
	return r
}

// Get returns the storefront for id, creating and initializing it on first
// use. Concurrent first calls for one id share a single initialization.
func (r *Registry) Get(ctx context.Context, id string) (*Storefront, error) {
	// Touched under the lock so a concurrent Sweep either sees the use or
	// has already evicted the entry
	r.mu.RLock()
	sf, ok := r.entries[id]
	closed := r.closed
	if ok {
		sf.touchAt(r.now())
	}
	r.mu.RUnlock()
	if closed {
		return nil, ErrRegistryClosed
	}
	if ok {
		return sf, nil
	}

	v, err, _ := r.creates.Do(id, func() (any, error) {
		r.mu.RLock()
		existing, ok := r.entries[id]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		sf := r.newStorefront(id)
		if err := sf.Init(ctx); err != nil {
			r.logger.Warn("Storefront initialized with errors", zap.String("session_id", id), zap.Error(err))
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			return nil, ErrRegistryClosed
		}
		sf.touchAt(r.now())
		r.entries[id] = sf
		r.cfg.Metrics.SessionOpened(ctx)
		return sf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Storefront), nil
}

func (r *Registry) newStorefront(id string) *Storefront {
	var inbox *notify.Inbox
	if r.cfg.Catalog != nil {
		inbox = notify.NewInbox(r.cfg.Catalog, r.cfg.Language, r.cfg.InboxCapacity, r.cfg.Logger.Named("notify"))
	}
	return New(id, Options{
		Gateways:  r.cfg.Gateways,
		Guest:     r.cfg.Guests(id),
		Inbox:     inbox,
		Migration: r.cfg.Migration,
		Metrics:   r.cfg.Metrics,
		Logger:    r.cfg.Logger,
	})
}

// Len returns the number of live storefronts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep evicts storefronts idle longer than IdleTimeout and runs the purger.
// It returns the number evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	evicted := 0
	if r.cfg.IdleTimeout > 0 {
		cutoff := r.now().Add(-r.cfg.IdleTimeout)
		r.mu.Lock()
		for id, sf := range r.entries {
			if sf.LastSeen().Before(cutoff) {
				delete(r.entries, id)
				r.cfg.Metrics.SessionClosed(ctx)
				evicted++
			}
		}
		r.mu.Unlock()
	}
	if evicted > 0 {
		r.logger.Debug("Evicted idle storefronts", zap.Int("count", evicted))
	}

	if r.cfg.Purger != nil {
		n, err := r.cfg.Purger.PurgeExpired(ctx)
		if err != nil {
			r.logger.Warn("Failed to purge expired guest data", zap.Error(err))
		} else if n > 0 {
			r.logger.Debug("Purged expired guest data", zap.Int64("rows", n))
		}
	}
	return evicted
}

func (r *Registry) sweepLoop(every time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep(context.Background())
		}
	}
}

// Close stops the sweep loop and drops every storefront
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	n := len(r.entries)
	r.entries = make(map[string]*Storefront)
	r.mu.Unlock()

	close(r.stop)
	<-r.done

	for i := 0; i < n; i++ {
		r.cfg.Metrics.SessionClosed(context.Background())
	}
	r.logger.Info("Storefront registry closed", zap.Int("sessions", n))
}
