package storefront

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/gueststore"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPurger struct{ calls atomic.Int32 }

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func newTestRegistry(t *testing.T, idle time.Duration, purger Purger) (*Registry, *atomic.Int32) {
	t.Helper()
	store := gueststore.NewMemoryStore(0, time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	cat, err := notify.NewCatalog()
	require.NoError(t, err)

	created := &atomic.Int32{}
	r := NewRegistry(RegistryConfig{
		Gateways: func(func() string) Gateway {
			created.Add(1)
			return new(MockGateway)
		},
		Guests: func(id string) GuestStorage {
			return gueststore.NewSnapshot(store, id, nil)
		},
		Catalog:     cat,
		IdleTimeout: idle,
		SweepEvery:  time.Hour,
		Purger:      purger,
	})
	t.Cleanup(r.Close)
	return r, created
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	ctx := context.Background()
	r, created := newTestRegistry(t, 0, nil)

	var wg sync.WaitGroup
	results := make([]*Storefront, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sf, err := r.Get(ctx, "guest-a")
			assert.NoError(t, err)
			results[i] = sf
		}(i)
	}
	wg.Wait()

	for _, sf := range results {
		assert.Same(t, results[0], sf)
	}
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, SourceGuest, results[0].Cart().Source(), "initialized before being handed out")
	assert.NotNil(t, results[0].Inbox())
	assert.Equal(t, notify.Arabic, results[0].Inbox().Language())

	other, err := r.Get(ctx, "guest-b")
	require.NoError(t, err)
	assert.NotSame(t, results[0], other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_GuestDataSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	purger := &countingPurger{}
	r, _ := newTestRegistry(t, time.Minute, purger)

	sf, err := r.Get(ctx, "guest-a")
	require.NoError(t, err)
	require.NoError(t, sf.Cart().AddToCart(ctx, product("p1"), 3))

	assert.Zero(t, r.Sweep(ctx), "fresh sessions stay")
	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, r.Sweep(ctx))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int32(2), purger.calls.Load())

	again, err := r.Get(ctx, "guest-a")
	require.NoError(t, err)
	assert.NotSame(t, sf, again)
	line, ok := again.Cart().GetCartItemByID("p1")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
}

func TestRegistry_GetKeepsStorefrontAlive(t *testing.T) {
	ctx := context.Background()
	r, created := newTestRegistry(t, time.Minute, nil)
	sf, err := r.Get(ctx, "guest-a")
	require.NoError(t, err)

	later := time.Now().Add(2 * time.Minute)
	r.now = func() time.Time { return later }
	again, err := r.Get(ctx, "guest-a")
	require.NoError(t, err)
	assert.Same(t, sf, again)
	assert.Zero(t, r.Sweep(ctx), "a storefront used after the idle window opened stays")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := r.Get(ctx, "guest-a")
			assert.NoError(t, err)
			assert.Same(t, sf, got)
		}()
		go func() {
			defer wg.Done()
			r.Sweep(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Close(t *testing.T) {
	r, _ := newTestRegistry(t, time.Minute, nil)
	_, err := r.Get(context.Background(), "guest-a")
	require.NoError(t, err)

	r.Close()
	r.Close()
	assert.Equal(t, 0, r.Len())

	_, err = r.Get(context.Background(), "guest-a")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}
