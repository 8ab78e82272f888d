package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestSyncMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := telemetry.NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMutation(ctx, "cart", "add", nil)
	m.RecordMutation(ctx, "cart", "add", errors.New("boom"))
	m.RecordRollback(ctx, "cart", "add")
	m.RecordResync(ctx, "cart", nil)
	m.RecordMigration(ctx, "favorites", 3, 1)
	m.SessionOpened(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
	m.RecordGatewayCall(ctx, "GET", "/cart", 200, 20*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["storefront_mutations_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_rollbacks_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_resyncs_total"]))
	assert.Equal(t, int64(3), sumOf(t, data["storefront_migration_replays_total"]))
	assert.Equal(t, int64(1), sumOf(t, data["storefront_active_sessions"]))

	h, ok := data["storefront_gateway_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.SyncMetrics
	assert.NotPanics(t, func() {
		m.RecordMutation(context.Background(), "cart", "add", nil)
		m.RecordGatewayCall(context.Background(), "GET", "/cart", 500, time.Second)
		m.SessionOpened(context.Background())
	})

	_, err := telemetry.NewSyncMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}
