package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrCollection = attribute.Key("collection") // cart, favorites
	AttrOperation  = attribute.Key("operation")
	AttrOutcome    = attribute.Key("outcome") // ok, failed
	AttrSource     = attribute.Key("source")  // guest, server
	AttrHTTPMethod = attribute.Key("http.method")
	AttrHTTPRoute  = attribute.Key("http.route")
	AttrHTTPStatus = attribute.Key("http.status_code")
)

// Outcome values
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// SyncMetrics counts storefront synchronization activity. A nil *SyncMetrics
// records nothing.
type SyncMetrics struct {
	mutations       *Counter
	rollbacks       *Counter
	resyncs         *Counter
	migrations      *Counter
	activeSessions  *UpDownCounter
	gatewayDuration *Histogram
}

// NewSyncMetrics registers the storefront instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	var err error

	if m.mutations, err = NewCounter(meter, "storefront_mutations_total",
		"Optimistic cart and favorites mutations by outcome", "{mutations}"); err != nil {
		return nil, err
	}
	if m.rollbacks, err = NewCounter(meter, "storefront_rollbacks_total",
		"Optimistic mutations restored after a failed write", "{rollbacks}"); err != nil {
		return nil, err
	}
	if m.resyncs, err = NewCounter(meter, "storefront_resyncs_total",
		"Server reloads after a failed authenticated mutation", "{resyncs}"); err != nil {
		return nil, err
	}
	if m.migrations, err = NewCounter(meter, "storefront_migration_replays_total",
		"Guest entries replayed to the account on sign-in", "{entries}"); err != nil {
		return nil, err
	}
	if m.activeSessions, err = NewUpDownCounter(meter, "storefront_active_sessions",
		"Storefront sessions held in memory", "{sessions}"); err != nil {
		return nil, err
	}
	if m.gatewayDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "storefront_gateway_request_duration_seconds",
		Description: "Latency of backend API calls",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordMutation counts one mutation of collection.
func (m *SyncMetrics) RecordMutation(ctx context.Context, collection, operation string, err error) {
	if m == nil {
		return
	}
	m.mutations.Inc(ctx, AttrCollection.String(collection), AttrOperation.String(operation), AttrOutcome.String(outcome(err)))
}

// RecordRollback counts one restored snapshot.
func (m *SyncMetrics) RecordRollback(ctx context.Context, collection, operation string) {
	if m == nil {
		return
	}
	m.rollbacks.Inc(ctx, AttrCollection.String(collection), AttrOperation.String(operation))
}

// RecordResync counts one post-failure server reload.
func (m *SyncMetrics) RecordResync(ctx context.Context, collection string, err error) {
	if m == nil {
		return
	}
	m.resyncs.Inc(ctx, AttrCollection.String(collection), AttrOutcome.String(outcome(err)))
}

// RecordMigration counts replayed guest entries.
func (m *SyncMetrics) RecordMigration(ctx context.Context, collection string, attempted, failed int) {
	if m == nil {
		return
	}
	if ok := attempted - failed; ok > 0 {
		m.migrations.Add(ctx, int64(ok), AttrCollection.String(collection), AttrOutcome.String(OutcomeOK))
	}
	if failed > 0 {
		m.migrations.Add(ctx, int64(failed), AttrCollection.String(collection), AttrOutcome.String(OutcomeFailed))
	}
}

// SessionOpened and SessionClosed track the in-memory session count.
func (m *SyncMetrics) SessionOpened(ctx context.Context) {
	if m != nil {
		m.activeSessions.Add(ctx, 1)
	}
}

func (m *SyncMetrics) SessionClosed(ctx context.Context) {
	if m != nil {
		m.activeSessions.Add(ctx, -1)
	}
}

// RecordGatewayCall records the latency of one backend API call.
func (m *SyncMetrics) RecordGatewayCall(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.RecordDuration(ctx, d,
		AttrHTTPMethod.String(method),
		AttrHTTPRoute.String(route),
		AttrHTTPStatus.Int(status),
	)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeOK
}
