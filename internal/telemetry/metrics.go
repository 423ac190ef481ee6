package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the counters recorded by the session lifecycle. All recording
// is best-effort; instrument failures never affect the operation being counted.
type Metrics struct {
	sessionsCreated otelmetric.Int64Counter
	tokensRefreshed otelmetric.Int64Counter
	sessionsRevoked otelmetric.Int64Counter
	sessionsSwept   otelmetric.Int64Counter
}

// NewMetrics builds the lifecycle counters against the given MeterProvider.
func NewMetrics(provider otelmetric.MeterProvider) *Metrics {
	meter := provider.Meter("citaplanner.sessions")
	m := &Metrics{}
	var err error
	if m.sessionsCreated, err = meter.Int64Counter("sessions.created"); err != nil {
		log.Printf("telemetry: sessions.created counter: %v", err)
	}
	if m.tokensRefreshed, err = meter.Int64Counter("tokens.refreshed"); err != nil {
		log.Printf("telemetry: tokens.refreshed counter: %v", err)
	}
	if m.sessionsRevoked, err = meter.Int64Counter("sessions.revoked"); err != nil {
		log.Printf("telemetry: sessions.revoked counter: %v", err)
	}
	if m.sessionsSwept, err = meter.Int64Counter("sessions.swept"); err != nil {
		log.Printf("telemetry: sessions.swept counter: %v", err)
	}
	return m
}

// NewNop returns Metrics that record nothing; used by tests and tools that do not export.
func NewNop() *Metrics {
	return NewMetrics(noop.NewMeterProvider())
}

// SessionCreated counts one session creation.
func (m *Metrics) SessionCreated(ctx context.Context) {
	if m.sessionsCreated != nil {
		m.sessionsCreated.Add(ctx, 1)
	}
}

// TokenRefreshed counts one successful rotation.
func (m *Metrics) TokenRefreshed(ctx context.Context) {
	if m.tokensRefreshed != nil {
		m.tokensRefreshed.Add(ctx, 1)
	}
}

// SessionRevoked counts n revocations with the given reason.
func (m *Metrics) SessionRevoked(ctx context.Context, reason string, n int64) {
	if m.sessionsRevoked != nil {
		m.sessionsRevoked.Add(ctx, n, otelmetric.WithAttributes(attribute.String("reason", reason)))
	}
}

// SessionsSwept counts rows transitioned by the retention sweep.
func (m *Metrics) SessionsSwept(ctx context.Context, n int64) {
	if m.sessionsSwept != nil {
		m.sessionsSwept.Add(ctx, n)
	}
}
