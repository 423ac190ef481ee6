package telemetry

import (
	"context"
	"testing"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	p, err := NewProviders(context.Background(), "", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.MeterProvider == nil {
		t.Error("no-op MeterProvider should not be nil")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("no-op Shutdown: %v", err)
	}
}

func TestNewProviders_WhitespaceEndpoint(t *testing.T) {
	p, err := NewProviders(context.Background(), "   ", "test-service", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if p.MeterProvider == nil {
		t.Error("whitespace endpoint should behave like empty")
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), "http://", "test-service", false); err == nil {
		t.Error("endpoint with no host should return error")
	}
}

func TestMetrics_NopRecordsSafely(t *testing.T) {
	m := NewNop()
	ctx := context.Background()
	m.SessionCreated(ctx)
	m.TokenRefreshed(ctx)
	m.SessionRevoked(ctx, "user_logout", 2)
	m.SessionsSwept(ctx, 5)
}
