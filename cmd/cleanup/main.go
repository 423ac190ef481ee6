// cleanup sweeps stale active session rows to expired. Inactivity itself is
// detected lazily at refresh time; this job only reclaims rows nobody ever
// tries to renew. Run periodically (e.g. from cron): go run ./cmd/cleanup.
package main

import (
	"context"
	"log"
	"time"

	"citaplanner/backend/internal/config"
	"citaplanner/backend/internal/db"
	sessionrepo "citaplanner/backend/internal/session/repository"
	"citaplanner/backend/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "citaplanner-cleanup", false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()
	metrics := telemetry.NewMetrics(providers.MeterProvider)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	sessions := sessionrepo.NewPostgresRepository(conn)
	swept, err := sessions.CleanupStale(ctx, cfg.RetentionWindow())
	if err != nil {
		log.Fatalf("cleanup: %v", err)
	}
	metrics.SessionsSwept(ctx, swept)
	log.Printf("Swept %d stale sessions (retention %s)", swept, cfg.RetentionWindow())
}
