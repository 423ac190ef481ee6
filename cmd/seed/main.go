// seed inserts a user account for local testing. Idempotent: exits cleanly
// when the username already exists.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"citaplanner/backend/internal/config"
	"citaplanner/backend/internal/db"
	"citaplanner/backend/internal/security"
	userdomain "citaplanner/backend/internal/user/domain"
	userrepo "citaplanner/backend/internal/user/repository"
)

func main() {
	username := flag.String("username", "dev", "Username for the seeded account")
	password := flag.String("password", "password123", "Password for the seeded account")
	email := flag.String("email", "dev@example.com", "Email for the seeded account")
	name := flag.String("name", "Dev User", "Full name for the seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByUsername(ctx, *username)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", *username)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	digest, err := hasher.Hash([]byte(*password))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	u := &userdomain.User{
		ID:             uuid.NewString(),
		Username:       *username,
		Email:          *email,
		PasswordDigest: digest,
		FullName:       *name,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("create user: %v", err)
	}
	log.Printf("Seeded user %s (%s)", u.Username, u.ID)
}
