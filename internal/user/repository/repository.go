package repository

import (
	"context"

	"citaplanner/backend/internal/user/domain"
)

// Repository defines persistence for user accounts.
type Repository interface {
	// Create persists a new user. The user must have ID and PasswordDigest set.
	Create(ctx context.Context, u *domain.User) error
	// GetByUsername returns the active user with the given username (matched
	// case-insensitively, surrounding whitespace ignored), including the
	// password digest for credential checks. Returns nil if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// GetByID returns the user for id without the password digest, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
