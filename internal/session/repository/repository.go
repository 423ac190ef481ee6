package repository

import (
	"context"
	"time"

	"citaplanner/backend/internal/session/domain"
)

// Filter narrows admin listings; zero values mean "any".
type Filter struct {
	Status    domain.Status
	UserID    string
	IPAddress string
}

// Stats is a point-in-time summary of the session table.
type Stats struct {
	ActiveSessions   int64
	SessionsToday    int64
	UniqueUsersToday int64
}

// Repository defines durable persistence for sessions: the authority for
// what happened historically, as opposed to the cache's "usable right now".
type Repository interface {
	// Create persists a new session row. The session must have SessionID set.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	// It returns an error only for database failures, not for missing rows.
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// UpdateTokens replaces the jti pair and refreshes last_activity and
	// expires_at; used by rotation. No-op when the row is missing.
	UpdateTokens(ctx context.Context, sessionID, accessJTI, refreshJTI string, lastActivity, expiresAt time.Time) error
	// UpdateLastActivity sets last_activity for the given session.
	UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error
	// GetByUser returns the user's sessions with the given status, newest activity first.
	GetByUser(ctx context.Context, userID string, status domain.Status) ([]*domain.Session, error)
	// ListByUser returns the user's sessions, newest first; only active ones
	// unless includeInactive is set.
	ListByUser(ctx context.Context, userID string, includeInactive bool) ([]*domain.Session, error)
	// List returns sessions matching the filter with pagination, newest first.
	List(ctx context.Context, f Filter, limit, offset int32) ([]*domain.Session, error)
	// Count returns the number of sessions matching the filter.
	Count(ctx context.Context, f Filter) (int64, error)
	// Revoke transitions an active session to revoked with the given reason.
	// Returns false when the session is missing or already terminal.
	Revoke(ctx context.Context, sessionID, reason string) (bool, error)
	// RevokeForUser transitions all of the user's active sessions except
	// excludeSessionID (skipped when empty) to revoked in one statement.
	// Returns the number of rows transitioned.
	RevokeForUser(ctx context.Context, userID, reason, excludeSessionID string) (int64, error)
	// CleanupStale transitions active rows whose last_activity is older than
	// the retention window to expired. Returns the number of rows swept.
	CleanupStale(ctx context.Context, retention time.Duration) (int64, error)
	// Delete hard-deletes a session row (administrative). Returns false when missing.
	Delete(ctx context.Context, sessionID string) (bool, error)
	// Stats returns aggregate session counts.
	Stats(ctx context.Context) (*Stats, error)
}
