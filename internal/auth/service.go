// Package auth implements the session lifecycle: authenticating credentials,
// issuing access/refresh token pairs, rotating them on renewal, validating
// incoming access tokens, and revoking sessions individually or in bulk. The
// service is stateless between calls; all cross-request state lives in the
// session cache and the durable session store. The cache decides whether a
// session is usable right now; the durable store records what happened.
package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"citaplanner/backend/internal/cache"
	"citaplanner/backend/internal/security"
	sessiondomain "citaplanner/backend/internal/session/domain"
	"citaplanner/backend/internal/telemetry"
	userdomain "citaplanner/backend/internal/user/domain"
)

// UserStore is the user lookup the service depends on.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionStore is the durable session persistence the service depends on.
type SessionStore interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByID(ctx context.Context, sessionID string) (*sessiondomain.Session, error)
	UpdateTokens(ctx context.Context, sessionID, accessJTI, refreshJTI string, lastActivity, expiresAt time.Time) error
	UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error
	GetByUser(ctx context.Context, userID string, status sessiondomain.Status) ([]*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string, includeInactive bool) ([]*sessiondomain.Session, error)
	Revoke(ctx context.Context, sessionID, reason string) (bool, error)
	RevokeForUser(ctx context.Context, userID, reason, excludeSessionID string) (int64, error)
}

// TokenPair is what a caller holds after create or refresh. ExpiresIn is the
// access token lifetime in whole seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Users    UserStore
	Sessions SessionStore
	Cache    *cache.Client
	Tokens   *security.TokenProvider
	Hasher   *security.Hasher
	Metrics  *telemetry.Metrics

	// InactivityTimeout is how long a user may be idle before the next
	// refresh attempt is rejected and the session revoked.
	InactivityTimeout time.Duration
	// ActivityFlushInterval throttles durable last_activity writes; the cache
	// copy is updated on every verified request regardless.
	ActivityFlushInterval time.Duration
}

type Service struct {
	users         UserStore
	sessions      SessionStore
	cache         *cache.Client
	tokens        *security.TokenProvider
	hasher        *security.Hasher
	metrics       *telemetry.Metrics
	inactivity    time.Duration
	flushInterval time.Duration
}

// NewService wires the session lifecycle manager.
func NewService(d Deps) *Service {
	m := d.Metrics
	if m == nil {
		m = telemetry.NewNop()
	}
	return &Service{
		users:         d.Users,
		sessions:      d.Sessions,
		cache:         d.Cache,
		tokens:        d.Tokens,
		hasher:        d.Hasher,
		metrics:       m,
		inactivity:    d.InactivityTimeout,
		flushInterval: d.ActivityFlushInterval,
	}
}

// Authenticate verifies username/password and returns the user with the
// password digest stripped. Any mismatch, unknown username, or inactive
// account returns (nil, nil) so the caller can apply a uniform invalid
// credentials response regardless of which check failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*userdomain.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", ErrInternalStore, err)
	}
	if u == nil || !u.IsActive {
		return nil, nil
	}
	if err := s.hasher.Compare(u.PasswordDigest, []byte(password)); err != nil {
		return nil, nil
	}
	u.PasswordDigest = ""
	return u, nil
}

// CreateSession issues a fresh session with a new access/refresh pair, writes
// the cache entries that make it live, and persists the durable row. A durable
// write failure is surfaced as ErrInternalStore even though the cache entries
// already exist: a cache-only session is unrecoverable after eviction.
func (s *Service) CreateSession(ctx context.Context, userID string, deviceInfo map[string]any, ip, userAgent string) (*TokenPair, error) {
	sessionID := uuid.NewString()
	now := time.Now().UTC()

	accessToken, accessJTI, _, err := s.tokens.IssueAccess(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, refreshJTI, refreshExpiresAt, err := s.tokens.IssueRefresh(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	state := cache.SessionState{
		UserID:       userID,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
		LastActivity: now,
		Status:       string(sessiondomain.StatusActive),
	}
	if err := s.cache.PutSession(ctx, sessionID, state, s.tokens.AccessTTL()); err != nil {
		return nil, fmt.Errorf("%w: cache session write: %v", ErrInternalStore, err)
	}
	if err := s.cache.TouchActivity(ctx, userID, now, s.inactivity); err != nil {
		return nil, fmt.Errorf("%w: activity marker write: %v", ErrInternalStore, err)
	}

	err = s.sessions.Create(ctx, &sessiondomain.Session{
		SessionID:       sessionID,
		UserID:          userID,
		AccessTokenJTI:  accessJTI,
		RefreshTokenJTI: refreshJTI,
		DeviceInfo:      deviceInfo,
		IPAddress:       ip,
		UserAgent:       userAgent,
		CreatedAt:       now,
		LastActivity:    now,
		ExpiresAt:       refreshExpiresAt,
		Status:          sessiondomain.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: durable session write: %v", ErrInternalStore, err)
	}

	s.metrics.SessionCreated(ctx)
	if _, err := s.cache.IncrementMetric(ctx, "sessions_created"); err != nil {
		log.Printf("auth: sessions_created counter: %v", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// VerifyAccessToken validates an access token and returns its claims. Beyond
// signature and expiry it requires that the jti is not deny-listed and that
// the session is still cache-resident; an evicted or revoked session fails
// with ErrSessionExpired even when the token itself has not expired. On
// success the user's activity marker and the session's last_activity are
// refreshed; the durable last_activity write is throttled.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != security.TokenTypeAccess {
		return nil, ErrTokenInvalid
	}

	denied, err := s.cache.IsDenylisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: deny-list lookup: %v", ErrInternalStore, err)
	}
	if denied {
		return nil, ErrTokenRevoked
	}

	state, err := s.cache.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", ErrInternalStore, err)
	}
	if state == nil {
		return nil, ErrSessionExpired
	}

	now := time.Now().UTC()
	if err := s.cache.TouchActivity(ctx, claims.Subject, now, s.inactivity); err != nil {
		return nil, fmt.Errorf("%w: activity marker write: %v", ErrInternalStore, err)
	}
	state.LastActivity = now
	if err := s.cache.PutSession(ctx, claims.SessionID, *state, s.tokens.AccessTTL()); err != nil {
		return nil, fmt.Errorf("%w: cache session write: %v", ErrInternalStore, err)
	}

	// Durable last_activity is best-effort and throttled; the cache copy
	// above is what the lazy inactivity check reads.
	if flush, err := s.cache.ClaimActivityFlush(ctx, claims.SessionID, s.flushInterval); err == nil && flush {
		if err := s.sessions.UpdateLastActivity(ctx, claims.SessionID, now); err != nil {
			log.Printf("auth: durable last_activity update for %s: %v", claims.SessionID, err)
		}
	}

	return claims, nil
}

// RefreshSession exchanges a refresh token for a brand-new access/refresh pair
// under the same session (full rotation). The presented jti is deny-listed
// before any new token is handed out, so a mid-failure degrades to "old token
// revoked, operation failed", never to two live pairs. Inactivity is evaluated
// here and only here: an absent or stale activity marker revokes the session
// and fails the exchange with ErrSessionExpired.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != security.TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}

	denied, err := s.cache.IsDenylisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: deny-list lookup: %v", ErrInternalStore, err)
	}
	if denied {
		return nil, ErrTokenRevoked
	}

	now := time.Now().UTC()
	lastSeen, found, err := s.cache.LastActivity(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: activity marker lookup: %v", ErrInternalStore, err)
	}
	if !found || now.Sub(lastSeen) > s.inactivity {
		if _, err := s.RevokeSession(ctx, claims.SessionID, sessiondomain.ReasonInactivityDetected); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	// Single-use gate: exactly one concurrent exchange claims the jti. The
	// deny-list TTL must outlive the token it blocks.
	remaining := s.tokens.RefreshTTL()
	if claims.ExpiresAt != nil {
		if until := time.Until(claims.ExpiresAt.Time); until > 0 {
			remaining = until
		}
	}
	claimed, err := s.cache.ClaimDenylist(ctx, claims.ID, sessiondomain.ReasonRefreshed, remaining)
	if err != nil {
		return nil, fmt.Errorf("%w: deny-list write: %v", ErrInternalStore, err)
	}
	if !claimed {
		return nil, ErrTokenRevoked
	}

	accessToken, accessJTI, _, err := s.tokens.IssueAccess(claims.Subject, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	newRefreshToken, refreshJTI, refreshExpiresAt, err := s.tokens.IssueRefresh(claims.Subject, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	state := cache.SessionState{
		UserID:       claims.Subject,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
		LastActivity: now,
		Status:       string(sessiondomain.StatusActive),
	}
	if err := s.cache.PutSession(ctx, claims.SessionID, state, s.tokens.AccessTTL()); err != nil {
		return nil, fmt.Errorf("%w: cache session write: %v", ErrInternalStore, err)
	}
	if err := s.cache.TouchActivity(ctx, claims.Subject, now, s.inactivity); err != nil {
		return nil, fmt.Errorf("%w: activity marker write: %v", ErrInternalStore, err)
	}
	if err := s.sessions.UpdateTokens(ctx, claims.SessionID, accessJTI, refreshJTI, now, refreshExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: durable session update: %v", ErrInternalStore, err)
	}

	s.metrics.TokenRefreshed(ctx)
	if _, err := s.cache.IncrementMetric(ctx, "tokens_refreshed"); err != nil {
		log.Printf("auth: tokens_refreshed counter: %v", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		SessionID:    claims.SessionID,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// RevokeSession terminates one session: deny-lists both of its current jtis
// for at least the lifetime of the credential each blocks, evicts the cache
// entries, and marks the durable row revoked with the reason. Returns false
// when the session is unknown or already terminal.
func (s *Service) RevokeSession(ctx context.Context, sessionID, reason string) (bool, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("%w: session lookup: %v", ErrInternalStore, err)
	}
	if sess == nil {
		return false, nil
	}

	if err := s.denylistSession(ctx, sess, reason); err != nil {
		return false, err
	}
	if err := s.cache.DeleteActivity(ctx, sess.UserID); err != nil {
		return false, fmt.Errorf("%w: activity marker delete: %v", ErrInternalStore, err)
	}

	ok, err := s.sessions.Revoke(ctx, sessionID, reason)
	if err != nil {
		return false, fmt.Errorf("%w: durable revoke: %v", ErrInternalStore, err)
	}
	if ok {
		s.metrics.SessionRevoked(ctx, reason, 1)
		if _, err := s.cache.IncrementMetric(ctx, "sessions_revoked"); err != nil {
			log.Printf("auth: sessions_revoked counter: %v", err)
		}
	}
	return ok, nil
}

// RevokeAllUserSessions terminates every active session of the user except
// excludeSessionID (ignored when empty). The durable transition is a single
// bulk statement; the count of transitioned rows is returned.
func (s *Service) RevokeAllUserSessions(ctx context.Context, userID, reason, excludeSessionID string) (int64, error) {
	active, err := s.sessions.GetByUser(ctx, userID, sessiondomain.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("%w: session enumeration: %v", ErrInternalStore, err)
	}

	for _, sess := range active {
		if sess.SessionID == excludeSessionID {
			continue
		}
		if err := s.denylistSession(ctx, sess, reason); err != nil {
			return 0, err
		}
	}
	if err := s.cache.DeleteActivity(ctx, userID); err != nil {
		return 0, fmt.Errorf("%w: activity marker delete: %v", ErrInternalStore, err)
	}

	count, err := s.sessions.RevokeForUser(ctx, userID, reason, excludeSessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: durable bulk revoke: %v", ErrInternalStore, err)
	}
	if count > 0 {
		s.metrics.SessionRevoked(ctx, reason, count)
		if _, err := s.cache.IncrementMetric(ctx, "bulk_sessions_revoked"); err != nil {
			log.Printf("auth: bulk_sessions_revoked counter: %v", err)
		}
	}
	return count, nil
}

// ListSessions returns the user's sessions from the durable store, newest
// first; only active ones unless includeInactive is set.
func (s *Service) ListSessions(ctx context.Context, userID string, includeInactive bool) ([]*sessiondomain.Session, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("%w: session listing: %v", ErrInternalStore, err)
	}
	return sessions, nil
}

// GetUser returns the user for id without the password digest, or nil if not found.
func (s *Service) GetUser(ctx context.Context, id string) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", ErrInternalStore, err)
	}
	return u, nil
}

// denylistSession retires both of the session's live jtis and evicts its
// cache entry. Deny-list TTLs use the full configured lifetimes, an upper
// bound on the remaining life of either credential.
func (s *Service) denylistSession(ctx context.Context, sess *sessiondomain.Session, reason string) error {
	if err := s.cache.Denylist(ctx, sess.AccessTokenJTI, reason, s.tokens.AccessTTL()); err != nil {
		return fmt.Errorf("%w: deny-list write: %v", ErrInternalStore, err)
	}
	if err := s.cache.Denylist(ctx, sess.RefreshTokenJTI, reason, s.tokens.RefreshTTL()); err != nil {
		return fmt.Errorf("%w: deny-list write: %v", ErrInternalStore, err)
	}
	if err := s.cache.DeleteSession(ctx, sess.SessionID); err != nil {
		return fmt.Errorf("%w: cache session delete: %v", ErrInternalStore, err)
	}
	return nil
}
