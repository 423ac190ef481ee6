package auth

import (
	"errors"

	"citaplanner/backend/internal/security"
)

// Expected, user-facing outcomes. The transport layer maps each to a rejection
// response; none is retried internally. Store failures surface as
// ErrInternalStore and are the only retryable kind; they are never collapsed
// into ErrSessionExpired, so an infrastructure blip does not log users out.
var (
	// ErrTokenExpired: signature valid, exp passed.
	ErrTokenExpired = security.ErrTokenExpired
	// ErrTokenInvalid: malformed token, bad signature, or wrong token type.
	ErrTokenInvalid = security.ErrTokenInvalid
	// ErrTokenRevoked: the token's jti is on the deny-list.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSessionExpired: the session is not cache-resident, or was lazily
	// detected as inactive during refresh. Clients should clear all held
	// credentials; the session itself is gone, not just the presented token.
	ErrSessionExpired = errors.New("session expired")
	// ErrInternalStore: the cache or durable store is unreachable or failed.
	ErrInternalStore = errors.New("internal store error")
)
