package domain

import "time"

// Status is the session lifecycle state. Transitions are one-way: an active
// session becomes revoked (explicit or bulk revocation, or lazy inactivity
// detection during refresh) or expired (retention sweep); both are terminal.
// Rotation replaces credentials without changing status.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Revocation reason tags recorded on the durable row and in deny-list entries.
const (
	ReasonUserLogout         = "user_logout"
	ReasonInactivityDetected = "inactivity_detected"
	ReasonRefreshed          = "refreshed"
	ReasonCleanupJob         = "cleanup_job"
)

// Session is one authenticated device/browser instance. It owns exactly one
// live access/refresh jti pair at a time; both are replaced wholesale on
// rotation.
type Session struct {
	SessionID       string
	UserID          string
	AccessTokenJTI  string
	RefreshTokenJTI string
	DeviceInfo      map[string]any
	IPAddress       string
	UserAgent       string
	CreatedAt       time.Time
	LastActivity    time.Time
	ExpiresAt       time.Time
	Status          Status
	RevokedAt       *time.Time // nil while not terminated
	RevokedReason   string
}

// Terminal reports whether the session can no longer be used; a terminated
// session requires a fresh authenticate + create.
func (s *Session) Terminal() bool {
	return s.Status == StatusExpired || s.Status == StatusRevoked
}
