package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"citaplanner/backend/internal/session/domain"
)

const sessionColumns = `session_id, user_id, access_token_jti, refresh_token_jti,
	device_info, ip_address, user_agent, created_at, last_activity, expires_at,
	status, revoked_at, revoked_reason`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session row. The session must have SessionID set; it is
// not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	deviceInfo, err := marshalDeviceInfo(s.DeviceInfo)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_sessions
			(session_id, user_id, access_token_jti, refresh_token_jti,
			 device_info, ip_address, user_agent, created_at, last_activity, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.SessionID, s.UserID, s.AccessTokenJTI, s.RefreshTokenJTI,
		deviceInfo, nullString(s.IPAddress), nullString(s.UserAgent),
		s.CreatedAt, s.LastActivity, s.ExpiresAt, string(domain.StatusActive),
	)
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM user_sessions
		WHERE session_id = $1`, sessionID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// UpdateTokens replaces the jti pair and refreshes activity and expiry; the
// rotation path. Rows already terminal are left untouched.
func (r *PostgresRepository) UpdateTokens(ctx context.Context, sessionID, accessJTI, refreshJTI string, lastActivity, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET access_token_jti = $2, refresh_token_jti = $3, last_activity = $4, expires_at = $5
		WHERE session_id = $1 AND status = 'active'`,
		sessionID, accessJTI, refreshJTI, lastActivity, expiresAt)
	return err
}

// UpdateLastActivity sets last_activity for the session.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions SET last_activity = $2 WHERE session_id = $1`,
		sessionID, at)
	return err
}

// GetByUser returns the user's sessions with the given status, most recent activity first.
func (r *PostgresRepository) GetByUser(ctx context.Context, userID string, status domain.Status) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM user_sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY last_activity DESC`, userID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListByUser returns the user's sessions newest first; all statuses when includeInactive is set.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, includeInactive bool) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1`
	if !includeInactive {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// List returns sessions matching the filter with pagination, newest first.
func (r *PostgresRepository) List(ctx context.Context, f Filter, limit, offset int32) ([]*domain.Session, error) {
	where, args := filterClause(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM user_sessions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, sessionColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// Count returns the number of sessions matching the filter.
func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := filterClause(f)
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions `+where, args...).Scan(&n)
	return n, err
}

// Revoke transitions an active session to revoked. The status guard makes the
// operation idempotent-false: a second call finds no active row and reports false.
func (r *PostgresRepository) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET status = 'revoked', revoked_at = now(), revoked_reason = $2
		WHERE session_id = $1 AND status = 'active'`,
		sessionID, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RevokeForUser transitions all of the user's active sessions to revoked in a
// single statement, skipping excludeSessionID when non-empty.
func (r *PostgresRepository) RevokeForUser(ctx context.Context, userID, reason, excludeSessionID string) (int64, error) {
	query := `
		UPDATE user_sessions
		SET status = 'revoked', revoked_at = now(), revoked_reason = $2
		WHERE user_id = $1 AND status = 'active'`
	args := []any{userID, reason}
	if excludeSessionID != "" {
		query += ` AND session_id <> $3`
		args = append(args, excludeSessionID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupStale sweeps active rows whose last_activity fell behind the
// retention window into the expired terminal state. This reclaims rows nobody
// ever tries to renew; in-band expiry stays lazy.
func (r *PostgresRepository) CleanupStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_sessions
		SET status = 'expired', revoked_at = now(), revoked_reason = $2
		WHERE status = 'active' AND last_activity < $1`,
		cutoff, domain.ReasonCleanupJob)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete hard-deletes the session row. Returns false when no row existed.
func (r *PostgresRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Stats returns aggregate counts for dashboards and admin tooling.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now())),
			COUNT(DISTINCT user_id) FILTER (WHERE created_at >= date_trunc('day', now()))
		FROM user_sessions`).Scan(&st.ActiveSessions, &st.SessionsToday, &st.UniqueUsersToday)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func filterClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.IPAddress != "" {
		args = append(args, f.IPAddress)
		conds = append(conds, fmt.Sprintf("ip_address = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s          domain.Session
		deviceInfo []byte
		ip, ua     sql.NullString
		revokedAt  sql.NullTime
		reason     sql.NullString
		status     string
	)
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.AccessTokenJTI, &s.RefreshTokenJTI,
		&deviceInfo, &ip, &ua, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt,
		&status, &revokedAt, &reason,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.Status(status)
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	s.RevokedReason = reason.String
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	if len(deviceInfo) > 0 {
		if err := json.Unmarshal(deviceInfo, &s.DeviceInfo); err != nil {
			s.DeviceInfo = map[string]any{}
		}
	}
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalDeviceInfo(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
