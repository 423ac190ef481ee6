// Package cache is the fast session cache client backed by Redis. It holds
// the cache-resident session records, per-user activity markers, the jti
// deny-list, and operational counters. Entries are JSON values with per-key
// TTLs; the cache is the authority for whether a session is currently usable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes shared by every service instance.
const (
	sessionPrefix  = "session:"
	activityPrefix = "user_activity:"
	denyPrefix     = "blacklist:"
	metricPrefix   = "metric:"
	flushPrefix    = "activity_flush:"
)

// metricTTL bounds operational counters so abandoned keys age out.
const metricTTL = 24 * time.Hour

// SessionState is the cache-resident session record. Its presence under
// session:<id> is what makes a session currently valid; TTL equals the
// access-token lifetime and is renewed on rotation.
type SessionState struct {
	UserID       string    `json:"user_id"`
	AccessJTI    string    `json:"access_jti"`
	RefreshJTI   string    `json:"refresh_jti"`
	LastActivity time.Time `json:"last_activity"`
	Status       string    `json:"status"`
}

// Client wraps a Redis connection with the session cache key layout.
// All calls fail fast; timeouts are set at dial time.
type Client struct {
	rdb *redis.Client
}

// New returns a Client for the given Redis address. Short connect and
// operation timeouts keep cache outages from stalling request handling.
func New(addr, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Client{rdb: rdb}
}

// NewFromClient wraps an existing Redis client; used by tests running against miniredis.
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetJSON stores v JSON-encoded under key with the given TTL (0 = no expiry).
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetJSON loads the value under key into dest. Returns false when the key is absent.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes key. Returns true when a key was actually removed.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Del(ctx, key).Result()
	return n > 0, err
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Increment increments the counter at key, setting ttl on first increment.
func (c *Client) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// PutSession writes the session record under session:<id> with the given TTL.
func (c *Client) PutSession(ctx context.Context, sessionID string, state SessionState, ttl time.Duration) error {
	return c.SetJSON(ctx, sessionPrefix+sessionID, state, ttl)
}

// GetSession returns the cache-resident session record, or nil when the
// session is not currently live (evicted, expired, or revoked).
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionState, error) {
	var state SessionState
	found, err := c.GetJSON(ctx, sessionPrefix+sessionID, &state)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &state, nil
}

// DeleteSession evicts the session record.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := c.Delete(ctx, sessionPrefix+sessionID)
	return err
}

// TouchActivity writes the user's last-observed-activity timestamp with a
// sliding TTL equal to the inactivity timeout. Absence of the marker is read
// as "inactive" by the lazy check during refresh.
func (c *Client) TouchActivity(ctx context.Context, userID string, at time.Time, ttl time.Duration) error {
	return c.SetJSON(ctx, activityPrefix+userID, at, ttl)
}

// LastActivity returns the user's activity marker. found is false when the
// marker has expired or was evicted.
func (c *Client) LastActivity(ctx context.Context, userID string) (at time.Time, found bool, err error) {
	found, err = c.GetJSON(ctx, activityPrefix+userID, &at)
	return at, found, err
}

// DeleteActivity evicts the user's activity marker.
func (c *Client) DeleteActivity(ctx context.Context, userID string) error {
	_, err := c.Delete(ctx, activityPrefix+userID)
	return err
}

// Denylist marks jti as retired for ttl, which must be at least the remaining
// lifetime of the credential it blocks. The value records the reason.
func (c *Client) Denylist(ctx context.Context, jti, reason string, ttl time.Duration) error {
	return c.SetJSON(ctx, denyPrefix+jti, reason, ttl)
}

// ClaimDenylist deny-lists jti only if it is not already deny-listed, in one
// atomic step (SET NX). Exactly one concurrent caller gets claimed=true; this
// is the single-use gate for refresh-token rotation.
func (c *Client) ClaimDenylist(ctx context.Context, jti, reason string, ttl time.Duration) (claimed bool, err error) {
	b, err := json.Marshal(reason)
	if err != nil {
		return false, err
	}
	return c.rdb.SetNX(ctx, denyPrefix+jti, b, ttl).Result()
}

// IsDenylisted reports whether jti has been retired.
func (c *Client) IsDenylisted(ctx context.Context, jti string) (bool, error) {
	return c.Exists(ctx, denyPrefix+jti)
}

// IncrementMetric bumps an operational counter (24h TTL from first bump).
// Failures are the caller's to ignore; counters are best-effort.
func (c *Client) IncrementMetric(ctx context.Context, name string) (int64, error) {
	return c.Increment(ctx, metricPrefix+name, metricTTL)
}

// ClaimActivityFlush returns true at most once per interval per session; used
// to throttle durable last_activity writes without touching the cache path.
func (c *Client) ClaimActivityFlush(ctx context.Context, sessionID string, interval time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, flushPrefix+sessionID, 1, interval).Result()
}
