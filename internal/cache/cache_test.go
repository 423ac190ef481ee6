package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewFromClient(rdb)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSessionRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	state := SessionState{
		UserID:       "u1",
		AccessJTI:    "a1",
		RefreshJTI:   "r1",
		LastActivity: time.Now().UTC().Truncate(time.Second),
		Status:       "active",
	}
	if err := c.PutSession(ctx, "s1", state, time.Minute); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	got, err := c.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil for live session")
	}
	if got.UserID != "u1" || got.AccessJTI != "a1" || got.RefreshJTI != "r1" || got.Status != "active" {
		t.Errorf("GetSession = %+v", got)
	}
	if !got.LastActivity.Equal(state.LastActivity) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, state.LastActivity)
	}
}

func TestGetSession_MissingReturnsNil(t *testing.T) {
	c, _ := newTestClient(t)
	got, err := c.GetSession(context.Background(), "absent")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("GetSession for absent key = %+v, want nil", got)
	}
}

func TestSessionTTLExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	if err := c.PutSession(ctx, "s1", SessionState{UserID: "u1", Status: "active"}, time.Minute); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := c.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Error("session should have expired with its TTL")
	}
}

func TestActivityMarker(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := c.TouchActivity(ctx, "u1", now, time.Hour); err != nil {
		t.Fatalf("TouchActivity: %v", err)
	}
	at, found, err := c.LastActivity(ctx, "u1")
	if err != nil {
		t.Fatalf("LastActivity: %v", err)
	}
	if !found {
		t.Fatal("activity marker should be present")
	}
	if !at.Equal(now) {
		t.Errorf("LastActivity = %v, want %v", at, now)
	}

	mr.FastForward(2 * time.Hour)
	_, found, err = c.LastActivity(ctx, "u1")
	if err != nil {
		t.Fatalf("LastActivity after expiry: %v", err)
	}
	if found {
		t.Error("activity marker should expire with the inactivity timeout")
	}
}

func TestDenylist(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	listed, err := c.IsDenylisted(ctx, "j1")
	if err != nil {
		t.Fatalf("IsDenylisted: %v", err)
	}
	if listed {
		t.Fatal("fresh jti should not be deny-listed")
	}

	if err := c.Denylist(ctx, "j1", "user_logout", time.Minute); err != nil {
		t.Fatalf("Denylist: %v", err)
	}
	listed, err = c.IsDenylisted(ctx, "j1")
	if err != nil {
		t.Fatalf("IsDenylisted: %v", err)
	}
	if !listed {
		t.Fatal("jti should be deny-listed")
	}

	mr.FastForward(2 * time.Minute)
	listed, _ = c.IsDenylisted(ctx, "j1")
	if listed {
		t.Error("deny-list entry should expire with the credential it blocks")
	}
}

func TestClaimDenylist_SingleWinner(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	first, err := c.ClaimDenylist(ctx, "j1", "refreshed", time.Minute)
	if err != nil {
		t.Fatalf("ClaimDenylist: %v", err)
	}
	if !first {
		t.Fatal("first claim should succeed")
	}
	second, err := c.ClaimDenylist(ctx, "j1", "refreshed", time.Minute)
	if err != nil {
		t.Fatalf("ClaimDenylist: %v", err)
	}
	if second {
		t.Fatal("second claim on the same jti should fail")
	}
}

func TestIncrementMetric(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	n, err := c.IncrementMetric(ctx, "sessions_created")
	if err != nil {
		t.Fatalf("IncrementMetric: %v", err)
	}
	if n != 1 {
		t.Errorf("first increment = %d, want 1", n)
	}
	n, err = c.IncrementMetric(ctx, "sessions_created")
	if err != nil {
		t.Fatalf("IncrementMetric: %v", err)
	}
	if n != 2 {
		t.Errorf("second increment = %d, want 2", n)
	}
}

func TestClaimActivityFlush_Throttles(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.ClaimActivityFlush(ctx, "s1", time.Minute)
	if err != nil {
		t.Fatalf("ClaimActivityFlush: %v", err)
	}
	if !ok {
		t.Fatal("first claim should succeed")
	}
	ok, _ = c.ClaimActivityFlush(ctx, "s1", time.Minute)
	if ok {
		t.Fatal("claim within the interval should be throttled")
	}

	mr.FastForward(2 * time.Minute)
	ok, _ = c.ClaimActivityFlush(ctx, "s1", time.Minute)
	if !ok {
		t.Error("claim after the interval should succeed again")
	}
}
