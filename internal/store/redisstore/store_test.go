package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/yieldwise/internal/guest"
	"github.com/suPer8Hu/yieldwise/internal/ratelimit"
)

var (
	_ guest.Store       = (*Store)(nil)
	_ ratelimit.Limiter = (*Store)(nil)
)

// Runs only when REDIS_TEST_ADDR points at a disposable Redis.
func testStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	s, err := New(context.Background(), addr, "", 15)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GuestGate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sid := t.Name() + time.Now().Format(time.RFC3339Nano)
	g := guest.NewGate(s, time.Minute)

	require.NoError(t, g.Commit(ctx, sid, guest.Plan{Location: "Lagos"}))
	assert.ErrorIs(t, g.Admit(ctx, sid), guest.ErrQuotaExceeded)

	p, err := g.Claim(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, p)
	p, err = g.Claim(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestStore_Allow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := t.Name() + time.Now().Format(time.RFC3339Nano)
	rule := ratelimit.PerHour(2)

	for i := 0; i < 2; i++ {
		d, err := s.Allow(ctx, key, rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := s.Allow(ctx, key, rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, rule, d.Rule)
	assert.Positive(t, d.RetryAfter)
}

func TestStore_AllowRefusalConsumesNothing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := t.Name() + time.Now().Format(time.RFC3339Nano)
	daily, hourly := ratelimit.PerDay(2), ratelimit.PerHour(1)

	d, err := s.Allow(ctx, key, daily, hourly)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	for i := 0; i < 3; i++ {
		d, err = s.Allow(ctx, key, daily, hourly)
		require.NoError(t, err)
		assert.Equal(t, hourly, d.Rule)
	}

	// the daily counter still has room
	d, err = s.Allow(ctx, key, daily)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
