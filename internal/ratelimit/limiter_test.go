package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(m *Memory, start time.Time) *time.Time {
	now := start
	m.now = func() time.Time { return now }
	return &now
}

func TestMemory_PerDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := fixedClock(m, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	rule := PerDay(3)
	for i := 0; i < 3; i++ {
		d, err := m.Allow(ctx, "user:1", rule)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i+1)
	}
	d, err := m.Allow(ctx, "user:1", rule)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, rule, d.Rule)
	assert.Equal(t, 15*time.Hour, d.RetryAfter)

	// a different identity has its own counter
	d, _ = m.Allow(ctx, "ip:10.0.0.1", rule)
	assert.True(t, d.Allowed)

	// the next day starts a fresh window
	*now = time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC)
	d, _ = m.Allow(ctx, "user:1", rule)
	assert.True(t, d.Allowed)
}

func TestMemory_DailyCapHoldsAcrossTheDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := fixedClock(m, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	allowed := 0
	for h := 0; h < 24; h++ {
		for i := 0; i < 3; i++ {
			d, err := m.Allow(ctx, "user:1", PerDay(3))
			require.NoError(t, err)
			if d.Allowed {
				allowed++
			}
		}
		*now = now.Add(time.Hour)
	}
	assert.Equal(t, 3, allowed)
}

func TestMemory_RefusedCallConsumesNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := fixedClock(m, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	daily, hourly := PerDay(3), PerHour(1)

	d, _ := m.Allow(ctx, "k", daily, hourly)
	require.True(t, d.Allowed)
	for i := 0; i < 5; i++ {
		d, _ = m.Allow(ctx, "k", daily, hourly)
		assert.False(t, d.Allowed)
		assert.Equal(t, hourly, d.Rule)
	}

	// the hourly refusals left two daily calls
	*now = now.Add(time.Hour)
	d, _ = m.Allow(ctx, "k", daily, hourly)
	assert.True(t, d.Allowed)
	*now = now.Add(time.Hour)
	d, _ = m.Allow(ctx, "k", daily, hourly)
	assert.True(t, d.Allowed)
	*now = now.Add(time.Hour)
	d, _ = m.Allow(ctx, "k", daily, hourly)
	assert.False(t, d.Allowed)
	assert.Equal(t, daily, d.Rule)
}

func TestMemory_SweepsPastWindows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := fixedClock(m, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	for _, k := range []string{"a", "b", "c"} {
		_, err := m.Allow(ctx, k, PerHour(5))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Len())

	*now = now.Add(2 * time.Hour)
	_, err := m.Allow(ctx, "d", PerHour(5))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ZeroLimitDisables(t *testing.T) {
	d, err := NewMemory().Allow(context.Background(), "k", Rule{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRule_Bucket(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	idx, left := PerHour(1).Bucket(at)
	assert.Equal(t, at.Unix()/3600, idx)
	assert.Equal(t, 30*time.Minute, left)
}
