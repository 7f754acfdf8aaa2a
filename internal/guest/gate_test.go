package guest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SingleFreePlan(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(), time.Hour)

	require.NoError(t, g.Admit(ctx, "s1"))
	require.NoError(t, g.Commit(ctx, "s1", Plan{Location: "Lagos", PlanHTML: "<p>p</p>"}))

	assert.ErrorIs(t, g.Admit(ctx, "s1"), ErrQuotaExceeded)
	assert.ErrorIs(t, g.Commit(ctx, "s1", Plan{}), ErrQuotaExceeded)

	// other sessions are unaffected
	assert.NoError(t, g.Admit(ctx, "s2"))
}

func TestGate_ClaimOnce(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(), time.Hour)

	p, err := g.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, g.Commit(ctx, "s1", Plan{Location: "Kano", Currency: "NGN", PlanHTML: "<p>k</p>"}))

	p, err = g.Claim(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kano", p.Location)

	p, err = g.Claim(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, p)

	// claiming does not restore the quota
	assert.ErrorIs(t, g.Admit(ctx, "s1"), ErrQuotaExceeded)
}

func TestGate_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(), time.Hour)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Commit(ctx, "race", Plan{Location: "x"}) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	ok, err := m.SetNX(ctx, "k", []byte("v"), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	exists, _ := m.Exists(ctx, "k")
	assert.False(t, exists)
	ok, _ = m.SetNX(ctx, "k", []byte("v2"), time.Minute)
	assert.True(t, ok)
}

func TestGate_RestoreAfterFailedClaim(t *testing.T) {
	ctx := context.Background()
	g := NewGate(NewMemoryStore(), time.Hour)
	require.NoError(t, g.Commit(ctx, "s1", Plan{Location: "Jos"}))

	p, err := g.Claim(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NoError(t, g.Restore(ctx, "s1", *p))

	p, err = g.Claim(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Jos", p.Location)
	assert.ErrorIs(t, g.Admit(ctx, "s1"), ErrQuotaExceeded)
}

func TestMemoryStore_SweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	for _, k := range []string{"guest:a:used", "guest:b:used", "guest:c:used"} {
		_, err := m.SetNX(ctx, k, []byte("1"), time.Minute)
		require.NoError(t, err)
	}
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	assert.Equal(t, 4, m.Len())

	// none of the expired keys is read again
	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Set(ctx, "guest:d:used", []byte("1"), time.Minute))
	assert.Equal(t, 2, m.Len())
}
