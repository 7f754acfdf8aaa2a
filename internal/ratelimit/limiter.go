// Package ratelimit caps how often an identity may call an endpoint.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Rule is "at most Limit calls per Window". Windows are fixed and aligned to
// the Unix epoch, so a daily rule resets at 00:00 UTC.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) String() string {
	return strconv.Itoa(r.Limit) + "/" + r.Window.String()
}

func PerDay(n int) Rule  { return Rule{Limit: n, Window: 24 * time.Hour} }
func PerHour(n int) Rule { return Rule{Limit: n, Window: time.Hour} }

// Bucket returns the index of the window containing t and the time left in it.
func (r Rule) Bucket(t time.Time) (int64, time.Duration) {
	ns := t.UnixNano()
	idx := ns / int64(r.Window)
	return idx, time.Duration((idx+1)*int64(r.Window) - ns)
}

func (r Rule) active() bool { return r.Limit > 0 && r.Window > 0 }

// Decision is the outcome of Allow. When a call is refused, Rule is the
// exhausted rule and RetryAfter the time until its window resets.
type Decision struct {
	Allowed    bool
	Rule       Rule
	RetryAfter time.Duration
}

type Limiter interface {
	// Allow consumes one call for key under every rule, or none of them when
	// any rule is already exhausted.
	Allow(ctx context.Context, key string, rules ...Rule) (Decision, error)
}

const sweepInterval = time.Minute

type counter struct {
	window time.Duration
	bucket int64
	count  int
}

// Memory is a per-process fixed window counter. Counters from past windows
// are dropped on a periodic sweep.
type Memory struct {
	mu        sync.Mutex
	counters  map[string]*counter
	nextSweep time.Time
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{counters: make(map[string]*counter), now: time.Now}
}

func counterKey(key string, r Rule) string { return key + "|" + r.String() }

func (m *Memory) Allow(ctx context.Context, key string, rules ...Rule) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	for _, r := range rules {
		if !r.active() {
			continue
		}
		idx, left := r.Bucket(now)
		if c, ok := m.counters[counterKey(key, r)]; ok && c.bucket == idx && c.count >= r.Limit {
			return Decision{Rule: r, RetryAfter: left}, nil
		}
	}

	for _, r := range rules {
		if !r.active() {
			continue
		}
		idx, _ := r.Bucket(now)
		k := counterKey(key, r)
		c, ok := m.counters[k]
		if !ok || c.bucket != idx {
			c = &counter{window: r.Window, bucket: idx}
			m.counters[k] = c
		}
		c.count++
	}
	return Decision{Allowed: true}, nil
}

// sweep must be called with mu held.
func (m *Memory) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for k, c := range m.counters {
		if idx, _ := (Rule{Window: c.window}).Bucket(now); c.bucket < idx {
			delete(m.counters, k)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

// Len reports how many counters are held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
