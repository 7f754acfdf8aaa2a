package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/yieldwise/internal/ratelimit"
)

// Store backs guest session state and rate limit counters with Redis so
// they are shared by every API instance.
type Store struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Store{rdb: rdb}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *Store) Close() error { return s.rdb.Close() }

// guest.Store

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Store) GetDel(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// ratelimit.Limiter

// allowScript refuses when any counter is at its limit and otherwise
// increments all of them. KEYS are the per-rule counters; ARGV holds a
// limit and a TTL in milliseconds for each key.
var allowScript = redis.NewScript(`
for i, k in ipairs(KEYS) do
  local n = tonumber(redis.call('GET', k) or '0')
  if n >= tonumber(ARGV[2*i-1]) then
    return i
  end
end
for i, k in ipairs(KEYS) do
  redis.call('INCR', k)
  redis.call('PEXPIRE', k, ARGV[2*i])
end
return 0
`)

// Allow counts calls in fixed windows aligned to the window length, the same
// windows ratelimit.Memory uses.
func (s *Store) Allow(ctx context.Context, key string, rules ...ratelimit.Rule) (ratelimit.Decision, error) {
	now := time.Now()
	var (
		active []ratelimit.Rule
		keys   []string
		args   []any
	)
	for _, r := range rules {
		if r.Limit <= 0 || r.Window <= 0 {
			continue
		}
		idx, left := r.Bucket(now)
		active = append(active, r)
		// one hash slot per identity
		keys = append(keys, fmt.Sprintf("rl:{%s}:%s:%d", key, r, idx))
		args = append(args, r.Limit, (left + time.Second).Milliseconds())
	}
	if len(keys) == 0 {
		return ratelimit.Decision{Allowed: true}, nil
	}

	n, err := allowScript.Run(ctx, s.rdb, keys, args...).Int()
	if err != nil {
		return ratelimit.Decision{}, err
	}
	if n == 0 {
		return ratelimit.Decision{Allowed: true}, nil
	}
	r := active[n-1]
	_, left := r.Bucket(now)
	return ratelimit.Decision{Rule: r, RetryAfter: left}, nil
}
