// Package guest tracks the single free plan an anonymous session may
// generate and the transient copy of that plan awaiting registration.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrQuotaExceeded = errors.New("guest: free plan already used")

// Plan is the guest's generated plan, held until the session registers.
type Plan struct {
	Location string `json:"location"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	PlanHTML string `json:"plan_html"`
}

// Store is the key/value capability the gate needs. SetNX and GetDel must be
// atomic.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetDel returns (nil, nil) when the key is absent.
	GetDel(ctx context.Context, key string) ([]byte, error)
}

type Gate struct {
	store Store
	ttl   time.Duration
}

// NewGate keeps guest state for ttl, which should match the session cookie
// lifetime so the quota lasts exactly as long as the session.
func NewGate(store Store, ttl time.Duration) *Gate {
	return &Gate{store: store, ttl: ttl}
}

func usedKey(sid string) string { return "guest:" + sid + ":used" }
func planKey(sid string) string { return "guest:" + sid + ":plan" }

// Admit reports whether the session may still generate its free plan.
func (g *Gate) Admit(ctx context.Context, sid string) error {
	used, err := g.store.Exists(ctx, usedKey(sid))
	if err != nil {
		return fmt.Errorf("guest admit: %w", err)
	}
	if used {
		return ErrQuotaExceeded
	}
	return nil
}

// Commit marks the free plan used and caches the plan. Of two concurrent
// commits for one session only the first succeeds.
func (g *Gate) Commit(ctx context.Context, sid string, p Plan) error {
	ok, err := g.store.SetNX(ctx, usedKey(sid), []byte("1"), g.ttl)
	if err != nil {
		return fmt.Errorf("guest commit: %w", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, planKey(sid), b, g.ttl); err != nil {
		return fmt.Errorf("guest commit: %w", err)
	}
	return nil
}

// Claim hands over the cached plan exactly once. It returns (nil, nil) when
// the session holds no plan. The used flag stays set.
func (g *Gate) Claim(ctx context.Context, sid string) (*Plan, error) {
	b, err := g.store.GetDel(ctx, planKey(sid))
	if err != nil {
		return nil, fmt.Errorf("guest claim: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	var p Plan
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("guest claim: %w", err)
	}
	return &p, nil
}

// Restore puts back a plan taken by Claim when it could not be stored, so a
// later registration from the same session can still claim it.
func (g *Gate) Restore(ctx context.Context, sid string, p Plan) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, planKey(sid), b, g.ttl); err != nil {
		return fmt.Errorf("guest restore: %w", err)
	}
	return nil
}
