package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/terra-sneakers/terra-backend/pkg/redis"
)

const (
	defaultGuardTTL   = 72 * time.Hour
	defaultGuardScope = "stripe-webhook"
)

// EventGuard remembers processed Stripe event ids so redelivered events are
// acknowledged without being applied twice.
type EventGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

func NewEventGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*EventGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = defaultGuardTTL
	}
	if scope == "" {
		scope = defaultGuardScope
	}
	return &EventGuard{store: store, ttl: ttl, scope: scope, now: time.Now}, nil
}

// Claim marks the event as in progress. It returns false when the event was
// already claimed by an earlier delivery.
func (g *EventGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(eventID), g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event: %w", err)
	}
	return set, nil
}

// Forget drops the claim so a retried delivery is processed again.
func (g *EventGuard) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(eventID))
}

func (g *EventGuard) key(eventID string) string {
	return g.store.IdempotencyKey(g.scope, eventID)
}
