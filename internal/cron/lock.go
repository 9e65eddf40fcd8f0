package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// cycleLockTTL outlives a full cycle of job timeouts; a crashed worker frees
// the cycle after it.
const cycleLockTTL = 5 * time.Minute

// Lock keeps two cron workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key, want string) (bool, error)
}

// RedisLock claims a key with a per-cycle token and only ever removes the
// key while it still carries that token.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration

	mu    sync.Mutex
	token string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock needs a redis store")
	case key == "":
		return nil, errors.New("cron lock needs a key")
	}
	if ttl <= 0 {
		ttl = cycleLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	claimed, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim cron cycle %s: %w", l.key, err)
	}
	if claimed {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return claimed, nil
}

// Release is a no-op when this worker holds no claim or the claim already
// expired and passed to another worker.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	if _, err := l.store.DelIfEquals(ctx, l.key, token); err != nil {
		return fmt.Errorf("release cron cycle %s: %w", l.key, err)
	}
	return nil
}
