package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKey is the Redis key guarding real syncs across instances.
const DefaultLockKey = "dayroster:sync"

// RedisRunLock holds a Redis lease for the duration of a real run so that two
// server instances never apply against the registry at the same time.
type RedisRunLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

func NewRedisRunLock(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisRunLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisRunLock{
		locker: redislock.New(rdb),
		key:    key,
		ttl:    ttl,
	}
}

// Lock makes a single attempt. A held key maps to ErrSyncInProgress.
func (l *RedisRunLock) Lock(ctx context.Context) (func(), error) {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrSyncInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtain run lock: %w", err)
	}

	return func() {
		// The run context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			slog.Warn("release run lock", "key", l.key, "error", err)
		}
	}, nil
}

// chainLocks acquires locks in order and releases them in reverse.
type chainLocks []RunLock

func (c chainLocks) Lock(ctx context.Context) (func(), error) {
	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, l := range c {
		if l == nil {
			continue
		}
		unlock, err := l.Lock(ctx)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}
