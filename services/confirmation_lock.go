package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix  = "payment-confirm:"
	DefaultLockTTL = 30 * time.Second
)

// ConfirmationLock serialises confirmations of the same checkout session
// across server instances.
type ConfirmationLock interface {
	// Acquire returns a release func when the lock was taken, or ok=false when
	// another holder has it.
	Acquire(ctx context.Context, sessionID string) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfirmationLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisConfirmationLock(client *redis.Client, ttl time.Duration) *RedisConfirmationLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisConfirmationLock{client: client, ttl: ttl}
}

func (l *RedisConfirmationLock) Acquire(ctx context.Context, sessionID string) (func(context.Context) error, bool, error) {
	key := lockKeyPrefix + sessionID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
