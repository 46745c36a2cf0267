package cache

import (
	"context"
	"time"

	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "wellness-sync:refresh-lock:"
	lockPoll      = 100 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RefreshLock is a SET NX lock so only one process refreshes a user's token at a time.
type RefreshLock struct {
	client redis.Cmdable
}

// NewRefreshLock returns a lock backed by client. A nil client yields a no-op lock.
func NewRefreshLock(client redis.Cmdable) repository.IRefreshLock {
	return &RefreshLock{client: client}
}

func LockKey(key string) string { return lockKeyPrefix + key }

// Acquire polls until the lock is taken, ttl elapses or ctx is done.
func (l *RefreshLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	redisKey := LockKey(key)
	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// release outlives the caller's context
				if err := releaseScript.Run(context.Background(), l.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
					logger.GetLogger().WithField("error", err).WithField("key", redisKey).Warn("Failed to release refresh lock")
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPoll):
		}
	}
}
