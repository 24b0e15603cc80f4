package lock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "roombooking:lock:"
	redisRetryPeriod = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every API instance pointing at the same
// redis. The TTL bounds how long a crashed holder can block a key.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(redisRetryPeriod)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrNotAcquired
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// the request context may already be cancelled; release on a fresh one
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
			log.Printf("lock_release_failed key=%s error=%q", key, err.Error())
		}
	}, nil
}
