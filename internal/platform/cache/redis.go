// Package cache connects to Redis and provides a small distributed lock.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"usersvc/internal/platform/config"
)

// Connect creates a client for cfg and verifies it answers a PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Addr).Wrap(err)
	}
	return rdb, nil
}

// releaseScript deletes the lock key only while it still holds our value.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Lock is a single-holder lock backed by SET NX with a TTL.
type Lock struct {
	rdb      redis.Cmdable
	key      string
	ttl      time.Duration
	newValue func() string
}

func NewLock(rdb redis.Cmdable, key string, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: key, ttl: ttl, newValue: uuid.NewString}
}

// TryAcquire takes the lock if nobody holds it. When ok is true the caller
// must call release; it reports whether the lock was still ours.
func (l *Lock) TryAcquire(ctx context.Context) (release func(context.Context) (bool, error), ok bool, err error) {
	value := l.newValue()
	ok, err = l.rdb.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return nil, false, oops.Code("LOCK_ACQUIRE_FAILED").With("key", l.key).Wrap(err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) (bool, error) {
		deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, value).Int64()
		if err != nil {
			return false, oops.Code("LOCK_RELEASE_FAILED").With("key", l.key).Wrap(err)
		}
		return deleted == 1, nil
	}
	return release, true, nil
}
