package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"treasurer/internal/logger"
	"treasurer/internal/uuid"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired holder never releases a lock someone else acquired since.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Redis is a Locker backed by SET NX with an expiry, shared by every API
// instance using the same Redis.
type Redis struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewRedis creates a Redis Locker. ttl bounds how long a crashed holder can
// block others.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client:        client,
		ttl:           ttl,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    60,
	}
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, key string) (Release, error) {
	token := uuid.New()

	for i := 0; i < r.maxRetries; i++ {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Release must work even when the caller's ctx is already done.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := r.client.Eval(releaseCtx, unlockScript, []string{key}, token).Err(); err != nil {
					logger.Get().Warnw("failed to release redis lock", "key", key, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryInterval):
		}
	}
	return nil, ErrLockFailed
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
