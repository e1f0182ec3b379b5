package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a redis lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timed out")

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// Redis is a Locker backed by SET NX with a per-holder token.
type Redis struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	maxWait    time.Duration
}

// NewRedis builds a redis Locker. Keys are namespaced with prefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        5 * time.Second,
		retryDelay: 50 * time.Millisecond,
		maxWait:    2 * time.Second,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.maxWait)

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	return func() {
		// release with a fresh context so a cancelled request still unlocks
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := r.client.Eval(releaseCtx, unlockScript, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "release slug lock failed", "key", fullKey, "err", err)
		}
	}, nil
}
