package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"qarzdaftari/internal/domain"
)

// Locker is a best-effort in-flight claim used by webhook handlers to
// serialize near-simultaneous deliveries of the same external transaction id
// within one process group. The database ledger remains the authority; this
// only saves wasted work when a provider retries aggressively.
type Locker interface {
	TryLock(ctx context.Context, key string) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const defaultLockTTL = 30 * time.Second

type RedisLocker struct {
	cli *redis.Client
	ttl time.Duration
}

func NewLocker(c *redClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{cli: c.raw(), ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
		time.Sleep(50 * time.Millisecond) // wait before retrying
	}
	return "", domain.ErrAlreadyProcessed
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}
