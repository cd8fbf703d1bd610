package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"cover-studio/internal/domain"
)

// Locker guards regeneration: while a replacement job is in flight for a
// (subject, output class) key, a second regenerate is rejected instead of
// interleaving deletes with the running batch.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	cli RedisClient
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrRegenerateInFlight
	}
	return token, nil
}

const luaUnlock = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.Eval(ctx, luaUnlock, []string{key}, token)
	return err
}

func RegenerateKey(subjectID, outputClass string) string {
	return "regenerate:" + subjectID + ":" + outputClass
}
