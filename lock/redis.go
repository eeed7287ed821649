// Package lock provides a redis backed RegenerationLocker so that only one
// replica regenerates an expired activation token at a time.
package lock

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-accounts"
)

const (
	DefaultPrefix = "accounts:lock:"
	DefaultTTL    = 30 * time.Second
)

// releaseLua deletes the key only while it still holds our owner token, so
// a lock that expired and was taken by someone else is left alone.
var releaseLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger accounts.Logger
}

var _ accounts.RegenerationLocker = (*RedisLocker)(nil)

type Option func(*RedisLocker)

func WithPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithTTL bounds how long a crashed holder can keep the lock.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLogger(logger accounts.Logger) Option {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewRedisLocker(client redis.UniversalClient, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: DefaultPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Lock tries once to take key. acquired is false when another holder has
// it; callers treat that as "someone else is handling this".
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), bool, error) {
	redisKey := l.prefix + key
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, owner, l.ttl).Result()
	if err != nil {
		return nil, false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to acquire lock").
			WithMetadata(map[string]any{"key": key})
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLua.Run(ctx, l.client, []string{redisKey}, owner).Err(); err != nil && l.logger != nil {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
