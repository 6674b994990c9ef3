package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix the host application's Redis session
// handler writes under.
const DefaultRedisPrefix = "PHPREDIS_SESSION:"

// Reader reads a serialized session blob through the host application's
// configured session handler. A missing session is (nil, nil).
type Reader interface {
	Read(ctx context.Context, sid string) ([]byte, error)
}

// RedisReader reads sessions stored as plain string values keyed by
// prefix + sid.
type RedisReader struct {
	client redis.Cmdable
	prefix string
}

func NewRedisReader(client redis.Cmdable, prefix string) *RedisReader {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisReader{client: client, prefix: prefix}
}

func (r *RedisReader) Read(ctx context.Context, sid string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.prefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (r *RedisReader) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
