package credentials

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the pair under "<prefix>:access" and "<prefix>:refresh".
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authflow"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) accessKey() string  { return s.prefix + ":access" }
func (s *RedisStore) refreshKey() string { return s.prefix + ":refresh" }

func (s *RedisStore) Save(ctx context.Context, access, refresh string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.accessKey(), access, 0)
		pipe.Set(ctx, s.refreshKey(), refresh, 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[RedisStore.Save] failed to write tokens")
	}
	return nil
}

func (s *RedisStore) LoadAccess(ctx context.Context) (string, error) {
	return s.load(ctx, s.accessKey())
}

func (s *RedisStore) LoadRefresh(ctx context.Context) (string, error) {
	return s.load(ctx, s.refreshKey())
}

func (s *RedisStore) load(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || (err == nil && value == "") {
		return "", ErrNoToken
	}
	if err != nil {
		return "", errors.Wrapf(err, "[RedisStore.load] failed to read %s", key)
	}
	return value, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.accessKey(), s.refreshKey()).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Clear] failed to delete tokens")
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
