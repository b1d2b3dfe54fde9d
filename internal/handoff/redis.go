package handoff

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps single-read entries in redis so flows survive gateway
// restarts and work across replicas. Expiry is redis-native TTL; the
// destructive read uses GETDEL, which is atomic server-side.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a redis-backed store. All keys are namespaced
// under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

// Put implements Store
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Take implements Store
func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Close is a no-op; the shared redis client is owned by the caller
func (s *RedisStore) Close() error {
	return nil
}
