package lockstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when its value matches the presented
// token. Running GET+DEL client-side would race against TTL expiry and
// re-acquisition by another owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore is the network-shared LockStore for multi-instance
// deployments. Same contract as MemoryStore; SETNX supplies the
// compare-and-set, the Lua script the compare-and-release.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lockstore: acquire %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) OwnerOf(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lockstore: owner of %s: %w", key, err)
	}
	return token, nil
}

func (s *RedisStore) Release(ctx context.Context, key, token string) (bool, error) {
	removed, err := releaseScript.Run(ctx, s.client, []string{key}, token).Int()
	if err != nil {
		return false, fmt.Errorf("lockstore: release %s: %w", key, err)
	}
	return removed == 1, nil
}
