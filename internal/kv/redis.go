package kv

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// casScript swaps the value at KEYS[1] from ARGV[1] to ARGV[2] with a TTL
// of ARGV[3] milliseconds, only if the current value still equals ARGV[1].
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
}

// Connect creates a Redis client, verifies connectivity, and returns a
// ready-to-use RedisStore.
func Connect(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Println("connected to key-value store")

	return &RedisStore{client: client}, nil
}

// Close releases the underlying client connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Get returns the value at key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return v, nil
}

// Put writes value at key with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap replaces the value at key only if it still equals old.
func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) error {
	ok, err := casScript.Run(ctx, s.client, []string{key}, old, new, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("cas %q: %w", key, err)
	}
	if ok != 1 {
		return ErrCASMismatch
	}
	return nil
}

// Incr atomically increments the counter at key. The TTL is attached only
// on first increment so the counter expires relative to its creation.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %q: %w", key, err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, fmt.Errorf("expire %q: %w", key, err)
		}
	}
	return n, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
