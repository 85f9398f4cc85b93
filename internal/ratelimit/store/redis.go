package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis, for gateways deployed as more
// than one instance behind the proxy. Entries expire through Redis TTLs;
// no local sweep is needed.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore creates a new Redis-backed store and verifies
// connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "warden:ratelimit:"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "warden:ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// encodeAttempt serializes an attempt as "<unix-milli>:<count>".
func encodeAttempt(a Attempt) string {
	return strconv.FormatInt(a.Last.UnixMilli(), 10) + ":" + strconv.FormatInt(a.Count, 10)
}

// decodeAttempt parses the "<unix-milli>:<count>" form.
func decodeAttempt(s string) (Attempt, error) {
	lastStr, countStr, ok := strings.Cut(s, ":")
	if !ok {
		return Attempt{}, fmt.Errorf("malformed rate-limit entry %q", s)
	}
	last, err := strconv.ParseInt(lastStr, 10, 64)
	if err != nil {
		return Attempt{}, fmt.Errorf("malformed rate-limit entry %q: %w", s, err)
	}
	count, err := strconv.ParseInt(countStr, 10, 64)
	if err != nil {
		return Attempt{}, fmt.Errorf("malformed rate-limit entry %q: %w", s, err)
	}
	return Attempt{Last: time.UnixMilli(last), Count: count}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (Attempt, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, err
	}

	attempt, err := decodeAttempt(val)
	if err != nil {
		return Attempt{}, false, err
	}
	return attempt, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, attempt Attempt, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, encodeAttempt(attempt), ttl).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
