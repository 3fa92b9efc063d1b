package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix is prepended to snapshot keys.
const DefaultRedisPrefix = "isorender:snapshot:"

// RedisClient is the subset of *redis.Client used by RedisStore.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

var _ RedisClient = (*redis.Client)(nil)

// RedisStore keeps snapshots in Redis with a TTL per key.
type RedisStore struct {
	client RedisClient
	prefix string

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore wraps client. The store owns the client and closes it.
func NewRedisStore(client RedisClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis parses a redis:// URL and returns a store backed by a new
// client.
func DialRedis(url string, opts ...RedisOption) (*RedisStore, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("snapshot: redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(o), opts...), nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *RedisStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, id)
	}
	return s.client.Set(ctx, s.key(id), data, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed{}
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return s.Delete(ctx, id)
	}
	return s.client.Expire(ctx, s.key(id), ttl).Err()
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
