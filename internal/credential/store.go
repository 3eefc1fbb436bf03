package credential

import (
	"context"
	"errors"
	"sync"

	"omnigen/internal/redis"
)

// ErrNoKey reports an empty key store.
var ErrNoKey = errors.New("no key stored")

// KeyStore holds one sealed key.
type KeyStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, sealed string) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	sealed string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed == "" {
		return "", ErrNoKey
	}
	return s.sealed, nil
}

func (s *MemoryStore) Save(_ context.Context, sealed string) error {
	s.mu.Lock()
	s.sealed = sealed
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.sealed = ""
	s.mu.Unlock()
	return nil
}

const redisKeyPrefix = "omnigen:credential:"

// RedisStore shares the selected key across server instances.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore stores under omnigen:credential:<name>.
func NewRedisStore(client *redis.Client, name string) *RedisStore {
	return &RedisStore{client: client, key: redisKeyPrefix + name}
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key)
	if errors.Is(err, redis.ErrCacheMiss) {
		return "", ErrNoKey
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Save(ctx context.Context, sealed string) error {
	return s.client.Set(ctx, s.key, sealed, 0)
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key)
}
