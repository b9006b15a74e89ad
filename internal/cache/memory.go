package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
)

var errSetRejected = errors.New("cache: set rejected by admission policy")

// memoryCache is an in-process backend for single-instance deployments
type memoryCache struct {
	client *ristretto.Cache
}

// NewMemoryCache creates a Ristretto backed cache holding at most maxSizeMB
// of values
func NewMemoryCache(maxSizeMB int) (Cache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000_000, // keys tracked for admission, ~10x expected items
		MaxCost:     int64(maxSizeMB) * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &memoryCache{client: client}, nil
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.client.Get(key)
	if !ok {
		return "", ErrCacheMiss
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrCacheMiss
	}
	return s, nil
}

// Set waits for Ristretto's write buffer so the value is visible to the next
// Get, which keeps the read-after-write behaviour identical to Redis
func (m *memoryCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if !m.client.SetWithTTL(key, value, int64(len(value)), expiration) {
		return errSetRejected
	}
	m.client.Wait()
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		m.client.Del(key)
	}
	return nil
}

func (m *memoryCache) Ping(ctx context.Context) error {
	return nil
}

func (m *memoryCache) Close() error {
	m.client.Close()
	return nil
}
