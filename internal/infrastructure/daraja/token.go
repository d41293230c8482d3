package daraja

import (
	"context"
	"time"

	"github.com/yourorg/rentledger/pkg/cache"
)

// TokenCache stores OAuth access tokens. The Redis client satisfies it, and
// MemoryTokenCache serves single-replica deployments and tests.
type TokenCache interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, key, value string, ttl time.Duration) error
	Forget(ctx context.Context, key string) error
}

// MemoryTokenCache is a process-local TokenCache.
type MemoryTokenCache struct {
	c *cache.Cache[string]
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{c: cache.New[string]()}
}

func (m *MemoryTokenCache) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := m.c.Get(key)
	return v, ok, nil
}

func (m *MemoryTokenCache) Store(_ context.Context, key, value string, ttl time.Duration) error {
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryTokenCache) Forget(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
