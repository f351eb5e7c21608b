package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process fallback used when Redis is not configured
// or unreachable. Values are stored JSON encoded so both stores behave alike.
type MemoryCache struct {
	c   *gocache.Cache
	ttl time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		c:   gocache.New(ttl, 2*ttl),
		ttl: ttl,
	}
}

var _ Store = (*MemoryCache)(nil)

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		return false, fmt.Errorf("cache decode: unexpected %T", v)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	expiration := m.ttl
	if len(ttl) > 0 {
		expiration = ttl[0]
	}
	m.c.Set(key, data, expiration)
	return nil
}

func (m *MemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range m.c.Items() {
		if strings.HasPrefix(k, prefix) {
			m.c.Delete(k)
		}
	}
	return nil
}

func (m *MemoryCache) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	m.c.Flush()
	return nil
}
