package cache

import (
	"context"
	"time"
)

// Store caches JSON encodable values. A miss is (false, nil).
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	HealthCheck(ctx context.Context) error
	Close() error
}
