package cache

import (
	"context"
	"time"
)

// NullCache misses on every read and discards every write. It stands in
// when caching is disabled so callers never have to nil-check the store.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache {
	return &NullCache{}
}

// Get implements Cache. Every lookup is a miss.
func (c *NullCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set implements Cache. The value is dropped.
func (c *NullCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

// Delete implements Cache.
func (c *NullCache) Delete(_ context.Context, _ string) error {
	return nil
}

// Close implements Cache.
func (c *NullCache) Close() error {
	return nil
}

var _ Cache = (*NullCache)(nil)
