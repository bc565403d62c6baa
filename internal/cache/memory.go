package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process cache tier backed by go-cache. Constructed per
// process and passed through the pipeline; no module-level state.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates a memory cache. defaultTTL applies when a Set passes a
// zero TTL; expired entries are swept every cleanupInterval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, cleanupInterval)}
}

func nsKey(namespace, key string) string {
	return namespace + ":" + key
}

func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, bool) {
	v, ok := m.c.Get(nsKey(namespace, key))
	if !ok {
		return nil, false
	}
	raw, ok := v.([]byte)
	return raw, ok
}

func (m *Memory) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(nsKey(namespace, key), value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, namespace, key string) error {
	m.c.Delete(nsKey(namespace, key))
	return nil
}

func (m *Memory) Close() error { return nil }
