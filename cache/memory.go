package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCache is an in-process ComplexityCache used when no Redis address is
// configured, and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ ComplexityCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[string]Record)}
}

func (c *MemoryCache) Get(_ context.Context, queryHash string) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[queryHash]
	if !ok {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (c *MemoryCache) Put(_ context.Context, rec *Record) error {
	if rec == nil || rec.QueryHash == "" {
		return fmt.Errorf("cache put: missing query hash")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.QueryHash] = *rec
	return nil
}
