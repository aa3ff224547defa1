package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/samdiagnosis/backend/internal/domain/providers"
)

const defaultLRUSize = 4096

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUAdapter implements the CacheProvider interface with an in-process LRU.
// It backs deployments that run without Redis; entries carry a TTL and are
// dropped lazily on read.
type LRUAdapter struct {
	cache *lru.Cache[string, lruEntry]
}

// NewLRUAdapter creates an in-process LRU cache adapter. A size of 0 falls
// back to the default capacity.
func NewLRUAdapter(size int) (providers.CacheProvider, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUAdapter{cache: c}, nil
}

// Get retrieves a value from cache
func (a *LRUAdapter) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := a.cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		a.cache.Remove(key)
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return entry.value, nil
}

// Set stores a value in cache with expiration. Zero or negative expiration
// means the entry lives until evicted.
func (a *LRUAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	entry := lruEntry{value: value}
	if expirationSeconds > 0 {
		entry.expiresAt = time.Now().Add(time.Duration(expirationSeconds) * time.Second)
	}
	a.cache.Add(key, entry)
	return nil
}

// Delete removes a value from cache
func (a *LRUAdapter) Delete(_ context.Context, key string) error {
	a.cache.Remove(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *LRUAdapter) Exists(ctx context.Context, key string) (bool, error) {
	if _, err := a.Get(ctx, key); err != nil {
		return false, nil
	}
	return true, nil
}
