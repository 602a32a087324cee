package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrEntryExpired  = errors.New("entry expired")
	ErrCacheDisabled = errors.New("cache disabled")
	ErrNotFoundInAny = errors.New("key not found in any cache")
)

// Entry is one cached response body.
type Entry struct {
	Data      []byte
	ExpiresAt time.Time
	ETag      string
}

// Expired reports whether the entry's lifetime has passed.
func (e *Entry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache stores response bodies keyed by request address.
type Cache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// MemoryCache is a bounded in-process cache. When full, the entry closest to
// expiry is evicted. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	maxSize int
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
	}
}

// Get retrieves an entry, failing on misses and expired entries.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrKeyNotFound
	}

	if entry.Expired() {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()

		return nil, ErrEntryExpired
	}

	return entry, nil
}

// Set stores an entry, evicting the soonest-to-expire entry if full.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry

	return nil
}

func (c *MemoryCache) evictLocked() {
	type candidate struct {
		key     string
		expires time.Time
	}

	candidates := make([]candidate, 0, len(c.entries))
	for key, entry := range c.entries {
		candidates = append(candidates, candidate{key: key, expires: entry.ExpiresAt})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].expires.Before(candidates[j].expires)
	})

	if len(candidates) > 0 {
		delete(c.entries, candidates[0].key)
	}
}

// Delete removes an entry.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)

	return nil
}

// Has checks whether a live entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)
		}
	}
}

// NoOpCache caches nothing.
type NoOpCache struct{}

// NewNoOpCache creates a no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always misses.
func (c *NoOpCache) Get(_ context.Context, _ string) (*Entry, error) {
	return nil, ErrCacheDisabled
}

// Set does nothing.
func (c *NoOpCache) Set(_ context.Context, _ string, _ *Entry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(_ context.Context, _ string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(_ context.Context) error {
	return nil
}

// Has always reports false.
func (c *NoOpCache) Has(_ context.Context, _ string) bool {
	return false
}

// Chain layers cache backends (L1, L2, ...). Reads backfill earlier layers
// on a hit; writes and deletes go to every layer.
type Chain struct {
	caches []Cache
}

// NewChain creates a cache chain.
func NewChain(caches ...Cache) *Chain {
	return &Chain{caches: caches}
}

// Get retrieves from the first layer that has the key.
func (c *Chain) Get(ctx context.Context, key string) (*Entry, error) {
	for i, layer := range c.caches {
		entry, err := layer.Get(ctx, key)
		if err == nil {
			for j := range i {
				_ = c.caches[j].Set(ctx, key, entry)
			}

			return entry, nil
		}
	}

	return nil, ErrNotFoundInAny
}

// Set stores in every layer.
func (c *Chain) Set(ctx context.Context, key string, entry *Entry) error {
	var lastErr error

	for _, layer := range c.caches {
		err := layer.Set(ctx, key, entry)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Delete removes from every layer.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var lastErr error

	for _, layer := range c.caches {
		err := layer.Delete(ctx, key)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Clear clears every layer.
func (c *Chain) Clear(ctx context.Context) error {
	var lastErr error

	for _, layer := range c.caches {
		err := layer.Clear(ctx)
		if err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Has checks every layer.
func (c *Chain) Has(ctx context.Context, key string) bool {
	for _, layer := range c.caches {
		if layer.Has(ctx, key) {
			return true
		}
	}

	return false
}
