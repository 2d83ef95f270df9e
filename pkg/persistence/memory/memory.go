package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/bip322-go/pkg/persistence"
)

// MemoryCache is an in-memory implementation of IVerificationCache.
//
// Entries are lost when the process exits. Values are copied on the way in
// and out so callers cannot mutate cached results.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]persistence.CachedResult
	closed  bool
}

var _ persistence.IVerificationCache = (*MemoryCache)(nil)

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]persistence.CachedResult),
	}
}

// Get returns a copy of the cached result.
func (m *MemoryCache) Get(key string) (*persistence.CachedResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("cache is closed")
	}

	r, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// Put stores a copy of result.
func (m *MemoryCache) Put(key string, result *persistence.CachedResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil result")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("cache is closed")
	}

	m.entries[key] = *result
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close drops all entries.
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = make(map[string]persistence.CachedResult)
	return nil
}

// HealthCheck verifies the cache is operational.
func (m *MemoryCache) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("cache is closed")
	}

	return nil
}
