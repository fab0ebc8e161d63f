// cache/memory.go
package cache

import (
	"context"
	"sync"
	"time"
)

// Memory implements an in-memory cache with TTL support.
type Memory struct {
	mu      sync.RWMutex
	items   map[string]*item
	closed  bool
	stopCh  chan struct{}
	cleanCh chan struct{}
}

type item struct {
	value     []byte
	expiresAt time.Time
	noExpiry  bool
}

// NewMemory creates an in-memory cache. Expired items are swept every
// cleanupInterval; 0 disables the sweeper (expired items are still never
// returned).
func NewMemory(cleanupInterval time.Duration) *Memory {
	m := &Memory{
		items:   make(map[string]*item, 100),
		stopCh:  make(chan struct{}),
		cleanCh: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanup(cleanupInterval)
	} else {
		close(m.cleanCh)
	}
	return m
}

// Get retrieves a value by key.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	it, exists := m.items[key]
	if !exists {
		return nil, ErrNotFound
	}
	if !it.noExpiry && time.Now().After(it.expiresAt) {
		return nil, ErrNotFound
	}

	result := make([]byte, len(it.value))
	copy(result, it.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	it := &item{value: valueCopy}
	if ttl > 0 {
		it.expiresAt = time.Now().Add(ttl)
	} else {
		it.noExpiry = true
	}

	m.items[key] = it
	return nil
}

// Delete removes a key from the cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

// Ping always succeeds unless the cache is closed.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the cleanup goroutine and releases resources.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stopCh)
	m.mu.Unlock()

	<-m.cleanCh
	return nil
}

// Size returns the number of items in the cache (including expired).
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) cleanup(interval time.Duration) {
	defer close(m.cleanCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, it := range m.items {
		if !it.noExpiry && now.After(it.expiresAt) {
			delete(m.items, key)
		}
	}
}
