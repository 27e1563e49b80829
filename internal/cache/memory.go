package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// MemoryCache is an in-process Cache used when Redis is not configured.
// Expired entries are dropped lazily on read and by a janitor goroutine.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryCache creates a MemoryCache. Call Close to stop the janitor.
func NewMemoryCache() *MemoryCache {
	m := &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go m.janitor(time.Minute)
	return m
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Close stops the janitor goroutine.
func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryCache) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *MemoryCache) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
