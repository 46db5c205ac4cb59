package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
)

// InMemoryOrderLock implements integration.OrderLock with a map.
// It only guards runners inside one process.
type InMemoryOrderLock struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewInMemoryOrderLock creates a new in-memory order lock
func NewInMemoryOrderLock() *InMemoryOrderLock {
	return &InMemoryOrderLock{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Acquire returns true when the key is free or its holder's TTL has passed
func (l *InMemoryOrderLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.entries[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}

// Release frees the key
func (l *InMemoryOrderLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Close implements io.Closer
func (l *InMemoryOrderLock) Close() error {
	return nil
}

var _ integration.OrderLock = (*InMemoryOrderLock)(nil)
