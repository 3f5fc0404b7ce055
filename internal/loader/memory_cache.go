package loader

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the in-process fallback used when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, meetingID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[meetingID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, meetingID)
		return nil, nil
	}
	return entry.payload, nil
}

func (c *MemoryCache) Set(_ context.Context, meetingID string, payload []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[meetingID] = memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, meetingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, meetingID)
	return nil
}
