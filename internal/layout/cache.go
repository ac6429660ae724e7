package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"gridcal/internal/model"
)

// Cache memoizes computed layouts by a caller-supplied key. It is an
// explicit, constructible object rather than package-level state, so
// independent calendar views never share or corrupt each other's entries.
// A single instance is safe for concurrent use.
//
// The cache cannot detect that the events behind a key changed while the
// key stayed the same; the caller owns key freshness. ContentKey derives a
// key from the event set itself for callers that want that guarantee.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]LayoutedEvent
}

// NewCache creates an empty layout cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string][]LayoutedEvent),
	}
}

// GetOrCompute returns the cached layout for key, or runs the full pipeline
// over events and stores the result before returning it.
func (c *Cache) GetOrCompute(key string, events []model.Event) []LayoutedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entries[key]; ok {
		return cached
	}

	computed := Layout(events)
	c.entries[key] = computed
	return computed
}

// Clear empties all entries unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]LayoutedEvent)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ContentKey derives a cache key from the identity and timestamps of the
// event set, so the key changes whenever the set does. IDs and timestamps
// are hashed in input order; reordering the same events produces a
// different key, which is acceptable because the pipeline input order is
// part of the determinism contract anyway.
func ContentKey(events []model.Event) string {
	h := sha256.New()
	for _, ev := range events {
		h.Write([]byte(ev.ID))
		h.Write([]byte{0})
		h.Write([]byte(ev.Start.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{0})
		h.Write([]byte(ev.End.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{0})
		if ev.AllDay {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
