// Package dedup tracks records that were already published.
package dedup

import (
	"fmt"
	"sync"

	"github.com/JakeFAU/bidwatcher/internal/bid"
)

// Strategy chooses when a record is marked as seen relative to publishing.
type Strategy string

// Supported strategies.
const (
	// MarkBeforePublish marks first, so a failed publish is never retried (at-most-once).
	MarkBeforePublish Strategy = "mark_before_publish"
	// MarkAfterPublish marks only after a successful publish (retried next cycle on failure).
	MarkAfterPublish Strategy = "mark_after_publish"
)

// ParseStrategy validates a configured strategy name. Empty selects MarkBeforePublish.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", MarkBeforePublish:
		return MarkBeforePublish, nil
	case MarkAfterPublish:
		return MarkAfterPublish, nil
	default:
		return "", fmt.Errorf("unknown dedup strategy %q", name)
	}
}

// Cache is a set of records compared by value.
type Cache struct {
	mu   sync.RWMutex
	seen map[bid.Record]struct{}
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{seen: make(map[bid.Record]struct{})}
}

// Contains reports whether the record is a member.
func (c *Cache) Contains(record bid.Record) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[record]
	return ok
}

// Add inserts the record and reports whether it was not already present.
func (c *Cache) Add(record bid.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[record]; ok {
		return false
	}
	c.seen[record] = struct{}{}
	return true
}

// Remove deletes the record if present.
func (c *Cache) Remove(record bid.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, record)
}

// Clear empties the cache and returns how many records were dropped.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.seen)
	c.seen = make(map[bid.Record]struct{})
	return n
}

// Len returns the number of members.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.seen)
}
