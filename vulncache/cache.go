package vulncache

import (
	"context"
	"sync"
	"time"

	"github.com/ortelius/pdvd-depscan/model"
)

// Status tells whether an entry carries data yet
type Status int

// Entry states
const (
	StatusFetching Status = iota
	StatusReady
)

func (s Status) String() string {
	if s == StatusReady {
		return "ready"
	}
	return "fetching"
}

// Entry is one cached OSV result. A nil Expiry never goes stale by time alone.
type Entry struct {
	Status     Status
	Data       model.QueryResult
	Expiry     *time.Time
	Refreshing bool
}

// Expired reports whether a ready entry is past its expiry at now
func (e Entry) Expired(now time.Time) bool {
	return e.Status == StatusReady && e.Expiry != nil && now.After(*e.Expiry)
}

// Cache is a concurrency-safe map from cache key to Entry. All operations run
// under one mutex, so exactly one caller wins InsertIfAbsent for a key.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
	notify  map[string]chan struct{}
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
		notify:  make(map[string]chan struct{}),
	}
}

// InsertIfAbsent stores entry only if key is not present and reports whether it did.
// This is how a caller claims responsibility for fetching a key.
func (c *Cache) InsertIfAbsent(key string, entry Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return false
	}
	c.entries[key] = entry
	c.wakeLocked(key, entry)
	return true
}

// Get returns the entry stored at key
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return entry, ok
}

// Set stores entry unconditionally. Storing a ready entry wakes every waiter on key
// and drops any refresh claim held on the previous entry.
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	c.wakeLocked(key, entry)
}

// Remove deletes key. Waiters are woken and observe the key as absent.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	if ch, ok := c.notify[key]; ok {
		close(ch)
		delete(c.notify, key)
	}
}

// Revert removes key only while it is still fetching. A claimer uses it to give the
// key back after a failed fetch without clobbering data stored in the meantime.
func (c *Cache) Revert(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; !ok || entry.Status != StatusFetching {
		return
	}
	delete(c.entries, key)
	if ch, ok := c.notify[key]; ok {
		close(ch)
		delete(c.notify, key)
	}
}

// ClaimRefresh marks a ready entry as being refreshed. Only one caller gets true
// until the refresh completes (Set) or is abandoned (ReleaseRefresh).
func (c *Cache) ClaimRefresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.Status != StatusReady || entry.Refreshing {
		return false
	}
	entry.Refreshing = true
	c.entries[key] = entry
	return true
}

// ReleaseRefresh drops a refresh claim without touching the served data
func (c *Cache) ReleaseRefresh(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && entry.Refreshing {
		entry.Refreshing = false
		c.entries[key] = entry
	}
}

// WaitUntilReady blocks until the entry at key is ready and returns its data.
// It returns false when timeout elapses, ctx ends, or the key is absent (nobody is
// fetching it). Other cache operations are never blocked while waiting.
func (c *Cache) WaitUntilReady(ctx context.Context, key string, timeout time.Duration) (model.QueryResult, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		entry, ok := c.entries[key]
		if !ok {
			c.mu.Unlock()
			return model.QueryResult{}, false
		}
		if entry.Status == StatusReady {
			c.mu.Unlock()
			return entry.Data, true
		}
		ch, exists := c.notify[key]
		if !exists {
			ch = make(chan struct{})
			c.notify[key] = ch
		}
		c.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return model.QueryResult{}, false
		case <-ctx.Done():
			return model.QueryResult{}, false
		}
	}
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry and wakes all waiters
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	for key, ch := range c.notify {
		close(ch)
		delete(c.notify, key)
	}
}

func (c *Cache) wakeLocked(key string, entry Entry) {
	if entry.Status != StatusReady {
		return
	}
	if ch, ok := c.notify[key]; ok {
		close(ch)
		delete(c.notify, key)
	}
}
