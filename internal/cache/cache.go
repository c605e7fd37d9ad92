// Package cache provides a bounded store of compiled components keyed by
// source path and freshness fingerprint.
//
// Eviction is first-in first-out: when the cache is full the oldest
// inserted entry goes, and lookups never change that order. The cache is
// not safe for concurrent use.
package cache

import (
	"github.com/conneroisu/jsxsite/internal/types"
)

// Fingerprinter computes the current freshness fingerprint of a path.
type Fingerprinter interface {
	Fingerprint(path string) int64
}

// Key identifies one compiled version of a source file.
type Key struct {
	Path        string
	Fingerprint int64
}

// Stats holds cache counters.
type Stats struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	StaleDrops int64
}

// HitRate returns hits over lookups, from 0 to 1.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry struct {
	key       Key
	component types.Component
	prev      *entry
	next      *entry
}

// ComponentCache is a FIFO cache of compiled components.
type ComponentCache struct {
	capacity int
	fp       Fingerprinter
	entries  map[Key]*entry
	// insertion list: head.next is newest, tail.prev is oldest
	head  *entry
	tail  *entry
	stats Stats
}

// New creates a cache holding at most capacity entries. A capacity below
// one is treated as one.
func New(capacity int, fp Fingerprinter) *ComponentCache {
	if capacity < 1 {
		capacity = 1
	}
	c := &ComponentCache{
		capacity: capacity,
		fp:       fp,
		entries:  make(map[Key]*entry),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get looks up path at its current fingerprint.
func (c *ComponentCache) Get(path string) (types.Component, bool) {
	return c.Lookup(Key{Path: path, Fingerprint: c.fp.Fingerprint(path)})
}

// Lookup returns the component stored under key.
func (c *ComponentCache) Lookup(key Key) (types.Component, bool) {
	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.component, true
}

// Put stores component under (path, fingerprint), evicting the oldest
// entry first when the cache is full. Storing an existing key replaces its
// component and keeps its position.
func (c *ComponentCache) Put(path string, fingerprint int64, component types.Component) {
	key := Key{Path: path, Fingerprint: fingerprint}
	if e, ok := c.entries[key]; ok {
		e.component = component
		return
	}

	for len(c.entries) >= c.capacity && c.tail.prev != c.head {
		oldest := c.tail.prev
		c.unlink(oldest)
		delete(c.entries, oldest.key)
		c.stats.Evictions++
	}

	e := &entry{key: key, component: component}
	c.entries[key] = e
	c.pushFront(e)
}

// InvalidateStale drops every entry whose fingerprint is older than the
// current fingerprint of its path and returns how many were dropped.
func (c *ComponentCache) InvalidateStale() int {
	current := make(map[string]int64)
	var stale []*entry

	for e := c.head.next; e != c.tail; e = e.next {
		fp, ok := current[e.key.Path]
		if !ok {
			fp = c.fp.Fingerprint(e.key.Path)
			current[e.key.Path] = fp
		}
		if fp > e.key.Fingerprint {
			stale = append(stale, e)
		}
	}

	for _, e := range stale {
		c.unlink(e)
		delete(c.entries, e.key)
	}
	c.stats.StaleDrops += int64(len(stale))

	return len(stale)
}

// Remove drops every entry for path and returns how many were dropped.
func (c *ComponentCache) Remove(path string) int {
	removed := 0
	for e := c.head.next; e != c.tail; {
		next := e.next
		if e.key.Path == path {
			c.unlink(e)
			delete(c.entries, e.key)
			removed++
		}
		e = next
	}
	return removed
}

// keys returns the stored keys from oldest to newest.
func (c *ComponentCache) keys() []Key {
	keys := make([]Key, 0, len(c.entries))
	for e := c.tail.prev; e != c.head; e = e.prev {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the number of entries.
func (c *ComponentCache) Len() int { return len(c.entries) }

// Stats returns a snapshot of the counters.
func (c *ComponentCache) Stats() Stats { return c.stats }

// Clear drops every entry and resets the counters.
func (c *ComponentCache) Clear() {
	c.entries = make(map[Key]*entry)
	c.head.next = c.tail
	c.tail.prev = c.head
	c.stats = Stats{}
}

func (c *ComponentCache) pushFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *ComponentCache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}
