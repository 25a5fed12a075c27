// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contextsvc

import (
	"container/list"
	"sync"
	"time"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

// cacheNamespace prefixes every cache key so context entries cannot
// collide with other consumers of a shared cache keyspace.
const cacheNamespace = "ctx:"

// DefaultCacheTTL is the fixed expiry for context cache entries. Entries
// expire one hour after they were written regardless of read or write
// activity, which bounds the stale-read window across processes.
const DefaultCacheTTL = time.Hour

// Cache is the volatile TTL accelerator in front of the context store.
//
// Description:
//
//	Thread-safe LRU cache with per-entry TTL expiration. The cache is
//	best-effort: it is never authoritative for interaction counts or
//	history completeness, and every caller must fall back to the durable
//	store on miss. Expired entries are removed lazily on Get.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int

	// now is swappable for TTL tests.
	now func() time.Time
}

// cacheEntry stores one cached record with its expiry.
type cacheEntry struct {
	key       string
	record    *datatypes.ContextRecord
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL and max entry count.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached record for a context key, or false on miss or
// expiry. The returned record is a deep copy; mutating it does not affect
// the cached value.
func (c *Cache) Get(contextKey string) (*datatypes.ContextRecord, bool) {
	key := cacheNamespace + contextKey

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		cacheMisses.Inc()
		return nil, false
	}
	c.lru.MoveToFront(elem)
	cacheHits.Inc()
	return copyRecord(entry.record), true
}

// Set stores a record under the context key with a fresh TTL, evicting the
// least recently used entry when at capacity.
func (c *Cache) Set(contextKey string, record *datatypes.ContextRecord) {
	key := cacheNamespace + contextKey

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.record = copyRecord(record)
		entry.expiresAt = c.now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
			cacheEvictions.Inc()
		}
	}

	entry := &cacheEntry{
		key:       key,
		record:    copyRecord(record),
		expiresAt: c.now().Add(c.ttl),
	}
	c.entries[key] = c.lru.PushFront(entry)
}

// Invalidate drops the entry for a context key if present.
func (c *Cache) Invalidate(contextKey string) {
	key := cacheNamespace + contextKey

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Len returns the number of live entries, counting expired ones that have
// not been lazily collected yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}

// copyRecord deep-copies a record so cached values cannot be mutated
// through returned pointers.
func copyRecord(r *datatypes.ContextRecord) *datatypes.ContextRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	if r.History != nil {
		out.History = make([]datatypes.ConversationEntry, len(r.History))
		copy(out.History, r.History)
	}
	return &out
}
