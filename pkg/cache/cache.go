// Package cache holds fetched directory listings keyed by path.
//
// A missing entry means the listing was never fetched (or was
// invalidated); a present entry with zero entries means the directory
// was fetched and is empty. Callers must never collapse the two.
package cache

import (
	"sync"
	"time"

	"github.com/galleylabs/galley/pkg/models"
)

type listing struct {
	entries     []models.Entry
	completedAt time.Time
}

// FolderCache maps directory paths to their last fetched listing.
// There is no TTL and no size bound; a project switch discards the
// whole cache by constructing a new one.
type FolderCache struct {
	mu       sync.RWMutex
	listings map[models.Path]listing
}

// New returns an empty cache.
func New() *FolderCache {
	return &FolderCache{listings: make(map[models.Path]listing)}
}

// Get returns the cached listing for dir. The returned slice is shared
// and must not be mutated by the caller.
func (c *FolderCache) Get(dir models.Path) ([]models.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.listings[dir]
	if !ok {
		return nil, false
	}
	return l.entries, true
}

// Has reports whether dir has a cached listing.
func (c *FolderCache) Has(dir models.Path) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.listings[dir]
	return ok
}

// Set stores a listing stamped with the time its fetch completed.
// Overlapping fetches of one path settle last-writer-wins by that
// stamp: a result older than what is stored is discarded and Set
// returns false. A nil entries slice is stored as loaded-and-empty.
func (c *FolderCache) Set(dir models.Path, entries []models.Entry, completedAt time.Time) bool {
	if entries == nil {
		entries = []models.Entry{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.listings[dir]; ok && completedAt.Before(cur.completedAt) {
		return false
	}
	c.listings[dir] = listing{entries: entries, completedAt: completedAt}
	return true
}

// Invalidate drops the listing for dir, if any.
func (c *FolderCache) Invalidate(dir models.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listings, dir)
}

// InvalidatePrefix drops the listing for dir and every cached listing
// below it, returning how many were dropped. Used after a directory is
// renamed, moved, or deleted so a path reused later never resurrects a
// stale listing.
func (c *FolderCache) InvalidatePrefix(dir models.Path) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for p := range c.listings {
		if p == dir || p.IsDescendantOf(dir) {
			delete(c.listings, p)
			n++
		}
	}
	return n
}

// Len returns the number of cached listings.
func (c *FolderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listings)
}
