// Package indexcache persists parsed symbol.FileSymbols snapshots to a
// single msgpack-encoded file, keyed by each file's on-disk mtime, so a
// process restart can skip re-parsing files that have not changed since
// the last run.
package indexcache

import (
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/crace/crace/internal/errs"
	"github.com/crace/crace/pkg/symbol"
)

// entry is one cached file's snapshot.
type entry struct {
	ModTime time.Time           `msgpack:"mod_time"`
	Symbols symbol.FileSymbols `msgpack:"symbols"`
}

// Cache is a flat mtime-keyed snapshot cache, safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]entry
	dirty   bool
}

// Open loads path if it exists (a missing file is not an error, it just
// starts empty) and returns a Cache ready for Get/Put.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errs.Wrap(errs.Internal, "indexcache.Open", "read cache file", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := msgpack.Unmarshal(data, &c.entries); err != nil {
		// A corrupt cache is not fatal: start fresh rather than failing
		// process startup over a stale snapshot.
		c.entries = make(map[string]entry)
	}
	return c, nil
}

// Get returns the cached FileSymbols for path if present and its recorded
// mtime still matches modTime (i.e. the file has not changed on disk).
func (c *Cache) Get(path string, modTime time.Time) (symbol.FileSymbols, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[path]
	if !ok || !e.ModTime.Equal(modTime) {
		return symbol.FileSymbols{}, false
	}
	return e.Symbols, true
}

// Put stores fs under path keyed by modTime, replacing any prior entry.
func (c *Cache) Put(path string, modTime time.Time, fs symbol.FileSymbols) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{ModTime: modTime, Symbols: fs}
	c.dirty = true
}

// Delete removes path's cached entry, if any.
func (c *Cache) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[path]; ok {
		delete(c.entries, path)
		c.dirty = true
	}
}

// Flush writes the cache to disk if it has unsaved changes.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	data, err := msgpack.Marshal(c.entries)
	if err != nil {
		return errs.Wrap(errs.Internal, "indexcache.Flush", "encode cache", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return errs.Wrap(errs.Internal, "indexcache.Flush", "write cache file", err)
	}
	c.dirty = false
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
