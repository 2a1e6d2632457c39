package gfx

import "github.com/devblok/frameforge/core"

type cacheable interface {
	Name() core.HashedName
	Retain()
	Release()
}

// cache deduplicates resources by the hash of their path. The cache
// itself holds one reference to every entry.
type cache[T cacheable] struct {
	entries map[uint32]T
}

func newCache[T cacheable]() cache[T] {
	return cache[T]{entries: make(map[uint32]T)}
}

// lookup returns the entry for name with a new reference taken.
// A different path with the same hash is reported as a collision.
func (c *cache[T]) lookup(name core.HashedName) (T, bool, error) {
	var zero T
	entry, ok := c.entries[name.Hash()]
	if !ok {
		return zero, false, nil
	}
	if !entry.Name().SameSource(name) {
		return zero, false, ErrNameCollision
	}
	entry.Retain()
	return entry, true, nil
}

// insert stores a freshly created entry. The caller keeps the
// creation reference, the cache takes its own.
func (c *cache[T]) insert(entry T) {
	entry.Retain()
	c.entries[entry.Name().Hash()] = entry
}

func (c *cache[T]) len() int {
	return len(c.entries)
}

// clear drops the cache references
func (c *cache[T]) clear() {
	for key, entry := range c.entries {
		entry.Release()
		delete(c.entries, key)
	}
}
