// Package cache holds in-memory snapshots of named collections fetched from
// the backend.
//
// A Collection is written only by Refresh and the copy-on-write helpers
// (Prepend, Replace); every write builds a new slice and swaps a pointer, so a
// slice returned by All is never mutated afterwards. Callers must not modify
// it either, and should call All again after a refresh instead of holding on
// to an old snapshot.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sw33tLie/riderpoint/pkg/catalog"
)

type snapshot[T catalog.Entity] struct {
	items []T
	at    time.Time
}

// Collection is the most recently fetched snapshot of one named collection.
type Collection[T catalog.Entity] struct {
	name string
	snap atomic.Pointer[snapshot[T]]

	// serializes copy-on-write updates; readers never take it
	writeMu sync.Mutex
}

// New creates an empty collection.
func New[T catalog.Entity](name string) *Collection[T] {
	c := &Collection[T]{name: name}
	c.snap.Store(&snapshot[T]{items: []T{}})
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Refresh replaces the whole collection. The input slice is copied.
func (c *Collection[T]) Refresh(items []T) {
	cp := make([]T, len(items))
	copy(cp, items)

	c.writeMu.Lock()
	c.snap.Store(&snapshot[T]{items: cp, at: time.Now()})
	c.writeMu.Unlock()
}

// All returns the current snapshot. It is never nil.
func (c *Collection[T]) All() []T {
	return c.snap.Load().items
}

// IsEmpty reports whether the current snapshot holds no items.
func (c *Collection[T]) IsEmpty() bool {
	return len(c.All()) == 0
}

// Len returns the number of cached items.
func (c *Collection[T]) Len() int {
	return len(c.All())
}

// RefreshedAt returns when the snapshot was last replaced. Zero means never.
func (c *Collection[T]) RefreshedAt() time.Time {
	return c.snap.Load().at
}

// Find returns the item with the given id.
func (c *Collection[T]) Find(id string) (T, bool) {
	for _, it := range c.All() {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Prepend merges a newly created item at the front of the snapshot. An item
// with the same id is dropped from its old position.
func (c *Collection[T]) Prepend(item T) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := c.snap.Load()
	out := make([]T, 0, len(old.items)+1)
	out = append(out, item)
	for _, it := range old.items {
		if it.EntityID() != item.EntityID() {
			out = append(out, it)
		}
	}
	c.snap.Store(&snapshot[T]{items: out, at: old.at})
}

// Replace swaps the item with the same id for item, keeping its position.
// It returns false when no such item is cached.
func (c *Collection[T]) Replace(item T) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := c.snap.Load()
	idx := -1
	for i, it := range old.items {
		if it.EntityID() == item.EntityID() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	out := make([]T, len(old.items))
	copy(out, old.items)
	out[idx] = item
	c.snap.Store(&snapshot[T]{items: out, at: old.at})
	return true
}
