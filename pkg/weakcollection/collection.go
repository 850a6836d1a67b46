// Package weakcollection provides an ordered collection of weakly-held
// elements for multicast delegation.
//
// A Collection never extends the lifetime of its elements. Entries whose
// referents have been collected stay in the backing storage until CleanUp
// (or an Append) prunes them; iteration silently skips them.
//
// A Collection is not safe for concurrent use.
package weakcollection

import (
	"github.com/zjrosen/weakcast/pkg/weakref"
)

// Collection is an ordered sequence of weak references to elements of type E.
// E is usually an interface implemented by pointer types, or a pointer type.
// The zero value is an empty collection ready to use.
type Collection[E any] struct {
	items []weakref.Handle
}

// New builds a collection from elements in order. Elements that are not
// pointers to heap objects are dropped.
func New[E any](elements ...E) *Collection[E] {
	c := &Collection[E]{items: make([]weakref.Handle, 0, len(elements))}
	for _, e := range elements {
		if h, ok := weakref.Make(e); ok {
			c.items = append(c.items, h)
		}
	}
	return c
}

// Append prunes collected entries and adds e at the end.
// Elements that cannot be held weakly are ignored.
func (c *Collection[E]) Append(e E) {
	c.CleanUp()

	h, ok := weakref.Make(e)
	if !ok {
		return
	}
	c.items = append(c.items, h)
}

// AppendUnique appends e unless the same object is already present.
func (c *Collection[E]) AppendUnique(e E) {
	c.CleanUp()

	if c.Contains(e) {
		return
	}
	c.Append(e)
}

// CleanUp removes entries whose referents have been collected, preserving
// the order of the remaining ones. It returns the number of removed entries.
func (c *Collection[E]) CleanUp() int {
	return c.filter(func(h weakref.Handle) bool { return h.Alive() })
}

// Remove drops every entry referring to the same object as e, along with any
// collected entries. It returns the number of entries that matched e.
func (c *Collection[E]) Remove(e E) int {
	matched := 0
	c.filter(func(h weakref.Handle) bool {
		if h.Refers(e) {
			matched++
			return false
		}
		return h.Alive()
	})
	return matched
}

// filter keeps the handles for which keep returns true and reports how many
// were dropped. Storage is only replaced when something is dropped, so
// iterators created earlier keep seeing the old entries.
func (c *Collection[E]) filter(keep func(weakref.Handle) bool) int {
	var kept []weakref.Handle
	for i, h := range c.items {
		if keep(h) {
			if kept != nil {
				kept = append(kept, h)
			}
			continue
		}
		if kept == nil {
			kept = make([]weakref.Handle, i, len(c.items))
			copy(kept, c.items[:i])
		}
	}
	if kept == nil {
		return 0
	}

	removed := len(c.items) - len(kept)
	c.items = kept
	return removed
}

// Contains reports whether a live entry refers to the same object as e.
// Identity, not equality, is compared.
//
// Complexity: O(n), where n is the backing length.
func (c *Collection[E]) Contains(e E) bool {
	for _, h := range c.items {
		if !h.Refers(e) {
			continue
		}
		if _, ok := h.Get().(E); ok {
			return true
		}
	}
	return false
}

// ContainsFunc reports whether pred returns true for some live element.
// Only live elements of type E are offered to pred.
func (c *Collection[E]) ContainsFunc(pred func(E) bool) bool {
	for e := range c.All() {
		if pred(e) {
			return true
		}
	}
	return false
}

// Len returns the backing length, including entries whose referents have
// already been collected but not yet pruned.
func (c *Collection[E]) Len() int {
	return len(c.items)
}

// Count returns the number of live elements.
func (c *Collection[E]) Count() int {
	n := 0
	for range c.All() {
		n++
	}
	return n
}

// Clone returns a collection with its own copy of the backing storage.
func (c *Collection[E]) Clone() *Collection[E] {
	items := make([]weakref.Handle, len(c.items))
	copy(items, c.items)
	return &Collection[E]{items: items}
}
