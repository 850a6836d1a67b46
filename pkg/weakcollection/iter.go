package weakcollection

import (
	"iter"

	"github.com/zjrosen/weakcast/pkg/weakref"
)

// Iterator walks a collection in insertion order, yielding only live
// elements of type E. It reads the backing storage as it was when the
// iterator was created and never modifies it.
type Iterator[E any] struct {
	items []weakref.Handle
	index int
}

// Iterator returns a fresh iterator positioned before the first element.
func (c *Collection[E]) Iterator() *Iterator[E] {
	return &Iterator[E]{items: c.items}
}

// Next returns the next live element. The second result is false once the
// end of the collection has been reached.
func (it *Iterator[E]) Next() (E, bool) {
	for it.index < len(it.items) {
		ref := it.items[it.index].Get()
		it.index++

		if e, ok := ref.(E); ok {
			return e, true
		}
	}

	var zero E
	return zero, false
}

// All returns a single-pass sequence over the live elements. Every call to
// All starts a new pass over the current state.
func (c *Collection[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		it := c.Iterator()
		for {
			e, ok := it.Next()
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// ForEach calls fn for every live element in insertion order.
func (c *Collection[E]) ForEach(fn func(E)) {
	for e := range c.All() {
		fn(e)
	}
}

// Elements returns a snapshot of the live elements in insertion order.
// The snapshot holds strong references.
func (c *Collection[E]) Elements() []E {
	out := make([]E, 0, len(c.items))
	for e := range c.All() {
		out = append(out, e)
	}
	return out
}

// CompactMap applies fn to each live element and keeps the results for which
// fn reports true.
func CompactMap[E, R any](c *Collection[E], fn func(E) (R, bool)) []R {
	var out []R
	for e := range c.All() {
		if r, ok := fn(e); ok {
			out = append(out, r)
		}
	}
	return out
}
