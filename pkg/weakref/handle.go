// Package weakref wraps arbitrary pointer values in type-erased weak handles.
//
// A Handle never keeps its referent alive. Once the garbage collector finds the
// referent unreachable, Get reports nil on every subsequent call.
//
// Two kinds of referent outlive their owners. Pointers into static data, such
// as a package-level `var def Observer = &impl{}` or `&someGlobal`, are never
// collected, so their handles stay alive for the life of the process. Small
// objects without pointer fields (under 16 bytes, e.g. new(int32)) may share a
// tiny-allocator block with other objects and stay alive until every object
// in that block is unreachable. Do not rely on such handles clearing promptly.
package weakref

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
	"weak"

	"github.com/zjrosen/weakcast/internal/log"
)

// ErrInvalidElementKind is reported when a value that is not a pointer to a
// heap object is offered for weak wrapping.
var ErrInvalidElementKind = errors.New("element must be a non-nil pointer to a heap object")

var strict atomic.Bool

// SetStrict makes Make panic on invalid elements instead of only logging them.
// Intended for development and tests.
func SetStrict(enabled bool) {
	strict.Store(enabled)
}

// Handle is a weak reference to a single heap object.
// The zero Handle is permanently empty.
type Handle struct {
	ptr weak.Pointer[byte]
	typ reflect.Type // pointer type of the referent, e.g. *Foo
}

// Check reports whether value can be held weakly.
func Check(value any) error {
	_, err := inspect(value)
	return err
}

// Make wraps value in a weak handle. It returns false, after emitting a
// diagnostic, when value is not a pointer to a heap object.
func Make(value any) (Handle, bool) {
	rv, err := inspect(value)
	if err != nil {
		log.ErrorErr(log.CatWeak, "refusing to wrap element", err, "type", fmt.Sprintf("%T", value))
		if strict.Load() {
			panic(err)
		}
		return Handle{}, false
	}

	return Handle{
		ptr: weak.Make((*byte)(rv.UnsafePointer())),
		typ: rv.Type(),
	}, true
}

func inspect(value any) (reflect.Value, error) {
	if value == nil {
		return reflect.Value{}, fmt.Errorf("%w: got nil", ErrInvalidElementKind)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer {
		return reflect.Value{}, fmt.Errorf("%w: got %s", ErrInvalidElementKind, rv.Kind())
	}
	if rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: got nil %s", ErrInvalidElementKind, rv.Type())
	}
	// Zero-sized values share one address, so they have no identity of their own.
	if rv.Type().Elem().Size() == 0 {
		return reflect.Value{}, fmt.Errorf("%w: %s points to a zero-sized value", ErrInvalidElementKind, rv.Type())
	}
	return rv, nil
}

// Get returns the referent as its original pointer type, or nil once it has
// been collected. Liveness is re-checked on every call.
func (h Handle) Get() any {
	p := h.ptr.Value()
	if p == nil {
		return nil
	}
	return reflect.NewAt(h.typ.Elem(), unsafe.Pointer(p)).Interface()
}

// Alive reports whether the referent is still reachable.
func (h Handle) Alive() bool {
	return h.ptr.Value() != nil
}

// Refers reports whether the handle is alive and value is the same pointer,
// with the same type, that the handle was made from. A pointer to the
// referent's first field shares its address but is not the same object.
func (h Handle) Refers(value any) bool {
	p := h.ptr.Value()
	if p == nil || value == nil {
		return false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	return rv.Type() == h.typ && unsafe.Pointer(p) == rv.UnsafePointer()
}
