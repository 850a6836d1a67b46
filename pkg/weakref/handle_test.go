package weakref

import (
	"bytes"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/weakcast/internal/log"
)

type widget struct {
	name string
	tag  int
}

type namer interface {
	Name() string
}

func (w *widget) Name() string { return w.name }

// Both live in static data rather than on the heap.
var (
	defaultNamer namer = &widget{name: "default"}
	staticWidget       = widget{name: "static"}
)

func collect() {
	runtime.GC()
	runtime.GC()
}

func TestMake_Pointer(t *testing.T) {
	w := &widget{name: "a", tag: 1}

	h, ok := Make(w)
	require.True(t, ok)
	require.True(t, h.Alive())

	got, ok := h.Get().(*widget)
	require.True(t, ok, "Get should return the original pointer type")
	require.Same(t, w, got)
}

func TestMake_InterfaceValue(t *testing.T) {
	var n namer = &widget{name: "iface"}

	h, ok := Make(n)
	require.True(t, ok)

	got, ok := h.Get().(namer)
	require.True(t, ok)
	require.Equal(t, "iface", got.Name())
}

func TestMake_RejectsValueKinds(t *testing.T) {
	var nilWidget *widget

	tests := []struct {
		name  string
		value any
	}{
		{"nil", nil},
		{"nil pointer", nilWidget},
		{"struct", widget{name: "copy"}},
		{"int", 42},
		{"string", "hello"},
		{"slice", []int{1, 2}},
		{"zero sized", &struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.value)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidElementKind))

			h, ok := Make(tt.value)
			require.False(t, ok)
			require.Nil(t, h.Get())
			require.False(t, h.Alive())
		})
	}
}

func TestMake_LogsDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	log.InitWithWriter(&buf)
	t.Cleanup(log.ResetForTesting)

	_, ok := Make(widget{name: "value"})
	require.False(t, ok)

	out := buf.String()
	require.Contains(t, out, "[ERROR] [weak] refusing to wrap element")
	require.Contains(t, out, "type=weakref.widget")
}

func TestMake_StrictPanics(t *testing.T) {
	SetStrict(true)
	t.Cleanup(func() { SetStrict(false) })

	require.Panics(t, func() {
		Make(7)
	})
	require.NotPanics(t, func() {
		Make(&widget{name: "fine"})
	})
}

func TestHandle_ClearedAfterCollection(t *testing.T) {
	w := &widget{name: "transient"}
	h, ok := Make(w)
	require.True(t, ok)
	require.True(t, h.Alive())

	w = nil //nolint:ineffassign // drop the only strong reference
	collect()

	require.False(t, h.Alive())
	require.Nil(t, h.Get())
}

func TestHandle_SurvivesWhileOwned(t *testing.T) {
	w := &widget{name: "owned"}
	h, _ := Make(w)

	collect()

	require.True(t, h.Alive())
	require.True(t, h.Refers(w))
	runtime.KeepAlive(w)
}

func TestHandle_RefersUsesIdentity(t *testing.T) {
	a := &widget{name: "same", tag: 1}
	b := &widget{name: "same", tag: 1}

	h, _ := Make(a)

	require.True(t, h.Refers(a))
	require.False(t, h.Refers(b), "equal values at different addresses are different objects")
	require.False(t, h.Refers(*a))
	require.False(t, h.Refers(nil))

	var n namer = a
	require.True(t, h.Refers(n), "identity holds through an interface")
}

func TestMake_StaticData(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"package-level interface default", defaultNamer},
		{"address of package-level variable", &staticWidget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := Make(tt.value)
			require.True(t, ok)

			collect()

			require.True(t, h.Alive(), "static data is never collected")
			require.True(t, h.Refers(tt.value))
			require.Same(t, tt.value, h.Get())
		})
	}
}

func TestHandle_RefersChecksType(t *testing.T) {
	w := &widget{name: "outer"}
	h, _ := Make(w)

	require.False(t, h.Refers(&w.name), "first field shares the address but is another object")
	require.True(t, h.Refers(w))
	runtime.KeepAlive(w)
}

func TestHandle_Zero(t *testing.T) {
	var h Handle

	require.Nil(t, h.Get())
	require.False(t, h.Alive())
	require.False(t, h.Refers(&widget{}))
}
