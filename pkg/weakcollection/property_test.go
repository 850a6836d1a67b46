package weakcollection

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// ============================================================================
// Property-Based Tests for Collection Invariants
// ============================================================================

func makeOwners(n int) []*someObserver {
	owners := make([]*someObserver, n)
	for i := range owners {
		owners[i] = newObserver(i)
	}
	return owners
}

// releaseRandom drops a random subset of owners and returns the indices of
// the survivors in order. Returns nil when nothing survives.
func releaseRandom(t *rapid.T, owners []*someObserver) []int {
	var alive []int
	for i := range owners {
		if rapid.Bool().Draw(t, "release") {
			owners[i] = nil
			continue
		}
		alive = append(alive, i)
	}
	return alive
}

func nilIfEmpty(s []int) []int {
	if len(s) == 0 {
		return nil
	}
	return s
}

// TestProperty_ConstructionFiltersNonReferences verifies only pointer inputs are kept.
func TestProperty_ConstructionFiltersNonReferences(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")

		var inputs []any
		var owners []*someObserver
		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(t, "isReference") {
				o := newObserver(i)
				owners = append(owners, o)
				inputs = append(inputs, o)
			} else {
				inputs = append(inputs, i)
			}
		}

		c := New[any](inputs...)
		require.Equal(t, len(owners), c.Len())
		require.Equal(t, len(owners), c.Count())
		runtime.KeepAlive(inputs)
	})
}

// TestProperty_LivenessFollowsOwnership verifies Contains tracks external owners.
func TestProperty_LivenessFollowsOwnership(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		owners := makeOwners(n)
		c := New[*someObserver](owners...)

		for _, o := range owners {
			require.True(t, c.Contains(o))
		}

		alive := releaseRandom(t, owners)
		collect()
		c.CleanUp()

		require.Equal(t, len(alive), c.Count())
		for _, i := range alive {
			require.True(t, c.Contains(owners[i]))
		}
	})
}

// TestProperty_OrderPreservedAcrossCleanUp verifies survivors keep their insertion order.
func TestProperty_OrderPreservedAcrossCleanUp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")
		owners := makeOwners(n)

		var c Collection[observer]
		for _, o := range owners {
			c.Append(o)
		}

		alive := releaseRandom(t, owners)
		collect()

		require.Equal(t, n-len(alive), c.CleanUp())
		require.Equal(t, len(alive), c.Len())
		require.Equal(t, alive, nilIfEmpty(zoos(&c)))
		runtime.KeepAlive(owners)
	})
}

// TestProperty_CleanUpIdempotent verifies a second cleanup changes nothing.
func TestProperty_CleanUpIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 25).Draw(t, "n")
		owners := makeOwners(n)
		c := New[*someObserver](owners...)

		releaseRandom(t, owners)
		collect()

		c.CleanUp()
		firstLen, first := c.Len(), c.Elements()

		require.Zero(t, c.CleanUp())
		require.Equal(t, firstLen, c.Len())
		require.Equal(t, first, c.Elements())
		runtime.KeepAlive(owners)
	})
}

// TestProperty_IterationDoesNotPrune verifies iteration leaves stale entries for CleanUp.
func TestProperty_IterationDoesNotPrune(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 25).Draw(t, "n")
		owners := makeOwners(n)
		c := New[observer]()
		for _, o := range owners {
			c.Append(o)
		}

		alive := releaseRandom(t, owners)
		collect()

		require.Equal(t, alive, nilIfEmpty(zoos(c)))
		require.Equal(t, n, c.Len(), "iteration must not shrink storage")

		require.Equal(t, n-len(alive), c.CleanUp())
		require.Equal(t, len(alive), c.Len())
		runtime.KeepAlive(owners)
	})
}

// TestProperty_AppendUniqueDedups verifies identity dedup for AppendUnique only.
func TestProperty_AppendUniqueDedups(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		owners := makeOwners(n)

		picks := rapid.SliceOfN(rapid.IntRange(0, n-1), 1, 40).Draw(t, "picks")

		var unique, plain Collection[observer]
		distinct := map[int]bool{}
		for _, p := range picks {
			unique.AppendUnique(owners[p])
			plain.Append(owners[p])
			distinct[p] = true
		}

		require.Equal(t, len(distinct), unique.Count())
		require.Equal(t, len(picks), plain.Count())
		runtime.KeepAlive(owners)
	})
}
