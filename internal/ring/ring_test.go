package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNew_RejectsNonPositiveCapacity treats a zero or negative size as a configuration error.
func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -1} {
		r, err := New[int](capacity)
		require.ErrorIs(t, err, ErrInvalidCapacity)
		require.Nil(t, r)
	}
}

// TestRing_KeepsLastItemsOldestFirst adds five items to a ring of three.
func TestRing_KeepsLastItemsOldestFirst(t *testing.T) {
	t.Parallel()

	r, err := New[int](3)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		r.Add(i)
	}

	require.Equal(t, []int{3, 4, 5}, r.ToSlice())
	require.Equal(t, 3, r.Len())
	require.Equal(t, 3, r.Cap())
	require.Equal(t, uint64(2), r.Dropped())

	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, 5, last)
}

// TestRing_LastN returns the newest items oldest first and clamps n.
func TestRing_LastN(t *testing.T) {
	t.Parallel()

	r, err := New[string](4)
	require.NoError(t, err)

	require.Empty(t, r.LastN(2))

	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		r.Add(s)
	}

	require.Equal(t, []string{"e", "f"}, r.LastN(2))
	require.Equal(t, []string{"c", "d", "e", "f"}, r.LastN(10))
	require.Empty(t, r.LastN(0))
	require.Empty(t, r.LastN(-3))
}

// TestRing_FindDrainClear covers lookup, draining and clearing.
func TestRing_FindDrainClear(t *testing.T) {
	t.Parallel()

	r, err := New[int](3)
	require.NoError(t, err)

	_, ok := r.Last()
	require.False(t, ok)

	for i := 1; i <= 4; i++ {
		r.Add(i * 10)
	}

	got, ok := r.Find(func(v int) bool { return v < 35 })
	require.True(t, ok)
	require.Equal(t, 30, got)

	_, ok = r.Find(func(v int) bool { return v == 10 })
	require.False(t, ok)

	require.Equal(t, []int{20, 30, 40}, r.Drain())
	require.Zero(t, r.Len())

	r.Add(1)
	r.Clear()
	require.Empty(t, r.ToSlice())
}

// TestRing_ConcurrentReaders runs readers against a single writer.
func TestRing_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	r, err := New[int](16)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for range 4 {
		wg.Go(func() {
			for range 200 {
				items := r.ToSlice()
				for i := 1; i < len(items); i++ {
					if items[i] != items[i-1]+1 {
						t.Errorf("torn read: %v", items)

						return
					}
				}
			}
		})
	}

	for i := range 1000 {
		r.Add(i)
	}

	wg.Wait()
}
