package packedarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRavelUnravelRoundTrip(t *testing.T) {
	shape := []int{4, 3, 2}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 2; k++ {
				multi := []int{i, j, k}
				raveled := Ravel(multi, shape)
				assert.Equal(t, multi, Unravel(raveled, shape))
			}
		}
	}
}

func TestIndexMutAndIndex(t *testing.T) {
	a := New[float64]([]int{4, 2})
	*a.IndexMut([]int{0, 0}) = 1.0
	*a.IndexMut([]int{3, 0}) = 2.0
	*a.IndexMut([]int{3, 1}) = 3.0

	v, err := a.Index([]int{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = a.Index([]int{3, 0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = a.Index([]int{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

// TestIndexMutOutOfOrderExtendsNextCorrectly pins extendNext's off-by-one:
// inserting descending raveled indices with gap=1 (5, then 3 in a
// length-10 array) must attribute each value to its own index, not to the
// following position.
func TestIndexMutOutOfOrderExtendsNextCorrectly(t *testing.T) {
	a := New[float64]([]int{10})
	*a.IndexMut([]int{5}) = 1.0
	*a.IndexMut([]int{3}) = 2.0

	v, err := a.Index([]int{3})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = a.Index([]int{5})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

// TestCoalescence reproduces S6 from the spec's testable properties: three
// entries at raveled positions 0, 6, 7 in a 4x2 array coalesce into two
// groups (0 is isolated; 6 and 7 merge because they're adjacent), giving
// an overhead of 4 f64 units (two (start, length) pairs).
func TestCoalescence(t *testing.T) {
	a := New[float64]([]int{4, 2})
	*a.IndexMut([]int{0, 0}) = 1.0
	*a.IndexMut([]int{3, 0}) = 2.0
	*a.IndexMut([]int{3, 1}) = 3.0

	assert.Equal(t, 4, a.Overhead())

	entries := a.IndexedIter()
	require.Len(t, entries, 3)
	assert.Equal(t, []int{0, 0}, entries[0].Index)
	assert.Equal(t, 1.0, entries[0].Value)
	assert.Equal(t, []int{3, 0}, entries[1].Index)
	assert.Equal(t, 2.0, entries[1].Value)
	assert.Equal(t, []int{3, 1}, entries[2].Index)
	assert.Equal(t, 3.0, entries[2].Value)
}

// TestCoalescenceBoundary pins the exact threshold_distance=2 boundary: a
// gap of 1 (raveled 0, then 2) still coalesces into one group, but a gap
// of 2 (raveled 0, then 3) leaves two separate groups.
func TestCoalescenceBoundary(t *testing.T) {
	gapOne := New[float64]([]int{4})
	*gapOne.IndexMut([]int{0}) = 1.0
	*gapOne.IndexMut([]int{2}) = 2.0
	assert.Equal(t, 2, gapOne.Overhead())

	gapTwo := New[float64]([]int{4})
	*gapTwo.IndexMut([]int{0}) = 1.0
	*gapTwo.IndexMut([]int{3}) = 2.0
	assert.Equal(t, 4, gapTwo.Overhead())
	assert.Equal(t, 0, gapTwo.ExplicitZeros())
}

func TestIndexedIterMatchesNonZeros(t *testing.T) {
	a := New[float64]([]int{10, 10})
	*a.IndexMut([]int{1, 1}) = 5.0
	*a.IndexMut([]int{1, 9}) = 0.0 // explicit default, must not appear
	*a.IndexMut([]int{5, 5}) = -2.5

	entries := a.IndexedIter()
	assert.Len(t, entries, a.NonZeros())
	for _, e := range entries {
		v, err := a.Index(e.Index)
		require.NoError(t, err)
		assert.Equal(t, e.Value, v)
	}
}

func TestIndexOutsideGroupsErrors(t *testing.T) {
	a := New[float64]([]int{10, 10})
	*a.IndexMut([]int{5, 5}) = 1.0
	_, err := a.Index([]int{9, 9})
	assert.Error(t, err)
}

func TestScaleBy(t *testing.T) {
	a := New[float64]([]int{3, 3})
	*a.IndexMut([]int{0, 0}) = 2.0
	*a.IndexMut([]int{1, 1}) = 4.0
	a.ScaleBy(2.0)

	v, _ := a.Index([]int{0, 0})
	assert.Equal(t, 4.0, v)
	v, _ = a.Index([]int{1, 1})
	assert.Equal(t, 8.0, v)
}

func TestClearAndIsEmpty(t *testing.T) {
	a := New[float64]([]int{2, 2})
	assert.True(t, a.IsEmpty())
	*a.IndexMut([]int{0, 0}) = 1.0
	assert.False(t, a.IsEmpty())
	a.Clear()
	assert.True(t, a.IsEmpty())
}
