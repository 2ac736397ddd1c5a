// Package packedarray implements a sparse, fixed-shape, multi-dimensional
// array that stores only runs of adjacent non-default elements.
//
// Storage is a sorted, non-overlapping sequence of groups, each a
// (start, length) pair into a raveled (row-major) index space, together
// with a parallel slice of values. A new entry within thresholdDistance-1
// raveled positions of an existing group is coalesced into that group,
// with the intervening positions stored explicitly as default values,
// rather than starting a new group. This trades a small number of stored
// defaults against the per-group bookkeeping cost, which is worthwhile
// when non-default entries cluster into small contiguous islands -- the
// common case for DIS/DY interpolation grids.
package packedarray

import (
	"sort"

	"github.com/pkg/errors"
)

// thresholdDistance bounds the raveled-index gap between an existing
// group and a new entry that still coalesces them into one: a gap of
// thresholdDistance-1 or less coalesces, a gap of thresholdDistance or
// more starts a new group. This constant is load-bearing: it changes
// observable overhead() and explicitZeros() counts, so it must not be
// tuned without updating every test that depends on it.
const thresholdDistance = 2

// Number is the element-type constraint for PackedArray. PineAPPL grids
// only ever store f64 coefficients, but keeping this as a constraint
// rather than hard-coding float64 keeps the group-merging logic reusable
// if an integer-valued packed array is ever needed (e.g. for test
// fixtures).
type Number interface {
	~float64
}

// group describes one contiguous run of stored entries in raveled index
// space: positions [start, start+length) are all present in entries,
// even the ones that hold the default value.
type group struct {
	start  int
	length int
}

// PackedArray is a sparse D-dimensional array of T with a shape fixed at
// construction. See the package doc for the storage invariants.
type PackedArray[T Number] struct {
	shape   []int
	groups  []group
	entries []T
}

// New returns an empty PackedArray with the given shape. The shape is
// immutable for the lifetime of the array.
func New[T Number](shape []int) PackedArray[T] {
	s := make([]int, len(shape))
	copy(s, shape)
	return PackedArray[T]{shape: s}
}

// Shape returns the array's fixed shape.
func (a *PackedArray[T]) Shape() []int {
	return a.shape
}

// Clear removes all stored entries, keeping the shape.
func (a *PackedArray[T]) Clear() {
	a.groups = nil
	a.entries = nil
}

// IsEmpty reports whether the array has no stored entries at all (not
// even explicit defaults).
func (a *PackedArray[T]) IsEmpty() bool {
	return len(a.entries) == 0
}

// Ravel converts a multi-index into a row-major raveled index for shape.
func Ravel(multi, shape []int) int {
	idx := 0
	for i, s := range shape {
		idx = idx*s + multi[i]
	}
	return idx
}

// Unravel converts a raveled row-major index back into a multi-index for
// shape. It is the exact inverse of Ravel for any multi-index bounded by
// shape.
func Unravel(raveled int, shape []int) []int {
	multi := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		s := shape[i]
		multi[i] = raveled % s
		raveled /= s
	}
	return multi
}

// groupContaining returns the index of the group containing raveled, and
// true, or the index at which a new group would be inserted (the first
// group whose start is > raveled), and false.
func (a *PackedArray[T]) groupContaining(raveled int) (int, bool) {
	gi := sort.Search(len(a.groups), func(i int) bool { return a.groups[i].start > raveled })
	if gi > 0 {
		g := a.groups[gi-1]
		if raveled < g.start+g.length {
			return gi - 1, true
		}
	}
	return gi, false
}

// entriesOffset returns the offset into a.entries of the first element of
// group gi.
func (a *PackedArray[T]) entriesOffset(gi int) int {
	off := 0
	for i := 0; i < gi; i++ {
		off += a.groups[i].length
	}
	return off
}

// Index returns the value stored at multi, or an error if that position
// does not fall inside any stored group.
func (a *PackedArray[T]) Index(multi []int) (T, error) {
	raveled := Ravel(multi, a.shape)
	gi, ok := a.groupContaining(raveled)
	if !ok {
		var zero T
		return zero, errors.Errorf("packedarray: index %v not within any stored group", multi)
	}
	off := a.entriesOffset(gi) + (raveled - a.groups[gi].start)
	return a.entries[off], nil
}

// IndexMut returns a pointer to the storage slot for multi, creating it
// (and any intervening default-valued slots required by coalescing) if
// necessary.
func (a *PackedArray[T]) IndexMut(multi []int) *T {
	raveled := Ravel(multi, a.shape)
	if gi, ok := a.groupContaining(raveled); ok {
		off := a.entriesOffset(gi) + (raveled - a.groups[gi].start)
		return &a.entries[off]
	}

	// gi is the index of the first group whose start is > raveled (or
	// len(a.groups) if none). prev is the group immediately before it, if
	// any; next is the group at gi, if any.
	gi, _ := a.groupContaining(raveled)
	hasPrev := gi > 0
	hasNext := gi < len(a.groups)

	var prevGap, nextGap int
	if hasPrev {
		prevEnd := a.groups[gi-1].start + a.groups[gi-1].length
		prevGap = raveled - prevEnd // >= 0 since raveled is not inside prev
	}
	if hasNext {
		nextGap = a.groups[gi].start - raveled - 1 // >= 0 since raveled is not inside next
	}

	// The previous group is always tried first, regardless of how close
	// the next group is; only if it doesn't qualify do we consider
	// extending the next group or, failing that, inserting a fresh one.
	switch {
	case hasPrev && prevGap < thresholdDistance:
		return a.extendPrev(gi-1, raveled)
	case hasNext && nextGap < thresholdDistance:
		return a.extendNext(gi, raveled)
	default:
		return a.insertNewGroup(gi, raveled)
	}
}

// extendPrev extends the group at index gi forward to cover raveled,
// padding any gap with default values, and merges it with the following
// group if the extension brings them within thresholdDistance.
func (a *PackedArray[T]) extendPrev(gi int, raveled int) *T {
	off := a.entriesOffset(gi)
	g := &a.groups[gi]
	oldEnd := g.start + g.length
	gap := raveled - oldEnd
	// Insert `gap` default-valued entries plus one real slot, right after
	// this group's existing entries.
	insertAt := off + g.length
	pad := make([]T, gap+1)
	a.entries = append(a.entries[:insertAt], append(pad, a.entries[insertAt:]...)...)
	g.length += gap + 1
	targetOff := off + g.length - 1

	// Coalesce with the next group if it's now within threshold.
	if gi+1 < len(a.groups) {
		next := a.groups[gi+1]
		newEnd := g.start + g.length
		if next.start-newEnd < thresholdDistance {
			fillGap := next.start - newEnd
			fillAt := off + g.length
			fill := make([]T, fillGap)
			a.entries = append(a.entries[:fillAt], append(fill, a.entries[fillAt:]...)...)
			g.length += fillGap + next.length
			a.groups = append(a.groups[:gi+1], a.groups[gi+2:]...)
		}
	}
	return &a.entries[targetOff]
}

// extendNext extends the group at index gi backward to cover raveled,
// padding any gap with default values.
func (a *PackedArray[T]) extendNext(gi int, raveled int) *T {
	off := a.entriesOffset(gi)
	g := &a.groups[gi]
	gap := g.start - raveled - 1
	pad := make([]T, gap+1)
	a.entries = append(a.entries[:off], append(pad, a.entries[off:]...)...)
	g.length += gap + 1
	g.start = raveled
	return &a.entries[off]
}

// insertNewGroup inserts a fresh length-1 group at position gi.
func (a *PackedArray[T]) insertNewGroup(gi int, raveled int) *T {
	off := a.entriesOffset(gi)
	a.entries = append(a.entries[:off], append([]T{{}}, a.entries[off:]...)...)
	newGroups := make([]group, 0, len(a.groups)+1)
	newGroups = append(newGroups, a.groups[:gi]...)
	newGroups = append(newGroups, group{start: raveled, length: 1})
	newGroups = append(newGroups, a.groups[gi:]...)
	a.groups = newGroups
	return &a.entries[off]
}

// Entry is one non-default value yielded by IndexedIter.
type Entry[T Number] struct {
	Index []int
	Value T
}

// IndexedIter returns every stored entry whose value is not the zero
// value of T, in raveled order, skipping explicit defaults stored inside
// coalesced groups.
func (a *PackedArray[T]) IndexedIter() []Entry[T] {
	var zero T
	out := make([]Entry[T], 0)
	off := 0
	for _, g := range a.groups {
		for i := 0; i < g.length; i++ {
			v := a.entries[off+i]
			if v != zero {
				out = append(out, Entry[T]{Index: Unravel(g.start+i, a.shape), Value: v})
			}
		}
		off += g.length
	}
	return out
}

// ScaleBy multiplies every stored entry (including explicit defaults) by
// factor. It does not rescan for resulting zeros.
func (a *PackedArray[T]) ScaleBy(factor T) {
	for i := range a.entries {
		a.entries[i] *= factor
	}
}

// NonZeros returns the number of stored entries that differ from the
// default value of T.
func (a *PackedArray[T]) NonZeros() int {
	var zero T
	n := 0
	for _, v := range a.entries {
		if v != zero {
			n++
		}
	}
	return n
}

// ExplicitZeros returns the number of stored entries that equal the
// default value of T (padding introduced by coalescence).
func (a *PackedArray[T]) ExplicitZeros() int {
	return len(a.entries) - a.NonZeros()
}

// Overhead returns the bookkeeping cost of the group index, measured in
// units of sizeof(f64): each (start, length) pair costs two such units.
func (a *PackedArray[T]) Overhead() int {
	return 2 * len(a.groups)
}
