package subgrid

import (
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/packedarray"
)

// Import holds a PackedArray plus an explicit per-axis node_values list.
// It is the merge target produced by OPTIMIZE_SUBGRID_TYPE and by the
// general (slower) merge path; it cannot accept fills.
type Import struct {
	nodeValues [][]float64
	array      packedarray.PackedArray[float64]
}

var _ Subgrid = (*Import)(nil)

// NewImport constructs an Import subgrid over the given explicit node
// values, with an empty backing array.
func NewImport(nodeValues [][]float64) *Import {
	shape := make([]int, len(nodeValues))
	for i, nv := range nodeValues {
		shape[i] = len(nv)
	}
	cp := make([][]float64, len(nodeValues))
	for i, nv := range nodeValues {
		cp[i] = append([]float64(nil), nv...)
	}
	return &Import{nodeValues: cp, array: packedarray.New[float64](shape)}
}

// FromInterp converts a filled *Interp subgrid into an Import subgrid
// over the same full per-axis node values (OPTIMIZE_SUBGRID_TYPE); the
// axes are not shrunk to the range its non-zero entries cover.
func FromInterp(s *Interp) *Import {
	values := s.NodeValues()
	imp := NewImport(values)
	for _, e := range s.IndexedIter() {
		*imp.array.IndexMut(e.Index) = e.Value
	}
	return imp
}

// NodeValues returns the explicit per-axis node coordinates.
func (s *Import) NodeValues() [][]float64 {
	return s.nodeValues
}

// Shape returns the backing array's shape.
func (s *Import) Shape() []int {
	return s.array.Shape()
}

// IndexMut exposes the backing array's mutable slot for index, used by
// grid's persistence layer to repopulate a deserialized Import subgrid
// without going through Fill (which Import never accepts).
func (s *Import) IndexMut(index []int) *float64 {
	return s.array.IndexMut(index)
}

// Fill panics: Import subgrids only accept merges.
func (s *Import) Fill([]interp.Interp, []float64, float64) bool {
	panic("subgrid: Fill called on Import")
}

// IsEmpty reports whether the backing array has no non-default entries.
func (s *Import) IsEmpty() bool {
	return s.array.NonZeros() == 0
}

// ScaleBy multiplies every stored entry by f.
func (s *Import) ScaleBy(f float64) {
	s.array.ScaleBy(f)
}

// Symmetrize folds axis b onto axis a wherever index[b] < index[a].
func (s *Import) Symmetrize(a, b int) {
	symmetrizeArray(&s.array, a, b)
}

// IndexedIter returns every stored non-default value as-is: Import
// subgrids store already-normalized values, with no reweighting to
// divide back out.
func (s *Import) IndexedIter() []Entry {
	raw := s.array.IndexedIter()
	out := make([]Entry, len(raw))
	for i, e := range raw {
		out[i] = Entry{Index: e.Index, Value: e.Value}
	}
	return out
}

// Clone returns a deep copy.
func (s *Import) Clone() Subgrid {
	cp := NewImport(s.nodeValues)
	for _, e := range s.array.IndexedIter() {
		*cp.array.IndexMut(e.Index) = e.Value
	}
	return cp
}
