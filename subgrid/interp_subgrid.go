package subgrid

import (
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/packedarray"
)

// staticTracker records whether every fill seen so far on an axis used
// the same physical coordinate. optimize_nodes uses this to collapse
// axes that never varied down to a single node.
type staticTracker struct {
	hasValue bool
	isStatic bool
	value    float64
}

func (s *staticTracker) observe(x float64) {
	if !s.hasValue {
		s.hasValue = true
		s.isStatic = true
		s.value = x
		return
	}
	if s.isStatic && x != s.value {
		s.isStatic = false
	}
}

// Interp is the fill-capable subgrid variant: a PackedArray whose axes
// correspond 1-1 with the grid's Kinematics list, the Interp descriptor
// for each axis, and a static-node tracker per axis.
type Interp struct {
	Interps []interp.Interp
	array   packedarray.PackedArray[float64]
	static  []staticTracker
}

var _ Subgrid = (*Interp)(nil)

// NewInterp constructs an empty fill-capable subgrid over the given
// per-axis interpolation descriptors.
func NewInterp(interps []interp.Interp) *Interp {
	shape := make([]int, len(interps))
	for i, ip := range interps {
		shape[i] = ip.Nodes
	}
	cp := make([]interp.Interp, len(interps))
	copy(cp, interps)
	return &Interp{
		Interps: cp,
		array:   packedarray.New[float64](shape),
		static:  make([]staticTracker, len(interps)),
	}
}

// NodeValues returns each axis's precomputed node coordinates.
func (s *Interp) NodeValues() [][]float64 {
	out := make([][]float64, len(s.Interps))
	for i, ip := range s.Interps {
		out[i] = ip.NodeValues()
	}
	return out
}

// Shape returns the backing array's shape.
func (s *Interp) Shape() []int {
	return s.array.Shape()
}

// Fill performs the Lagrange insertion described in spec.md §4.2,
// updating the static-node tracker for every axis regardless of whether
// the contribution was dropped for being out of range.
func (s *Interp) Fill(interps []interp.Interp, ntuple []float64, weight float64) bool {
	for i, x := range ntuple {
		s.static[i].observe(x)
	}
	return interp.Insert(interps, ntuple, weight, func(index []int, contribution float64) {
		*s.array.IndexMut(index) += contribution
	})
}

// IsEmpty reports whether the backing array has no non-default entries.
func (s *Interp) IsEmpty() bool {
	return s.array.NonZeros() == 0
}

// ScaleBy multiplies every stored entry by f.
func (s *Interp) ScaleBy(f float64) {
	s.array.ScaleBy(f)
}

// Symmetrize folds axis b onto axis a wherever index[b] < index[a].
func (s *Interp) Symmetrize(a, b int) {
	symmetrizeArray(&s.array, a, b)
}

// IndexedIter returns every non-default entry with the product of
// per-axis reweight factors multiplied back in (Fill stores each
// contribution divided by that product, per spec.md §4.3).
func (s *Interp) IndexedIter() []Entry {
	values := s.NodeValues()
	raw := s.array.IndexedIter()
	out := make([]Entry, len(raw))
	for i, e := range raw {
		rw := 1.0
		for axis, idx := range e.Index {
			rw *= s.Interps[axis].Reweight(values[axis][idx])
		}
		v := e.Value * rw
		out[i] = Entry{Index: e.Index, Value: v}
	}
	return out
}

// IndexedIterRaw returns every non-default entry exactly as stored in
// the backing array, without multiplying in the per-axis reweight factors
// IndexedIter applies. grid's persistence layer uses this to serialize
// and restore the exact on-disk representation without a reweight/
// un-reweight round trip.
func (s *Interp) IndexedIterRaw() []Entry {
	raw := s.array.IndexedIter()
	out := make([]Entry, len(raw))
	for i, e := range raw {
		out[i] = Entry{Index: e.Index, Value: e.Value}
	}
	return out
}

// SetRaw repopulates the backing array directly from entries in the same
// raw, unreweighted representation IndexedIterRaw returns. Used when
// deserializing a Grid.
func (s *Interp) SetRaw(entries []Entry) {
	for _, e := range entries {
		*s.array.IndexMut(e.Index) = e.Value
	}
}

// Clone returns a deep copy.
func (s *Interp) Clone() Subgrid {
	cp := &Interp{
		Interps: append([]interp.Interp(nil), s.Interps...),
		array:   s.array, // PackedArray's slices are copied below
		static:  append([]staticTracker(nil), s.static...),
	}
	cp.array = packedarray.New[float64](s.array.Shape())
	for _, e := range s.array.IndexedIter() {
		*cp.array.IndexMut(e.Index) = e.Value
	}
	return cp
}

// OptimizeNodes shrinks each axis to the minimal contiguous index range
// used by any stored entry, and collapses axes whose static-node tracker
// still records a single concrete value down to length 1, per spec.md
// §4.3's "Interp optimize_nodes".
func (s *Interp) OptimizeNodes() {
	shape := s.array.Shape()
	n := len(shape)
	lo := make([]int, n)
	hi := make([]int, n) // exclusive
	for i := range lo {
		lo[i] = shape[i]
		hi[i] = -1
	}
	entries := s.array.IndexedIter()
	for _, e := range entries {
		for axis, idx := range e.Index {
			if idx < lo[axis] {
				lo[axis] = idx
			}
			if idx+1 > hi[axis] {
				hi[axis] = idx + 1
			}
		}
	}
	if len(entries) == 0 {
		// Nothing stored: collapse every axis to a one-node window at 0.
		for i := range lo {
			lo[i], hi[i] = 0, 1
		}
	}

	newInterps := make([]interp.Interp, n)
	newShape := make([]int, n)
	static := make([]bool, n)
	for axis := 0; axis < n; axis++ {
		if s.static[axis].hasValue && s.static[axis].isStatic {
			// Fold the whole axis onto one node pinned at the static value.
			v, ip := s.static[axis].value, s.Interps[axis]
			static[axis], newShape[axis] = true, 1
			newInterps[axis] = interp.Interp{Min: v, Max: v, Nodes: 1, NodeMapping: interp.MappingIdentity, ReweightMeth: ip.ReweightMeth, InterpMeth: ip.InterpMeth}
			continue
		}
		newInterps[axis] = s.Interps[axis].SubInterp(lo[axis], hi[axis])
		newShape[axis] = hi[axis] - lo[axis]
	}

	values := s.NodeValues()
	newArray := packedarray.New[float64](newShape)
	for _, e := range entries {
		shifted := make([]int, n)
		inRange := true
		v := e.Value
		for axis, idx := range e.Index {
			if static[axis] {
				v *= s.Interps[axis].Reweight(values[axis][idx]) / newInterps[axis].Reweight(newInterps[axis].Min)
				continue
			}
			shifted[axis] = idx - lo[axis]
			if shifted[axis] < 0 || shifted[axis] >= newShape[axis] {
				inRange = false
			}
		}
		if inRange {
			*newArray.IndexMut(shifted) += v
		}
	}

	s.Interps = newInterps
	s.array = newArray
}
