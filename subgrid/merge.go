package subgrid

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/packedarray"
)

// ulpsEqual reports whether a and b are within maxULPs representable
// steps of each other. This is the tolerance primitive behind every
// "approximately equal" rule in spec.md (node-value merge at 4096 ULPs,
// channel common-factor at 4 ULPs, and so on).
func ulpsEqual(a, b float64, maxULPs uint64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	ai := int64(math.Float64bits(a))
	if ai < 0 {
		ai = math.MinInt64 - ai
	}
	bi := int64(math.Float64bits(b))
	if bi < 0 {
		bi = math.MinInt64 - bi
	}
	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}
	return uint64(diff) <= maxULPs
}

// NodeValueULPs is the tolerance used when merging node_values between
// two subgrids (spec.md §4.3 "Import merge").
const NodeValueULPs = 4096

// transposed returns a copy of index with positions a and b swapped.
func transposed(index []int, a, b int) []int {
	out := append([]int(nil), index...)
	out[a], out[b] = out[b], out[a]
	return out
}

// symmetrizeArray folds every entry with index[b] < index[a] onto the
// mirrored position (a, b swapped), adding it in, and leaves entries
// already on or above the diagonal unchanged. This is the identity when
// the array is already symmetric in (a, b).
func symmetrizeArray(arr *packedarray.PackedArray[float64], a, b int) {
	entries := arr.IndexedIter()
	result := packedarray.New[float64](arr.Shape())
	for _, e := range entries {
		idx := e.Index
		if idx[b] < idx[a] {
			idx = transposed(idx, a, b)
		}
		*result.IndexMut(idx) += e.Value
	}
	*arr = result
}

// Merge implements the SubgridEnum dispatch described in spec.md §4.3:
// if other is empty, nothing happens; if dst is Empty and no transpose
// was requested, dst is replaced outright by a clone of other; otherwise
// the same-type merge_impl is used, after optionally transposing two
// named axes of other.
func Merge(dst *Subgrid, other Subgrid, transposeAxes *[2]int) error {
	if other.IsEmpty() {
		return nil
	}
	if _, isEmpty := (*dst).(Empty); isEmpty && transposeAxes == nil {
		*dst = other.Clone()
		return nil
	}

	switch o := other.(type) {
	case *Interp:
		d, ok := (*dst).(*Interp)
		if !ok {
			if _, isEmpty := (*dst).(Empty); isEmpty {
				d = NewInterp(o.Interps)
				*dst = d
			} else {
				return errors.Errorf("subgrid: cannot merge Interp into %T", *dst)
			}
		}
		return mergeInterp(d, o, transposeAxes)
	case *Import:
		d, ok := (*dst).(*Import)
		if !ok {
			if _, isEmpty := (*dst).(Empty); isEmpty {
				d = NewImport(o.nodeValues)
				*dst = d
			} else {
				return errors.Errorf("subgrid: cannot merge Import into %T", *dst)
			}
		}
		return mergeImport(d, o, transposeAxes)
	default:
		return errors.Errorf("subgrid: unsupported subgrid type %T", other)
	}
}

// mergeInterp implements the Interp/Interp merge path: the two subgrids
// must have identical Interp descriptors, and entries are added in
// without reapplying reweighting (both sides use the same unnormalized
// storage).
func mergeInterp(dst, other *Interp, transposeAxes *[2]int) error {
	if len(dst.Interps) != len(other.Interps) {
		return errors.Errorf("subgrid: interp merge axis-count mismatch: %d vs %d", len(dst.Interps), len(other.Interps))
	}
	for i := range dst.Interps {
		if dst.Interps[i] != other.Interps[i] {
			return errors.Errorf("subgrid: interp merge requires identical Interp descriptors on axis %d", i)
		}
	}
	for _, e := range other.array.IndexedIter() {
		idx := e.Index
		if transposeAxes != nil {
			idx = transposed(idx, transposeAxes[0], transposeAxes[1])
		}
		*dst.array.IndexMut(idx) += e.Value
	}
	return nil
}

// mergeImport implements the general, slower Import/Import merge path:
// take the union of each axis's node_values (ULP-tolerant), reindex dst
// into the union grid, then add each of other's entries at the
// union-grid position matching its own node_values, with the optional
// axis swap applied first.
func mergeImport(dst, other *Import, transposeAxes *[2]int) error {
	otherNodeValues := other.nodeValues
	if transposeAxes != nil {
		otherNodeValues = append([][]float64(nil), other.nodeValues...)
		a, b := transposeAxes[0], transposeAxes[1]
		otherNodeValues[a], otherNodeValues[b] = otherNodeValues[b], otherNodeValues[a]
	}
	if len(dst.nodeValues) != len(otherNodeValues) {
		return errors.Errorf("subgrid: import merge axis-count mismatch: %d vs %d", len(dst.nodeValues), len(otherNodeValues))
	}

	n := len(dst.nodeValues)
	unionValues := make([][]float64, n)
	dstMap := make([][]int, n)   // dst node index -> union index
	otherMap := make([][]int, n) // other node index -> union index
	for axis := 0; axis < n; axis++ {
		uv, dm, om := unionAxis(dst.nodeValues[axis], otherNodeValues[axis])
		unionValues[axis] = uv
		dstMap[axis] = dm
		otherMap[axis] = om
	}

	unionShape := make([]int, n)
	for axis, uv := range unionValues {
		unionShape[axis] = len(uv)
	}
	union := packedarray.New[float64](unionShape)
	for _, e := range dst.array.IndexedIter() {
		idx := mapIndex(e.Index, dstMap)
		*union.IndexMut(idx) += e.Value
	}
	for _, e := range other.array.IndexedIter() {
		idx := e.Index
		if transposeAxes != nil {
			idx = transposed(idx, transposeAxes[0], transposeAxes[1])
		}
		idx = mapIndex(idx, otherMap)
		*union.IndexMut(idx) += e.Value
	}

	dst.nodeValues = unionValues
	dst.array = union
	return nil
}

func mapIndex(index []int, axisMaps [][]int) []int {
	out := make([]int, len(index))
	for axis, idx := range index {
		out[axis] = axisMaps[axis][idx]
	}
	return out
}

// unionAxis merges two strictly-increasing, ULP-tolerant-equal node
// value sequences into their sorted union, returning the union plus the
// mapping from each input's own index to the union's index.
func unionAxis(a, b []float64) (union []float64, aMap, bMap []int) {
	aMap = make([]int, len(a))
	bMap = make([]int, len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && ulpsEqual(a[i], b[j], NodeValueULPs):
			aMap[i] = len(union)
			bMap[j] = len(union)
			union = append(union, a[i])
			i++
			j++
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			aMap[i] = len(union)
			union = append(union, a[i])
			i++
		default:
			bMap[j] = len(union)
			union = append(union, b[j])
			j++
		}
	}
	return union, aMap, bMap
}

// sortIndices returns the permutation that would sort xs.
func sortIndices(xs []float64) []int {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return xs[idx[i]] < xs[idx[j]] })
	return idx
}
