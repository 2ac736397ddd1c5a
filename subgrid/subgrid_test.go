package subgrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NNPDF/pineappl-go/interp"
)

func newAxis(t *testing.T, n, order int) interp.Interp {
	t.Helper()
	ip, err := interp.New(0.0, 1.0, n, order, interp.MappingIdentity, interp.ReweightNone)
	require.NoError(t, err)
	return ip
}

func TestEmptySubgridIsNoop(t *testing.T) {
	var s Subgrid = Empty{}
	assert.True(t, s.IsEmpty())
	assert.Nil(t, s.NodeValues())
	s.ScaleBy(2.0) // must not panic
	s.Symmetrize(0, 1)
	assert.Empty(t, s.IndexedIter())
}

func TestInterpFillAndIsEmpty(t *testing.T) {
	axes := []interp.Interp{newAxis(t, 20, 3), newAxis(t, 20, 3)}
	s := NewInterp(axes)
	assert.True(t, s.IsEmpty())
	ok := s.Fill(axes, []float64{0.5, 0.5}, 1.0)
	assert.True(t, ok)
	assert.False(t, s.IsEmpty())
}

func TestInterpMergeAddsEntries(t *testing.T) {
	axes := []interp.Interp{newAxis(t, 10, 3)}
	a := NewInterp(axes)
	b := NewInterp(axes)
	a.Fill(axes, []float64{0.5}, 1.0)
	b.Fill(axes, []float64{0.5}, 2.0)

	beforeSum := sumEntries(a.IndexedIter())
	var dst Subgrid = a
	err := Merge(&dst, b, nil)
	require.NoError(t, err)
	afterSum := sumEntries(dst.IndexedIter())
	assert.InDelta(t, beforeSum*3, afterSum, 1e-9)
}

func TestMergeIntoEmptyClones(t *testing.T) {
	axes := []interp.Interp{newAxis(t, 10, 3)}
	b := NewInterp(axes)
	b.Fill(axes, []float64{0.5}, 1.0)

	var dst Subgrid = Empty{}
	err := Merge(&dst, b, nil)
	require.NoError(t, err)
	assert.False(t, dst.IsEmpty())
	// Mutating b afterwards must not affect dst (Clone must be deep).
	b.Fill(axes, []float64{0.5}, 1.0)
	assert.NotEqual(t, sumEntries(b.IndexedIter()), sumEntries(dst.IndexedIter()))
}

func TestMergeIntoEmptyIsNoopWhenOtherEmpty(t *testing.T) {
	var dst Subgrid = Empty{}
	err := Merge(&dst, Empty{}, nil)
	require.NoError(t, err)
	assert.True(t, dst.IsEmpty())
}

func TestSymmetrizeIdentityOnSymmetricGrid(t *testing.T) {
	axes := []interp.Interp{newAxis(t, 10, 3), newAxis(t, 10, 3)}
	s := NewInterp(axes)
	s.Fill(axes, []float64{0.3, 0.3}, 1.0) // diagonal-ish, should be stable under symmetrize
	before := sumEntries(s.IndexedIter())
	s.Symmetrize(0, 1)
	after := sumEntries(s.IndexedIter())
	assert.InDelta(t, before, after, 1e-9)
}

func TestOptimizeNodesCollapsesStaticAxis(t *testing.T) {
	axes := []interp.Interp{newAxis(t, 20, 3), newAxis(t, 20, 3)}
	s := NewInterp(axes)
	// Axis 1 always filled at the same coordinate -> should collapse.
	s.Fill(axes, []float64{0.1, 0.5}, 1.0)
	s.Fill(axes, []float64{0.9, 0.5}, 1.0)

	beforeSum := sumEntries(s.IndexedIter())
	s.OptimizeNodes()
	assert.Equal(t, 1, s.Shape()[1])
	afterSum := sumEntries(s.IndexedIter())
	assert.InDelta(t, beforeSum, afterSum, 1e-6)
}

func TestImportMergeUnionsNodeValues(t *testing.T) {
	a := NewImport([][]float64{{0.1, 0.3, 0.5}})
	*a.array.IndexMut([]int{1}) = 2.0
	b := NewImport([][]float64{{0.2, 0.3, 0.7}})
	*b.array.IndexMut([]int{1}) = 5.0 // at 0.3, should add onto a's 0.3 entry

	var dst Subgrid = a
	err := Merge(&dst, b, nil)
	require.NoError(t, err)

	imp := dst.(*Import)
	assert.Len(t, imp.nodeValues[0], 5) // 0.1,0.2,0.3,0.5,0.7
	total := sumEntries(imp.IndexedIter())
	assert.InDelta(t, 7.0, total, 1e-9)
}

func sumEntries(entries []Entry) float64 {
	total := 0.0
	for _, e := range entries {
		total += e.Value
	}
	return total
}
