package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/grid"
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/internal/luminosity"
)

func TestAlphasTableLooksUpExactScales(t *testing.T) {
	table, err := NewAlphasTable(map[float64]float64{10: 0.2, 1000: 0.1})
	require.NoError(t, err)

	lo, err := table.Alphas(10)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, lo, 1e-12)

	hi, err := table.Alphas(1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, hi, 1e-12)
}

func TestAlphasTableRejectsScaleNotInTable(t *testing.T) {
	table, err := NewAlphasTable(map[float64]float64{10: 0.2, 100: 0.15})
	require.NoError(t, err)
	_, err = table.Alphas(1000)
	assert.Error(t, err)
}

func TestAlphasTableRejectsNonPositiveScale(t *testing.T) {
	_, err := NewAlphasTable(map[float64]float64{0: 0.2})
	assert.Error(t, err)
}

// TestNewAlphasTableFromGridCoversRenScalesScaledByXiR builds a table
// straight from a grid's EvolveInfo, grounded on
// original_source/pineappl_cli/src/evolve.rs's
// AlphasTable::from_grid(grid, xir, &|q2| pdf.alphas_q2(q2)): the table
// must cover exactly the grid's required renormalization scale(s), each
// scaled by xiR^2, with the callback invoked once per resulting scale.
func TestNewAlphasTableFromGridCoversRenScalesScaledByXiR(t *testing.T) {
	g := newDISTestGrid(t)
	const xiR = 2.0

	var queried []float64
	table, err := NewAlphasTableFromGrid(g, nil, xiR, func(scale float64) float64 {
		queried = append(queried, scale)
		return 0.118
	})
	require.NoError(t, err)

	require.Len(t, queried, 1)
	assert.InDelta(t, xiR*xiR*100, queried[0], 1e-9)

	v, err := table.Alphas(xiR * xiR * 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.118, v, 1e-12)
}

func TestOperatorAtSet(t *testing.T) {
	op := NewOperator(2, 3, 1, 1)
	assert.Equal(t, [4]int{2, 3, 1, 1}, op.Shape())
	op.Set(1, 2, 0, 0, 4.5)
	assert.InDelta(t, 4.5, op.At(1, 2, 0, 0), 1e-12)
	assert.InDelta(t, 0.0, op.At(0, 0, 0, 0), 1e-12)
}

func TestSliceSliceExhausts(t *testing.T) {
	info := OperatorSliceInfo{Fac0: 10, Fac1: 100, X0: []float64{0.3}, X1: []float64{0.5},
		Pids0: []channel.PID{1}, Pids1: []channel.PID{2}, ConvType: channel.ConvUnpolarizedPDF, PidBasis: channel.PidBasisPDG}
	op := NewOperator(1, 1, 1, 1)
	it := NewSliceSlice([]SliceResult{{Info: info, Operator: op}})

	_, ok, err := it.Next()
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateShapeRejectsMismatch(t *testing.T) {
	info := OperatorSliceInfo{X0: []float64{0.1, 0.2}, X1: []float64{0.5}, Pids0: []channel.PID{1}, Pids1: []channel.PID{2}}
	op := NewOperator(1, 1, 1, 1) // shape says one x0 node, info says two
	err := validateShape(SliceResult{Info: info, Operator: op})
	assert.Error(t, err)
}

// singleNodeAxis builds a degenerate one-node interpolation axis pinned at
// value, mirroring this package's own singlePointInterp helper (axes like
// this exist in production grids whenever a convolution never varies a
// coordinate, e.g. a fixed-target beam energy).
func singleNodeAxis(t *testing.T, value float64) interp.Interp {
	t.Helper()
	ip, err := interp.New(value-1, value, 1, 0, interp.MappingIdentity, interp.ReweightNone)
	require.NoError(t, err)
	return ip
}

// newDISTestGrid builds a minimal single-convolution grid with one bin, one
// order, one channel, and single-node x/scale axes pinned at x=0.5,
// scale=100 -- enough to exercise a full evolution contraction without
// needing real Lagrange spreading across neighboring nodes.
func newDISTestGrid(t *testing.T) *grid.Grid {
	t.Helper()
	bwfl, err := bins.FromFillLimits([]float64{0, 1})
	require.NoError(t, err)
	orders := []channel.Order{{Alphas: 0, Alpha: 2}}
	channels := []channel.Channel{channel.New([]channel.Term{{PIDs: []channel.PID{2}, Coefficient: 1.0}})}
	convs := []channel.Conv{{Kind: channel.ConvUnpolarizedPDF, PIDRef: 2212}}
	interps := []interp.Interp{singleNodeAxis(t, 0.5), singleNodeAxis(t, 100)}
	kinematics := []channel.Kinematics{channel.X(0), channel.Scale(0)}
	scales := channel.Scales{Ren: channel.ScaleSingle{Index: 0}, Fac: channel.ScaleSingle{Index: 0}, Frag: channel.NoScale{}}

	g, err := grid.New(bwfl, orders, channels, channel.PidBasisPDG, convs, interps, kinematics, scales)
	require.NoError(t, err)
	require.True(t, g.Fill(0, 0.5, 0, []float64{0.5, 100}, 1.0))
	return g
}

func testAlphas(t *testing.T) AlphasTable {
	t.Helper()
	table, err := NewAlphasTable(map[float64]float64{100: 0.118})
	require.NoError(t, err)
	return table
}

func testOperatorSlice(fac0, fac1 float64) SliceResult {
	op := NewOperator(1, 1, 1, 1)
	op.Set(0, 0, 0, 0, 2.0)
	return SliceResult{
		Info: OperatorSliceInfo{
			Fac0: fac0, Fac1: fac1,
			X0: []float64{0.3}, X1: []float64{0.5},
			Pids0: []channel.PID{1}, Pids1: []channel.PID{2},
			ConvType: channel.ConvUnpolarizedPDF, PidBasis: channel.PidBasisPDG,
		},
		Operator: op,
	}
}

func TestEvolveContractsAndAssemblesFKTable(t *testing.T) {
	g := newDISTestGrid(t)
	it := NewSliceSlice([]SliceResult{testOperatorSlice(10, 100)})

	fk, err := Evolve(g, []SliceIterator{it}, Options{Xi: grid.XiTriple{XiR: 1, XiF: 1, XiA: 1}, Alphas: testAlphas(t)})
	require.NoError(t, err)

	fkGrid := fk.Grid()
	require.Len(t, fkGrid.Orders(), 1)
	assert.Equal(t, channel.Order{}, fkGrid.Orders()[0])
	require.Len(t, fkGrid.Channels(), 1)
	assert.Equal(t, []channel.PID{1}, fkGrid.Channels()[0].Terms()[0].PIDs)

	structureFn := func(pid channel.PID, x, scale float64) float64 { return x * 2.0 }
	cache := luminosity.New(64)
	result, err := fk.Convolve(cache, []int{0}, []grid.StructureFunction{structureFn})
	require.NoError(t, err)
	require.Len(t, result, 1)
	// the lone stored entry is term.Coefficient(1) * op.At(...)=2 from
	// contraction, read back against structureFn(1, 0.3, 10) = 0.6
	assert.InDelta(t, 1.2, result[0], 1e-9)
}

func TestEvolveFailsWhenRequiredFac1NeverSupplied(t *testing.T) {
	g := newDISTestGrid(t)
	it := NewSliceSlice([]SliceResult{testOperatorSlice(10, 200)}) // grid needs fac1=100, not 200

	_, err := Evolve(g, []SliceIterator{it}, Options{Xi: grid.XiTriple{XiR: 1, XiF: 1, XiA: 1}, Alphas: testAlphas(t)})
	assert.ErrorIs(t, err, ErrMissingOperator)
}

func TestEvolveRejectsIteratorCountMismatch(t *testing.T) {
	g := newDISTestGrid(t)
	_, err := Evolve(g, nil, Options{Xi: grid.XiTriple{XiR: 1, XiF: 1, XiA: 1}, Alphas: testAlphas(t)})
	assert.Error(t, err)
}

func TestContractSliceRejectsFac0MismatchAcrossSlices(t *testing.T) {
	g := newDISTestGrid(t)
	acc := newAccumulator(g)

	first := []SliceResult{testOperatorSlice(10, 100)}
	perm, err := buildPermutation(g.Convolutions(), first)
	require.NoError(t, err)
	require.NoError(t, contractSlice(acc, g, first, perm, 100, nil, grid.XiTriple{XiR: 1, XiF: 1, XiA: 1}, testAlphas(t)))

	second := []SliceResult{testOperatorSlice(20, 200)} // fac0 disagrees with the first slice
	err = contractSlice(acc, g, second, perm, 200, nil, grid.XiTriple{XiR: 1, XiF: 1, XiA: 1}, testAlphas(t))
	assert.ErrorIs(t, err, ErrFac0Mismatch)
}

func TestNextTupleRejectsLengthMismatch(t *testing.T) {
	a := NewSliceSlice([]SliceResult{testOperatorSlice(10, 100)})
	b := NewSliceSlice(nil)

	_, _, err := nextTuple([]SliceIterator{a, b})
	assert.ErrorIs(t, err, ErrIteratorLengthMismatch)
}

func TestNewFKTableRejectsNonZeroOrder(t *testing.T) {
	bwfl, err := bins.FromFillLimits([]float64{0, 1})
	require.NoError(t, err)
	channels := []channel.Channel{channel.New([]channel.Term{{PIDs: []channel.PID{1}, Coefficient: 1.0}})}
	convs := []channel.Conv{{Kind: channel.ConvUnpolarizedPDF, PIDRef: 2212}}
	interps := []interp.Interp{singleNodeAxis(t, 10), singleNodeAxis(t, 0.3)}
	kinematics := []channel.Kinematics{channel.Scale(0), channel.X(0)}
	scales := channel.Scales{Ren: channel.NoScale{}, Fac: channel.NoScale{}, Frag: channel.NoScale{}}
	g, err := grid.New(bwfl, []channel.Order{{Alpha: 2}}, channels, channel.PidBasisPDG, convs, interps, kinematics, scales)
	require.NoError(t, err)

	_, err = newFKTable(g)
	assert.Error(t, err)
}

func TestNewFKTableRejectsWrongAxisLayout(t *testing.T) {
	bwfl, err := bins.FromFillLimits([]float64{0, 1})
	require.NoError(t, err)
	channels := []channel.Channel{channel.New([]channel.Term{{PIDs: []channel.PID{1}, Coefficient: 1.0}})}
	convs := []channel.Conv{{Kind: channel.ConvUnpolarizedPDF, PIDRef: 2212}}
	interps := []interp.Interp{singleNodeAxis(t, 0.3), singleNodeAxis(t, 10)}
	kinematics := []channel.Kinematics{channel.X(0), channel.Scale(0)} // scale axis must come first
	scales := channel.Scales{Ren: channel.NoScale{}, Fac: channel.NoScale{}, Frag: channel.NoScale{}}
	g, err := grid.New(bwfl, []channel.Order{{}}, channels, channel.PidBasisPDG, convs, interps, kinematics, scales)
	require.NoError(t, err)

	_, err = newFKTable(g)
	assert.Error(t, err)
}

func TestUlpsEqual(t *testing.T) {
	assert.True(t, ulpsEqual(1.0, 1.0, 0))
	assert.False(t, ulpsEqual(1.0, 2.0, 4096))
}
