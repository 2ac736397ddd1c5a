package evolution

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/grid"
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// buildPermutation implements spec.md §4.7 step 2: "build a permutation
// mapping each grid convolution to the most recent slice index whose
// conv_type matches, enforcing a left-to-right precedence." Scanning the
// tuple left to right and repeatedly overwriting the match keeps the
// rightmost (most recent) matching slice index for each grid convolution.
func buildPermutation(convs []channel.Conv, tuples []SliceResult) ([]int, error) {
	permutation := make([]int, len(convs))
	for gc, conv := range convs {
		found := -1
		for si, t := range tuples {
			if t.Info.ConvType == conv.Kind {
				found = si
			}
		}
		if found < 0 {
			return nil, errors.Errorf("evolution: no operator slice matches grid convolution %d (kind %v)", gc, conv.Kind)
		}
		permutation[gc] = found
	}
	return permutation, nil
}

// validateTuple implements spec.md §4.7 step 1: every slice info in the
// lock-step tuple must share fac1 and PID basis, and each operator's
// declared shape must match its own slice info's dimensions.
func validateTuple(tuples []SliceResult) error {
	if len(tuples) == 0 {
		return errors.New("evolution: empty slice tuple")
	}
	first := tuples[0].Info
	for i, t := range tuples {
		if err := validateShape(t); err != nil {
			return errors.Wrapf(err, "evolution: convolution %d", i)
		}
		if !ulpsEqual(t.Info.Fac1, first.Fac1, fac1ULPs) {
			return errors.Errorf("evolution: slice fac1 mismatch across convolutions: %v vs %v", t.Info.Fac1, first.Fac1)
		}
		if t.Info.PidBasis != first.PidBasis {
			return errors.New("evolution: slice PID basis mismatch across convolutions")
		}
	}
	return nil
}

// pidTupleKey renders a PID tuple as a map key, matching the encoding
// channel.Channel uses internally to canonicalize terms (channel/channel.go
// pidKey), reimplemented here since that helper is unexported.
func pidTupleKey(pids []channel.PID) string {
	b := make([]byte, 0, len(pids)*5)
	for _, p := range pids {
		b = append(b, byte(p), byte(p>>8), byte(p>>16), byte(p>>24), '|')
	}
	return string(b)
}

// cartesianIndices enumerates every combination of indices, one chosen
// from [0, sizes[i]) per position, calling visit with each combination.
func cartesianIndices(sizes []int, visit func(idx []int)) {
	idx := make([]int, len(sizes))
	var rec func(pos int)
	rec = func(pos int) {
		if pos == len(sizes) {
			visit(idx)
			return
		}
		for i := 0; i < sizes[pos]; i++ {
			idx[pos] = i
			rec(pos + 1)
		}
	}
	rec(0)
}

// accumulator collects contractSlice's output across every consumed fac1
// tuple. Bins never change across an evolution call (each slice produces
// content for the grid's existing bins, not new ones), so accumulation is
// direct addition into per-(bin, channel, x0-index) totals rather than the
// append-biased bin bookkeeping grid.Grid.Merge implements for combining
// two independently-binned grids; see DESIGN.md for why Grid.Merge itself
// is not reused here.
type accumulator struct {
	bwfl     bins.BinsWithFillLimits
	pidBasis channel.PidBasis
	convs    []channel.Conv
	x0Grids  [][]float64 // one per original grid convolution
	fac0     float64
	fac0Set  bool

	channels   []channel.Channel
	channelIdx map[string]int

	// values[bin][channelIndex][raveled x0 multi-index] = accumulated value
	values map[int]map[int]map[int]float64
}

func newAccumulator(g *grid.Grid) *accumulator {
	return &accumulator{
		bwfl:       g.Bins(),
		convs:      g.Convolutions(),
		channelIdx: make(map[string]int),
		values:     make(map[int]map[int]map[int]float64),
	}
}

// channelFor returns the accumulator-local index for the single-term,
// unit-coefficient channel built from pids0, creating it if this is the
// first time that combination has been seen.
func (a *accumulator) channelFor(pids0 []channel.PID) int {
	key := pidTupleKey(pids0)
	if idx, ok := a.channelIdx[key]; ok {
		return idx
	}
	ch := channel.New([]channel.Term{{PIDs: append([]channel.PID(nil), pids0...), Coefficient: 1}})
	idx := len(a.channels)
	a.channels = append(a.channels, ch)
	a.channelIdx[key] = idx
	return idx
}

func (a *accumulator) add(bin, ch int, x0Idx []int, x0Shape []int, v float64) {
	raveled := 0
	for i, s := range x0Shape {
		raveled = raveled*s + x0Idx[i]
	}
	byChannel, ok := a.values[bin]
	if !ok {
		byChannel = make(map[int]map[int]float64)
		a.values[bin] = byChannel
	}
	byX0, ok := byChannel[ch]
	if !ok {
		byX0 = make(map[int]float64)
		byChannel[ch] = byX0
	}
	byX0[raveled] += v
}

// contractSlice implements spec.md §4.7 step 4's "contract" for one
// lock-step tuple already known to match a needed fac1: every subgrid
// entry whose scale-axis coordinate times xiF² equals fac1 is folded, term by term,
// against the permuted operators, producing contributions indexed by the
// new (pid0-tuple) channel and the tensor product of the operators' x0
// grids.
func contractSlice(
	a *accumulator,
	g *grid.Grid,
	tuples []SliceResult,
	permutation []int,
	fac1 float64,
	orderMask []bool,
	xi grid.XiTriple,
	alphas AlphasTable,
) error {
	kinematics := g.Kinematics()
	var scaleAxis = -1
	xAxisOf := make([]int, len(g.Convolutions()))
	for axis, k := range kinematics {
		switch k.Kind {
		case channel.KindScale:
			if scaleAxis >= 0 {
				return errors.New("evolution: grid has more than one scale axis; only a single scale form is supported")
			}
			scaleAxis = axis
		case channel.KindX:
			xAxisOf[k.Index] = axis
		}
	}
	if scaleAxis < 0 {
		return errors.New("evolution: grid has no scale axis to evolve")
	}

	ops := make([]Operator, len(permutation))
	infos := make([]OperatorSliceInfo, len(permutation))
	for gc, si := range permutation {
		ops[gc] = tuples[si].Operator
		infos[gc] = tuples[si].Info
	}

	fac0 := infos[0].Fac0
	for _, info := range infos[1:] {
		if !ulpsEqual(info.Fac0, fac0, fac0ULPs) {
			return ErrFac0Mismatch
		}
	}
	if a.fac0Set && !ulpsEqual(a.fac0, fac0, fac0ULPs) {
		return ErrFac0Mismatch
	}
	a.fac0, a.fac0Set = fac0, true
	a.pidBasis = infos[0].PidBasis
	if a.x0Grids == nil {
		a.x0Grids = make([][]float64, len(infos))
		for c, info := range infos {
			a.x0Grids[c] = append([]float64(nil), info.X0...)
		}
	}

	x0Sizes := make([]int, len(infos))
	for c, info := range infos {
		x0Sizes[c] = len(info.Pids0) * len(info.X0)
	}

	orders := g.Orders()
	nb, nc := g.Bins().Len(), len(g.Channels())
	for oi, order := range orders {
		if orderMask != nil && oi < len(orderMask) && !orderMask[oi] {
			continue
		}
		if order.LogXiR != 0 && ulpsEqual(xi.XiR, 1, 4) {
			continue
		}
		if order.LogXiF != 0 && ulpsEqual(xi.XiF, 1, 4) {
			continue
		}
		if order.LogXiA != 0 && ulpsEqual(xi.XiA, 1, 4) {
			continue
		}
		logFactor := math.Pow(xi.XiR*xi.XiR, float64(order.LogXiR)) *
			math.Pow(xi.XiF*xi.XiF, float64(order.LogXiF)) *
			math.Pow(xi.XiA*xi.XiA, float64(order.LogXiA))

		for bi := 0; bi < nb; bi++ {
			for ci := 0; ci < nc; ci++ {
				sg := g.Subgrid(oi, bi, ci)
				if sg.IsEmpty() {
					continue
				}
				nodeValues := sg.NodeValues()
				scaleValues := make([]float64, len(kinematics))

				ch := g.Channels()[ci]
				for _, e := range sg.IndexedIter() {
					scaleVal := nodeValues[scaleAxis][e.Index[scaleAxis]]
					if !ulpsEqual(xi.XiF*xi.XiF*scaleVal, fac1, fac1ULPs) {
						continue
					}
					for axis, k := range kinematics {
						if k.Kind == channel.KindScale {
							scaleValues[k.Index] = nodeValues[axis][e.Index[axis]]
						}
					}
					renScale, err := g.Scales().Ren.Calc(scaleValues)
					if err != nil {
						return errors.Wrap(err, "evolution: renormalization scale")
					}
					asValue, err := alphas.Alphas(xi.XiR * xi.XiR * renScale)
					if err != nil {
						return errors.Wrap(err, "evolution: alphas lookup")
					}
					asFactor := math.Pow(asValue, float64(order.Alphas))

					for _, term := range ch.Terms() {
						iPids1 := make([]int, len(term.PIDs))
						skip := false
						iX1 := make([]int, len(term.PIDs))
						for c, pid := range term.PIDs {
							axis := xAxisOf[c]
							iX1[c] = e.Index[axis]
							idx := indexOfPID(infos[c].Pids1, pid)
							if idx < 0 {
								skip = true
								break
							}
							iPids1[c] = idx
						}
						if skip {
							continue
						}
						base := e.Value * term.Coefficient * asFactor * logFactor
						if base == 0 {
							continue
						}
						cartesianIndices(x0Sizes, func(combo []int) {
							kernel := 1.0
							newPIDs := make([]channel.PID, len(combo))
							x0Idx := make([]int, len(combo))
							for c, flat := range combo {
								nX0 := len(infos[c].X0)
								iPids0 := flat / nX0
								iX0 := flat % nX0
								kernel *= ops[c].At(iPids1[c], iX1[c], iPids0, iX0)
								newPIDs[c] = infos[c].Pids0[iPids0]
								x0Idx[c] = iX0
							}
							if kernel == 0 {
								return
							}
							newCh := a.channelFor(newPIDs)
							a.add(bi, newCh, x0Idx, x0ShapeOf(infos), base*kernel)
						})
					}
				}
			}
		}
	}
	return nil
}

func x0ShapeOf(infos []OperatorSliceInfo) []int {
	shape := make([]int, len(infos))
	for i, info := range infos {
		shape[i] = len(info.X0)
	}
	return shape
}

func indexOfPID(pids []channel.PID, pid channel.PID) int {
	for i, p := range pids {
		if p == pid {
			return i
		}
	}
	return -1
}

// toGrid assembles the accumulated contributions into a Grid per spec.md
// §4.7 step 5: a single order slot, kinematics of one scale axis (fixed
// at fac0) followed by the original X axes (now over each convolution's
// x0 grid), and Scales degraded to {Ren: NoScale, Fac, Frag} depending on
// which convolution kinds were evolved.
func (a *accumulator) toGrid() (*grid.Grid, error) {
	if len(a.channels) == 0 {
		log.Debug.Printf("evolution: accumulator produced no channels; FK table will be empty")
	}

	// Sort channels for a deterministic layout, then remap the indices
	// channelFor handed out during contraction.
	type named struct {
		idx int
		ch  channel.Channel
	}
	ordered := make([]named, len(a.channels))
	for i, ch := range a.channels {
		ordered[i] = named{idx: i, ch: ch}
	}
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := ordered[i].ch.Terms()[0].PIDs, ordered[j].ch.Terms()[0].PIDs
		for k := 0; k < len(pi) && k < len(pj); k++ {
			if pi[k] != pj[k] {
				return pi[k] < pj[k]
			}
		}
		return len(pi) < len(pj)
	})
	remap := make(map[int]int, len(ordered))
	newChannels := make([]channel.Channel, len(ordered))
	for newIdx, n := range ordered {
		remap[n.idx] = newIdx
		newChannels[newIdx] = n.ch
	}

	nConv := len(a.x0Grids)
	kinematics := make([]channel.Kinematics, 0, nConv+1)
	interps := make([]interp.Interp, 0, nConv+1)
	kinematics = append(kinematics, channel.Scale(0))
	fac0Interp, err := singlePointInterp(a.fac0)
	if err != nil {
		return nil, err
	}
	interps = append(interps, fac0Interp)
	for c, x0 := range a.x0Grids {
		kinematics = append(kinematics, channel.X(c))
		ip, err := gridInterp(x0)
		if err != nil {
			return nil, err
		}
		interps = append(interps, ip)
	}

	hasPDF, hasFrag := false, false
	for _, c := range a.convs {
		switch c.Kind {
		case channel.ConvFragmentation:
			hasFrag = true
		default:
			hasPDF = true
		}
	}
	scales := channel.Scales{Ren: channel.NoScale{}}
	if hasPDF {
		scales.Fac = channel.ScaleSingle{Index: 0}
	} else {
		scales.Fac = channel.NoScale{}
	}
	if hasFrag {
		scales.Frag = channel.ScaleSingle{Index: 0}
	} else {
		scales.Frag = channel.NoScale{}
	}

	g, err := grid.New(a.bwfl, []channel.Order{{}}, newChannels, a.pidBasis, a.convs, interps, kinematics, scales)
	if err != nil {
		return nil, errors.Wrap(err, "evolution: assembling FK table grid")
	}

	x0Shape := make([][]float64, nConv)
	copy(x0Shape, a.x0Grids)
	nb := a.bwfl.Len()
	for bi := 0; bi < nb; bi++ {
		byChannel := a.values[bi]
		for oldIdx, byX0 := range byChannel {
			newIdx := remap[oldIdx]
			nodeValues := append([][]float64{{a.fac0}}, x0Shape...)
			imp := subgrid.NewImport(nodeValues)
			shape := make([]int, nConv)
			for c, x0 := range a.x0Grids {
				shape[c] = len(x0)
			}
			for raveled, v := range byX0 {
				multi := unravel(raveled, shape)
				full := append([]int{0}, multi...)
				*imp.IndexMut(full) = v
			}
			g.SetSubgrid(0, bi, newIdx, imp)
		}
	}
	return g, nil
}

// singlePointInterp builds a degenerate, length-1 interpolation descriptor
// pinned at value. The FK table's scale axis never varies (evolution has
// already collapsed it to fac0), so this exists only to satisfy Grid's
// invariant that every Kinematics entry has a matching Interp descriptor;
// the axis's actual content lives in the Import subgrid's explicit
// node_values, per spec.md §4.3.
func singlePointInterp(value float64) (interp.Interp, error) {
	// interp.Interp.NodeValues forces its single node (Nodes==1) to Max,
	// not Min, so Max must be the pinned value; Min only needs to be
	// strictly smaller to satisfy interp.New's range check.
	ip, err := interp.New(value-1, value, 1, 0, interp.MappingIdentity, interp.ReweightNone)
	if err != nil {
		return interp.Interp{}, err
	}
	return ip, nil
}

// gridInterp builds a placeholder descriptor covering x0's range. As with
// singlePointInterp, the FK table's Import subgrids carry their own
// explicit node_values; this only keeps Grid's Interps/Kinematics
// length invariant satisfied.
func gridInterp(x0 []float64) (interp.Interp, error) {
	if len(x0) == 0 {
		return interp.Interp{}, errors.New("evolution: operator slice has an empty x0 grid")
	}
	if len(x0) == 1 {
		return singlePointInterp(x0[0])
	}
	order := len(x0) - 1
	if order > 3 {
		order = 3
	}
	return interp.New(x0[0], x0[len(x0)-1], len(x0), order, interp.MappingIdentity, interp.ReweightNone)
}

func unravel(raveled int, shape []int) []int {
	multi := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		s := shape[i]
		multi[i] = raveled % s
		raveled /= s
	}
	return multi
}
