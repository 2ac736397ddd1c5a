package evolution

import (
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/grid"
)

// Options bundles the inputs to Evolve beyond the grid and the
// per-convolution slice iterators: spec.md §4.7's order_mask, the
// scale-variation triple xi, and the alpha_s table.
type Options struct {
	OrderMask []bool
	Xi        grid.XiTriple
	Alphas    AlphasTable
}

// nextTuple pulls one slice from every convolution's iterator in
// lock-step, per spec.md §4.7's "Walk the input slice iterators in
// lock-step." It returns ok=false once every iterator is exhausted, and
// ErrIteratorLengthMismatch if they don't exhaust together.
func nextTuple(iters []SliceIterator) ([]SliceResult, bool, error) {
	out := make([]SliceResult, len(iters))
	gotAny, gotAll := false, true
	for i, it := range iters {
		r, ok, err := it.Next()
		if err != nil {
			return nil, false, errors.Wrapf(err, "evolution: convolution %d slice iterator", i)
		}
		out[i] = r
		if ok {
			gotAny = true
		} else {
			gotAll = false
		}
	}
	if gotAll {
		return out, true, nil
	}
	if gotAny {
		return nil, false, ErrIteratorLengthMismatch
	}
	return nil, false, nil
}

// neededFac1 computes the fac1 set g.EvolveInfo(orderMask) reports the
// grid actually needs, scaled by xiF^2 per spec.md §4.7 step 1 ("scale
// them by xiF^2").
func neededFac1(g *grid.Grid, orderMask []bool, xiF float64) ([]float64, error) {
	info, err := g.EvolveInfo(orderMask)
	if err != nil {
		return nil, errors.Wrap(err, "evolution: evolve_info")
	}
	needed := make([]float64, len(info.Fac1))
	factor := xiF * xiF
	for i, f := range info.Fac1 {
		needed[i] = f * factor
	}
	return needed, nil
}

func fac1Index(needed []float64, fac1 float64) (int, bool) {
	for i, f := range needed {
		if ulpsEqual(f, fac1, fac1ULPs) {
			return i, true
		}
	}
	return -1, false
}

// Evolve implements spec.md §4.7's evolution driver end to end: it
// computes the fac1 values g actually needs, walks convIters in
// lock-step, skips tuples that don't carry a needed (and not-yet-
// consumed) fac1, contracts the rest against g's matching subgrid
// entries, and verifies every required fac1 was eventually consumed
// before handing back the assembled FK table.
func Evolve(g *grid.Grid, convIters []SliceIterator, opts Options) (*FKTable, error) {
	if len(convIters) != len(g.Convolutions()) {
		return nil, errors.Errorf("evolution: got %d slice iterators, grid has %d convolutions", len(convIters), len(g.Convolutions()))
	}

	needed, err := neededFac1(g, opts.OrderMask, opts.Xi.XiF)
	if err != nil {
		return nil, err
	}
	consumed := make([]bool, len(needed))

	acc := newAccumulator(g)
	var permutation []int

	for {
		tuples, ok, err := nextTuple(convIters)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := validateTuple(tuples); err != nil {
			return nil, errors.Wrap(err, "evolution: validating slice tuple")
		}
		if permutation == nil {
			permutation, err = buildPermutation(g.Convolutions(), tuples)
			if err != nil {
				return nil, err
			}
		}

		fac1 := tuples[0].Info.Fac1
		idx, ok := fac1Index(needed, fac1)
		if !ok {
			log.Debug.Printf("evolution: skipping fac1=%v, not required by the grid", fac1)
			continue
		}
		if consumed[idx] {
			log.Debug.Printf("evolution: skipping fac1=%v, already consumed", fac1)
			continue
		}

		if err := contractSlice(acc, g, tuples, permutation, fac1, opts.OrderMask, opts.Xi, opts.Alphas); err != nil {
			return nil, errors.Wrapf(err, "evolution: contracting slice at fac1=%v", fac1)
		}
		consumed[idx] = true
	}

	var missing []float64
	for i, f := range needed {
		if !consumed[i] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrMissingOperator, "fac1 values %v", missing)
	}

	fkGrid, err := acc.toGrid()
	if err != nil {
		return nil, err
	}
	return newFKTable(fkGrid)
}
