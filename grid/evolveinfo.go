package grid

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/channel"
)

// evolveNodeULPs is the scale-value dedup tolerance, matching the
// node-value merge tolerance used throughout the subgrid layer.
const evolveNodeULPs = 4096

// EvolveInfoResult is what EvolveInfo reports: the set of factorization
// scales ("fac1" in spec.md §4.7's evolution-driver vocabulary) and
// renormalization scales ("ren1") the grid actually needs under
// orderMask, plus which bins and channels carry any non-empty content
// there. Grounded on original_source/pineappl/src/grid.rs's evolve_info,
// whose EvolveInfo also collects ren1 alongside fac1 (and frg1/x1/pids1,
// which no SPEC_FULL.md component consumes and are therefore not
// reproduced here).
type EvolveInfoResult struct {
	Fac1     []float64
	Ren      []float64
	Bins     []int
	Channels []int
}

// EvolveInfo implements the operation spec.md §4.7 names as the
// evolution driver's first step: "compute the set of fac1 values the
// grid actually needs from evolve_info(order_mask)".
func (g *Grid) EvolveInfo(orderMask []bool) (EvolveInfoResult, error) {
	scaleAxes := make([]int, 0)
	for axis, k := range g.kinematics {
		if k.Kind == channel.KindScale {
			scaleAxes = append(scaleAxes, axis)
		}
	}

	var fac1, ren1 []float64
	binSeen := make(map[int]bool)
	chSeen := make(map[int]bool)

	nb, nc := g.bwfl.Len(), len(g.channels)
	for oi := range g.orders {
		if orderMask != nil && oi < len(orderMask) && !orderMask[oi] {
			continue
		}
		for bi := 0; bi < nb; bi++ {
			for ci := 0; ci < nc; ci++ {
				sg := g.Subgrid(oi, bi, ci)
				if sg.IsEmpty() {
					continue
				}
				values := sg.NodeValues()
				scaleValues := make([]float64, len(g.kinematics))
				for _, e := range sg.IndexedIter() {
					for _, axis := range scaleAxes {
						scaleValues[g.kinematics[axis].Index] = values[axis][e.Index[axis]]
					}
					fac, err := g.scales.Fac.Calc(scaleValues)
					if err != nil {
						return EvolveInfoResult{}, errors.Wrap(err, "grid: evolve_info")
					}
					fac1 = insertDedup(fac1, fac)

					ren, err := g.scales.Ren.Calc(scaleValues)
					if err != nil {
						return EvolveInfoResult{}, errors.Wrap(err, "grid: evolve_info")
					}
					ren1 = insertDedup(ren1, ren)
				}
				binSeen[bi] = true
				chSeen[ci] = true
			}
		}
	}

	result := EvolveInfoResult{Fac1: fac1, Ren: ren1}
	for b := range binSeen {
		result.Bins = append(result.Bins, b)
	}
	for c := range chSeen {
		result.Channels = append(result.Channels, c)
	}
	sort.Ints(result.Bins)
	sort.Ints(result.Channels)
	return result, nil
}

// insertDedup inserts v into the sorted slice sorted, merging it into an
// existing entry within evolveNodeULPs instead of duplicating it.
func insertDedup(sorted []float64, v float64) []float64 {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= v })
	if i < len(sorted) && ulpsEqual(sorted[i], v, evolveNodeULPs) {
		return sorted
	}
	if i > 0 && ulpsEqual(sorted[i-1], v, evolveNodeULPs) {
		return sorted
	}
	out := make([]float64, len(sorted)+1)
	copy(out, sorted[:i])
	out[i] = v
	copy(out[i+1:], sorted[i:])
	return out
}
