package grid

import (
	"sort"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// RotatePidBasis retranslates every channel out of the grid's current PID
// basis via that basis's fixed linear map, and records basis as the new
// one, per spec.md §4.6. The map is applied to every PID in every
// convolution slot alike; PIDs that PidBasis.Translate has no mapping for
// are returned unchanged.
func (g *Grid) RotatePidBasis(basis channel.PidBasis) {
	from := g.pidBasis
	newChannels := make([]channel.Channel, len(g.channels))
	for i, c := range g.channels {
		newChannels[i] = c.Translate(func(pid channel.PID) []channel.PIDFactor {
			return from.Translate(pid)
		})
	}
	g.channels = newChannels
	g.pidBasis = basis
}

// ChargeConjugate charge-conjugates the PID in convolution slot convIdx
// of every channel term -- picking up the basis-dependent sign from
// PidBasis.ChargeConjugate -- and flips the corresponding Conv's
// reference PID to match.
func (g *Grid) ChargeConjugate(convIdx int) {
	newChannels := make([]channel.Channel, len(g.channels))
	for i, c := range g.channels {
		var out []channel.Term
		for _, t := range c.Terms() {
			pids := append([]channel.PID(nil), t.PIDs...)
			conj, sign := g.pidBasis.ChargeConjugate(pids[convIdx])
			pids[convIdx] = conj
			out = append(out, channel.Term{PIDs: pids, Coefficient: t.Coefficient * sign})
		}
		newChannels[i] = channel.New(out)
	}
	g.channels = newChannels

	conjRef, _ := g.pidBasis.ChargeConjugate(g.convs[convIdx].PIDRef)
	g.convs[convIdx].PIDRef = conjRef
}

// dedupSortedIndices sorts indices ascending, deduplicates, and drops
// any out-of-range entry, per spec.md §7's delete_* error policy.
func dedupSortedIndices(indices []int, length int) []int {
	filtered := make([]int, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < length {
			filtered = append(filtered, i)
		}
	}
	sort.Ints(filtered)
	out := filtered[:0]
	var last int
	for i, v := range filtered {
		if i == 0 || v != last {
			out = append(out, v)
		}
		last = v
	}
	return out
}

func complementIndices(drop []int, length int) []int {
	dropSet := make(map[int]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	keep := make([]int, 0, length-len(drop))
	for i := 0; i < length; i++ {
		if !dropSet[i] {
			keep = append(keep, i)
		}
	}
	return keep
}

// DeleteOrders removes the given order indices, silently ignoring
// out-of-range or duplicate entries.
func (g *Grid) DeleteOrders(indices []int) {
	drop := dedupSortedIndices(indices, len(g.orders))
	g.keepOrders(complementIndices(drop, len(g.orders)))
}

// DeleteChannels removes the given channel indices, silently ignoring
// out-of-range or duplicate entries.
func (g *Grid) DeleteChannels(indices []int) {
	drop := dedupSortedIndices(indices, len(g.channels))
	g.keepChannels(complementIndices(drop, len(g.channels)))
}

// DeleteBins removes the given bin indices, silently ignoring
// out-of-range or duplicate entries. The retained bins' own hyper-
// rectangle edges on the last dimension become the new fill-limit
// sequence, which stays strictly increasing since the originals were.
func (g *Grid) DeleteBins(indices []int) {
	allBins := g.bwfl.Bins()
	drop := dedupSortedIndices(indices, len(allBins))
	keep := complementIndices(drop, len(allBins))

	no, nc := len(g.orders), len(g.channels)
	newSubgrids := make([]subgrid.Subgrid, len(keep)*no*nc)
	for newBi, bi := range keep {
		for oi := 0; oi < no; oi++ {
			for ci := 0; ci < nc; ci++ {
				newSubgrids[(oi*len(keep)+newBi)*nc+ci] = g.subgrids[g.index(oi, bi, ci)]
			}
		}
	}

	newBinList := make([]bins.Bin, len(keep))
	newFillLimits := make([]float64, len(keep)+1)
	for newBi, bi := range keep {
		newBinList[newBi] = allBins[bi]
		last := len(allBins[bi].Limits) - 1
		newFillLimits[newBi] = allBins[bi].Limits[last][0]
		newFillLimits[newBi+1] = allBins[bi].Limits[last][1]
	}
	if newBwfl, err := bins.New(newBinList, newFillLimits); err == nil {
		g.bwfl = newBwfl
	}
	g.subgrids = newSubgrids
}
