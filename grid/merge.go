package grid

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// structurallyCompatible checks the spec.md §4.6 "Merge (two grids)"
// precondition: matching convolutions, PID basis, kinematics,
// interpolations, and scales.
func (g *Grid) structurallyCompatible(other *Grid) bool {
	return reflect.DeepEqual(g.convs, other.convs) &&
		g.pidBasis == other.pidBasis &&
		reflect.DeepEqual(g.kinematics, other.kinematics) &&
		reflect.DeepEqual(g.interps, other.interps) &&
		reflect.DeepEqual(g.scales, other.scales)
}

// Merge absorbs other into g in place, per spec.md §4.6. It requires
// structural compatibility; if the two grids' bins differ in dimension
// there is no well-defined way to append other's bins to the right of
// g's fill limits, and Merge returns ErrNonContiguousBinMerge leaving g
// unchanged. Otherwise other's bins are appended to the right (joining
// exactly if g's last fill limit equals other's first, else shifted to
// preserve monotonicity), new orders/channels appearing in other extend
// the corresponding axes, and subgrids are copied or merged cell-by-cell
// into the matching slots.
func (g *Grid) Merge(other *Grid) error {
	if !g.structurallyCompatible(other) {
		return ErrStructuralMismatch
	}

	selfBins := g.bwfl.Bins()
	otherBins := other.bwfl.Bins()
	if len(selfBins) == 0 || len(otherBins) == 0 {
		return errors.New("grid: cannot merge with a grid that has no bins")
	}
	if len(selfBins[0].Limits) != len(otherBins[0].Limits) {
		return ErrNonContiguousBinMerge
	}

	newBwfl, err := appendBins(g.bwfl, other.bwfl)
	if err != nil {
		return err
	}

	orderMap, newOrders := mergeOrders(g.orders, other.orders)
	channelMap, newChannels := mergeChannels(g.channels, other.channels)

	nb := newBwfl.Len()
	newSubgrids := make([]subgrid.Subgrid, nb*len(newOrders)*len(newChannels))
	for i := range newSubgrids {
		newSubgrids[i] = subgrid.Empty{}
	}
	at := func(order, bin, ch int) int { return (order*nb+bin)*len(newChannels) + ch }

	selfNB := g.bwfl.Len()
	for oi := range g.orders {
		for bi := 0; bi < selfNB; bi++ {
			for ci := range g.channels {
				newSubgrids[at(oi, bi, ci)] = g.subgrids[g.index(oi, bi, ci)]
			}
		}
	}

	otherNB := other.bwfl.Len()
	for oi := range other.orders {
		newOi := orderMap[oi]
		for bi := 0; bi < otherNB; bi++ {
			newBi := selfNB + bi
			for ci := range other.channels {
				newCi := channelMap[ci]
				srcSg := other.Subgrid(oi, bi, ci)
				if srcSg.IsEmpty() {
					continue
				}
				dstIdx := at(newOi, newBi, newCi)
				dst := newSubgrids[dstIdx]
				if err := subgrid.Merge(&dst, srcSg, nil); err != nil {
					return errors.Wrap(err, "grid: merge")
				}
				newSubgrids[dstIdx] = dst
			}
		}
	}

	g.bwfl = newBwfl
	g.orders = newOrders
	g.channels = newChannels
	g.subgrids = newSubgrids
	return nil
}

// appendBins builds the bin structure for a Merge: other's bins are
// appended to the right of self's, joining exactly if self's last fill
// limit equals other's first, and shifted otherwise to preserve
// monotonicity, per spec.md §4.6.
func appendBins(self, other bins.BinsWithFillLimits) (bins.BinsWithFillLimits, error) {
	selfLimits := self.FillLimits()
	otherLimits := other.FillLimits()
	delta := selfLimits[len(selfLimits)-1] - otherLimits[0]

	newBinList := append([]bins.Bin(nil), self.Bins()...)
	dim := len(self.Bins()[0].Limits)
	for _, b := range other.Bins() {
		nb := bins.Bin{Limits: make([][2]float64, dim), Normalization: b.Normalization}
		copy(nb.Limits, b.Limits)
		last := dim - 1
		nb.Limits[last] = [2]float64{b.Limits[last][0] + delta, b.Limits[last][1] + delta}
		newBinList = append(newBinList, nb)
	}

	newFillLimits := append([]float64(nil), selfLimits...)
	for _, l := range otherLimits[1:] {
		newFillLimits = append(newFillLimits, l+delta)
	}

	return bins.New(newBinList, newFillLimits)
}

// mergeOrders returns, for each index of other's order list, the index
// of the matching (or newly appended) entry in the combined list.
func mergeOrders(self, other []channel.Order) ([]int, []channel.Order) {
	combined := append([]channel.Order(nil), self...)
	index := make(map[channel.Order]int, len(self))
	for i, o := range self {
		index[o] = i
	}
	mapping := make([]int, len(other))
	for i, o := range other {
		if idx, ok := index[o]; ok {
			mapping[i] = idx
			continue
		}
		mapping[i] = len(combined)
		index[o] = len(combined)
		combined = append(combined, o)
	}
	return mapping, combined
}

// mergeChannels returns, for each index of other's channel list, the
// index of the equal (or newly appended) entry in the combined list.
func mergeChannels(self, other []channel.Channel) ([]int, []channel.Channel) {
	combined := append([]channel.Channel(nil), self...)
	mapping := make([]int, len(other))
	for i, c := range other {
		found := -1
		for j, sc := range combined {
			if sc.Equal(c) {
				found = j
				break
			}
		}
		if found >= 0 {
			mapping[i] = found
			continue
		}
		mapping[i] = len(combined)
		combined = append(combined, c)
	}
	return mapping, combined
}

// MergeBins collapses the contiguous bin range [lo, hi) into a single
// bin, per spec.md §4.6: bwfl.Merge handles the fill-limit/hyper-
// rectangle bookkeeping, and every (order, channel) subgrid slice along
// that range is folded via repeated subgrid.Merge.
func (g *Grid) MergeBins(lo, hi int) error {
	if lo < 0 || hi > g.bwfl.Len() || lo >= hi {
		return errors.Errorf("grid: invalid bin merge range [%d, %d)", lo, hi)
	}
	nb, nc := g.bwfl.Len(), len(g.channels)
	newNB := nb - (hi - lo) + 1
	newSubgrids := make([]subgrid.Subgrid, newNB*len(g.orders)*nc)

	at := func(order, bin, ch int) int { return (order*newNB+bin)*nc + ch }
	for oi := range g.orders {
		for ci := range g.channels {
			// Bins before the merge range keep their position.
			for bi := 0; bi < lo; bi++ {
				newSubgrids[at(oi, bi, ci)] = g.subgrids[g.index(oi, bi, ci)]
			}
			// Fold [lo, hi) into the single merged slot at lo.
			merged := subgrid.Subgrid(subgrid.Empty{})
			for bi := lo; bi < hi; bi++ {
				src := g.subgrids[g.index(oi, bi, ci)]
				if src.IsEmpty() {
					continue
				}
				if err := subgrid.Merge(&merged, src, nil); err != nil {
					return errors.Wrap(err, "grid: merge_bins")
				}
			}
			newSubgrids[at(oi, lo, ci)] = merged
			// Bins after the merge range shift left by (hi-lo-1).
			for bi := hi; bi < nb; bi++ {
				newSubgrids[at(oi, bi-(hi-lo-1), ci)] = g.subgrids[g.index(oi, bi, ci)]
			}
		}
	}

	if err := g.bwfl.Merge(lo, hi); err != nil {
		return errors.Wrap(err, "grid: merge_bins")
	}
	g.subgrids = newSubgrids
	return nil
}
