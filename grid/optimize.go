package grid

import (
	"strings"

	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// OptimizeFlags is a bitmask selecting which of spec.md §4.6's
// optimization passes OptimizeUsing applies. The distilled spec names
// the six flags without fixing a Go representation; a uint32 bitmask
// with a String() method is the idiomatic rendition of a C-style flag
// enum (mirrors how the teacher's sam.Flags prints BAM flag bits).
type OptimizeFlags uint32

const (
	// OptimizeNodes shrinks every Interp subgrid's axes to their minimal
	// used range, collapsing static axes to length 1.
	OptimizeNodes OptimizeFlags = 1 << iota
	// OptimizeSubgridType replaces every non-empty subgrid with an
	// equivalent Import subgrid over the same full node values (axes are
	// not shrunk to the non-zero range).
	OptimizeSubgridType
	// SymmetrizeChannels folds convolution-symmetric channel pairs
	// together.
	SymmetrizeChannels
	// StripEmptyOrders drops order slots whose entire bin/channel slice
	// is empty.
	StripEmptyOrders
	// StripEmptyChannels drops channel slots whose entire order/bin
	// slice is empty.
	StripEmptyChannels
	// MergeSameChannels combines channels related by a scalar common
	// factor, rescaling one before merging it into the other.
	MergeSameChannels
)

var flagNames = []struct {
	flag OptimizeFlags
	name string
}{
	{OptimizeNodes, "OPTIMIZE_NODES"},
	{OptimizeSubgridType, "OPTIMIZE_SUBGRID_TYPE"},
	{SymmetrizeChannels, "SYMMETRIZE_CHANNELS"},
	{StripEmptyOrders, "STRIP_EMPTY_ORDERS"},
	{StripEmptyChannels, "STRIP_EMPTY_CHANNELS"},
	{MergeSameChannels, "MERGE_SAME_CHANNELS"},
}

// String renders the set bits as a "|"-joined list of flag names, the
// same debug-friendly rendition the teacher uses for its own bitmask
// enums.
func (f OptimizeFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// OptimizeUsing applies every pass selected by flags, in the fixed order
// nodes -> symmetrize -> merge-same-channels -> strip-empty -> subgrid
// type, which keeps later passes working from the smallest possible
// state.
func (g *Grid) OptimizeUsing(flags OptimizeFlags) error {
	if flags&OptimizeNodes != 0 {
		g.optimizeNodes()
	}
	if flags&SymmetrizeChannels != 0 {
		if err := g.symmetrizeChannels(); err != nil {
			return err
		}
	}
	if flags&MergeSameChannels != 0 {
		g.mergeSameChannels()
	}
	if flags&StripEmptyOrders != 0 {
		g.stripEmptyOrders()
	}
	if flags&StripEmptyChannels != 0 {
		g.stripEmptyChannels()
	}
	if flags&OptimizeSubgridType != 0 {
		g.optimizeSubgridType()
	}
	return nil
}

func (g *Grid) optimizeNodes() {
	for i, sg := range g.subgrids {
		if ip, ok := sg.(*subgrid.Interp); ok {
			ip.OptimizeNodes()
			g.subgrids[i] = ip
		}
	}
}

func (g *Grid) optimizeSubgridType() {
	for i, sg := range g.subgrids {
		if sg.IsEmpty() {
			g.subgrids[i] = subgrid.Empty{}
			continue
		}
		if ip, ok := sg.(*subgrid.Interp); ok {
			g.subgrids[i] = subgrid.FromInterp(ip)
		}
	}
}

func (g *Grid) stripEmptyOrders() {
	nb, nc := g.bwfl.Len(), len(g.channels)
	keep := make([]int, 0, len(g.orders))
	for oi := range g.orders {
		empty := true
		for bi := 0; bi < nb && empty; bi++ {
			for ci := 0; ci < nc; ci++ {
				if !g.Subgrid(oi, bi, ci).IsEmpty() {
					empty = false
					break
				}
			}
		}
		if !empty {
			keep = append(keep, oi)
		}
	}
	g.keepOrders(keep)
}

func (g *Grid) stripEmptyChannels() {
	nb, no := g.bwfl.Len(), len(g.orders)
	keep := make([]int, 0, len(g.channels))
	for ci := range g.channels {
		empty := true
		for oi := 0; oi < no && empty; oi++ {
			for bi := 0; bi < nb; bi++ {
				if !g.Subgrid(oi, bi, ci).IsEmpty() {
					empty = false
					break
				}
			}
		}
		if !empty {
			keep = append(keep, ci)
		}
	}
	g.keepChannels(keep)
}

func (g *Grid) keepOrders(keep []int) {
	nb, nc := g.bwfl.Len(), len(g.channels)
	newOrders := make([]channel.Order, len(keep))
	newSubgrids := make([]subgrid.Subgrid, len(keep)*nb*nc)
	for newOi, oi := range keep {
		newOrders[newOi] = g.orders[oi]
		for bi := 0; bi < nb; bi++ {
			for ci := 0; ci < nc; ci++ {
				newSubgrids[(newOi*nb+bi)*nc+ci] = g.subgrids[g.index(oi, bi, ci)]
			}
		}
	}
	g.orders = newOrders
	g.subgrids = newSubgrids
}

func (g *Grid) keepChannels(keep []int) {
	nb, no := g.bwfl.Len(), len(g.orders)
	newChannels := make([]channel.Channel, len(keep))
	newSubgrids := make([]subgrid.Subgrid, no*nb*len(keep))
	for newCi, ci := range keep {
		newChannels[newCi] = g.channels[ci]
		for oi := 0; oi < no; oi++ {
			for bi := 0; bi < nb; bi++ {
				newSubgrids[(oi*nb+bi)*len(keep)+newCi] = g.subgrids[g.index(oi, bi, ci)]
			}
		}
	}
	g.channels = newChannels
	g.subgrids = newSubgrids
}

// mergeSameChannels finds channel pairs related by a scalar common
// factor and merges the second into the first (rescaled), per spec.md
// §4.6 MERGE_SAME_CHANNELS.
func (g *Grid) mergeSameChannels() {
	nb, no := g.bwfl.Len(), len(g.orders)
	keep := make([]bool, len(g.channels))
	for i := range keep {
		keep[i] = true
	}
	for i := 0; i < len(g.channels); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(g.channels); j++ {
			if !keep[j] {
				continue
			}
			factor, ok := g.channels[i].CommonFactor(g.channels[j])
			if !ok {
				continue
			}
			for oi := 0; oi < no; oi++ {
				for bi := 0; bi < nb; bi++ {
					src := g.Subgrid(oi, bi, j)
					if src.IsEmpty() {
						continue
					}
					scaled := src.Clone()
					scaled.ScaleBy(factor)
					dstIdx := g.index(oi, bi, i)
					dst := g.subgrids[dstIdx]
					_ = subgrid.Merge(&dst, scaled, nil)
					g.subgrids[dstIdx] = dst
				}
			}
			keep[j] = false
		}
	}
	newKeep := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			newKeep = append(newKeep, i)
		}
	}
	g.keepChannels(newKeep)
}

// symmetrizeChannels implements spec.md §4.6's "Symmetrize channels"
// pass. It finds the unique pair of equal convolutions, derives the
// corresponding X-kinematic swap axes, and for each channel either folds
// its own subgrids onto themselves (if the channel equals its own
// (a,b)-transpose) or merges it with its transpose partner.
func (g *Grid) symmetrizeChannels() error {
	a, b, ok := g.symmetricConvPair()
	if !ok {
		return nil
	}
	axisA, axisB := g.xAxisFor(a), g.xAxisFor(b)

	nb, no := g.bwfl.Len(), len(g.orders)
	handled := make([]bool, len(g.channels))
	for ci, ch := range g.channels {
		if handled[ci] {
			continue
		}
		transposed := ch.Transpose(a, b)
		if ch.Equal(transposed) {
			for oi := 0; oi < no; oi++ {
				for bi := 0; bi < nb; bi++ {
					idx := g.index(oi, bi, ci)
					sg := g.subgrids[idx]
					sg.Symmetrize(axisA, axisB)
					g.subgrids[idx] = sg
				}
			}
			handled[ci] = true
			continue
		}

		partner := -1
		for cj, other := range g.channels {
			if cj == ci || handled[cj] {
				continue
			}
			if other.Equal(transposed) {
				partner = cj
				break
			}
		}
		if partner < 0 {
			return ErrAsymmetricChannelPartner
		}
		axes := [2]int{axisA, axisB}
		for oi := 0; oi < no; oi++ {
			for bi := 0; bi < nb; bi++ {
				dstIdx := g.index(oi, bi, ci)
				dst := g.subgrids[dstIdx]
				src := g.Subgrid(oi, bi, partner)
				if err := subgrid.Merge(&dst, src, &axes); err != nil {
					return err
				}
				g.subgrids[dstIdx] = dst
			}
		}
		handled[ci] = true
		handled[partner] = true
	}
	return nil
}

// symmetricConvPair finds the unique pair of convolution slots sharing
// the same Conv descriptor, returning their indices.
func (g *Grid) symmetricConvPair() (int, int, bool) {
	for i := 0; i < len(g.convs); i++ {
		for j := i + 1; j < len(g.convs); j++ {
			if g.convs[i] == g.convs[j] {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func (g *Grid) xAxisFor(conv int) int {
	for axis, k := range g.kinematics {
		if k.Kind == channel.KindX && k.Index == conv {
			return axis
		}
	}
	panic("grid: no X kinematics axis for convolution")
}
