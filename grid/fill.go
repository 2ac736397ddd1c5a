package grid

import "github.com/NNPDF/pineappl-go/subgrid"

// Fill inserts one weighted Monte-Carlo event. It looks up the bin
// containing observable via bwfl.FillIndex; if observable falls outside
// every bin, the event is silently dropped (per spec.md §7, out-of-range
// fills are not an error). On the first fill of an (order, bin, channel)
// slot, the stored Empty subgrid is promoted to a fill-capable *Interp.
func (g *Grid) Fill(order int, observable float64, ch int, ntuple []float64, weight float64) bool {
	bin, ok := g.bwfl.FillIndex(observable)
	if !ok {
		return false
	}
	idx := g.index(order, bin, ch)
	if _, isEmpty := g.subgrids[idx].(subgrid.Empty); isEmpty {
		g.subgrids[idx] = subgrid.NewInterp(g.interps)
	}
	sg, ok := g.subgrids[idx].(*subgrid.Interp)
	if !ok {
		panic("grid: Fill called on a non-Interp, non-Empty slot")
	}
	return sg.Fill(g.interps, ntuple, weight)
}
