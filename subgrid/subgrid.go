// Package subgrid implements the three subgrid variants held at each
// (order, bin, channel) slot of a Grid -- Empty, Interp (fill-capable),
// and Import (merge target only) -- behind one uniform contract, plus
// the merge and symmetrization algebra that operates across them.
package subgrid

import "github.com/NNPDF/pineappl-go/interp"

// Entry is one non-default stored value, as yielded by IndexedIter.
type Entry struct {
	Index []int
	Value float64
}

// Subgrid is the uniform contract implemented by Empty, *Interp, and
// *Import. A Grid holds one Subgrid per (order, bin, channel) slot.
type Subgrid interface {
	// NodeValues returns, for each axis, the physical coordinates of its
	// interpolation (or imported) nodes. Empty returns nil.
	NodeValues() [][]float64

	// Shape returns the per-axis length of the backing array. It panics
	// on Empty, which carries no storage.
	Shape() []int

	// Fill inserts a weighted event via Lagrange interpolation. It panics
	// on Empty and Import; only *Interp accepts fills.
	Fill(interps []interp.Interp, ntuple []float64, weight float64) bool

	// IsEmpty reports whether the subgrid has no non-default entries.
	IsEmpty() bool

	// ScaleBy multiplies every stored entry by f. No-op on Empty.
	ScaleBy(f float64)

	// Symmetrize folds the upper triangle of axes (a, b) onto the lower
	// one, in place. No-op on Empty.
	Symmetrize(a, b int)

	// IndexedIter returns every non-default entry, with any per-axis
	// reweighting already applied.
	IndexedIter() []Entry

	// Clone returns a deep copy.
	Clone() Subgrid
}
