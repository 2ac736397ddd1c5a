package subgrid

import "github.com/NNPDF/pineappl-go/interp"

// Empty carries no storage. It exists to keep sparse 3-D (order, bin,
// channel) subgrid arrays cheap when entire cells are unused; all
// operations are no-ops except its role as the source of a promotion to
// *Interp on first fill, handled by the grid package.
type Empty struct{}

var _ Subgrid = Empty{}

// NodeValues always returns nil on Empty.
func (Empty) NodeValues() [][]float64 { return nil }

// Shape panics: an Empty subgrid carries no shape.
func (Empty) Shape() []int { panic("subgrid: Shape called on Empty") }

// Fill panics: callers must promote to *Interp before filling.
func (Empty) Fill([]interp.Interp, []float64, float64) bool {
	panic("subgrid: Fill called on Empty")
}

// IsEmpty is always true.
func (Empty) IsEmpty() bool { return true }

// ScaleBy is a no-op.
func (Empty) ScaleBy(float64) {}

// Symmetrize is a no-op.
func (Empty) Symmetrize(int, int) {}

// IndexedIter always returns no entries.
func (Empty) IndexedIter() []Entry { return nil }

// Clone returns another Empty value.
func (Empty) Clone() Subgrid { return Empty{} }
