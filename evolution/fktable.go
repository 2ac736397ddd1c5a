package evolution

import (
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/grid"
	"github.com/NNPDF/pineappl-go/internal/luminosity"
)

// FKTable is a Grid subtype enforcing the structural guarantees spec.md's
// glossary assigns an FK table: "an evolved grid whose kernel has been
// collapsed onto fixed reference scales; it carries no scale-variation
// dimension." Concretely: exactly one order (the
// zero order, since evolution has already folded scale-variation logs and
// alpha_s powers into the stored coefficients), and a kinematics layout of
// one scale axis followed by the original per-convolution X axes.
type FKTable struct {
	g *grid.Grid
}

// newFKTable validates g's structural invariants and wraps it.
func newFKTable(g *grid.Grid) (*FKTable, error) {
	if len(g.Orders()) != 1 {
		return nil, errors.Errorf("evolution: FK table must have exactly one order, got %d", len(g.Orders()))
	}
	if g.Orders()[0] != (channel.Order{}) {
		return nil, errors.Errorf("evolution: FK table's single order must be the zero order, got %+v", g.Orders()[0])
	}
	kinematics := g.Kinematics()
	if len(kinematics) == 0 || kinematics[0].Kind != channel.KindScale {
		return nil, errors.New("evolution: FK table's first axis must be a scale axis")
	}
	for i, k := range kinematics[1:] {
		if k.Kind != channel.KindX || k.Index != i {
			return nil, errors.Errorf("evolution: FK table axis %d must be X(%d), got %+v", i+1, i, k)
		}
	}
	return &FKTable{g: g}, nil
}

// Grid returns the underlying Grid, for callers that need direct access
// to bins, channels, or persistence (grid.Grid.Write/grid.Read).
func (fk *FKTable) Grid() *grid.Grid {
	return fk.g
}

// Convolve evaluates the FK table's cross-section per selected bin. An FK
// table carries no scale-variation dimension, so there is only ever one
// implicit xi triple (1, 1, 1) and alpha_s has already been folded into
// the stored coefficients at contraction time, hence an AlphasFunc that
// always returns 1.
func (fk *FKTable) Convolve(cache *luminosity.Cache, binIndices []int, lumis []grid.StructureFunction) ([]float64, error) {
	return fk.g.Convolve(cache, nil, binIndices, nil, []grid.XiTriple{{XiR: 1, XiF: 1, XiA: 1}}, lumis, func(float64) float64 { return 1 })
}
