// Package grid implements Grid, the central 3-D (order, bin, channel)
// container of Subgrid values plus the descriptors that give each axis
// meaning, following the teacher's pattern of one big container package
// sitting atop a set of narrow leaf packages (mark_duplicates.go plays
// the same role for grailbio/bio's BAM processing pipeline).
package grid

import (
	"fmt"
	"sort"

	"blainsmith.com/go/seahash"
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/bins"
	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// gitVersionKey is the metadata key populated automatically at Grid
// creation, per spec.md §6.
const gitVersionKey = "pineappl_gitversion"

// gitVersion is a build-time-overridable stamp; the teacher's equivalent
// constant lives in its own small version package, but a single grid
// package has no need for one.
var gitVersion = "unknown"

// Grid is the 3-D (order, bin, channel) container of Subgrid values,
// together with every descriptor needed to make convolution,
// merging, and persistence well-defined.
type Grid struct {
	subgrids []subgrid.Subgrid // flat, raveled as order-major, then bin, then channel

	bwfl       bins.BinsWithFillLimits
	orders     []channel.Order
	channels   []channel.Channel
	pidBasis   channel.PidBasis
	convs      []channel.Conv
	interps    []interp.Interp
	kinematics []channel.Kinematics
	scales     channel.Scales

	metadata  map[string]string
	reference []float64 // optional; nil if absent
}

// New constructs an all-Empty Grid and validates the invariants of
// spec.md §3: every channel term has len(convs) PIDs, interps and
// kinematics have equal length, and scales are compatible with
// kinematics.
func New(
	bwfl bins.BinsWithFillLimits,
	orders []channel.Order,
	channels []channel.Channel,
	pidBasis channel.PidBasis,
	convs []channel.Conv,
	interps []interp.Interp,
	kinematics []channel.Kinematics,
	scales channel.Scales,
) (*Grid, error) {
	if err := channel.Validate(channels, len(convs)); err != nil {
		return nil, errors.Wrap(err, "grid: invalid channel list")
	}
	if len(interps) != len(kinematics) {
		return nil, errors.Errorf("grid: interps has %d entries, kinematics has %d", len(interps), len(kinematics))
	}
	if !scales.CompatibleWith(kinematics) {
		return nil, errors.New("grid: scales reference a kinematic scale index not present in kinematics")
	}

	n := bwfl.Len() * len(orders) * len(channels)
	subgrids := make([]subgrid.Subgrid, n)
	for i := range subgrids {
		subgrids[i] = subgrid.Empty{}
	}

	g := &Grid{
		subgrids:   subgrids,
		bwfl:       bwfl,
		orders:     append([]channel.Order(nil), orders...),
		channels:   append([]channel.Channel(nil), channels...),
		pidBasis:   pidBasis,
		convs:      append([]channel.Conv(nil), convs...),
		interps:    append([]interp.Interp(nil), interps...),
		kinematics: append([]channel.Kinematics(nil), kinematics...),
		scales:     scales,
		metadata:   map[string]string{gitVersionKey: gitVersion},
	}
	return g, nil
}

// index computes the flat slot index for (order, bin, channel), ordered
// order-major then bin then channel -- matching the persistence layout
// of spec.md §6 ("subgrid array (shape-then-elements)").
func (g *Grid) index(order, bin, ch int) int {
	nb, nc := g.bwfl.Len(), len(g.channels)
	return (order*nb+bin)*nc + ch
}

// Bins returns the grid's bin structure.
func (g *Grid) Bins() bins.BinsWithFillLimits { return g.bwfl }

// Orders returns the grid's order list.
func (g *Grid) Orders() []channel.Order { return g.orders }

// Channels returns the grid's channel list.
func (g *Grid) Channels() []channel.Channel { return g.channels }

// PidBasis returns the grid's current PID basis.
func (g *Grid) PidBasis() channel.PidBasis { return g.pidBasis }

// Convolutions returns the per-slot convolution descriptors.
func (g *Grid) Convolutions() []channel.Conv { return g.convs }

// Interps returns the per-axis interpolation descriptors.
func (g *Grid) Interps() []interp.Interp { return g.interps }

// Kinematics returns the per-axis kinematics tags.
func (g *Grid) Kinematics() []channel.Kinematics { return g.kinematics }

// Scales returns the grid's scale functional forms.
func (g *Grid) Scales() channel.Scales { return g.scales }

// Subgrid returns the subgrid stored at (order, bin, channel).
func (g *Grid) Subgrid(order, bin, ch int) subgrid.Subgrid {
	return g.subgrids[g.index(order, bin, ch)]
}

// SetSubgrid installs sg at (order, bin, channel), replacing whatever was
// there. This is the same slot-assignment the persistence layer
// (grid/io.go's decodeV1) uses in-package to repopulate a deserialized
// Grid; it is exported so that other packages constructing a Grid's
// contents directly -- evolution's FK-table assembly being the
// motivating case, since an FK table's Import subgrids are built from a
// contracted operator rather than from Fill -- don't need a second,
// parallel construction path.
func (g *Grid) SetSubgrid(order, bin, ch int, sg subgrid.Subgrid) {
	g.subgrids[g.index(order, bin, ch)] = sg
}

// SetMetadata records a key/value pair. Charge conjugation and basis
// rotation never touch metadata, per spec.md §6.
func (g *Grid) SetMetadata(key, value string) {
	g.metadata[key] = value
}

// Metadata returns the value stored under key, and whether it was
// present.
func (g *Grid) Metadata(key string) (string, bool) {
	v, ok := g.metadata[key]
	return v, ok
}

// SetReference installs an optional reference cross-section table,
// one value per bin.
func (g *Grid) SetReference(values []float64) error {
	if len(values) != g.bwfl.Len() {
		return errors.Errorf("grid: reference table has %d entries, want %d bins", len(values), g.bwfl.Len())
	}
	g.reference = append([]float64(nil), values...)
	return nil
}

// Reference returns the optional reference cross-section table, or nil
// if none was set.
func (g *Grid) Reference() []float64 {
	return g.reference
}

// Fingerprint returns a seahash-based structural checksum over the
// grid's bin limits, orders, channel list, and every non-zero subgrid
// entry. It lets tests compare two grids produced via different code
// paths (e.g. a direct fill versus a fill-then-merge) without a full
// deep-equal, the same role cmd/bio-pamtool/checksum.go's seahash
// record checksum plays for a PAM shard.
func (g *Grid) Fingerprint() uint64 {
	h := seahash.New()
	write := func(s string) { _, _ = h.Write([]byte(s)) }

	for _, l := range g.bwfl.FillLimits() {
		write(fmt.Sprintf("%x;", l))
	}
	for _, o := range g.orders {
		write(fmt.Sprintf("%d,%d,%d,%d,%d;", o.Alphas, o.Alpha, o.LogXiR, o.LogXiF, o.LogXiA))
	}
	for _, c := range g.channels {
		for _, t := range c.Terms() {
			write(fmt.Sprintf("%v|%x;", t.PIDs, t.Coefficient))
		}
		write("/")
	}

	type slot struct {
		order, bin, ch int
		entries        []subgrid.Entry
	}
	slots := make([]slot, 0, len(g.subgrids))
	nb, nc := g.bwfl.Len(), len(g.channels)
	for o := range g.orders {
		for b := 0; b < nb; b++ {
			for c := 0; c < nc; c++ {
				sg := g.Subgrid(o, b, c)
				if sg.IsEmpty() {
					continue
				}
				slots = append(slots, slot{order: o, bin: b, ch: c, entries: sg.IndexedIter()})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].order != slots[j].order {
			return slots[i].order < slots[j].order
		}
		if slots[i].bin != slots[j].bin {
			return slots[i].bin < slots[j].bin
		}
		return slots[i].ch < slots[j].ch
	})
	for _, s := range slots {
		write(fmt.Sprintf("@%d,%d,%d:", s.order, s.bin, s.ch))
		for _, e := range s.entries {
			write(fmt.Sprintf("%v=%x;", e.Index, e.Value))
		}
	}
	return h.Sum64()
}
