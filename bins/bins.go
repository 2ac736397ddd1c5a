package bins

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// BinsULPs is the tolerance used by BinsPartialEqWithULPs for structural
// bin equality during grid merges.
const BinsULPs = 8

// Bin is one N-dimensional hyper-rectangle, with a caller-supplied
// normalization (e.g. a bin width or luminosity factor used to divide
// through at convolution time).
type Bin struct {
	Limits        [][2]float64
	Normalization float64
}

// dim returns the hyper-rectangle's dimension.
func (b Bin) dim() int { return len(b.Limits) }

// BinsWithFillLimits is an ordered sequence of Bins with a parallel,
// strictly increasing fill-limit sequence of length len(Bins)+1, which
// induces a 1-D search tree over observable space.
type BinsWithFillLimits struct {
	binList    []Bin
	fillLimits []float64
}

// FromFillLimits constructs len(limits)-1 one-dimensional bins whose
// limits equal consecutive pairs of limits and whose normalizations
// equal the bin widths.
func FromFillLimits(limits []float64) (BinsWithFillLimits, error) {
	bl, err := NewBinLimits(limits)
	if err != nil {
		return BinsWithFillLimits{}, err
	}
	n := bl.Bins()
	binList := make([]Bin, n)
	for i := 0; i < n; i++ {
		left, right := limits[i], limits[i+1]
		binList[i] = Bin{Limits: [][2]float64{{left, right}}, Normalization: right - left}
	}
	return BinsWithFillLimits{binList: binList, fillLimits: append([]float64(nil), limits...)}, nil
}

// New constructs a BinsWithFillLimits from an explicit bin list and fill
// limits, validating every invariant in spec.md §3.
func New(binList []Bin, fillLimits []float64) (BinsWithFillLimits, error) {
	b := BinsWithFillLimits{binList: append([]Bin(nil), binList...), fillLimits: append([]float64(nil), fillLimits...)}
	if err := b.Validate(); err != nil {
		return BinsWithFillLimits{}, err
	}
	return b, nil
}

// Validate checks that all bins share the same dimension, fill_limits is
// strictly increasing, and len(fill_limits)-1 == len(bins).
func (b BinsWithFillLimits) Validate() error {
	if len(b.fillLimits)-1 != len(b.binList) {
		return errors.Errorf("bins: fill_limits.len()-1 (%d) != bins.len() (%d)", len(b.fillLimits)-1, len(b.binList))
	}
	for i := 1; i < len(b.fillLimits); i++ {
		if b.fillLimits[i] <= b.fillLimits[i-1] {
			return errors.Errorf("bins: fill_limits must be strictly increasing at index %d", i)
		}
	}
	if len(b.binList) > 0 {
		dim := b.binList[0].dim()
		for i, bin := range b.binList {
			if bin.dim() != dim {
				return errors.Errorf("bins: bin %d has dimension %d, want %d", i, bin.dim(), dim)
			}
		}
	}
	return nil
}

// Bins returns the bin list.
func (b BinsWithFillLimits) Bins() []Bin {
	return b.binList
}

// FillLimits returns the fill-limit sequence.
func (b BinsWithFillLimits) FillLimits() []float64 {
	return b.fillLimits
}

// Len returns the number of bins.
func (b BinsWithFillLimits) Len() int {
	return len(b.binList)
}

// FillIndex returns the index of the bin containing value, or false if
// value is strictly below the first fill limit or at/above the last.
func (b BinsWithFillLimits) FillIndex(value float64) (int, bool) {
	fl := b.fillLimits
	if len(fl) < 2 || value < fl[0] || value >= fl[len(fl)-1] {
		return 0, false
	}
	// First index i such that fl[i] > value; the containing bin is i-1.
	i := sort.Search(len(fl), func(i int) bool { return fl[i] > value })
	return i - 1, true
}

// Merge fuses the contiguous bin range [lo, hi) into a single bin: the
// result's hyper-rectangle matches binList[lo] on every dimension except
// the last, and spans [binList[lo].Limits[last].left,
// binList[hi-1].Limits[last].right] on the last dimension; its
// normalization is the sum of the merged bins' normalizations. It fails,
// leaving b unchanged, if the bins in range don't share limits on every
// non-last dimension.
func (b *BinsWithFillLimits) Merge(lo, hi int) error {
	if lo < 0 || hi > len(b.binList) || lo >= hi {
		return errors.Errorf("bins: invalid merge range [%d, %d) over %d bins", lo, hi, len(b.binList))
	}
	if hi-lo == 1 {
		return nil
	}
	dim := b.binList[lo].dim()
	for i := lo; i < hi; i++ {
		for d := 0; d < dim-1; d++ {
			if b.binList[i].Limits[d] != b.binList[lo].Limits[d] {
				return errors.Errorf("bins: cannot merge bins [%d, %d): limits differ on non-last dimension %d", lo, hi, d)
			}
		}
	}
	merged := Bin{Limits: make([][2]float64, dim)}
	copy(merged.Limits, b.binList[lo].Limits)
	merged.Limits[dim-1] = [2]float64{b.binList[lo].Limits[dim-1][0], b.binList[hi-1].Limits[dim-1][1]}
	for i := lo; i < hi; i++ {
		merged.Normalization += b.binList[i].Normalization
	}

	newBins := make([]Bin, 0, len(b.binList)-(hi-lo)+1)
	newBins = append(newBins, b.binList[:lo]...)
	newBins = append(newBins, merged)
	newBins = append(newBins, b.binList[hi:]...)

	newLimits := make([]float64, 0, len(b.fillLimits)-(hi-lo)+1)
	newLimits = append(newLimits, b.fillLimits[:lo+1]...)
	newLimits = append(newLimits, b.fillLimits[hi:]...)

	b.binList = newBins
	b.fillLimits = newLimits
	return nil
}

// BinsPartialEqWithULPs reports structural equality between two bin
// lists modulo BinsULPs floating-point tolerance, used during grid
// merge.
func BinsPartialEqWithULPs(a, b []Bin) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].dim() != b[i].dim() {
			return false
		}
		for d := range a[i].Limits {
			if !ulpsEqual(a[i].Limits[d][0], b[i].Limits[d][0], BinsULPs) ||
				!ulpsEqual(a[i].Limits[d][1], b[i].Limits[d][1], BinsULPs) {
				return false
			}
		}
		if !ulpsEqual(a[i].Normalization, b[i].Normalization, BinsULPs) {
			return false
		}
	}
	return true
}

func ulpsEqual(a, b float64, maxULPs uint64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) {
		return false
	}
	ai := int64(math.Float64bits(a))
	if ai < 0 {
		ai = math.MinInt64 - ai
	}
	bi := int64(math.Float64bits(b))
	if bi < 0 {
		bi = math.MinInt64 - bi
	}
	diff := ai - bi
	if diff < 0 {
		diff = -diff
	}
	return uint64(diff) <= maxULPs
}
