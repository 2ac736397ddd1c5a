// Package bins implements the 1-D bin-limit sequence primitive and the
// N-dimensional BinsWithFillLimits structure built on top of it: an
// ordered sequence of hyper-rectangular bins with a parallel, strictly
// increasing fill-limit sequence that supports O(log n) fill_index
// lookup.
package bins

import "github.com/pkg/errors"

// BinLimits is a plain, strictly increasing sequence of 1-D bin edges:
// limits[i], limits[i+1] bound bin i. It underlies the "last dimension"
// bookkeeping BinsWithFillLimits needs for merges and fill lookup.
type BinLimits struct {
	limits []float64
}

// NewBinLimits validates that limits has at least two strictly
// increasing entries and returns a BinLimits over them.
func NewBinLimits(limits []float64) (BinLimits, error) {
	if len(limits) < 2 {
		return BinLimits{}, errors.Errorf("bins: need at least 2 limits, got %d", len(limits))
	}
	for i := 1; i < len(limits); i++ {
		if limits[i] <= limits[i-1] {
			return BinLimits{}, errors.Errorf("bins: limits must be strictly increasing, got %v <= %v at index %d", limits[i], limits[i-1], i)
		}
	}
	return BinLimits{limits: append([]float64(nil), limits...)}, nil
}

// Bins returns the number of bins: len(limits)-1.
func (b BinLimits) Bins() int {
	return len(b.limits) - 1
}

// Limits returns the underlying edge sequence.
func (b BinLimits) Limits() []float64 {
	return append([]float64(nil), b.limits...)
}

// Merge fuses b with a consecutive other (other.Limits()[0] must equal
// b.Limits()[last]), returning a new BinLimits spanning both. It fails,
// leaving both inputs unchanged, if the two ranges are not consecutive --
// spec.md's "general interleaving of two bin sets" is out of scope (§9).
func (b BinLimits) Merge(other BinLimits) (BinLimits, error) {
	if len(b.limits) == 0 || len(other.limits) == 0 {
		return BinLimits{}, errors.New("bins: cannot merge with an empty BinLimits")
	}
	if b.limits[len(b.limits)-1] != other.limits[0] {
		return BinLimits{}, errors.Errorf("bins: non-consecutive merge: %v != %v", b.limits[len(b.limits)-1], other.limits[0])
	}
	merged := make([]float64, 0, len(b.limits)+len(other.limits)-1)
	merged = append(merged, b.limits...)
	merged = append(merged, other.limits[1:]...)
	return BinLimits{limits: merged}, nil
}
