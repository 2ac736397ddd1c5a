package evolution

import (
	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/channel"
)

// OperatorSliceInfo describes one evolution-operator slice, per spec.md
// §4.7's consumer interface: the input scale fac0, the output scale fac1
// the slice evolves to, the x-grids on both ends, the PID lists on both
// ends, which convolution kind the slice belongs to, and the PID basis its
// pids1/pids0 are expressed in.
type OperatorSliceInfo struct {
	Fac0     float64
	Fac1     float64
	X0       []float64
	X1       []float64
	Pids0    []channel.PID
	Pids1    []channel.PID
	ConvType channel.ConvKind
	PidBasis channel.PidBasis
}

// Operator holds one evolution-operator slice's 4-D array, shaped
// (|pids1|, |x1|, |pids0|, |x0|): Operator.At(iPids1, iX1, iPids0, iX0) is
// the contribution of the input PDF at (pids0[iPids0], x0[iX0], fac0) to
// the structure function at (pids1[iPids1], x1[iX1], fac1).
type Operator struct {
	shape [4]int
	data  []float64
}

// NewOperator allocates a zeroed Operator of the given shape.
func NewOperator(nPids1, nX1, nPids0, nX0 int) Operator {
	return Operator{
		shape: [4]int{nPids1, nX1, nPids0, nX0},
		data:  make([]float64, nPids1*nX1*nPids0*nX0),
	}
}

// Shape returns (|pids1|, |x1|, |pids0|, |x0|).
func (o Operator) Shape() [4]int { return o.shape }

func (o Operator) offset(iPids1, iX1, iPids0, iX0 int) int {
	s := o.shape
	return ((iPids1*s[1]+iX1)*s[2]+iPids0)*s[3] + iX0
}

// At returns the stored value at (iPids1, iX1, iPids0, iX0).
func (o Operator) At(iPids1, iX1, iPids0, iX0 int) float64 {
	return o.data[o.offset(iPids1, iX1, iPids0, iX0)]
}

// Set stores v at (iPids1, iX1, iPids0, iX0).
func (o Operator) Set(iPids1, iX1, iPids0, iX0 int, v float64) {
	o.data[o.offset(iPids1, iX1, iPids0, iX0)] = v
}

// SliceResult bundles one operator slice with its descriptor, as yielded
// by a SliceIterator.
type SliceResult struct {
	Info     OperatorSliceInfo
	Operator Operator
}

// SliceIterator is the consumer interface for one convolution's stream of
// evolution-operator slices, per spec.md §6: "One iterator per
// convolution, each yielding Result<(OperatorSliceInfo, 4D-array),
// Error>." Next returns ok=false once exhausted; an error from the
// underlying source is propagated verbatim, per spec.md §6's "The driver
// propagates iterator errors verbatim."
type SliceIterator interface {
	Next() (SliceResult, bool, error)
}

// SliceSlice adapts a pre-built []SliceResult into a SliceIterator, the
// shape test fixtures and small offline scripts need most often.
type SliceSlice struct {
	results []SliceResult
	pos     int
}

// NewSliceSlice wraps results as a SliceIterator.
func NewSliceSlice(results []SliceResult) *SliceSlice {
	return &SliceSlice{results: results}
}

// Next returns the next element of the wrapped slice.
func (s *SliceSlice) Next() (SliceResult, bool, error) {
	if s.pos >= len(s.results) {
		return SliceResult{}, false, nil
	}
	r := s.results[s.pos]
	s.pos++
	return r, true, nil
}

// validateShape checks that an operator's declared shape matches the
// dimensions named by its slice info, per spec.md §4.7 step 1.
func validateShape(r SliceResult) error {
	shape := r.Operator.Shape()
	want := [4]int{len(r.Info.Pids1), len(r.Info.X1), len(r.Info.Pids0), len(r.Info.X0)}
	if shape != want {
		return errors.Errorf("evolution: operator shape %v does not match slice info (want %v)", shape, want)
	}
	return nil
}
