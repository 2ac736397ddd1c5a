package evolution

import "github.com/pkg/errors"

// ErrMissingOperator is returned when the grid needs a factorization
// scale (fac1) for which no convolution's iterator ever supplied a
// matching operator slice, per spec.md §4.7's "After consuming the
// iterators, verify every required fac1 was consumed; else fail."
var ErrMissingOperator = errors.New("evolution: required fac1 value was never supplied by an operator slice")

// ErrFac0Mismatch is returned when two processed slices disagree on fac0,
// per spec.md §7's "Evolution mismatch: ... mismatched fac0 across
// slots".
var ErrFac0Mismatch = errors.New("evolution: mismatched fac0 across operator slots")

// ErrIteratorLengthMismatch is returned when the per-convolution slice
// iterators don't exhaust in lock-step, which would leave the
// lock-step walk of spec.md §4.7 unable to pair up slices.
var ErrIteratorLengthMismatch = errors.New("evolution: convolution slice iterators exhausted at different lengths")
