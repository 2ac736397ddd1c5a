package grid

import "github.com/pkg/errors"

// ErrNonContiguousBinMerge is returned by Merge when other's bin set
// cannot be appended to the right of self's fill limits: spec.md §9
// flags general bin-set interleaving as future work and permits
// rejecting it outright.
var ErrNonContiguousBinMerge = errors.New("grid: non-contiguous bin merge is not supported")

// ErrAsymmetricChannelPartner is returned by Optimize's
// SYMMETRIZE_CHANNELS pass when a non-self-symmetric, non-empty channel
// has no (a,b)-transpose partner in the channel list: spec.md §9 leaves
// this case a documented precondition rather than a silent skip.
var ErrAsymmetricChannelPartner = errors.New("grid: channel has no transpose partner to symmetrize against")

// ErrStructuralMismatch is returned by Merge when the two grids differ
// in convolutions, PID basis, kinematics, interpolations, or scales.
var ErrStructuralMismatch = errors.New("grid: structural mismatch between grids")
