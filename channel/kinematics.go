package channel

import "github.com/pkg/errors"

// KinematicsKind tags a grid axis as a momentum fraction for some
// convolution, or as an energy scale.
type KinematicsKind int

const (
	// KindX tags an axis as the momentum fraction of convolution Index.
	KindX KinematicsKind = iota
	// KindScale tags an axis as the Index-th kinematic energy scale.
	KindScale
)

// Kinematics is the tag attached to one grid axis.
type Kinematics struct {
	Kind  KinematicsKind
	Index int
}

// X returns the Kinematics tag for the momentum fraction of convolution
// conv.
func X(conv int) Kinematics { return Kinematics{Kind: KindX, Index: conv} }

// Scale returns the Kinematics tag for kinematic scale index i.
func Scale(i int) Kinematics { return Kinematics{Kind: KindScale, Index: i} }

// ScaleFuncForm computes a renormalization/factorization/fragmentation
// scale from the scale-kind kinematic values of one event.
type ScaleFuncForm interface {
	// Calc evaluates the scale given the full slice of kinematic-scale
	// values present on a grid (indexed the same way Kinematics.Index
	// addresses them).
	Calc(scales []float64) (float64, error)
	// referencedIndices returns the kinematic scale indices this form
	// reads, used by CompatibleWith.
	referencedIndices() []int
}

// NoScale is the functional form used when an axis plays no role in a
// particular scale choice (e.g. a grid with no fragmentation scale at
// all sets Scales.Frag = NoScale{}).
type NoScale struct{}

// Calc always returns 0, nil: NoScale never contributes.
func (NoScale) Calc([]float64) (float64, error) { return 0, nil }
func (NoScale) referencedIndices() []int         { return nil }

// ScaleSingle selects one kinematic scale value verbatim.
type ScaleSingle struct{ Index int }

// Calc returns scales[Index].
func (s ScaleSingle) Calc(scales []float64) (float64, error) {
	if s.Index < 0 || s.Index >= len(scales) {
		return 0, errors.Errorf("channel: ScaleSingle index %d out of range (have %d scales)", s.Index, len(scales))
	}
	return scales[s.Index], nil
}
func (s ScaleSingle) referencedIndices() []int { return []int{s.Index} }

// QuadraticSum names the two-scale form sqrt(s_i^2 + s_j^2); its Calc
// does not compute that value and always returns an error.
// spec.md §9 flags this form's calculation as unspecified in the source
// inspected for the distillation; per that open question, Calc fails
// loudly instead of guessing a formula (see DESIGN.md).
type QuadraticSum struct{ I, J int }

// Calc always returns an error: see the type doc comment.
func (q QuadraticSum) Calc([]float64) (float64, error) {
	return 0, errors.Errorf("channel: QuadraticSum(%d, %d).Calc is unimplemented (unspecified open question, fails loudly by design)", q.I, q.J)
}
func (q QuadraticSum) referencedIndices() []int { return []int{q.I, q.J} }

// Scales bundles the three scale functional forms a grid carries.
type Scales struct {
	Ren  ScaleFuncForm
	Fac  ScaleFuncForm
	Frag ScaleFuncForm
}

// CompatibleWith checks that every non-NoScale form in s references a
// scale kinematic index actually present in kinematics.
func (s Scales) CompatibleWith(kinematics []Kinematics) bool {
	present := make(map[int]bool)
	for _, k := range kinematics {
		if k.Kind == KindScale {
			present[k.Index] = true
		}
	}
	for _, form := range []ScaleFuncForm{s.Ren, s.Fac, s.Frag} {
		if form == nil {
			continue
		}
		for _, idx := range form.referencedIndices() {
			if !present[idx] {
				return false
			}
		}
	}
	return true
}
