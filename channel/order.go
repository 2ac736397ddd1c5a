// Package channel holds the plain, order-independent descriptors of the
// three grid axes that are not subgrids themselves: partonic Channel
// combinations, perturbative Order tuples, the Kinematics/Scales
// functional-form descriptors, and PidBasis.
package channel

// Order is a tuple of five exponents describing which power of each
// coupling/logarithm a subgrid slot represents: the strong coupling
// alpha_s, the electroweak coupling alpha, and the renormalization,
// factorization, and fragmentation scale-variation logarithms.
type Order struct {
	Alphas  int
	Alpha   int
	LogXiR  int
	LogXiF  int
	LogXiA  int
}

// Less orders first by total perturbative order (Alphas+Alpha), then
// lexicographically by (Alpha, LogXiR, LogXiF, LogXiA).
func (o Order) Less(other Order) bool {
	ot, oo := o.Alphas+o.Alpha, other.Alphas+other.Alpha
	if ot != oo {
		return ot < oo
	}
	if o.Alpha != other.Alpha {
		return o.Alpha < other.Alpha
	}
	if o.LogXiR != other.LogXiR {
		return o.LogXiR < other.LogXiR
	}
	if o.LogXiF != other.LogXiF {
		return o.LogXiF < other.LogXiF
	}
	return o.LogXiA < other.LogXiA
}

// CreateMask returns, for each order, whether it lies within maxAs
// powers of alpha_s and maxAl powers of alpha of the leading order
// actually present in orders. "Leading order" is the minimum Alphas and
// the minimum Alpha across the whole list (tracked independently, since
// the QCD and EW towers can each start from their own floor), matching
// spec.md's S5 example: for the Drell-Yan order list where every entry
// has Alpha >= 2, max_al=0 keeps only the Alpha==2 entries regardless of
// their Alphas power.
func CreateMask(orders []Order, maxAs, maxAl int) []bool {
	if len(orders) == 0 {
		return nil
	}
	minAlphas, minAlpha := orders[0].Alphas, orders[0].Alpha
	for _, o := range orders[1:] {
		if o.Alphas < minAlphas {
			minAlphas = o.Alphas
		}
		if o.Alpha < minAlpha {
			minAlpha = o.Alpha
		}
	}
	mask := make([]bool, len(orders))
	for i, o := range orders {
		mask[i] = o.Alphas-minAlphas <= maxAs && o.Alpha-minAlpha <= maxAl
	}
	return mask
}
