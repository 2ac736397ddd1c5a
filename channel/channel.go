package channel

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// nearZero is the coefficient magnitude below which a Channel term is
// dropped during canonicalization. Load-bearing: changing it changes
// which terms survive Channel.New.
const nearZero = 1e-14

// commonFactorULPs is the coefficient-ratio tolerance used by
// Channel.CommonFactor.
const commonFactorULPs = 4

// Term is one summand of a Channel: a tuple of PIDs (one per
// convolution) and its coefficient.
type Term struct {
	PIDs        []PID
	Coefficient float64
}

// Channel is a non-empty, order-independent sum of Terms sharing the
// same perturbative coefficient. Two channels built from the same
// (possibly shuffled, possibly duplicated) term list via New are equal.
type Channel struct {
	terms []Term
}

// Terms returns the channel's canonical term list.
func (c Channel) Terms() []Term {
	return c.terms
}

func pidsLess(a, b []PID) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func pidsEqual(a, b []PID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// New builds a Channel from terms, coalescing terms with equal PID
// tuples, dropping terms whose |coefficient| <= 1e-14, and sorting the
// result lexicographically by PID tuple. It is idempotent and
// order-insensitive: shuffling or duplicating the input terms yields an
// equal channel.
func New(terms []Term) Channel {
	byPIDs := make(map[string]*Term)
	order := make([]string, 0, len(terms))
	for _, t := range terms {
		key := pidKey(t.PIDs)
		if existing, ok := byPIDs[key]; ok {
			existing.Coefficient += t.Coefficient
		} else {
			cp := Term{PIDs: append([]PID(nil), t.PIDs...), Coefficient: t.Coefficient}
			byPIDs[key] = &cp
			order = append(order, key)
		}
	}

	out := make([]Term, 0, len(order))
	for _, key := range order {
		t := byPIDs[key]
		if math.Abs(t.Coefficient) > nearZero {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return pidsLess(out[i].PIDs, out[j].PIDs) })
	return Channel{terms: out}
}

func pidKey(pids []PID) string {
	b := make([]byte, 0, len(pids)*5)
	for _, p := range pids {
		b = append(b, byte(p), byte(p>>8), byte(p>>16), byte(p>>24), '|')
	}
	return string(b)
}

// Equal reports whether two channels have identical canonical term
// lists (same PID tuples, in the same order, with equal coefficients).
func (c Channel) Equal(other Channel) bool {
	if len(c.terms) != len(other.terms) {
		return false
	}
	for i := range c.terms {
		if !pidsEqual(c.terms[i].PIDs, other.terms[i].PIDs) || c.terms[i].Coefficient != other.terms[i].Coefficient {
			return false
		}
	}
	return true
}

// NumConvolutions returns the PID-tuple length shared by every term.
func (c Channel) NumConvolutions() int {
	if len(c.terms) == 0 {
		return 0
	}
	return len(c.terms[0].PIDs)
}

// Translate applies a per-PID linear map f to every position of every
// term, taking the Cartesian product across PID positions and
// multiplying coefficients, then renormalizes the result via New.
func (c Channel) Translate(f func(PID) []PIDFactor) Channel {
	var out []Term
	for _, t := range c.terms {
		out = append(out, translateTerm(t, f, 0, nil, t.Coefficient)...)
	}
	return New(out)
}

func translateTerm(t Term, f func(PID) []PIDFactor, pos int, acc []PID, coeff float64) []Term {
	if pos == len(t.PIDs) {
		return []Term{{PIDs: append([]PID(nil), acc...), Coefficient: coeff}}
	}
	var out []Term
	for _, pf := range f(t.PIDs[pos]) {
		out = append(out, translateTerm(t, f, pos+1, append(acc, pf.PID), coeff*pf.Factor)...)
	}
	return out
}

// Transpose swaps PID positions i and j in every term, renormalizing via
// New.
func (c Channel) Transpose(i, j int) Channel {
	out := make([]Term, len(c.terms))
	for k, t := range c.terms {
		pids := append([]PID(nil), t.PIDs...)
		pids[i], pids[j] = pids[j], pids[i]
		out[k] = Term{PIDs: pids, Coefficient: t.Coefficient}
	}
	return New(out)
}

// CommonFactor returns (f, true) iff c and other have the same canonical
// PID tuples in the same order and every coefficient ratio
// c.terms[i].Coefficient / other.terms[i].Coefficient is equal (within
// commonFactorULPs of each other); f is that common ratio. Otherwise it
// returns (0, false).
func (c Channel) CommonFactor(other Channel) (float64, bool) {
	if len(c.terms) != len(other.terms) || len(c.terms) == 0 {
		return 0, false
	}
	ratios := make([]float64, len(c.terms))
	for i := range c.terms {
		if !pidsEqual(c.terms[i].PIDs, other.terms[i].PIDs) {
			return 0, false
		}
		if other.terms[i].Coefficient == 0 {
			return 0, false
		}
		ratios[i] = c.terms[i].Coefficient / other.terms[i].Coefficient
	}
	first := ratios[0]
	for _, r := range ratios[1:] {
		if !ulpsEqual(r, first, commonFactorULPs) {
			return 0, false
		}
	}
	return first, true
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

// ConvKind distinguishes the two conventions a convolution slot can use.
type ConvKind int

const (
	// ConvUnpolarizedPDF is an ordinary unpolarized structure function.
	ConvUnpolarizedPDF ConvKind = iota
	// ConvPolarizedPDF is a longitudinally polarized structure function.
	ConvPolarizedPDF
	// ConvFragmentation is a fragmentation function (outgoing hadron).
	ConvFragmentation
)

// Conv describes one grid convolution slot: its kind and a reference
// PID used for e.g. charge-conjugation bookkeeping.
type Conv struct {
	Kind      ConvKind
	PIDRef    PID
}

// Validate checks that every term in channels has exactly numConv PIDs,
// per spec.md §3's Grid invariant (i).
func Validate(channels []Channel, numConv int) error {
	for ci, c := range channels {
		for ti, t := range c.terms {
			if len(t.PIDs) != numConv {
				return errors.Errorf("channel: channel %d term %d has %d PIDs, want %d", ci, ti, len(t.PIDs), numConv)
			}
		}
	}
	return nil
}
