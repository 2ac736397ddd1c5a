package channel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNewCoalescesAndDrops(t *testing.T) {
	c := New([]Term{
		{PIDs: []PID{2, -2}, Coefficient: 1.0},
		{PIDs: []PID{2, -2}, Coefficient: 2.0},
		{PIDs: []PID{1, -1}, Coefficient: 1e-15}, // dropped: near zero
	})
	require.Len(t, c.Terms(), 1)
	assert.Equal(t, []PID{2, -2}, c.Terms()[0].PIDs)
	assert.Equal(t, 3.0, c.Terms()[0].Coefficient)
}

func TestChannelNewIdempotentAndOrderInsensitive(t *testing.T) {
	terms := []Term{
		{PIDs: []PID{2, -2}, Coefficient: 1.0},
		{PIDs: []PID{1, -1}, Coefficient: 2.0},
		{PIDs: []PID{-1, 1}, Coefficient: 3.0},
	}
	c1 := New(terms)

	shuffled := append([]Term(nil), terms...)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	c2 := New(shuffled)
	assert.True(t, c1.Equal(c2))

	duplicated := append(append([]Term(nil), terms...), terms...)
	// Duplicating every term doubles every coefficient, so compare against
	// a channel built from doubled coefficients instead of c1 itself.
	doubled := New([]Term{
		{PIDs: []PID{2, -2}, Coefficient: 2.0},
		{PIDs: []PID{1, -1}, Coefficient: 4.0},
		{PIDs: []PID{-1, 1}, Coefficient: 6.0},
	})
	c3 := New(duplicated)
	assert.True(t, c3.Equal(doubled))

	// New applied twice to its own output is a no-op.
	assert.True(t, c1.Equal(New(c1.Terms())))
}

// TestChannelTranslateS4 reproduces spec.md S4: channel![103, 11, 10.0]
// after translate(evol_to_pdg_mc_ids) contains exactly the four terms
// (2,11,10), (-2,11,-10), (1,11,-10), (-1,11,10).
func TestChannelTranslateS4(t *testing.T) {
	c := New([]Term{{PIDs: []PID{103, 11}, Coefficient: 10.0}})
	translated := c.Translate(PidBasisEvol.Translate)

	want := New([]Term{
		{PIDs: []PID{2, 11}, Coefficient: 10},
		{PIDs: []PID{-2, 11}, Coefficient: -10},
		{PIDs: []PID{1, 11}, Coefficient: -10},
		{PIDs: []PID{-1, 11}, Coefficient: 10},
	})
	assert.True(t, translated.Equal(want), "got %+v want %+v", translated.Terms(), want.Terms())
}

func TestChannelTranslateInvolutionRoundTrips(t *testing.T) {
	// id, then its own inverse (identity o identity) must round-trip any
	// channel within coefficient ULPs.
	id := func(p PID) []PIDFactor { return []PIDFactor{{PID: p, Factor: 1}} }
	c := New([]Term{{PIDs: []PID{2, -2}, Coefficient: 3.5}})
	assert.True(t, c.Equal(c.Translate(id).Translate(id)))
}

func TestChannelTranspose(t *testing.T) {
	c := New([]Term{{PIDs: []PID{2, -1}, Coefficient: 1.0}})
	transposed := c.Transpose(0, 1)
	assert.Equal(t, []PID{-1, 2}, transposed.Terms()[0].PIDs)
}

func TestChannelCommonFactor(t *testing.T) {
	a := New([]Term{{PIDs: []PID{2, -2}, Coefficient: 2.0}, {PIDs: []PID{1, -1}, Coefficient: 4.0}})
	b := New([]Term{{PIDs: []PID{2, -2}, Coefficient: 1.0}, {PIDs: []PID{1, -1}, Coefficient: 2.0}})
	f, ok := a.CommonFactor(b)
	require.True(t, ok)
	assert.InDelta(t, 2.0, f, 1e-12)

	c := New([]Term{{PIDs: []PID{2, -2}, Coefficient: 1.0}, {PIDs: []PID{1, -1}, Coefficient: 3.0}})
	_, ok = a.CommonFactor(c)
	assert.False(t, ok)
}

// TestOrderCreateMaskS5 reproduces spec.md S5 exactly.
func TestOrderCreateMaskS5(t *testing.T) {
	orders := []Order{
		{Alphas: 0, Alpha: 2},
		{Alphas: 1, Alpha: 2},
		{Alphas: 0, Alpha: 3},
		{Alphas: 2, Alpha: 2},
		{Alphas: 1, Alpha: 3},
		{Alphas: 0, Alpha: 4},
	}
	mask := CreateMask(orders, 3, 0)
	assert.Equal(t, []bool{true, true, false, true, false, false}, mask)
}

func TestOrderLess(t *testing.T) {
	assert.True(t, Order{Alphas: 0, Alpha: 2}.Less(Order{Alphas: 1, Alpha: 2}))
	assert.True(t, Order{Alphas: 0, Alpha: 2}.Less(Order{Alphas: 0, Alpha: 3}))
	assert.False(t, Order{Alphas: 1, Alpha: 2}.Less(Order{Alphas: 0, Alpha: 2}))
}

func TestScalesCompatibleWith(t *testing.T) {
	kin := []Kinematics{X(0), X(1), Scale(0)}
	s := Scales{Ren: ScaleSingle{Index: 0}, Fac: ScaleSingle{Index: 0}, Frag: NoScale{}}
	assert.True(t, s.CompatibleWith(kin))

	bad := Scales{Ren: ScaleSingle{Index: 1}, Fac: NoScale{}, Frag: NoScale{}}
	assert.False(t, bad.CompatibleWith(kin))
}

func TestQuadraticSumFailsLoudly(t *testing.T) {
	_, err := QuadraticSum{I: 0, J: 1}.Calc([]float64{1, 2})
	assert.Error(t, err)
}
