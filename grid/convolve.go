package grid

import (
	"math"

	"github.com/pkg/errors"

	"github.com/NNPDF/pineappl-go/channel"
	"github.com/NNPDF/pineappl-go/internal/luminosity"
	"github.com/NNPDF/pineappl-go/packedarray"
)

// scaleULPs is the ULP tolerance for recognizing xi==1, per spec.md §9's
// "(d) scale equality uses ULPS ≤ 4".
const scaleULPs = 4

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

// StructureFunction is the consumer interface for one convolution slot's
// structure function, per spec.md §6: it returns x·f(x, scale).
type StructureFunction func(pid channel.PID, x, scale float64) float64

// AlphasFunc is the consumer interface for the strong coupling.
type AlphasFunc func(scale float64) float64

// XiTriple is one (renormalization, factorization, fragmentation)
// scale-variation factor.
type XiTriple struct {
	XiR, XiF, XiA float64
}

// Convolve implements spec.md §4.6's convolution algorithm. cache is
// reset before every subgrid, matching the cache discipline of §5 ("it
// must be flushed before each subgrid"). Result length is
// len(xi)*len(binIndices), with the xi index varying slower than the
// bin index.
func (g *Grid) Convolve(
	cache *luminosity.Cache,
	orderMask []bool,
	binIndices []int,
	channelMask []bool,
	xi []XiTriple,
	lumis []StructureFunction,
	alphas AlphasFunc,
) ([]float64, error) {
	if len(lumis) != len(g.convs) {
		return nil, errors.Errorf("grid: convolve needs %d structure functions, got %d", len(g.convs), len(lumis))
	}

	scaleAxes := make([]int, 0)
	for axis, k := range g.kinematics {
		if k.Kind == channel.KindScale {
			scaleAxes = append(scaleAxes, axis)
		}
	}

	result := make([]float64, len(xi)*len(binIndices))
	allBins := g.bwfl.Bins()

	for xiIdx, triple := range xi {
		for biPos, bin := range binIndices {
			if bin < 0 || bin >= len(allBins) {
				continue
			}
			norm := allBins[bin].Normalization
			acc := 0.0

			for oi, order := range g.orders {
				if orderMask != nil && oi < len(orderMask) && !orderMask[oi] {
					continue
				}
				if order.LogXiR != 0 && ulpsEqual(triple.XiR, 1, scaleULPs) {
					continue
				}
				if order.LogXiF != 0 && ulpsEqual(triple.XiF, 1, scaleULPs) {
					continue
				}
				if order.LogXiA != 0 && ulpsEqual(triple.XiA, 1, scaleULPs) {
					continue
				}

				for ci, ch := range g.channels {
					if channelMask != nil && ci < len(channelMask) && !channelMask[ci] {
						continue
					}
					sg := g.Subgrid(oi, bin, ci)
					if sg.IsEmpty() {
						continue
					}

					cache.Reset()
					entries := sg.IndexedIter()
					values := sg.NodeValues()

					logFactor := math.Pow(triple.XiR*triple.XiR, float64(order.LogXiR)) *
						math.Pow(triple.XiF*triple.XiF, float64(order.LogXiF)) *
						math.Pow(triple.XiA*triple.XiA, float64(order.LogXiA))

					for _, e := range entries {
						lumi, err := g.entryLuminosity(cache, ch, e.Index, values, scaleAxes, lumis, alphas, order.Alphas)
						if err != nil {
							return nil, err
						}
						if norm != 0 {
							acc += e.Value * lumi * logFactor / norm
						}
					}
				}
			}
			result[xiIdx*len(binIndices)+biPos] = acc
		}
	}
	return result, nil
}

// entryLuminosity implements spec.md §4.6 step 4: the partonic-luminosity
// factor at one packed-array entry, memoized in cache by
// (pid, x_index, scale_index).
func (g *Grid) entryLuminosity(
	cache *luminosity.Cache,
	ch channel.Channel,
	index []int,
	nodeValues [][]float64,
	scaleAxes []int,
	lumis []StructureFunction,
	alphas AlphasFunc,
	alphasPower int,
) (float64, error) {
	scaleShape := make([]int, len(scaleAxes))
	scaleIdx := make([]int, len(scaleAxes))
	scaleValues := make([]float64, len(g.kinematics))
	for i, axis := range scaleAxes {
		scaleShape[i] = len(nodeValues[axis])
		scaleIdx[i] = index[axis]
		scaleValues[g.kinematics[axis].Index] = nodeValues[axis][index[axis]]
	}
	scaleKey := 0
	if len(scaleAxes) > 0 {
		scaleKey = packedarray.Ravel(scaleIdx, scaleShape)
	}

	facScale, err := g.scales.Fac.Calc(scaleValues)
	if err != nil {
		return 0, errors.Wrap(err, "grid: convolve: factorization scale")
	}
	renScale, err := g.scales.Ren.Calc(scaleValues)
	if err != nil {
		return 0, errors.Wrap(err, "grid: convolve: renormalization scale")
	}

	xAxisOf := make([]int, len(g.convs))
	for conv := range g.convs {
		for axis, k := range g.kinematics {
			if k.Kind == channel.KindX && k.Index == conv {
				xAxisOf[conv] = axis
			}
		}
	}

	sum := 0.0
	for _, term := range ch.Terms() {
		product := term.Coefficient
		for conv, pid := range term.PIDs {
			axis := xAxisOf[conv]
			xIdx := index[axis]
			x := nodeValues[axis][xIdx]

			key := luminosity.Key{PID: pid, XIndex: int32(xIdx), ScaleIndex: int32(scaleKey)}
			v, ok := cache.Get(key)
			if !ok {
				v = lumis[conv](pid, x, facScale)
				cache.Put(key, v)
			}
			product *= v
		}
		sum += product
	}
	return sum * math.Pow(alphas(renScale), float64(alphasPower)), nil
}
