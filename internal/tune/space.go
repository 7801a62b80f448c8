package tune

import (
	"math"

	"github.com/cwbudde/densedepth/internal/crf"
)

// Dimension indices of a parameter vector.
const (
	DimWeight = iota
	DimMaxPenalty
	DimRGBStd
	DimPosStd
	numDims
)

// Bounds defines the search box of the CRF parameters.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// DefaultBounds covers the useful range of each tuned parameter.
func DefaultBounds() *Bounds {
	lower := make([]float64, numDims)
	upper := make([]float64, numDims)

	lower[DimWeight], upper[DimWeight] = 0, 10
	lower[DimMaxPenalty], upper[DimMaxPenalty] = 0, 1
	lower[DimRGBStd], upper[DimRGBStd] = 2, 80
	lower[DimPosStd], upper[DimPosStd] = 0.5, 20

	return &Bounds{Lower: lower, Upper: upper}
}

// Apply writes the vector x into a copy of base. The colour and spatial
// bandwidths become isotropic.
func (b *Bounds) Apply(base crf.Params, x []float64) crf.Params {
	v := make([]float64, len(x))
	copy(v, x)
	b.ClampVector(v)

	p := base
	p.Weight = v[DimWeight]
	p.MaxPenalty = v[DimMaxPenalty]
	p.RGBStd = []float64{v[DimRGBStd]}
	p.PosStd = []float64{v[DimPosStd]}
	return p
}

// Encode is the inverse of Apply for isotropic parameters. Anisotropic
// bandwidths are averaged.
func (b *Bounds) Encode(p crf.Params) []float64 {
	x := make([]float64, numDims)
	x[DimWeight] = p.Weight
	x[DimMaxPenalty] = p.MaxPenalty
	x[DimRGBStd] = mean(p.RGBStd)
	x[DimPosStd] = mean(p.PosStd)
	b.ClampVector(x)
	return x
}

// ClampVector clamps all parameters in a vector
func (b *Bounds) ClampVector(data []float64) {
	for i := range data {
		data[i] = clamp(data[i], b.Lower[i], b.Upper[i])
	}
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
