package crf

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DepthMap is an H×W field of depths, row-major.
type DepthMap struct {
	H, W  int
	Depth []float64
	// Labels holds the label chosen at each pixel.
	Labels []int
}

// Decode picks argmax_l Q[l, p] for every pixel (first index on ties)
// and looks the label up in the depth sample table.
func Decode(q *Volume, samples []float64) (*DepthMap, error) {
	return decodeColumns(q, samples, floats.MaxIdx)
}

// WinnerTakeAll picks argmin_l cost[l, p] of the raw cost volume.
func WinnerTakeAll(costs *Volume, samples []float64) (*DepthMap, error) {
	return decodeColumns(costs, samples, floats.MinIdx)
}

func decodeColumns(v *Volume, samples []float64, pick func([]float64) int) (*DepthMap, error) {
	if err := v.Validate("volume"); err != nil {
		return nil, err
	}
	if len(samples) != v.L {
		return nil, &ShapeError{
			Input:    "depth samples",
			Expected: fmt.Sprintf("%d values", v.L),
			Actual:   fmt.Sprintf("%d values", len(samples)),
		}
	}

	n := v.Pixels()
	dm := &DepthMap{
		H:      v.H,
		W:      v.W,
		Depth:  make([]float64, n),
		Labels: make([]int, n),
	}

	col := make([]float64, v.L)
	for i := 0; i < n; i++ {
		v.gatherColumn(i, col)
		l := pick(col)
		dm.Labels[i] = l
		dm.Depth[i] = samples[l]
	}
	return dm, nil
}

// Rescale maps values linearly onto [0, 255] using their global min and max.
// A constant field maps to all zeros.
func Rescale(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return out
	}

	for i, v := range values {
		out[i] = (v - lo) / span * 255.0
	}
	return out
}

// Scaled returns the depth map rescaled to [0, 255].
func (dm *DepthMap) Scaled() []float64 {
	return Rescale(dm.Depth)
}

// Range returns the smallest and largest depth
func (dm *DepthMap) Range() (lo, hi float64) {
	if len(dm.Depth) == 0 {
		return 0, 0
	}
	return floats.Min(dm.Depth), floats.Max(dm.Depth)
}

// Gray renders the rescaled depth map as an 8-bit image.
func (dm *DepthMap) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, dm.W, dm.H))
	for i, v := range dm.Scaled() {
		r, c := i/dm.W, i%dm.W
		img.Pix[r*img.Stride+c] = uint8(math.Max(0, math.Min(255, math.Round(v))))
	}
	return img
}
