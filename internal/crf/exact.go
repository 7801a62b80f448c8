package crf

import (
	"fmt"
	"math"
)

// ExactFilter evaluates the Gaussian kernel over every pair of points.
// Quadratic in the point count; meant for small images and for checking the lattice.
type ExactFilter struct {
	n, d     int
	features []float64
}

// NewExactFilter wraps point-major features (features[i*d + k]).
func NewExactFilter(features []float64, n, d int) (*ExactFilter, error) {
	if d < 1 {
		return nil, fmt.Errorf("exact filter dimension must be positive, got %d", d)
	}
	if len(features) != n*d {
		return nil, fmt.Errorf("exact filter features: expected %d values, got %d", n*d, len(features))
	}
	return &ExactFilter{n: n, d: d, features: features}, nil
}

// Points returns the number of filtered points
func (e *ExactFilter) Points() int {
	return e.n
}

// Apply implements Filter.
func (e *ExactFilter) Apply(dst, src []float64, channels int) {
	n, d := e.n, e.d
	for i := range dst[:n*channels] {
		dst[i] = 0
	}

	for i := 0; i < n; i++ {
		fi := e.features[i*d : (i+1)*d]
		for j := 0; j < n; j++ {
			fj := e.features[j*d : (j+1)*d]
			dist2 := 0.0
			for k := range fi {
				diff := fi[k] - fj[k]
				dist2 += diff * diff
			}
			w := math.Exp(-0.5 * dist2)
			for c := 0; c < channels; c++ {
				dst[c*n+i] += w * src[c*n+j]
			}
		}
	}
}
