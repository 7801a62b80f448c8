package crf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Filter convolves channel-major planes with a Gaussian kernel over fixed features.
type Filter interface {
	// Apply writes K·src into dst for each of the channels planes.
	Apply(dst, src []float64, channels int)

	// Points returns the number of points per plane.
	Points() int
}

// FilterKind identifies a Filter implementation.
type FilterKind string

const (
	FilterLattice FilterKind = "lattice"
	FilterExact   FilterKind = "exact"
)

// ErrUnknownFilter is returned when the name does not match a known filter.
var ErrUnknownFilter = errors.New("unknown pairwise filter")

// ParseFilterKind maps user input to a canonical filter kind.
func ParseFilterKind(name string) (FilterKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lattice", "permutohedral":
		return FilterLattice, nil
	case "exact", "dense", "naive":
		return FilterExact, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
}

// bilateralDim is the feature dimension (x, y, c0, c1, c2).
const bilateralDim = 5

// BilateralFeatures builds (x/σx, y/σy, c0/σ0, c1/σ1, c2/σ2) for every pixel,
// point-major in row-major pixel order. posStd has 1 or 2 entries, rgbStd 1 or 3.
func BilateralFeatures(img *Image, posStd, rgbStd []float64) []float64 {
	sx, sy := posStd[0], posStd[0]
	if len(posStd) > 1 {
		sy = posStd[1]
	}
	var sc [3]float64
	for ch := range sc {
		if len(rgbStd) == 3 {
			sc[ch] = rgbStd[ch]
		} else {
			sc[ch] = rgbStd[0]
		}
	}

	feats := make([]float64, img.H*img.W*bilateralDim)
	for r := 0; r < img.H; r++ {
		for c := 0; c < img.W; c++ {
			i := r*img.W + c
			f := feats[i*bilateralDim : (i+1)*bilateralDim]
			f[0] = float64(c) / sx
			f[1] = float64(r) / sy
			for ch := 0; ch < 3; ch++ {
				f[2+ch] = img.Pix[i*3+ch] / sc[ch]
			}
		}
	}
	return feats
}

// BilateralKernel is the appearance kernel of the pairwise term, with its normalization.
type BilateralKernel struct {
	filter Filter
	norm   []float64 // per-point scale, nil for NormalizeNone
}

// Under NormalizeSymmetric the overall scale of the filter cancels.
// NormalizeNone passes it through unchanged.

// NewBilateralKernel builds the kernel over img for the given bandwidths.
func NewBilateralKernel(img *Image, posStd, rgbStd []float64, kind FilterKind, normalization Normalization) (*BilateralKernel, error) {
	start := time.Now()
	feats := BilateralFeatures(img, posStd, rgbStd)
	n := img.H * img.W

	var (
		filter Filter
		err    error
	)
	switch kind {
	case FilterLattice, "":
		var lt *Lattice
		lt, err = NewLattice(feats, n, bilateralDim)
		if err == nil {
			slog.Debug("Permutohedral lattice built", "points", n, "vertices", lt.Vertices())
			filter = lt
		}
	case FilterExact:
		filter, err = NewExactFilter(feats, n, bilateralDim)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s filter: %w", kind, err)
	}

	k := NewKernelFromFilter(filter, normalization)

	slog.Debug("Bilateral kernel ready",
		"filter", string(kind),
		"normalization", normalization.String(),
		"elapsed", time.Since(start),
	)
	return k, nil
}

// NewKernelFromFilter wraps an existing filter.
func NewKernelFromFilter(filter Filter, normalization Normalization) *BilateralKernel {
	k := &BilateralKernel{filter: filter}
	if normalization == NormalizeSymmetric {
		n := filter.Points()
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		k.norm = make([]float64, n)
		filter.Apply(k.norm, ones, 1)
		for i, s := range k.norm {
			k.norm[i] = 1 / math.Sqrt(s+1e-20)
		}
	}
	return k
}

// Points returns the number of pixels the kernel spans
func (k *BilateralKernel) Points() int {
	return k.filter.Points()
}

// Apply writes the normalized kernel response to each channel plane of src into dst.
func (k *BilateralKernel) Apply(dst, src []float64, channels int) {
	if k.norm == nil {
		k.filter.Apply(dst, src, channels)
		return
	}

	n := len(k.norm)
	scaled := make([]float64, n*channels)
	for c := 0; c < channels; c++ {
		for i, s := range k.norm {
			scaled[c*n+i] = src[c*n+i] * s
		}
	}
	k.filter.Apply(dst, scaled, channels)
	for c := 0; c < channels; c++ {
		for i, s := range k.norm {
			dst[c*n+i] *= s
		}
	}
}
