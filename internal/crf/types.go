package crf

import (
	"fmt"
	"math"
)

// Volume is a dense (label, row, col) array.
// Element (l, r, c) lives at Data[l*H*W + r*W + c].
type Volume struct {
	L, H, W int
	Data    []float64
}

// NewVolume allocates a zeroed volume of shape (l, h, w)
func NewVolume(l, h, w int) *Volume {
	return &Volume{
		L:    l,
		H:    h,
		W:    w,
		Data: make([]float64, l*h*w),
	}
}

// Pixels returns H*W
func (v *Volume) Pixels() int {
	return v.H * v.W
}

// At returns the value at (l, r, c)
func (v *Volume) At(l, r, c int) float64 {
	return v.Data[l*v.H*v.W+r*v.W+c]
}

// Set writes the value at (l, r, c)
func (v *Volume) Set(l, r, c int, val float64) {
	v.Data[l*v.H*v.W+r*v.W+c] = val
}

// Plane returns the H*W slice of label l, sharing storage with the volume.
func (v *Volume) Plane(l int) []float64 {
	n := v.Pixels()
	return v.Data[l*n : (l+1)*n]
}

// Clone returns a deep copy
func (v *Volume) Clone() *Volume {
	out := &Volume{L: v.L, H: v.H, W: v.W, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}

// gatherColumn copies the label column of pixel i into dst (len L).
func (v *Volume) gatherColumn(i int, dst []float64) {
	n := v.Pixels()
	for l := range dst {
		dst[l] = v.Data[l*n+i]
	}
}

// scatterColumn writes src (len L) into the label column of pixel i.
func (v *Volume) scatterColumn(i int, src []float64) {
	n := v.Pixels()
	for l, val := range src {
		v.Data[l*n+i] = val
	}
}

// Validate checks the shape against the backing slice.
func (v *Volume) Validate(name string) error {
	if v == nil {
		return &ShapeError{Input: name, Expected: "non-nil volume", Actual: "nil"}
	}
	if v.L <= 0 || v.H <= 0 || v.W <= 0 {
		return &ShapeError{
			Input:    name,
			Expected: "positive (L, H, W)",
			Actual:   fmt.Sprintf("(%d, %d, %d)", v.L, v.H, v.W),
		}
	}
	if len(v.Data) != v.L*v.H*v.W {
		return &ShapeError{
			Input:    name,
			Expected: fmt.Sprintf("%d values for (%d, %d, %d)", v.L*v.H*v.W, v.L, v.H, v.W),
			Actual:   fmt.Sprintf("%d values", len(v.Data)),
		}
	}
	return nil
}

// Image is an H×W×3 reference image in a perceptual colour space,
// stored interleaved: Pix[(r*W+c)*3 + ch].
type Image struct {
	H, W int
	Pix  []float64
}

// NewImage allocates a zeroed H×W×3 image
func NewImage(h, w int) *Image {
	return &Image{H: h, W: w, Pix: make([]float64, h*w*3)}
}

// Validate checks the shape against the backing slice.
func (im *Image) Validate() error {
	if im == nil {
		return &ShapeError{Input: "reference image", Expected: "non-nil image", Actual: "nil"}
	}
	if im.H <= 0 || im.W <= 0 || len(im.Pix) != im.H*im.W*3 {
		return &ShapeError{
			Input:    "reference image",
			Expected: fmt.Sprintf("%d values for %dx%dx3", im.H*im.W*3, im.H, im.W),
			Actual:   fmt.Sprintf("%d values", len(im.Pix)),
		}
	}
	return nil
}

// Normalization selects how the pairwise kernel output is normalized.
type Normalization int

const (
	// NormalizeSymmetric scales input and output by 1/sqrt(K·1).
	NormalizeSymmetric Normalization = iota
	// NormalizeNone applies the raw Gaussian kernel. The lattice carries only
	// about half the kernel mass of the exact filter, so Weight is not
	// comparable between the two filters in this mode.
	NormalizeNone
)

func (n Normalization) String() string {
	switch n {
	case NormalizeSymmetric:
		return "symmetric"
	case NormalizeNone:
		return "none"
	default:
		return "unknown"
	}
}

// Params is the CRF parameter bundle.
type Params struct {
	// Iters is the number of mean-field iterations.
	Iters int

	// PosStd is the spatial bandwidth, either isotropic (1 value) or (x, y).
	PosStd []float64

	// RGBStd is the colour bandwidth, either shared (1 value) or per channel.
	RGBStd []float64

	// Weight is the penalty between adjacent labels.
	Weight float64

	// MaxPenalty scales the penalty of the farthest label pair: L*MaxPenalty.
	MaxPenalty float64

	Normalization Normalization

	// Convergence optionally stops inference early. Disabled by default.
	Convergence ConvergenceConfig
}

// DefaultParams returns the parameter set used when nothing else is configured.
func DefaultParams() Params {
	return Params{
		Iters:         5,
		PosStd:        []float64{3, 3},
		RGBStd:        []float64{20, 20, 20},
		Weight:        1.0,
		MaxPenalty:    0.25,
		Normalization: NormalizeSymmetric,
		Convergence:   DisabledConvergenceConfig(),
	}
}

// Validate reports the first invalid field of the bundle.
func (p Params) Validate() error {
	if p.Iters <= 0 {
		return &ParamError{Field: "iters", Reason: fmt.Sprintf("must be positive, got %d", p.Iters)}
	}
	if len(p.PosStd) != 1 && len(p.PosStd) != 2 {
		return &ParamError{Field: "pos_std", Reason: fmt.Sprintf("expected 1 or 2 values, got %d", len(p.PosStd))}
	}
	if len(p.RGBStd) != 1 && len(p.RGBStd) != 3 {
		return &ParamError{Field: "rgb_std", Reason: fmt.Sprintf("expected 1 or 3 values, got %d", len(p.RGBStd))}
	}
	for i, s := range p.PosStd {
		if !(s > 0) || math.IsInf(s, 0) {
			return &ParamError{Field: fmt.Sprintf("pos_std[%d]", i), Reason: fmt.Sprintf("must be positive and finite, got %v", s)}
		}
	}
	for i, s := range p.RGBStd {
		if !(s > 0) || math.IsInf(s, 0) {
			return &ParamError{Field: fmt.Sprintf("rgb_std[%d]", i), Reason: fmt.Sprintf("must be positive and finite, got %v", s)}
		}
	}
	if !(p.Weight >= 0) || math.IsInf(p.Weight, 0) {
		return &ParamError{Field: "weight", Reason: fmt.Sprintf("must be non-negative and finite, got %v", p.Weight)}
	}
	if !(p.MaxPenalty >= 0) || math.IsInf(p.MaxPenalty, 0) {
		return &ParamError{Field: "max_penalty", Reason: fmt.Sprintf("must be non-negative and finite, got %v", p.MaxPenalty)}
	}
	if p.Normalization != NormalizeSymmetric && p.Normalization != NormalizeNone {
		return &ParamError{Field: "normalization", Reason: "unknown mode"}
	}
	return nil
}

// ShapeError reports inputs whose dimensions do not agree.
type ShapeError struct {
	Input    string
	Expected string
	Actual   string
}

func (e *ShapeError) Error() string {
	return "shape mismatch: " + e.Input + " (expected " + e.Expected + ", got " + e.Actual + ")"
}

// ParamError reports an invalid parameter bundle.
type ParamError struct {
	Field  string
	Reason string
}

func (e *ParamError) Error() string {
	return "invalid parameter: " + e.Field + " " + e.Reason
}
