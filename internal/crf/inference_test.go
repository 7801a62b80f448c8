package crf

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// uniformImage returns an h×w image with every pixel set to the same colour.
func uniformImage(h, w int) *Image {
	img := NewImage(h, w)
	for i := 0; i < h*w; i++ {
		img.Pix[i*3+0] = 50
		img.Pix[i*3+1] = 128
		img.Pix[i*3+2] = 128
	}
	return img
}

// outlierUnary favours label 0 everywhere except a weak preference for label 1 at the centre.
func outlierUnary(size int) *Volume {
	prob := NewVolume(2, size, size)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			prob.Set(0, r, c, 0.9)
			prob.Set(1, r, c, 0.1)
		}
	}
	mid := size / 2
	prob.Set(0, mid, mid, 0.4)
	prob.Set(1, mid, mid, 0.6)
	return UnaryFromProb(prob)
}

func exactKernel(t *testing.T, img *Image, posStd, rgbStd []float64) *BilateralKernel {
	t.Helper()
	k, err := NewBilateralKernel(img, posStd, rgbStd, FilterExact, NormalizeSymmetric)
	if err != nil {
		t.Fatalf("NewBilateralKernel failed: %v", err)
	}
	return k
}

func assertValidBelief(t *testing.T, q *Volume) {
	t.Helper()
	for i := 0; i < q.Pixels(); i++ {
		sum := 0.0
		for l := 0; l < q.L; l++ {
			p := q.Data[l*q.Pixels()+i]
			if p < 0 || math.IsNaN(p) {
				t.Fatalf("Pixel %d label %d has invalid belief %f", i, l, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("Pixel %d beliefs sum to %f, want 1", i, sum)
		}
	}
}

func TestInferenceZeroItersIsInitialSoftmax(t *testing.T) {
	unary := outlierUnary(5)
	kernel := exactKernel(t, uniformImage(5, 5), []float64{3}, []float64{10})

	res, err := Inference(unary, kernel, NewLabelDistance(2, 5, 1), 0, DisabledConvergenceConfig(), nil)
	if err != nil {
		t.Fatalf("Inference failed: %v", err)
	}

	want := SoftmaxNegEnergy(unary)
	for i := range want.Data {
		if res.Q.Data[i] != want.Data[i] {
			t.Fatalf("Index %d mismatch: got %v, want %v", i, res.Q.Data[i], want.Data[i])
		}
	}
	if res.Iterations != 0 {
		t.Errorf("Expected 0 iterations, got %d", res.Iterations)
	}
}

func TestInferenceBeliefStaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	h, w, labels := 6, 7, 4

	img := NewImage(h, w)
	for i := range img.Pix {
		img.Pix[i] = rng.Float64() * 255
	}
	prob := NewVolume(labels, h, w)
	for i := range prob.Data {
		prob.Data[i] = rng.Float64()
	}
	Normalize(prob)
	unary := UnaryFromProb(prob)

	for _, kind := range []FilterKind{FilterExact, FilterLattice} {
		kernel, err := NewBilateralKernel(img, []float64{2, 2}, []float64{30, 30, 30}, kind, NormalizeSymmetric)
		if err != nil {
			t.Fatalf("NewBilateralKernel(%s) failed: %v", kind, err)
		}
		for iters := 1; iters <= 5; iters++ {
			res, err := Inference(unary, kernel, NewLabelDistance(labels, 1, 0.5), iters, DisabledConvergenceConfig(), nil)
			if err != nil {
				t.Fatalf("Inference(%s, %d) failed: %v", kind, iters, err)
			}
			if res.Iterations != iters {
				t.Errorf("Expected %d iterations, got %d", iters, res.Iterations)
			}
			assertValidBelief(t, res.Q)
		}
	}
}

func TestInferenceSmoothsOutlier(t *testing.T) {
	size := 5
	mid := size / 2
	unary := outlierUnary(size)
	kernel := exactKernel(t, uniformImage(size, size), []float64{10}, []float64{10})
	samples := []float64{1, 2}

	tests := []struct {
		name   string
		weight float64
		want   int
	}{
		{name: "unary only", weight: 0, want: 1},
		{name: "smoothed", weight: 5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Inference(unary, kernel, NewLabelDistance(2, tt.weight, 0), 3, DisabledConvergenceConfig(), nil)
			if err != nil {
				t.Fatalf("Inference failed: %v", err)
			}
			dm, err := Decode(res.Q, samples)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got := dm.Labels[mid*size+mid]; got != tt.want {
				t.Errorf("Centre label mismatch: got %d, want %d", got, tt.want)
			}
			if got := dm.Labels[0]; got != 0 {
				t.Errorf("Corner label mismatch: got %d, want 0", got)
			}
		})
	}
}

func TestInferenceObserverAndEarlyStop(t *testing.T) {
	unary := outlierUnary(5)
	kernel := exactKernel(t, uniformImage(5, 5), []float64{10}, []float64{10})

	var seen []IterationStats
	conv := ConvergenceConfig{Enabled: true, Patience: 1, Threshold: 1}
	res, err := Inference(unary, kernel, NewLabelDistance(2, 1, 0), 10, conv, func(s IterationStats) {
		seen = append(seen, s)
	})
	if err != nil {
		t.Fatalf("Inference failed: %v", err)
	}

	// Per-pixel L1 change is at most 2, and here far below the threshold of 1.
	if !res.Converged {
		t.Error("Expected early stop")
	}
	if res.Iterations >= 10 {
		t.Errorf("Expected fewer than 10 iterations, got %d", res.Iterations)
	}
	if len(seen) != res.Iterations {
		t.Errorf("Observer calls mismatch: got %d, want %d", len(seen), res.Iterations)
	}
	for i, s := range seen {
		if s.Iteration != i+1 {
			t.Errorf("Observer iteration mismatch: got %d, want %d", s.Iteration, i+1)
		}
		if s.MaxDelta < s.MeanDelta {
			t.Errorf("MaxDelta %f below MeanDelta %f", s.MaxDelta, s.MeanDelta)
		}
	}

	minDelta := math.Inf(1)
	for _, s := range seen {
		minDelta = math.Min(minDelta, s.MeanDelta)
	}
	if res.MinDelta != minDelta {
		t.Errorf("MinDelta mismatch: got %g, want %g", res.MinDelta, minDelta)
	}
}

func TestInferenceRejectsBadInput(t *testing.T) {
	unary := outlierUnary(5)
	kernel := exactKernel(t, uniformImage(4, 4), []float64{3}, []float64{10})
	compat := NewLabelDistance(2, 1, 1)

	_, err := Inference(unary, kernel, compat, 2, DisabledConvergenceConfig(), nil)
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Errorf("Expected ShapeError for kernel size mismatch, got %v", err)
	}

	_, err = Inference(unary, kernel, compat, -1, DisabledConvergenceConfig(), nil)
	var paramErr *ParamError
	if !errors.As(err, &paramErr) {
		t.Errorf("Expected ParamError for negative iters, got %v", err)
	}
}
