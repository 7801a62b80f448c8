package crf

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// IterationStats summarizes one mean-field iteration
type IterationStats struct {
	Iteration int
	// MeanDelta is the mean over pixels of the L1 change in Q.
	MeanDelta float64
	// MaxDelta is the largest per-pixel L1 change in Q.
	MaxDelta float64
}

// Observer receives statistics after every iteration. It must not retain Q.
type Observer func(IterationStats)

// InferenceResult holds the converged belief and how it was reached
type InferenceResult struct {
	Q          *Volume
	Iterations int
	Converged  bool
	Deltas     []float64

	// MinDelta is the smallest mean belief change of any iteration, 0 when none ran.
	MinDelta float64
}

// Inference runs mean-field updates over the fully connected CRF.
//
// Q starts at softmax(-unary). Each iteration filters every label plane of Q
// through the kernel, mixes the responses with the compatibility matrix and
// renormalizes:
//
//	Q[l,p] ∝ exp(-U[l,p] - Σ_l' μ(l,l')·(K·Q[l'])[p])
//
// iters == 0 returns the initial softmax. The unary volume is not modified.
func Inference(unary *Volume, kernel Filter, compat Compatibility, iters int, conv ConvergenceConfig, observe Observer) (*InferenceResult, error) {
	if err := unary.Validate("unary energy"); err != nil {
		return nil, err
	}
	if iters < 0 {
		return nil, &ParamError{Field: "iters", Reason: fmt.Sprintf("cannot be negative, got %d", iters)}
	}

	q := SoftmaxNegEnergy(unary)
	result := &InferenceResult{Q: q}
	if iters == 0 {
		return result, nil
	}

	n, labels := unary.Pixels(), unary.L
	if kernel.Points() != n {
		return nil, &ShapeError{
			Input:    "pairwise kernel",
			Expected: fmt.Sprintf("%d points", n),
			Actual:   fmt.Sprintf("%d points", kernel.Points()),
		}
	}

	mu := compatMatrix(compat, labels)
	msg := make([]float64, labels*n)
	filtered := make([]float64, labels)
	col := make([]float64, labels)
	tracker := NewConvergenceTracker(conv)

	for it := 1; it <= iters; it++ {
		kernel.Apply(msg, q.Data, labels)

		sumDelta, maxDelta := 0.0, 0.0
		for i := 0; i < n; i++ {
			for l := 0; l < labels; l++ {
				filtered[l] = msg[l*n+i]
			}
			for l := 0; l < labels; l++ {
				col[l] = -unary.Data[l*n+i] - floats.Dot(mu[l*labels:(l+1)*labels], filtered)
			}
			softmaxInPlace(col)

			delta := 0.0
			for l, v := range col {
				delta += math.Abs(v - q.Data[l*n+i])
				q.Data[l*n+i] = v
			}
			sumDelta += delta
			if delta > maxDelta {
				maxDelta = delta
			}
		}

		stats := IterationStats{
			Iteration: it,
			MeanDelta: sumDelta / float64(n),
			MaxDelta:  maxDelta,
		}
		slog.Debug("Mean-field iteration",
			"iteration", it,
			"mean_delta", stats.MeanDelta,
			"max_delta", stats.MaxDelta,
		)
		if observe != nil {
			observe(stats)
		}

		result.Iterations = it
		if tracker.Update(stats.MeanDelta) {
			result.Converged = true
			break
		}
	}

	result.Deltas = tracker.History()
	result.MinDelta = tracker.MinDelta()
	return result, nil
}
