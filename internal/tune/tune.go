// Package tune searches CRF parameters against a ground-truth depth map.
package tune

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/cwbudde/densedepth/internal/crf"
	"github.com/cwbudde/densedepth/internal/opt"
)

// failedCost is returned for parameter vectors the CRF rejects.
const failedCost = 1e12

// Result holds the output of a tuning run.
type Result struct {
	Best        crf.Params
	BestCost    float64
	InitialCost float64
	Evaluations int
	Elapsed     time.Duration
}

// Tuner minimizes Cost(Run(Base with x), Truth) over Bounds.
type Tuner struct {
	// Base supplies the inputs and the untuned parameters.
	Base      crf.Config
	Truth     *image.Gray
	Bounds    *Bounds
	Cost      CostFunc
	Optimizer opt.Optimizer
}

// Evaluate runs the CRF with x applied and scores the rescaled depth map.
func (t *Tuner) Evaluate(x []float64) float64 {
	cfg := t.Base
	cfg.Params = t.Bounds.Apply(t.Base.Params, x)
	cfg.ShowWTA = false
	cfg.Observer = nil

	res, err := crf.Run(cfg)
	if err != nil {
		slog.Debug("Evaluation rejected", "params", x, "error", err)
		return failedCost
	}
	return t.Cost(res.Depth.Gray(), t.Truth)
}

// Run executes the search.
func (t *Tuner) Run() (*Result, error) {
	if t.Truth == nil {
		return nil, fmt.Errorf("ground truth cannot be nil")
	}
	if err := t.Base.Validate(); err != nil {
		return nil, err
	}
	tb := t.Truth.Bounds()
	if tb.Dx() != t.Base.Costs.W || tb.Dy() != t.Base.Costs.H {
		return nil, &crf.ShapeError{
			Input:    "ground truth",
			Expected: fmt.Sprintf("%dx%d", t.Base.Costs.H, t.Base.Costs.W),
			Actual:   fmt.Sprintf("%dx%d", tb.Dy(), tb.Dx()),
		}
	}
	if t.Bounds == nil {
		t.Bounds = DefaultBounds()
	}
	if t.Cost == nil {
		t.Cost = MSECost
	}
	if t.Optimizer == nil {
		return nil, fmt.Errorf("optimizer cannot be nil")
	}

	start := time.Now()
	initialCost := t.Evaluate(t.Bounds.Encode(t.Base.Params))
	slog.Info("Starting parameter search", "initial_cost", initialCost)

	evals := 0
	eval := func(x []float64) float64 {
		evals++
		return t.Evaluate(x)
	}

	best, bestCost, err := t.Optimizer.Run(eval, t.Bounds.Lower, t.Bounds.Upper)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Best:        t.Bounds.Apply(t.Base.Params, best),
		BestCost:    bestCost,
		InitialCost: initialCost,
		Evaluations: evals,
		Elapsed:     time.Since(start),
	}

	// The starting point can beat a short search.
	if initialCost <= bestCost {
		result.Best = t.Bounds.Apply(t.Base.Params, t.Bounds.Encode(t.Base.Params))
		result.BestCost = initialCost
	}

	slog.Info("Parameter search complete",
		"initial_cost", initialCost,
		"best_cost", result.BestCost,
		"evaluations", evals,
		"weight", result.Best.Weight,
		"max_penalty", result.Best.MaxPenalty,
		"rgb_std", result.Best.RGBStd,
		"pos_std", result.Best.PosStd,
	)
	return result, nil
}
