package crf

import (
	"fmt"
	"log/slog"
	"time"
)

// Config is everything one depth-labeling run needs.
type Config struct {
	// Costs is the raw (L, H, W) cost volume. Run does not modify it.
	Costs *Volume

	// Image is the pre-smoothed reference image in a perceptual colour space.
	Image *Image

	// Samples maps label i to depth Samples[i].
	Samples []float64

	Params Params

	// Filter selects the pairwise filter implementation.
	Filter FilterKind

	// ShowWTA also decodes the winner-take-all map from the raw costs.
	ShowWTA bool

	// Observer, if set, is called after every mean-field iteration.
	Observer Observer
}

// Result holds the output of a run
type Result struct {
	Depth *DepthMap
	// WTA is nil unless Config.ShowWTA was set.
	WTA *DepthMap

	Iterations int
	Converged  bool
	MinDelta   float64
	Degenerate int // pixels with no cost signal

	Elapsed time.Duration
}

// Validate checks shapes and parameters before any computation.
func (cfg *Config) Validate() error {
	if err := cfg.Costs.Validate("cost volume"); err != nil {
		return err
	}
	if err := cfg.Image.Validate(); err != nil {
		return err
	}
	if cfg.Image.H != cfg.Costs.H || cfg.Image.W != cfg.Costs.W {
		return &ShapeError{
			Input:    "reference image",
			Expected: fmt.Sprintf("%dx%d to match the cost volume", cfg.Costs.H, cfg.Costs.W),
			Actual:   fmt.Sprintf("%dx%d", cfg.Image.H, cfg.Image.W),
		}
	}
	if len(cfg.Samples) != cfg.Costs.L {
		return &ShapeError{
			Input:    "depth samples",
			Expected: fmt.Sprintf("%d values, one per label", cfg.Costs.L),
			Actual:   fmt.Sprintf("%d values", len(cfg.Samples)),
		}
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.Filter != "" && cfg.Filter != FilterLattice && cfg.Filter != FilterExact {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, cfg.Filter)
	}
	return nil
}

// Run labels every pixel with a depth:
// normalize → unary → pairwise kernel → mean-field → decode.
func Run(cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	p := cfg.Params
	slog.Info("Starting CRF depth labeling",
		"labels", cfg.Costs.L,
		"width", cfg.Costs.W,
		"height", cfg.Costs.H,
		"iters", p.Iters,
		"pos_std", p.PosStd,
		"rgb_std", p.RGBStd,
		"weight", p.Weight,
		"max_penalty", p.MaxPenalty,
	)

	result := &Result{}

	if cfg.ShowWTA {
		wta, err := WinnerTakeAll(cfg.Costs, cfg.Samples)
		if err != nil {
			return nil, fmt.Errorf("failed to compute winner-take-all map: %w", err)
		}
		result.WTA = wta
	}

	prob := cfg.Costs.Clone()
	result.Degenerate = Normalize(prob)
	if result.Degenerate > 0 {
		slog.Warn("Pixels without cost signal", "count", result.Degenerate)
	}

	unary := UnaryFromProb(prob)

	kernel, err := NewBilateralKernel(cfg.Image, p.PosStd, p.RGBStd, cfg.Filter, p.Normalization)
	if err != nil {
		return nil, fmt.Errorf("failed to build pairwise kernel: %w", err)
	}
	compat := NewLabelDistance(cfg.Costs.L, p.Weight, p.MaxPenalty)

	inf, err := Inference(unary, kernel, compat, p.Iters, p.Convergence, cfg.Observer)
	if err != nil {
		return nil, fmt.Errorf("mean-field inference failed: %w", err)
	}
	result.Iterations = inf.Iterations
	result.Converged = inf.Converged
	result.MinDelta = inf.MinDelta

	depth, err := Decode(inf.Q, cfg.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to decode depth map: %w", err)
	}
	result.Depth = depth
	result.Elapsed = time.Since(start)

	lo, hi := depth.Range()
	slog.Info("CRF depth labeling complete",
		"iterations", result.Iterations,
		"converged", result.Converged,
		"min_delta", result.MinDelta,
		"depth_min", lo,
		"depth_max", hi,
		"elapsed", result.Elapsed,
	)

	return result, nil
}
