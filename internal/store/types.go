package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunConfig records the inputs and parameters of a labeling run.
// This avoids import cycles with the crf package.
type RunConfig struct {
	CostPath  string `json:"costPath"`
	ImagePath string `json:"imagePath"`

	Labels int `json:"labels"`
	Height int `json:"height"`
	Width  int `json:"width"`

	MinDepth float64 `json:"minDepth"`
	MaxDepth float64 `json:"maxDepth"`

	Iters         int       `json:"iters"`
	PosStd        []float64 `json:"posStd"`
	RGBStd        []float64 `json:"rgbStd"`
	Weight        float64   `json:"weight"`
	MaxPenalty    float64   `json:"maxPenalty"`
	Normalization string    `json:"normalization"`
	Filter        string    `json:"filter"`
}

// DepthStats summarizes a decoded depth map in depth units.
type DepthStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// ComputeDepthStats summarizes depth values. Empty input gives zero stats.
func ComputeDepthStats(depth []float64) DepthStats {
	if len(depth) == 0 {
		return DepthStats{}
	}
	mean, std := stat.MeanStdDev(depth, nil)
	return DepthStats{
		Min:    floats.Min(depth),
		Max:    floats.Max(depth),
		Mean:   mean,
		StdDev: std,
	}
}

// Run is the persisted record of one labeling run. Artifacts (depth.png,
// wta.png, trace.jsonl) live next to run.json in the run directory.
type Run struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Config    RunConfig `json:"config"`

	// Iterations actually performed, lower than Config.Iters on early stop.
	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`

	// MinDelta is the smallest mean per-pixel belief change over all iterations.
	MinDelta float64 `json:"minDelta"`

	// Degenerate counts pixels whose cost column summed to ~0.
	Degenerate int `json:"degenerate"`

	ElapsedMS int64      `json:"elapsedMs"`
	Depth     DepthStats `json:"depth"`

	// OutputPath is the depth PNG written outside the store, if any.
	OutputPath string `json:"outputPath,omitempty"`
}

// RunInfo contains the listing view of a run.
type RunInfo struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Labels     int       `json:"labels"`
	Height     int       `json:"height"`
	Width      int       `json:"width"`
	Iterations int       `json:"iterations"`
	MeanDepth  float64   `json:"meanDepth"`
	ImagePath  string    `json:"imagePath"`
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun creates a run record with a fresh ID and the current time.
func NewRun(config RunConfig) *Run {
	return &Run{
		ID:        NewRunID(),
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full Run to its listing view.
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		ID:         r.ID,
		Timestamp:  r.Timestamp,
		Labels:     r.Config.Labels,
		Height:     r.Config.Height,
		Width:      r.Config.Width,
		Iterations: r.Iterations,
		MeanDepth:  r.Depth.Mean,
		ImagePath:  r.Config.ImagePath,
	}
}

// Validate checks if the run record has valid data.
func (r *Run) Validate() error {
	if err := CheckRunID(r.ID); err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Labels < 2 {
		return &ValidationError{Field: "Config.Labels", Reason: "must be at least 2"}
	}
	if r.Config.Height <= 0 || r.Config.Width <= 0 {
		return &ValidationError{Field: "Config.Height/Width", Reason: "must be positive"}
	}
	if r.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	if r.Iterations < 0 || r.Iterations > r.Config.Iters {
		return &ValidationError{
			Field:  "Iterations",
			Reason: fmt.Sprintf("must be in [0, %d], got %d", r.Config.Iters, r.Iterations),
		}
	}
	if r.Degenerate < 0 {
		return &ValidationError{Field: "Degenerate", Reason: "cannot be negative"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
