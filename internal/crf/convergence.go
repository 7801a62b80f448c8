package crf

import (
	"log/slog"
	"math"
)

// ConvergenceConfig defines when mean-field inference may stop before its iteration budget
type ConvergenceConfig struct {
	// Enabled controls whether early stopping is active
	Enabled bool

	// Patience is the number of consecutive iterations whose belief change
	// stays below Threshold before stopping
	Patience int

	// Threshold is the mean per-pixel L1 change of Q counted as "no change"
	// Example: 1e-4
	Threshold float64
}

// DefaultConvergenceConfig returns a config that stops once beliefs have settled
func DefaultConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled:   true,
		Patience:  2,
		Threshold: 1e-4,
	}
}

// DisabledConvergenceConfig runs the full iteration budget
func DisabledConvergenceConfig() ConvergenceConfig {
	return ConvergenceConfig{
		Enabled: false,
	}
}

// ConvergenceTracker records the belief change of each iteration and detects a fixed point
type ConvergenceTracker struct {
	config       ConvergenceConfig
	deltaHistory []float64
	minDelta     float64
	staleCount   int // consecutive iterations below threshold
}

// NewConvergenceTracker creates a tracker with the given config
func NewConvergenceTracker(config ConvergenceConfig) *ConvergenceTracker {
	return &ConvergenceTracker{
		config:       config,
		deltaHistory: []float64{},
		minDelta:     math.Inf(1),
	}
}

// Update records the belief change of one iteration and returns true if inference should stop
func (c *ConvergenceTracker) Update(delta float64) bool {
	c.deltaHistory = append(c.deltaHistory, delta)
	if delta < c.minDelta {
		c.minDelta = delta
	}

	if !c.config.Enabled {
		return false
	}

	if delta >= c.config.Threshold {
		c.staleCount = 0
		return false
	}

	c.staleCount++
	slog.Debug("Belief change below threshold",
		"delta", delta,
		"threshold", c.config.Threshold,
		"stale_count", c.staleCount,
		"patience", c.config.Patience,
	)

	if c.staleCount >= c.config.Patience {
		slog.Info("Mean-field converged - stopping early",
			"iterations", len(c.deltaHistory),
			"delta", delta,
		)
		return true
	}
	return false
}

// MinDelta returns the smallest belief change seen so far
func (c *ConvergenceTracker) MinDelta() float64 {
	return c.minDelta
}

// History returns a copy of the per-iteration belief changes
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.deltaHistory...)
}
