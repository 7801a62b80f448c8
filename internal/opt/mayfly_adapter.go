package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// minPopulation is the smallest population mayfly accepts.
const minPopulation = 20

// MayflyAdapter wraps the Mayfly library to conform to the Optimizer interface.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter.
// popSize below 20 is raised to 20.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	if popSize < minPopulation {
		popSize = minPopulation
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes Mayfly in the unit cube and maps positions onto the
// per-dimension bounds, since the library only takes scalar bounds.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return nil, 0, fmt.Errorf("bounds mismatch: %d lower, %d upper", len(lower), len(upper))
	}
	for i := range lower {
		if !(upper[i] >= lower[i]) {
			return nil, 0, fmt.Errorf("dimension %d: upper bound %v below lower bound %v", i, upper[i], lower[i])
		}
	}
	if m.maxIters <= 0 {
		return nil, 0, fmt.Errorf("max iterations must be positive, got %d", m.maxIters)
	}

	dim := len(lower)
	scratch := make([]float64, dim)
	unitEval := func(u []float64) float64 {
		fromUnit(scratch, u, lower, upper)
		return eval(scratch)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = unitEval
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		return nil, 0, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	best := make([]float64, dim)
	fromUnit(best, result.GlobalBest.Position, lower, upper)
	return best, result.GlobalBest.Cost, nil
}

// fromUnit maps u in [0,1]^d onto the box, clamping stray positions.
func fromUnit(dst, u, lower, upper []float64) {
	for i := range dst {
		t := u[i]
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		dst[i] = lower[i] + t*(upper[i]-lower[i])
	}
}
