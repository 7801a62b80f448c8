package opt

// Optimizer minimizes an objective over a box.
type Optimizer interface {
	// Run minimizes eval over [lower[i], upper[i]] per dimension and returns
	// the best point and its cost.
	Run(eval func([]float64) float64, lower, upper []float64) ([]float64, float64, error)
}
