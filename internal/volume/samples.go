package volume

import "fmt"

// InverseDepthSamples returns n depth hypotheses spaced uniformly in inverse depth
// between minDepth and maxDepth, each scaled as fx / s.
//
// For i in [0, n): s_i = (max·min) / (max - (max-min)·i/(n-1)).
// s_0 = minDepth and s_{n-1} = maxDepth, so the returned values decrease
// from fx/minDepth to fx/maxDepth.
func InverseDepthSamples(n int, minDepth, maxDepth, fx float64) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 depth samples, got %d", n)
	}
	if !(minDepth > 0) {
		return nil, fmt.Errorf("min depth must be positive, got %v", minDepth)
	}
	if !(maxDepth > minDepth) {
		return nil, fmt.Errorf("max depth %v must exceed min depth %v", maxDepth, minDepth)
	}
	if !(fx > 0) {
		return nil, fmt.Errorf("focal length must be positive, got %v", fx)
	}

	samples := make([]float64, n)
	step := 1.0 / float64(n-1)
	for i := range samples {
		s := (maxDepth * minDepth) / (maxDepth - (maxDepth-minDepth)*float64(i)*step)
		samples[i] = fx / s
	}
	return samples, nil
}
