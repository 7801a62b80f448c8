package crf

import "math"

// Compatibility is the label penalty μ(a, b) of the pairwise term.
// Penalty(a, a) must be 0.
type Compatibility interface {
	Penalty(a, b int) float64
}

// LabelDistance penalizes label disagreement linearly in |a-b|:
// Weight at distance 1, rising to Labels*MaxPenalty at distance Labels-1.
// When Labels*MaxPenalty < Weight the penalty stays flat at Weight.
type LabelDistance struct {
	Labels     int
	Weight     float64
	MaxPenalty float64
}

// NewLabelDistance builds the compatibility for an L-label problem.
func NewLabelDistance(labels int, weight, maxPenalty float64) LabelDistance {
	return LabelDistance{Labels: labels, Weight: weight, MaxPenalty: maxPenalty}
}

// Penalty implements Compatibility.
func (c LabelDistance) Penalty(a, b int) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d == 0 {
		return 0
	}
	if c.Labels <= 2 {
		return c.Weight
	}

	far := math.Max(c.Weight, float64(c.Labels)*c.MaxPenalty)
	t := float64(d-1) / float64(c.Labels-2)
	return c.Weight + (far-c.Weight)*t
}

// compatMatrix materializes μ as an L×L row-major matrix.
func compatMatrix(c Compatibility, labels int) []float64 {
	m := make([]float64, labels*labels)
	for a := 0; a < labels; a++ {
		for b := 0; b < labels; b++ {
			m[a*labels+b] = c.Penalty(a, b)
		}
	}
	return m
}
