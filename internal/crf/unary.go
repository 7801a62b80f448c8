package crf

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ProbFloor keeps -log(p) finite for zero probabilities.
// -log(1e-10) ≈ 23.03.
const ProbFloor = 1e-10

// UnaryFromProb converts a probability volume into negative log-likelihood energies.
// The input is not modified.
func UnaryFromProb(prob *Volume) *Volume {
	out := &Volume{L: prob.L, H: prob.H, W: prob.W, Data: make([]float64, len(prob.Data))}
	for i, p := range prob.Data {
		out.Data[i] = -math.Log(math.Max(p, ProbFloor))
	}
	return out
}

// softmaxInPlace replaces logits with exp(logits - max) / sum.
func softmaxInPlace(logits []float64) {
	m := floats.Max(logits)
	for i, x := range logits {
		logits[i] = math.Exp(x - m)
	}
	floats.Scale(1/floats.Sum(logits), logits)
}

// SoftmaxNegEnergy returns Q with Q[:, p] = softmax(-energy[:, p]) per pixel.
func SoftmaxNegEnergy(energy *Volume) *Volume {
	q := NewVolume(energy.L, energy.H, energy.W)
	col := make([]float64, energy.L)

	for i := 0; i < energy.Pixels(); i++ {
		energy.gatherColumn(i, col)
		floats.Scale(-1, col)
		softmaxInPlace(col)
		q.scatterColumn(i, col)
	}

	return q
}
