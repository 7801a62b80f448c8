package crf

import (
	"math"
	"testing"
)

func TestUnaryFromProbScenario(t *testing.T) {
	prob := scenarioVolume()
	Normalize(prob)
	unary := UnaryFromProb(prob)

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			dominant := 0
			if prob.At(1, r, c) > prob.At(0, r, c) {
				dominant = 1
			}
			other := 1 - dominant

			if e := unary.At(dominant, r, c); math.Abs(e) > 1e-12 {
				t.Errorf("Dominant energy at (%d,%d) = %f, want ~0", r, c, e)
			}
			if e := unary.At(other, r, c); e <= 10 {
				t.Errorf("Other energy at (%d,%d) = %f, want > 10", r, c, e)
			}
		}
	}
}

func TestUnaryFromProbDoesNotModifyInput(t *testing.T) {
	prob := &Volume{L: 2, H: 1, W: 1, Data: []float64{0.25, 0.75}}
	UnaryFromProb(prob)

	if prob.Data[0] != 0.25 || prob.Data[1] != 0.75 {
		t.Errorf("Input modified: %v", prob.Data)
	}
}

func TestUnaryFromProbAllZeroIsUniform(t *testing.T) {
	prob := NewVolume(4, 1, 1)
	unary := UnaryFromProb(prob)
	q := SoftmaxNegEnergy(unary)

	for l := 0; l < 4; l++ {
		if e := unary.At(l, 0, 0); math.IsInf(e, 0) || math.IsNaN(e) {
			t.Fatalf("Energy for label %d not finite: %f", l, e)
		}
		if p := q.At(l, 0, 0); math.Abs(p-0.25) > 1e-12 {
			t.Errorf("Label %d belief = %f, want 0.25", l, p)
		}
	}
}

func TestSoftmaxNegEnergy(t *testing.T) {
	energy := &Volume{L: 3, H: 1, W: 2, Data: []float64{
		0, 1000,
		1, 1000,
		2, 1000,
	}}
	q := SoftmaxNegEnergy(energy)

	for c := 0; c < 2; c++ {
		sum := 0.0
		for l := 0; l < 3; l++ {
			sum += q.At(l, 0, c)
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("Pixel %d sums to %f, want 1", c, sum)
		}
	}

	if !(q.At(0, 0, 0) > q.At(1, 0, 0) && q.At(1, 0, 0) > q.At(2, 0, 0)) {
		t.Errorf("Lower energy should give higher belief: %f %f %f", q.At(0, 0, 0), q.At(1, 0, 0), q.At(2, 0, 0))
	}
	if math.Abs(q.At(0, 0, 1)-1.0/3.0) > 1e-12 {
		t.Errorf("Large equal energies should stay uniform, got %f", q.At(0, 0, 1))
	}
}
