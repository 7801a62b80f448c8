package crf

import "gonum.org/v1/gonum/floats"

// SignalEpsilon is the per-pixel cost sum below which a pixel carries no signal.
const SignalEpsilon = 1e-9

// Normalize turns a cost volume into a per-pixel distribution over labels, in place.
// Pixels whose label sum is at or below SignalEpsilon are zeroed; they become
// uniform once converted to unary energies.
// Returns the number of such degenerate pixels.
func Normalize(v *Volume) int {
	col := make([]float64, v.L)
	degenerate := 0

	for i := 0; i < v.Pixels(); i++ {
		v.gatherColumn(i, col)

		sum := floats.Sum(col)
		if sum <= SignalEpsilon {
			for l := range col {
				col[l] = 0
			}
			degenerate++
		} else {
			floats.Scale(1/sum, col)
		}

		v.scatterColumn(i, col)
	}

	return degenerate
}
