package tune

import (
	"image"

	"gonum.org/v1/gonum/floats"
)

// CostFunc computes the error between a predicted and a ground-truth depth image.
type CostFunc func(pred, truth *image.Gray) float64

func grayValues(img *image.Gray) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, float64(row[x]))
		}
	}
	return out
}

func residual(pred, truth *image.Gray) []float64 {
	if pred.Bounds().Dx() != truth.Bounds().Dx() || pred.Bounds().Dy() != truth.Bounds().Dy() {
		panic("image dimensions must match")
	}
	d := grayValues(pred)
	floats.Sub(d, grayValues(truth))
	return d
}

// MSECost computes Mean Squared Error over 8-bit gray levels.
func MSECost(pred, truth *image.Gray) float64 {
	d := residual(pred, truth)
	if len(d) == 0 {
		return 0
	}
	return floats.Dot(d, d) / float64(len(d))
}

// MAECost computes Mean Absolute Error over 8-bit gray levels.
func MAECost(pred, truth *image.Gray) float64 {
	d := residual(pred, truth)
	if len(d) == 0 {
		return 0
	}
	return floats.Norm(d, 1) / float64(len(d))
}

// ParseCost maps "mse" (default) or "mae" to a cost function.
func ParseCost(name string) (CostFunc, bool) {
	switch name {
	case "", "mse":
		return MSECost, true
	case "mae":
		return MAECost, true
	default:
		return nil, false
	}
}
