package imaging

import (
	"image"

	"github.com/cwbudde/densedepth/internal/crf"
	"github.com/lucasb-eyer/go-colorful"
)

// ToLab converts img to CIE Lab on the 8-bit scale used by the CRF colour
// bandwidths: L in [0, 255], a and b offset by 128.
func ToLab(img image.Image) *crf.Image {
	src := ToRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := crf.NewImage(h, w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := src.PixOffset(x, y)
			c := colorful.Color{
				R: float64(src.Pix[o]) / 255,
				G: float64(src.Pix[o+1]) / 255,
				B: float64(src.Pix[o+2]) / 255,
			}
			l, a, b := c.Lab()
			i := (y*w + x) * 3
			out.Pix[i] = l * 255
			out.Pix[i+1] = a*100 + 128
			out.Pix[i+2] = b*100 + 128
		}
	}
	return out
}

// PrepareConfig describes the reference image preparation.
type PrepareConfig struct {
	// Levels is the number of PyrDown halvings.
	Levels    int
	MeanShift MeanShiftConfig
}

// Prepare downsamples, smooths and converts a reference image to Lab.
func Prepare(img image.Image, cfg PrepareConfig) *crf.Image {
	small := Downsample(img, cfg.Levels)
	smooth := MeanShiftFilter(small, cfg.MeanShift)
	return ToLab(smooth)
}
