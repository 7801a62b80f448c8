package imaging

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// PyrDown halves an image, rounding odd sizes up, with a smoothing resampler.
func PyrDown(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := (b.Dx()+1)/2, (b.Dy()+1)/2
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Downsample applies PyrDown levels times.
func Downsample(img image.Image, levels int) *image.RGBA {
	out := ToRGBA(img)
	for i := 0; i < levels; i++ {
		out = PyrDown(out)
	}
	return out
}

// ResizeGray scales a grayscale image to w×h with bilinear interpolation.
func ResizeGray(img image.Image, w, h int) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// UpsampleDepth enlarges a rendered depth map to w×h.
func UpsampleDepth(depth *image.Gray, w, h int) *image.Gray {
	scaled := resize.Resize(uint(w), uint(h), depth, resize.Bilinear)
	if g, ok := scaled.(*image.Gray); ok {
		return g
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	sb := scaled.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetGray(x, y, color.GrayModel.Convert(scaled.At(sb.Min.X+x, sb.Min.Y+y)).(color.Gray))
		}
	}
	return out
}
