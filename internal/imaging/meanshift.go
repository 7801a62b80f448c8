package imaging

import (
	"image"
	"runtime"
	"sync"
)

// MeanShiftConfig controls the edge-preserving pre-smoothing pass.
type MeanShiftConfig struct {
	SpatialRadius int     // sp: half-width of the search window in pixels
	ColorRadius   float64 // sr: colour distance cut-off
	MaxIter       int
	Epsilon       float64 // stop when the shift drops below this
	Workers       int
}

// DefaultMeanShiftConfig returns sp=20, sr=20 with 5 iterations.
func DefaultMeanShiftConfig() MeanShiftConfig {
	return MeanShiftConfig{
		SpatialRadius: 20,
		ColorRadius:   20,
		MaxIter:       5,
		Epsilon:       1,
		Workers:       runtime.NumCPU(),
	}
}

// MeanShiftFilter flattens colour regions while keeping edges. Every pixel
// walks towards the mean of its joint spatial/colour neighbourhood and takes
// the colour it converges to.
func MeanShiftFilter(img image.Image, cfg MeanShiftConfig) *image.RGBA {
	src := ToRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if cfg.SpatialRadius <= 0 || cfg.ColorRadius <= 0 || cfg.MaxIter <= 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for _, rows := range splitRows(h, workers) {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := 0; x < w; x++ {
					meanShiftPixel(src, dst, x, y, cfg)
				}
			}
		}(rows[0], rows[1])
	}
	wg.Wait()
	return dst
}

func meanShiftPixel(src, dst *image.RGBA, x, y int, cfg MeanShiftConfig) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	sr2 := cfg.ColorRadius * cfg.ColorRadius

	o := src.PixOffset(x, y)
	cx, cy := float64(x), float64(y)
	c0, c1, c2 := float64(src.Pix[o]), float64(src.Pix[o+1]), float64(src.Pix[o+2])

	for iter := 0; iter < cfg.MaxIter; iter++ {
		px, py := int(cx+0.5), int(cy+0.5)
		xMin, xMax := max(px-cfg.SpatialRadius, 0), min(px+cfg.SpatialRadius, w-1)
		yMin, yMax := max(py-cfg.SpatialRadius, 0), min(py+cfg.SpatialRadius, h-1)

		var sx, sy, s0, s1, s2, count float64
		for yy := yMin; yy <= yMax; yy++ {
			row := src.PixOffset(0, yy)
			for xx := xMin; xx <= xMax; xx++ {
				i := row + xx*4
				d0 := float64(src.Pix[i]) - c0
				d1 := float64(src.Pix[i+1]) - c1
				d2 := float64(src.Pix[i+2]) - c2
				if d0*d0+d1*d1+d2*d2 > sr2 {
					continue
				}
				sx += float64(xx)
				sy += float64(yy)
				s0 += float64(src.Pix[i])
				s1 += float64(src.Pix[i+1])
				s2 += float64(src.Pix[i+2])
				count++
			}
		}
		if count == 0 {
			break
		}

		nx, ny := sx/count, sy/count
		n0, n1, n2 := s0/count, s1/count, s2/count
		shift := abs(nx-cx) + abs(ny-cy) + abs(n0-c0) + abs(n1-c1) + abs(n2-c2)
		cx, cy, c0, c1, c2 = nx, ny, n0, n1, n2
		if shift <= cfg.Epsilon {
			break
		}
	}

	d := dst.PixOffset(x, y)
	dst.Pix[d] = clampByte(c0)
	dst.Pix[d+1] = clampByte(c1)
	dst.Pix[d+2] = clampByte(c2)
	dst.Pix[d+3] = src.Pix[o+3]
}

func splitRows(h, workers int) [][2]int {
	if workers > h {
		workers = h
	}
	if workers < 1 {
		return nil
	}
	chunk := (h + workers - 1) / workers
	ranges := make([][2]int, 0, workers)
	for y := 0; y < h; y += chunk {
		ranges = append(ranges, [2]int{y, min(y+chunk, h)})
	}
	return ranges
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampByte(v float64) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
