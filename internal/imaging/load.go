// Package imaging prepares reference images for the CRF and writes depth maps.
package imaging

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load decodes an image file (PNG, JPEG, GIF, BMP, TIFF or WebP).
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	slog.Debug("Loaded image", "path", path, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// ToRGBA returns img as an *image.RGBA with origin (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// WritePNG encodes img to path via temp file + rename.
func WritePNG(path string, img image.Image) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}

// LoadGray decodes path as grayscale resized to w×h. Used for ground-truth
// depth maps that were rendered at a different resolution.
func LoadGray(path string, w, h int) (*image.Gray, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return g, nil
	}
	return ResizeGray(img, w, h), nil
}
