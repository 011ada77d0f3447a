package snapshot

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"spotlight-renderer/internal/target"
)

// Visualize maps a render target to a displayable image. RGBA8 targets are
// copied as is; float and fixed-point targets are normalized per channel
// by their largest magnitude, and single-channel targets become grey.
func Visualize(t *target.Target) *image.NRGBA {
	img := image.NewNRGBA(t.Bounds())
	if t.Width == 0 || t.Height == 0 {
		return img
	}

	var peak [4]float64
	if t.Format != target.RGBA8 {
		for y := 0; y < t.Height; y++ {
			for x := 0; x < t.Width; x++ {
				v := t.At(x, y)
				for c := range peak {
					peak[c] = max(peak[c], math.Abs(float64(v[c])))
				}
			}
		}
	}

	norm := func(v float32, c int) uint8 {
		f := math.Abs(float64(v))
		if t.Format != target.RGBA8 {
			if peak[c] == 0 {
				return 0
			}
			f /= peak[c]
		}
		return uint8(min(f, 1)*255 + 0.5)
	}

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			v := t.At(x, y)
			i := img.PixOffset(x, y)
			if t.Format == target.R32F {
				g := norm(v[0], 0)
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = g, g, g
			} else {
				img.Pix[i] = norm(v[0], 0)
				img.Pix[i+1] = norm(v[1], 1)
				img.Pix[i+2] = norm(v[2], 2)
			}
			img.Pix[i+3] = 255
		}
	}
	return img
}

// Fit scales img down so neither side exceeds maxSide. Smaller images are
// returned unchanged.
func Fit(img *image.NRGBA, maxSide int) *image.NRGBA {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	scale := float64(maxSide) / float64(max(b.Dx(), b.Dy()))
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
