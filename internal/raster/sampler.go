package raster

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"
)

// SampleNRGBA performs bilinear filtering with UV wrapping and returns
// normalized RGBA. Accesses tex.Pix directly for performance.
func SampleNRGBA(tex *image.NRGBA, uv mgl32.Vec2) mgl32.Vec4 {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return mgl32.Vec4{1, 1, 1, 1}
	}

	u := wrap(uv[0])
	v := wrap(uv[1])

	fx := u * float32(w-1)
	fy := v * float32(h-1)
	x0 := int(fx)
	y0 := int(fy)
	x1 := (x0 + 1) % w
	y1 := (y0 + 1) % h
	dx := fx - float32(x0)
	dy := fy - float32(y0)

	stride := tex.Stride
	pix := tex.Pix

	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	var out mgl32.Vec4
	for c := 0; c < 4; c++ {
		out[c] = (float32(pix[i00+c])*w00 + float32(pix[i10+c])*w10 +
			float32(pix[i01+c])*w01 + float32(pix[i11+c])*w11) / 255
	}
	return out
}

func wrap(t float32) float32 {
	t -= float32(int(t))
	if t < 0 {
		t++
	}
	return t
}
