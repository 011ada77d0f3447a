package postprocess

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
	"spotlight-renderer/internal/target"
)

// Quality selects an anti-aliasing tier.
type Quality int

const (
	QualityLow Quality = iota
	QualityDefault
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityHigh:
		return "high"
	}
	return "default"
}

// ParseQuality maps a configuration name to a tier.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "low":
		return QualityLow, nil
	case "default", "":
		return QualityDefault, nil
	case "high":
		return QualityHigh, nil
	}
	return 0, fmt.Errorf("postprocess: unknown quality %q", s)
}

// Tier holds the edge detection constants of a quality level.
type Tier struct {
	Contrast float32 // absolute luma contrast threshold
	Relative float32 // threshold relative to the brightest neighbour
	Steps    int     // edge crawl steps
}

// Tier returns the constants for q.
func (q Quality) Tier() Tier {
	switch q {
	case QualityLow:
		return Tier{Contrast: 0.0833, Relative: 0.25, Steps: 4}
	case QualityHigh:
		return Tier{Contrast: 0.0312, Relative: 0.063, Steps: 12}
	}
	return Tier{Contrast: 0.0312, Relative: 0.166, Steps: 10}
}

const subpixelBlend = 1.0

// FXAA anti-aliases src into the pass's second target. Luma is read from
// the green channel.
func (p *Pass) FXAA(src *target.Target, q Quality) (*target.Target, error) {
	if err := p.bind(); err != nil {
		return nil, err
	}
	if src.Width != p.aa.Width || src.Height != p.aa.Height {
		return nil, fmt.Errorf("postprocess: fxaa source %dx%d, target %dx%d", src.Width, src.Height, p.aa.Width, p.aa.Height)
	}
	tier := q.Tier()
	out := p.aa
	p.pool.Rows(0, out.Height, func(y int) {
		for x := 0; x < out.Width; x++ {
			out.Set(x, y, fxaaTexel(src, x, y, tier))
		}
	})
	return out, nil
}

// sampleAt reads src bilinearly at continuous pixel coordinates, where
// (x, y) is the center of texel (x, y).
func sampleAt(src *target.Target, x, y float32) mgl32.Vec4 {
	return src.Sample((x+0.5)/float32(src.Width), (y+0.5)/float32(src.Height))
}

func fxaaTexel(src *target.Target, x, y int, t Tier) mgl32.Vec4 {
	orig := src.At(x, y)
	orig[3] = 1
	luma := func(dx, dy int) float32 { return src.At(x+dx, y+dy)[1] }

	// Row 0 is the top of the image, so north is y-1.
	m := orig[1]
	n, e, s, w := luma(0, -1), luma(1, 0), luma(0, 1), luma(-1, 0)
	hi := max(m, n, e, s, w)
	lo := min(m, n, e, s, w)
	contrast := hi - lo
	if contrast < t.Contrast || contrast < t.Relative*hi {
		return orig
	}

	ne, se, sw, nw := luma(1, -1), luma(1, 1), luma(-1, 1), luma(-1, -1)
	avg := (2*(n+e+s+w) + ne + nw + se + sw) / 12
	blend := mathutil.Smoothstep(0, 1, mathutil.Abs(avg-m)/contrast)
	pixelBlend := blend * blend * subpixelBlend

	horiz := mathutil.Abs(n+s-2*m)*2 + mathutil.Abs(ne+se-2*e) + mathutil.Abs(nw+sw-2*w)
	vert := mathutil.Abs(e+w-2*m)*2 + mathutil.Abs(ne+nw-2*n) + mathutil.Abs(se+sw-2*s)
	isHoriz := horiz >= vert

	// Step across the edge toward the steeper side.
	posLum, negLum := e, w
	step := float32(1)
	if isHoriz {
		posLum, negLum = n, s
		step = -1
	}
	posGrad := mathutil.Abs(posLum - m)
	negGrad := mathutil.Abs(negLum - m)
	oppLum, gradient := posLum, posGrad
	if posGrad < negGrad {
		step = -step
		oppLum, gradient = negLum, negGrad
	}

	cx, cy := float32(x), float32(y)
	ex, ey := cx, cy
	var dx, dy float32
	if isHoriz {
		ey += step * 0.5
		dx = 1
	} else {
		ex += step * 0.5
		dy = 1
	}

	edgeLum := (m + oppLum) * 0.5
	threshold := gradient * 0.25
	px, py := ex+dx, ey+dy
	nx, ny := ex-dx, ey-dy
	pDelta := sampleAt(src, px, py)[1] - edgeLum
	nDelta := sampleAt(src, nx, ny)[1] - edgeLum
	pEnd := mathutil.Abs(pDelta) >= threshold
	nEnd := mathutil.Abs(nDelta) >= threshold
	for i := 0; i < t.Steps-1; i++ {
		if !pEnd {
			px, py = px+dx, py+dy
			pDelta = sampleAt(src, px, py)[1] - edgeLum
			pEnd = mathutil.Abs(pDelta) >= threshold
		}
		if !nEnd {
			nx, ny = nx-dx, ny-dy
			nDelta = sampleAt(src, nx, ny)[1] - edgeLum
			nEnd = mathutil.Abs(nDelta) >= threshold
		}
	}

	var pDist, nDist float32
	if isHoriz {
		pDist, nDist = px-cx, cx-nx
	} else {
		pDist, nDist = py-cy, cy-ny
	}
	minDist, deltaSign := pDist, pDelta >= 0
	if pDist > nDist {
		minDist, deltaSign = nDist, nDelta >= 0
	}

	// Pixels moving away from the edge end are not blended.
	var edgeBlend float32
	if deltaSign != (m-edgeLum >= 0) {
		edgeBlend = 0.5 - minDist/(pDist+nDist)
	}

	final := max(pixelBlend, edgeBlend)
	fx, fy := cx, cy
	if isHoriz {
		fy += final * step
	} else {
		fx += final * step
	}
	c := sampleAt(src, fx, fy)
	c[3] = 1
	return c
}
