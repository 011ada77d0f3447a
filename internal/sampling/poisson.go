package sampling

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrExhaustedSampleSpace is returned when disc growth stalls before the
// requested number of samples exists.
var ErrExhaustedSampleSpace = errors.New("sampling: exhausted sample space")

// attemptsPerPoint bounds the candidates tried around each active point.
const attemptsPerPoint = 30

// PoissonDisc returns count offsets in [-0.5, 0.5]² whose pairwise distance
// before rescaling is at least 1.
func (g *Generator) PoissonDisc(count, relaxIterations int) ([]mgl32.Vec2, error) {
	if count < 1 {
		return nil, fmt.Errorf("sampling: poisson disc count %d: must be positive", count)
	}
	pts, err := g.growDisc(count, math.Sqrt(float64(count))+1, attemptsPerPoint)
	if err != nil {
		return nil, err
	}
	relax(pts, relaxIterations)
	return fitUnitSquare(pts), nil
}

// growDisc runs dart throwing around an active list inside a disc of the
// given radius. Points are kept at unit minimum separation.
func (g *Generator) growDisc(count int, radius float64, attempts int) ([]mgl64.Vec2, error) {
	pts := make([]mgl64.Vec2, 0, count)
	seed := g.inDisc(radius / 2)
	pts = append(pts, seed)
	active := []int{0}

	for len(pts) < count {
		if len(active) == 0 {
			return nil, fmt.Errorf("%w: placed %d of %d samples", ErrExhaustedSampleSpace, len(pts), count)
		}
		ai := g.rng.IntN(len(active))
		origin := pts[active[ai]]

		placed := false
		for a := 0; a < attempts; a++ {
			theta := g.rng.Float64() * 2 * math.Pi
			r := 1 + g.rng.Float64()
			c := mgl64.Vec2{origin[0] + r*math.Cos(theta), origin[1] + r*math.Sin(theta)}
			if c.Len() > radius || !separated(pts, c, -1) {
				continue
			}
			pts = append(pts, c)
			active = append(active, len(pts)-1)
			placed = true
			break
		}
		if !placed {
			active[ai] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}
	return pts, nil
}

func (g *Generator) inDisc(radius float64) mgl64.Vec2 {
	for {
		p := mgl64.Vec2{(g.rng.Float64()*2 - 1) * radius, (g.rng.Float64()*2 - 1) * radius}
		if p.Len() <= radius {
			return p
		}
	}
}

// separated reports whether c is at least unit distance from every point
// except the one at index skip.
func separated(pts []mgl64.Vec2, c mgl64.Vec2, skip int) bool {
	for i, p := range pts {
		if i == skip {
			continue
		}
		if p.Sub(c).Len() < 1 {
			return false
		}
	}
	return true
}

// relax pulls points toward the centroid, keeping unit separation.
func relax(pts []mgl64.Vec2, iterations int) {
	if len(pts) < 2 {
		return
	}
	for it := 0; it < iterations; it++ {
		var centroid mgl64.Vec2
		for _, p := range pts {
			centroid = centroid.Add(p)
		}
		centroid = centroid.Mul(1 / float64(len(pts)))

		for i, p := range pts {
			moved := p.Add(centroid.Sub(p).Mul(0.25))
			if separated(pts, moved, i) {
				pts[i] = moved
			}
		}
	}
}

// fitUnitSquare centres the set on its bounding box and scales it uniformly
// into [-0.5, 0.5]².
func fitUnitSquare(pts []mgl64.Vec2) []mgl32.Vec2 {
	minP := mgl64.Vec2{math.Inf(1), math.Inf(1)}
	maxP := mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		minP = mgl64.Vec2{math.Min(minP[0], p[0]), math.Min(minP[1], p[1])}
		maxP = mgl64.Vec2{math.Max(maxP[0], p[0]), math.Max(maxP[1], p[1])}
	}
	center := minP.Add(maxP).Mul(0.5)
	extent := math.Max(maxP[0]-minP[0], maxP[1]-minP[1])
	scale := 0.0
	if extent > 0 {
		scale = 1 / extent
	}

	out := make([]mgl32.Vec2, len(pts))
	for i, p := range pts {
		q := p.Sub(center).Mul(scale)
		out[i] = mgl32.Vec2{float32(q[0]), float32(q[1])}
	}
	return out
}
