// Package sampling bakes the random sample sets shared by the shadow and
// ambient occlusion passes. Sets are generated once and never mutated.
package sampling

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Generator produces sample sets from a single random stream.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator with a fixed seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSystemGenerator seeds the generator from the runtime's random source.
func NewSystemGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// HemisphereKernel returns count vectors in the +Z hemisphere. Magnitudes
// follow lerp(0.1, 1, t²) so early samples stay near the origin.
func (g *Generator) HemisphereKernel(count int) []mgl32.Vec3 {
	kernel := make([]mgl32.Vec3, count)
	for i := range kernel {
		var v mgl32.Vec3
		for {
			v = mgl32.Vec3{
				g.rng.Float32()*2 - 1,
				g.rng.Float32()*2 - 1,
				g.rng.Float32(),
			}
			if v.Len() > 1e-4 {
				break
			}
		}
		v = v.Normalize()
		t := float32(i) / float32(count)
		kernel[i] = v.Mul(0.1 + 0.9*t*t)
	}
	return kernel
}

// RotationNoise returns dim*dim tangent-plane rotation vectors, row-major.
func (g *Generator) RotationNoise(dim int) []mgl32.Vec3 {
	noise := make([]mgl32.Vec3, dim*dim)
	for i := range noise {
		noise[i] = mgl32.Vec3{g.rng.Float32()*2 - 1, g.rng.Float32()*2 - 1, 0}
	}
	return noise
}

// Counts fixes the length of every baked set.
type Counts struct {
	Blocker    int
	Filter     int
	Kernel     int
	NoiseDim   int
	Relaxation int
}

// Sets holds the immutable session sample data.
type Sets struct {
	Blocker  []mgl32.Vec2
	Filter   []mgl32.Vec2
	Kernel   []mgl32.Vec3
	Noise    []mgl32.Vec3
	NoiseDim int
}

// NoiseAt returns the tiled noise vector for a screen pixel.
func (s *Sets) NoiseAt(x, y int) mgl32.Vec3 {
	return s.Noise[(y%s.NoiseDim)*s.NoiseDim+x%s.NoiseDim]
}

// Bake generates every set. Exhaustion is fatal for the session.
func Bake(g *Generator, c Counts) (*Sets, error) {
	if c.Kernel < 1 || c.NoiseDim < 1 {
		return nil, fmt.Errorf("sampling: bake: kernel %d, noise %d: must be positive", c.Kernel, c.NoiseDim)
	}
	blocker, err := g.PoissonDisc(c.Blocker, c.Relaxation)
	if err != nil {
		return nil, fmt.Errorf("sampling: bake blocker set: %w", err)
	}
	filter, err := g.PoissonDisc(c.Filter, c.Relaxation)
	if err != nil {
		return nil, fmt.Errorf("sampling: bake filter set: %w", err)
	}
	return &Sets{
		Blocker:  blocker,
		Filter:   filter,
		Kernel:   g.HemisphereKernel(c.Kernel),
		Noise:    g.RotationNoise(c.NoiseDim),
		NoiseDim: c.NoiseDim,
	}, nil
}
