package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"spotlight-renderer/internal/mathutil"
)

// DistributionGGX is the Trowbridge-Reitz normal distribution.
func DistributionGGX(n, h mgl32.Vec3, roughness float32) float32 {
	a := roughness * roughness
	a2 := a * a
	nDotH := max(n.Dot(h), 0)
	denom := nDotH*nDotH*(a2-1) + 1
	return a2 / (math.Pi * denom * denom)
}

// GeometrySchlickGGX uses the direct-lighting remap k = (r+1)²/8.
func GeometrySchlickGGX(nDotV, roughness float32) float32 {
	r := roughness + 1
	k := r * r / 8
	return nDotV / (nDotV*(1-k) + k)
}

// GeometrySmith combines view and light masking.
func GeometrySmith(n, v, l mgl32.Vec3, roughness float32) float32 {
	nDotV := max(n.Dot(v), 0)
	nDotL := max(n.Dot(l), 0)
	return GeometrySchlickGGX(nDotV, roughness) * GeometrySchlickGGX(nDotL, roughness)
}

// FresnelSchlick approximates reflectance at the given cosine.
func FresnelSchlick(cosTheta float32, f0 mgl32.Vec3) mgl32.Vec3 {
	f := mathutil.Pow(mathutil.Saturate(1-cosTheta), 5)
	one := mgl32.Vec3{1, 1, 1}
	return f0.Add(one.Sub(f0).Mul(f))
}

// minRoughness keeps the GGX lobe finite for perfectly smooth surfaces.
const minRoughness = 0.045

// CookTorrance returns the reflected fraction of unit radiance arriving
// from l, including the cosine term. albedo is linear.
func CookTorrance(n, v, l, albedo mgl32.Vec3, roughness, metallic float32) mgl32.Vec3 {
	nDotL := max(n.Dot(l), 0)
	if nDotL == 0 {
		return mgl32.Vec3{}
	}
	h := mathutil.Normalize(v.Add(l))
	roughness = max(roughness, minRoughness)

	dielectric := mgl32.Vec3{0.04, 0.04, 0.04}
	f0 := dielectric.Mul(1 - metallic).Add(albedo.Mul(metallic))

	ndf := DistributionGGX(n, h, roughness)
	g := GeometrySmith(n, v, l, roughness)
	f := FresnelSchlick(max(h.Dot(v), 0), f0)

	kd := mgl32.Vec3{1, 1, 1}.Sub(f).Mul(1 - metallic)
	denom := max(4*max(n.Dot(v), 0)*nDotL, 0.001)
	specular := f.Mul(ndf * g / denom)
	diffuse := mathutil.MulVec3(kd, albedo).Mul(1 / math.Pi)
	return diffuse.Add(specular).Mul(nDotL)
}

// ConeIntensity is the spotlight's angular falloff for a point whose
// direction from the light has cosine cos with the cone axis.
func ConeIntensity(cos, innerCos, outerCos, falloff float32) float32 {
	span := innerCos - outerCos
	if span <= 0 {
		if cos >= outerCos {
			return 1
		}
		return 0
	}
	return mathutil.Pow(mathutil.Saturate((cos-outerCos)/span), falloff)
}
