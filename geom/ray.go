package geom

import "math"

// Ray carries its own current best range, updated in place by whichever
// element last produced a closer hit (spec §4.1: "update the ray's stored
// range if a hit is closer").
type Ray struct {
	Origin Vec3
	Dir    Vec3 // not required to be unit length, but usually is
	Range  float64
	Hit    bool
}

// NewRay returns a ray with an unbounded initial range.
func NewRay(origin, dir Vec3) *Ray {
	return &Ray{Origin: origin, Dir: dir, Range: math.Inf(1)}
}

// At evaluates the ray at its current range.
func (r *Ray) At() Vec3 {
	return r.Origin.Add(r.Dir.Scale(r.Range))
}

// Offer records a candidate hit at distance t if it is closer than the
// ray's current range.
func (r *Ray) Offer(t float64) bool {
	if t >= 0 && t < r.Range {
		r.Range = t
		r.Hit = true
		return true
	}
	return false
}

// RayTriangleMollerTrumbore intersects a ray with a triangle given by three
// vertices, returning the hit parameter t and ok=true on a hit within the
// triangle (standard Möller–Trumbore test, spec §4.8).
func RayTriangleMollerTrumbore(origin, dir, v0, v1, v2 Vec3) (t float64, ok bool) {
	const eps = 1e-12
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	pvec := dir.Cross(e2)
	det := e1.Dot(pvec)
	if math.Abs(det) < eps {
		return 0, false
	}
	invDet := 1 / det
	tvec := origin.Sub(v0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}
	qvec := tvec.Cross(e1)
	v := dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t = e2.Dot(qvec) * invDet
	if t < 0 {
		return 0, false
	}
	return t, true
}
