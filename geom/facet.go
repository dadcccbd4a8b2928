package geom

import "math"

// Facet is a triangular element over three control points, referenced by
// stable index into the owning shape model's control-point arena (spec §9
// "deep sharing of control points across patches" -> flat array + index
// scheme). Area, normal and center are caches, recomputable from the
// vertex positions.
type Facet struct {
	V0, V1, V2 int // indices into the owning arena

	area   float64
	normal Vec3
	center Vec3
	cached bool
}

// Recompute refreshes the facet's cached area, outward normal and center
// given the current positions of its three vertices.
func (f *Facet) Recompute(p0, p1, p2 Vec3) {
	e1 := p1.Sub(p0)
	e2 := p2.Sub(p0)
	cr := e1.Cross(e2)
	f.area = 0.5 * cr.Norm()
	f.normal = cr.Normalized()
	f.center = p0.Add(p1).Add(p2).Scale(1.0 / 3.0)
	f.cached = true
}

func (f *Facet) Area() float64 {
	return f.area
}

func (f *Facet) Normal() Vec3 {
	return f.normal
}

func (f *Facet) Center() Vec3 {
	return f.center
}

// BoundingBox returns the facet's bbox given the current vertex positions.
func (f *Facet) BoundingBox(p0, p1, p2 Vec3) BBox {
	b := EmptyBBox()
	b.ExpandPoint(p0)
	b.ExpandPoint(p1)
	b.ExpandPoint(p2)
	return b
}

// SignedSolidAngleTerm returns v0.(v1 x v2), the per-facet term of the
// divergence-theorem volume sum (spec §4.8 "Volume").
func SignedSolidAngleTerm(v0, v1, v2 Vec3) float64 {
	return v0.Dot(v1.Cross(v2))
}

// SmallestAngleVertex returns which of the three vertices (0, 1, or 2) has
// the smallest interior angle, used by MergeShrunkFacet (spec §4.8) to
// pick the collapse edge (the one opposite that vertex).
func SmallestAngleVertex(p0, p1, p2 Vec3) int {
	angle := func(a, b, c Vec3) float64 {
		u := b.Sub(a).Normalized()
		v := c.Sub(a).Normalized()
		d := u.Dot(v)
		if d > 1 {
			d = 1
		}
		if d < -1 {
			d = -1
		}
		return math.Acos(d)
	}
	a0 := angle(p0, p1, p2)
	a1 := angle(p1, p2, p0)
	a2 := angle(p2, p0, p1)
	best, idx := a0, 0
	if a1 < best {
		best, idx = a1, 1
	}
	if a2 < best {
		idx = 2
	}
	return idx
}
