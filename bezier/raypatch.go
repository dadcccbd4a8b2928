package bezier

import (
	"math"

	"github.com/cpmech/smallbody/geom"
)

// patchRef adapts a single patch into kdtree.RayElement: its bounding
// volume is taken from the three corner control points, and a hit is
// refined from the flat corner-triangle intersection by Newton iteration
// in barycentric (u,v) against the curved surface (spec §4.9 "ray-patch
// intersection: initial guess from the corner triangle, refine by
// Newton-Raphson to a residual below 1e-10 m, at most 10 iterations").
type patchRef struct {
	s   *Shape
	idx int
}

func (p patchRef) corners() (a, b, c geom.Vec3) {
	patch := p.s.Patches[p.idx]
	n := patch.Degree
	a = p.s.Points[patch.CPAt(n, 0, 0)]
	b = p.s.Points[patch.CPAt(0, n, 0)]
	c = p.s.Points[patch.CPAt(0, 0, n)]
	return
}

func (p patchRef) Verts() []geom.Vec3 {
	a, b, c := p.corners()
	return []geom.Vec3{a, b, c}
}

const (
	rayPatchMaxIter = 10
	rayPatchTol     = 1e-10
)

// RayHit finds the ray parameter of the patch's surface nearest the
// corner-triangle guess, refining in (u,v) until the in-surface residual
// falls below tolerance or the iteration budget is spent. Returns ok=false
// if the corner triangle itself misses or refinement fails to converge
// within the patch's domain.
func (p patchRef) RayHit(origin, dir geom.Vec3) (float64, bool) {
	a, b, c := p.corners()
	t0, ok := geom.RayTriangleMollerTrumbore(origin, dir, a, b, c)
	if !ok {
		return 0, false
	}
	u, v, ok := baryOf(origin.Add(dir.Scale(t0)), a, b, c)
	if !ok {
		return 0, false
	}
	patch := p.s.Patches[p.idx]
	t := t0
	for iter := 0; iter < rayPatchMaxIter; iter++ {
		x := p.s.eval(patch, u, v)
		xu, xv := p.s.evalDerivs(patch, u, v)
		hitPoint := origin.Add(dir.Scale(t))
		resid := x.Sub(hitPoint)
		if resid.Norm() < rayPatchTol {
			break
		}
		// Solve the 3x3 linear system [xu xv -dir] * [du dv dt]^T = -resid
		// directly with solve3's Cramer's rule (three unknowns, three
		// equations, generically full rank away from grazing incidence).
		du, dv, dt, solved := solve3(xu, xv, dir.Scale(-1), resid.Scale(-1))
		if !solved {
			return 0, false
		}
		u += du
		v += dv
		t += dt
		if u < -1e-6 || v < -1e-6 || u+v > 1+1e-6 {
			return 0, false
		}
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// baryOf returns the barycentric (u,v) of point x relative to triangle
// (a,b,c): u is the weight of a and v the weight of b, matching the patch
// convention in which u weights corner CPAt(n,0,0); the weight of c,
// w = 1-u-v, is implicit. ok is false if the triangle is degenerate.
func baryOf(x, a, b, c geom.Vec3) (u, v float64, ok bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	n := e1.Cross(e2)
	denom := n.Dot(n)
	if denom < 1e-30 {
		return 0, 0, false
	}
	d := x.Sub(a)
	wb := d.Cross(e2).Dot(n) / denom
	wc := e1.Cross(d).Dot(n) / denom
	return 1 - wb - wc, wb, true
}

// solve3 solves the 3x3 system [c0 c1 c2] * [x0 x1 x2]^T = rhs via Cramer's
// rule.
func solve3(c0, c1, c2, rhs geom.Vec3) (x0, x1, x2 float64, ok bool) {
	det := c0.Dot(c1.Cross(c2))
	if math.Abs(det) < 1e-20 {
		return 0, 0, 0, false
	}
	x0 = rhs.Dot(c1.Cross(c2)) / det
	x1 = c0.Dot(rhs.Cross(c2)) / det
	x2 = c0.Dot(c1.Cross(rhs)) / det
	return x0, x1, x2, true
}

// nearestBarycentricGuess finds a starting (u,v) for nearest-point queries
// by scanning a small fixed grid and returning the closest sample; callers
// may additionally refine via evalDerivs-based descent if higher accuracy
// is required.
func nearestBarycentricGuess(s *Shape, patchIdx int, target geom.Vec3) (u, v float64, ok bool) {
	patch := s.Patches[patchIdx]
	const steps = 6
	bestD := math.Inf(1)
	found := false
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps-i; j++ {
			uu := float64(i) / steps
			vv := float64(j) / steps
			x := s.eval(patch, uu, vv)
			d := x.Sub(target).Norm()
			if d < bestD {
				bestD, u, v, found = d, uu, vv, true
			}
		}
	}
	return u, v, found
}
