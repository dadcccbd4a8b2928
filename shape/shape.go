// Package shape implements the triangular surface model that a bundle of
// registered point clouds is lifted into (spec §4.8): a flat arena of
// control points shared by the model's facets, closed-form mass
// properties from the divergence theorem, principal-axis canonicalization,
// and a KD-tree-backed ray trace. The Bézier degree-elevation of this
// model lives in the bezier package.
package shape

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/kdtree"
)

// Triangular is a triangular shape model: a flat control-point arena
// shared by Facets via stable indices (spec §9 "arena-plus-index
// scheme"), with cached mass properties and an owned ray-trace tree.
type Triangular struct {
	Frame  string
	Points []geom.Vec3
	Facets []geom.Facet

	props geom.MassProperties
	tree  *kdtree.ElementTree
}

// facetRef adapts a *Facet plus its owning point arena into a
// kdtree.RayElement (spec §4.1 "heterogeneous surface elements").
type facetRef struct {
	m   *Triangular
	idx int
}

func (r facetRef) verts() (geom.Vec3, geom.Vec3, geom.Vec3) {
	f := &r.m.Facets[r.idx]
	return r.m.Points[f.V0], r.m.Points[f.V1], r.m.Points[f.V2]
}

func (r facetRef) Verts() []geom.Vec3 {
	v0, v1, v2 := r.verts()
	return []geom.Vec3{v0, v1, v2}
}

func (r facetRef) RayHit(origin, dir geom.Vec3) (float64, bool) {
	v0, v1, v2 := r.verts()
	return geom.RayTriangleMollerTrumbore(origin, dir, v0, v1, v2)
}

// NewTriangular builds a shape model from a point arena and triangulated
// face connectivity. Every face index must reference a valid point; the
// mesh must already be pure-triangle (the .obj loader rejects any other
// polygon before this constructor ever sees it).
func NewTriangular(frame string, points []geom.Vec3, faces [][3]int) (*Triangular, error) {
	if len(points) == 0 {
		return nil, errs.New(errs.InputMalformed, "shape: no control points")
	}
	if len(faces) == 0 {
		return nil, errs.New(errs.InputMalformed, "shape: no facets")
	}
	facets := make([]geom.Facet, len(faces))
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(points) {
				return nil, errs.New(errs.InputMalformed, "shape: facet %d references out-of-range point %d", i, idx)
			}
		}
		facets[i] = geom.Facet{V0: f[0], V1: f[1], V2: f[2]}
	}
	m := &Triangular{Frame: frame, Points: points, Facets: facets}
	m.Recompute()
	return m, nil
}

// Recompute refreshes every facet's cached geometry, the model's mass
// properties, and rebuilds the ray-trace KD-tree. Call after any mutation
// of Points or Facets (spec §5 "KD-trees are immutable after build;
// rebuilds happen between iterations").
func (m *Triangular) Recompute(cfg ...config.KDTreeConfig) {
	for i := range m.Facets {
		f := &m.Facets[i]
		f.Recompute(m.Points[f.V0], m.Points[f.V1], m.Points[f.V2])
	}
	m.props = m.computeMassProperties()
	elems := make([]kdtree.RayElement, len(m.Facets))
	for i := range m.Facets {
		elems[i] = facetRef{m: m, idx: i}
	}
	treeCfg := kdtree.PointTreeConfig{MaxDepth: 1000, ShareFractionStop: 0.5}
	if len(cfg) > 0 {
		treeCfg = kdtree.PointTreeConfig{MaxDepth: cfg[0].MaxDepth, ShareFractionStop: cfg[0].ShareFractionStop}
	}
	m.tree = kdtree.BuildElementTree(elems, treeCfg)
}

// computeMassProperties implements spec §4.8's divergence-theorem sums
// over the tetrahedra formed by each facet and the coordinate origin.
func (m *Triangular) computeMassProperties() geom.MassProperties {
	var volume, area float64
	var comNumerator geom.Vec3
	var inertia geom.Mat3
	for _, f := range m.Facets {
		v0, v1, v2 := m.Points[f.V0], m.Points[f.V1], m.Points[f.V2]
		term := geom.SignedSolidAngleTerm(v0, v1, v2)
		volume += term
		tetVol := term / 6
		centroid := v0.Add(v1).Add(v2).Scale(1.0 / 4.0) // tetrahedron with apex at origin
		comNumerator = comNumerator.Add(centroid.Scale(tetVol))
		inertia = inertia.Add(tetrahedronInertia(v0, v1, v2).Scale(tetVol))

		e1 := v1.Sub(v0)
		e2 := v2.Sub(v0)
		area += 0.5 * e1.Cross(e2).Norm()
	}
	volume /= 6
	var com geom.Vec3
	if volume != 0 {
		com = comNumerator.Scale(1 / volume)
	}
	// Shift the accumulated about-origin inertia to be about the center of
	// mass (parallel-axis theorem), then non-dimensionalize by ell=V^(1/3)
	// (spec §4.8 "non-dimensional (rho=1, ell=V^(1/3))").
	inertia = shiftInertiaToCOM(inertia, com, volume)
	if volume > 0 {
		ell := math.Cbrt(volume)
		inertia = inertia.Scale(1 / (ell * ell * ell * ell * ell))
	}
	return geom.MassProperties{Volume: volume, SurfaceArea: area, CenterMass: com, Inertia: inertia}
}

// tetrahedronInertia returns the (un-shifted, about-origin) inertia-tensor
// contribution of the tetrahedron (0, v0, v1, v2) for unit density,
// following the standard closed-form tetrahedron covariance formulas.
func tetrahedronInertia(v0, v1, v2 geom.Vec3) geom.Mat3 {
	pts := [4]geom.Vec3{{0, 0, 0}, v0, v1, v2}
	var cxx, cyy, czz, cxy, cxz, cyz float64
	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			cxx += pts[a][0] * pts[b][0]
			cyy += pts[a][1] * pts[b][1]
			czz += pts[a][2] * pts[b][2]
			cxy += pts[a][0] * pts[b][1]
			cxz += pts[a][0] * pts[b][2]
			cyz += pts[a][1] * pts[b][2]
		}
	}
	for a := 0; a < 4; a++ {
		cxx += pts[a][0] * pts[a][0]
		cyy += pts[a][1] * pts[a][1]
		czz += pts[a][2] * pts[a][2]
		cxy += pts[a][0] * pts[a][1]
		cxz += pts[a][0] * pts[a][2]
		cyz += pts[a][1] * pts[a][2]
	}
	const k = 1.0 / 20.0
	cxx *= k
	cyy *= k
	czz *= k
	cxy *= k
	cxz *= k
	cyz *= k
	return geom.Mat3{
		{cyy + czz, -cxy, -cxz},
		{-cxy, cxx + czz, -cyz},
		{-cxz, -cyz, cxx + cyy},
	}
}

// shiftInertiaToCOM applies the parallel-axis theorem to move an
// about-origin inertia tensor to be about the center of mass.
func shiftInertiaToCOM(iOrigin geom.Mat3, com geom.Vec3, volume float64) geom.Mat3 {
	d2 := com.Dot(com)
	var outer geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			outer[i][j] = com[i] * com[j]
		}
	}
	var shift geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			delta := 0.0
			if i == j {
				delta = 1
			}
			shift[i][j] = volume * (d2*delta - outer[i][j])
		}
	}
	return iOrigin.Sub(shift)
}

// Volume, SurfaceArea, CenterMass and Inertia return the cached mass
// properties.
func (m *Triangular) Volume() float64        { return m.props.Volume }
func (m *Triangular) SurfaceArea() float64   { return m.props.SurfaceArea }
func (m *Triangular) CenterMass() geom.Vec3  { return m.props.CenterMass }
func (m *Triangular) Inertia() geom.Mat3     { return m.props.Inertia }
func (m *Triangular) MassProperties() geom.MassProperties { return m.props }

// BoundingBox returns the box over every control point referenced by a facet.
func (m *Triangular) BoundingBox() geom.BBox {
	b := geom.EmptyBBox()
	for _, f := range m.Facets {
		b.ExpandPoint(m.Points[f.V0])
		b.ExpandPoint(m.Points[f.V1])
		b.ExpandPoint(m.Points[f.V2])
	}
	return b
}

// RayIntersect traces r through the model's KD-tree (spec §4.8 "Ray-trace
// via KD-tree + Möller–Trumbore").
func (m *Triangular) RayIntersect(r *geom.Ray) bool {
	if m.tree == nil {
		return false
	}
	return m.tree.RayIntersect(r)
}

// NearestPoint returns the closest point on any facet's plane-projected
// triangle to p, found by scanning every facet once (no dedicated
// closest-point tree is built for a model of this size; spec §4.1 only
// requires nearest-point queries over the control-point KD-tree variant).
func (m *Triangular) NearestPoint(p geom.Vec3) (geom.Vec3, float64) {
	var best geom.Vec3
	bestD := math.Inf(1)
	for _, f := range m.Facets {
		q := closestPointOnTriangle(p, m.Points[f.V0], m.Points[f.V1], m.Points[f.V2])
		d := q.Sub(p).Norm()
		if d < bestD {
			bestD, best = d, q
		}
	}
	return best, bestD
}

func closestPointOnTriangle(p, a, b, c geom.Vec3) geom.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Scale(v))
	}
	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Scale(w))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Scale(w))
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Scale(v)).Add(ac.Scale(w))
}

// ShiftToBarycenter translates every control point so the model's center
// of mass sits at the origin (spec §4.8), then recomputes caches.
// Idempotent: a second call is a no-op up to floating-point round-off
// (spec §8 property 5).
func (m *Triangular) ShiftToBarycenter() {
	com := m.props.CenterMass
	if com == (geom.Vec3{}) {
		return
	}
	for i := range m.Points {
		m.Points[i] = m.Points[i].Sub(com)
	}
	m.Recompute()
}

// PrincipalAxes returns the rotation whose columns are the model's
// principal inertia axes and the corresponding principal moments, sign
// and handedness corrected per spec §4.8: det=+1, and each axis points
// toward the side of greater bounding-box extent in the candidate frame.
func (m *Triangular) PrincipalAxes() (geom.Mat3, geom.Vec3) {
	i := m.props.Inertia
	sym := mat.NewSymDense(3, nil)
	sym.SetSym(0, 0, i[0][0])
	sym.SetSym(1, 1, i[1][1])
	sym.SetSym(2, 2, i[2][2])
	sym.SetSym(0, 1, i[0][1])
	sym.SetSym(0, 2, i[0][2])
	sym.SetSym(1, 2, i[1][2])

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return geom.Identity3(), geom.Vec3{i[0][0], i[1][1], i[2][2]}
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// order by ascending eigenvalue so axis assignment is deterministic.
	order := []int{0, 1, 2}
	sort.Slice(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	var r geom.Mat3
	var moments geom.Vec3
	for col, src := range order {
		moments[col] = values[src]
		for row := 0; row < 3; row++ {
			r[row][col] = vecs.At(row, src)
		}
	}
	r = resolveAxisSigns(r, m)
	return r, moments
}

// resolveAxisSigns applies one of the four canonical det=+1 sign
// corrections so the model's longest extent along each candidate axis
// lies on the positive side, per spec §4.8.
func resolveAxisSigns(r geom.Mat3, m *Triangular) geom.Mat3 {
	// The four canonical corrections below each have det=+1, so they only
	// ever preserve the sign of det(r): normalize the base frame to
	// det=+1 first (eigenvectors carry no inherent handedness) by
	// flipping one axis, then let the corrections explore the remaining
	// four det=+1-consistent sign choices.
	if r.Det() < 0 {
		r = r.Mul(geom.Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, -1}})
	}
	corrections := []geom.Mat3{
		geom.Identity3(),
		{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
		{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
	}
	for _, c := range corrections {
		cand := r.Mul(c)
		if cand.Det() < 0 {
			continue
		}
		if extentBiasedPositive(cand.Transpose(), m) {
			return cand
		}
	}
	return r
}

// extentBiasedPositive reports whether, for every axis, the farthest
// point's projection onto that axis (in the candidate frame) is
// non-negative -- the "longest extent lies on the positive side" test.
func extentBiasedPositive(candT geom.Mat3, m *Triangular) bool {
	var maxAbs, atMax [3]float64
	for _, p := range m.Points {
		q := candT.MulVec(p)
		for a := 0; a < 3; a++ {
			if math.Abs(q[a]) > maxAbs[a] {
				maxAbs[a] = math.Abs(q[a])
				atMax[a] = q[a]
			}
		}
	}
	for a := 0; a < 3; a++ {
		if atMax[a] < 0 {
			return false
		}
	}
	return true
}

// AlignWithPrincipalAxes rotates the model into its principal-axis frame
// (the inertia tensor becomes diagonal) and recomputes caches. Involutive:
// a second call is a no-op up to floating-point round-off (spec §8
// property 6).
func (m *Triangular) AlignWithPrincipalAxes() {
	r, _ := m.PrincipalAxes()
	rt := r.Transpose()
	for i := range m.Points {
		m.Points[i] = rt.MulVec(m.Points[i])
	}
	m.Recompute()
}

// Contains reports whether p lies inside the closed surface, via the
// generalized winding number: the point is inside iff the sum of signed
// solid angles subtended by every facet, as seen from p, is within tol of
// 4*pi in magnitude (spec §4.8 "contains(point, tol) via closed-surface
// test").
func (m *Triangular) Contains(p geom.Vec3, tol float64) bool {
	var total float64
	for _, f := range m.Facets {
		a := m.Points[f.V0].Sub(p)
		b := m.Points[f.V1].Sub(p)
		c := m.Points[f.V2].Sub(p)
		total += solidAngle(a, b, c)
	}
	return math.Abs(math.Abs(total)-4*math.Pi) <= tol
}

// solidAngle computes the signed solid angle subtended by triangle (a,b,c)
// at the origin via the Van Oosterom-Strackee formula.
func solidAngle(a, b, c geom.Vec3) float64 {
	la, lb, lc := a.Norm(), b.Norm(), c.Norm()
	numerator := a.Dot(b.Cross(c))
	denominator := la*lb*lc + a.Dot(b)*lc + b.Dot(c)*la + c.Dot(a)*lb
	if numerator == 0 && denominator == 0 {
		return 0
	}
	return 2 * math.Atan2(numerator, denominator)
}
