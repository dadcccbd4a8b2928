// Package bezier implements the degree-elevated triangular Bézier lift of
// a triangulated shape model (spec §4.9/§4.10): patches built from a
// shape.Triangular by uniform degree elevation, closed-form-equivalent
// mass-property integration, and uncertainty propagation from a stacked
// control-point covariance to range, volume, center-of-mass and inertia
// statistics.
package bezier

import (
	"math"

	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/kdtree"
	"github.com/cpmech/smallbody/shape"
)

// Shape is a degree-n triangular Bézier shape model: a flat control-point
// arena shared by Patches via stable indices (spec §9), with cached mass
// properties and a ray-trace KD-tree built over the patches' corner
// triangles.
type Shape struct {
	Frame   string
	Degree  int
	Points  []geom.Vec3
	Patches []geom.Patch

	// Cov is the stacked 3N x 3N control-point covariance (spec §4.9
	// "P_X, block-diagonal across patches, dense within a patch"). Nil
	// until SetCovariance is called; uncertainty propagation requires it.
	Cov *ControlCov

	props geom.MassProperties
	tree  *kdtree.ElementTree
}

// NewFromTriangular lifts a triangular shape model into a degree-1 Bézier
// net (every facet becomes a patch with its three vertices as control
// points) and then uniformly elevates to targetDegree (spec §4.9:
// "start with degree 1 ... then uniformly raise degree to the configured
// value"). The Bézier arena is independent of the source model's; since
// elevation from a flat degree-1 start is a deterministic affine function
// of each patch's own three corners, two patches sharing an edge compute
// numerically identical new points along it without needing a shared
// arena slot.
func NewFromTriangular(tri *shape.Triangular, targetDegree int) (*Shape, error) {
	if targetDegree < 1 {
		return nil, errs.New(errs.InputMalformed, "bezier: unsupported degree %d", targetDegree)
	}
	s := &Shape{Frame: tri.Frame, Degree: 1}
	s.Points = append(s.Points, tri.Points...)
	base := geom.BarycentricIndices(1)
	for _, f := range tri.Facets {
		cpIdx := make([]int, 3)
		for pos, t := range base {
			switch {
			case t[0] == 1:
				cpIdx[pos] = f.V0
			case t[1] == 1:
				cpIdx[pos] = f.V1
			default:
				cpIdx[pos] = f.V2
			}
		}
		s.Patches = append(s.Patches, geom.Patch{Degree: 1, CPIdx: cpIdx})
	}
	for s.Degree < targetDegree {
		if err := s.ElevateDegree(); err != nil {
			return nil, err
		}
	}
	s.Recompute()
	return s, nil
}

// ElevateDegree applies the standard triangular Bézier degree-elevation
// rule to every patch (spec §4.9 "elevate_degree"): for the new lattice
// position (i,j,k) with i+j+k = n+1, the elevated control point is
// (i*b(i-1,j,k) + j*b(i,j-1,k) + k*b(i,j,k-1)) / (n+1), terms with a
// negative index omitted (their coefficient is zero regardless).
func (s *Shape) ElevateDegree() error {
	n := s.Degree
	for pi, p := range s.Patches {
		if p.Degree != n {
			return errs.New(errs.InputMalformed, "bezier: patch %d has degree %d, expected %d", pi, p.Degree, n)
		}
		newIdx := make([]int, geom.LatticeSize(n+1))
		for _, t := range geom.BarycentricIndices(n + 1) {
			i, j, k := t[0], t[1], t[2]
			var acc geom.Vec3
			if i > 0 {
				acc = acc.Add(s.Points[p.CPAt(i-1, j, k)].Scale(float64(i)))
			}
			if j > 0 {
				acc = acc.Add(s.Points[p.CPAt(i, j-1, k)].Scale(float64(j)))
			}
			if k > 0 {
				acc = acc.Add(s.Points[p.CPAt(i, j, k-1)].Scale(float64(k)))
			}
			acc = acc.Scale(1 / float64(n+1))
			newIdx[geom.LatticeIndex(i, j, k)] = len(s.Points)
			s.Points = append(s.Points, acc)
		}
		s.Patches[pi] = geom.Patch{Degree: n + 1, CPIdx: newIdx}
	}
	s.Degree = n + 1
	return nil
}

// eval evaluates a patch's Bernstein-Bézier surface map at barycentric
// (u,v), w = 1-u-v implicit.
func (s *Shape) eval(p geom.Patch, u, v float64) geom.Vec3 {
	w := 1 - u - v
	var sum geom.Vec3
	for _, t := range geom.BarycentricIndices(p.Degree) {
		i, j, k := t[0], t[1], t[2]
		c := multinomial(p.Degree, i, j, k) * math.Pow(u, float64(i)) * math.Pow(v, float64(j)) * math.Pow(w, float64(k))
		sum = sum.Add(s.Points[p.CPAt(i, j, k)].Scale(c))
	}
	return sum
}

// evalDerivsStep is the central-difference step used for the patch's
// tangent vectors. Deriving the analytic Bernstein-basis partials
// symbolically is straightforward in principle but easy to get wrong in
// the w=1-u-v chain rule without being able to execute a check; central
// differencing the same eval function used everywhere else in this
// package sidesteps that risk at negligible cost, since these tangents
// only feed quadrature and ray refinement, not an optimized parameter.
const evalDerivsStep = 1e-6

func (s *Shape) evalDerivs(p geom.Patch, u, v float64) (xu, xv geom.Vec3) {
	h := evalDerivsStep
	xu = s.eval(p, u+h, v).Sub(s.eval(p, u-h, v)).Scale(1 / (2 * h))
	xv = s.eval(p, u, v+h).Sub(s.eval(p, u, v-h)).Scale(1 / (2 * h))
	return
}

func multinomial(n, i, j, k int) float64 {
	return factorial(n) / (factorial(i) * factorial(j) * factorial(k))
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Recompute rebuilds the model's mass-property cache and ray-trace tree.
// Call after any control-point mutation.
func (s *Shape) Recompute(cfg ...config.KDTreeConfig) {
	volume, comNum, secondMoment := surfaceIntegrals(s)
	var com geom.Vec3
	if volume != 0 {
		com = comNum.Scale(1 / volume)
	}
	inertia := shiftInertiaToCOM(inertiaFromSecondMoment(secondMoment), com, volume)
	if volume > 0 {
		ell := math.Cbrt(volume)
		inertia = inertia.Scale(1 / (ell * ell * ell * ell * ell))
	}
	area := 0.0
	for _, p := range s.Patches {
		for _, q := range triQuad7 {
			xu, xv := s.evalDerivs(p, q.u, q.v)
			area += xu.Cross(xv).Norm() * q.w
		}
	}
	s.props = geom.MassProperties{Volume: volume, SurfaceArea: area, CenterMass: com, Inertia: inertia}

	elems := make([]kdtree.RayElement, len(s.Patches))
	for i := range s.Patches {
		elems[i] = patchRef{s: s, idx: i}
	}
	treeCfg := kdtree.PointTreeConfig{MaxDepth: 1000, ShareFractionStop: 0.5}
	if len(cfg) > 0 {
		treeCfg = kdtree.PointTreeConfig{MaxDepth: cfg[0].MaxDepth, ShareFractionStop: cfg[0].ShareFractionStop}
	}
	s.tree = kdtree.BuildElementTree(elems, treeCfg)
}

func (s *Shape) MassProperties() geom.MassProperties { return s.props }

func (s *Shape) BoundingBox() geom.BBox {
	b := geom.EmptyBBox()
	for _, p := range s.Points {
		b.ExpandPoint(p)
	}
	return b
}

func (s *Shape) RayIntersect(r *geom.Ray) bool {
	if s.tree == nil {
		return false
	}
	return s.tree.RayIntersect(r)
}

// NearestPoint evaluates every patch on the coarse barycentric grid of
// nearestBarycentricGuess and returns the closest sample found; the sample
// is not refined further. Adequate for the model sizes this package targets.
func (s *Shape) NearestPoint(p geom.Vec3) (geom.Vec3, float64) {
	var best geom.Vec3
	bestD := math.Inf(1)
	for i := range s.Patches {
		u, v, ok := nearestBarycentricGuess(s, i, p)
		if !ok {
			continue
		}
		q := s.eval(s.Patches[i], u, v)
		d := q.Sub(p).Norm()
		if d < bestD {
			bestD, best = d, q
		}
	}
	return best, bestD
}
