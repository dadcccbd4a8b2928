package bezier

import (
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

// ControlCov is the stacked 3N x 3N control-point covariance (spec §4.9
// "P_X"), block-structured by construction (dense within a patch's own
// control points, typically zero across unrelated patches) but stored
// densely here since N is the modest count a Bézier net of this scale
// carries.
type ControlCov struct {
	n     int // number of control points (len(Shape.Points))
	Dense *mat.Dense
}

// NewControlCov validates and wraps a 3N x 3N covariance for a shape with
// n control points.
func NewControlCov(n int, dense *mat.Dense) (*ControlCov, error) {
	r, c := dense.Dims()
	if r != 3*n || c != 3*n {
		return nil, errs.New(errs.InputMalformed, "bezier: covariance is %dx%d, want %dx%d", r, c, 3*n, 3*n)
	}
	return &ControlCov{n: n, Dense: dense}, nil
}

// covStep is the forward-difference step for every Jacobian in this file,
// matching the numeric-differencing policy already used for the adjacent-
// pose and orbit-element covariance chains (see DESIGN.md): the analytic
// partials through the Bernstein sum and the ray-patch Newton solve are
// not themselves the optimized quantity, so a verifiable finite difference
// is preferred over a hand-derived chain that cannot be executed to check.
const covStep = 1e-6

// extractSubCov pulls the 3*len(idx) x 3*len(idx) block of cov
// corresponding to the given global control-point indices, in idx order.
func extractSubCov(cov *ControlCov, idx []int) *mat.Dense {
	m := len(idx)
	sub := mat.NewDense(3*m, 3*m, nil)
	for bi, gi := range idx {
		for bj, gj := range idx {
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					sub.Set(3*bi+a, 3*bj+b, cov.Dense.At(3*gi+a, 3*gj+b))
				}
			}
		}
	}
	return sub
}

// quadForm computes J * sub * J^T for a row Jacobian J (1 x 3m).
func quadForm(J *mat.Dense, sub *mat.Dense) float64 {
	var tmp mat.Dense
	tmp.Mul(J, sub)
	var out mat.Dense
	out.Mul(&tmp, J.T())
	return out.At(0, 0)
}

// scalarJacobian differences f with respect to every coordinate of the
// control points named by idx, returning a 1 x 3*len(idx) row matrix.
func (s *Shape) scalarJacobian(idx []int, f func() float64) *mat.Dense {
	J := mat.NewDense(1, 3*len(idx), nil)
	base := f()
	for bi, gi := range idx {
		for axis := 0; axis < 3; axis++ {
			saved := s.Points[gi][axis]
			s.Points[gi][axis] = saved + covStep
			plus := f()
			s.Points[gi][axis] = saved
			J.Set(0, 3*bi+axis, (plus-base)/covStep)
		}
	}
	return J
}

// vectorJacobian is scalarJacobian for a 3-vector-valued function,
// returning a 3 x 3*len(idx) matrix.
func (s *Shape) vectorJacobian(idx []int, f func() geom.Vec3) *mat.Dense {
	J := mat.NewDense(3, 3*len(idx), nil)
	base := f()
	for bi, gi := range idx {
		for axis := 0; axis < 3; axis++ {
			saved := s.Points[gi][axis]
			s.Points[gi][axis] = saved + covStep
			plus := f()
			s.Points[gi][axis] = saved
			d := plus.Sub(base).Scale(1 / covStep)
			for c := 0; c < 3; c++ {
				J.Set(c, 3*bi+axis, d[c])
			}
		}
	}
	return J
}

// allControlIndices returns 0..n-1, used when a quantity (volume, full
// mass properties) depends on every control point in the arena.
func (s *Shape) allControlIndices() []int {
	idx := make([]int, len(s.Points))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// VolumeVariance propagates s.Cov through the volume functional via a
// forward-difference gradient over every control point (spec §4.9 "volume
// uncertainty").
func (s *Shape) VolumeVariance() (float64, error) {
	if s.Cov == nil {
		return 0, errs.New(errs.InputMalformed, "bezier: no control-point covariance set")
	}
	idx := s.allControlIndices()
	J := s.scalarJacobian(idx, func() float64 {
		v, _, _ := surfaceIntegrals(s)
		return v
	})
	sub := extractSubCov(s.Cov, idx)
	return quadForm(J, sub), nil
}

// CenterMassCovariance propagates s.Cov through the center-of-mass map.
func (s *Shape) CenterMassCovariance() (geom.Mat3, error) {
	if s.Cov == nil {
		return geom.Mat3{}, errs.New(errs.InputMalformed, "bezier: no control-point covariance set")
	}
	idx := s.allControlIndices()
	J := s.vectorJacobian(idx, func() geom.Vec3 {
		v, num, _ := surfaceIntegrals(s)
		if v == 0 {
			return geom.Vec3{}
		}
		return num.Scale(1 / v)
	})
	sub := extractSubCov(s.Cov, idx)
	var jSub, cov mat.Dense
	jSub.Mul(J, sub)
	cov.Mul(&jSub, J.T())
	var out geom.Mat3
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a][b] = cov.At(a, b)
		}
	}
	return out, nil
}

// RangeVariance propagates s.Cov through a single ray-patch hit range,
// differencing only the struck patch's own control points (spec §4.9
// "per-ray range uncertainty P_range = d^T P(u,v) d"): the range at a
// fixed ray depends on the rest of the net only through which patch is
// struck, which this function holds fixed at the caller-supplied index.
func (s *Shape) RangeVariance(origin, dir geom.Vec3, patchIdx int) (float64, error) {
	if s.Cov == nil {
		return 0, errs.New(errs.InputMalformed, "bezier: no control-point covariance set")
	}
	if patchIdx < 0 || patchIdx >= len(s.Patches) {
		return 0, errs.New(errs.InputMalformed, "bezier: patch index %d out of range", patchIdx)
	}
	ref := patchRef{s: s, idx: patchIdx}
	baseT, ok := ref.RayHit(origin, dir)
	if !ok {
		return 0, errs.New(errs.InputMalformed, "bezier: ray misses patch %d", patchIdx)
	}
	idx := s.Patches[patchIdx].CPIdx
	J := s.scalarJacobian(idx, func() float64 {
		t, hit := ref.RayHit(origin, dir)
		if !hit {
			return baseT
		}
		return t
	})
	sub := extractSubCov(s.Cov, idx)
	return quadForm(J, sub), nil
}

// InertiaCovariance propagates s.Cov through the (non-dimensional)
// inertia tensor, returned as the 6x6 covariance of its independent
// entries in the order [Ixx, Iyy, Izz, Ixy, Ixz, Iyz].
func (s *Shape) InertiaCovariance() (*mat.SymDense, error) {
	if s.Cov == nil {
		return nil, errs.New(errs.InputMalformed, "bezier: no control-point covariance set")
	}
	idx := s.allControlIndices()
	inertiaAt := func() [6]float64 {
		v, num, secondMoment := surfaceIntegrals(s)
		var com geom.Vec3
		if v != 0 {
			com = num.Scale(1 / v)
		}
		i := shiftInertiaToCOM(inertiaFromSecondMoment(secondMoment), com, v)
		return [6]float64{i[0][0], i[1][1], i[2][2], i[0][1], i[0][2], i[1][2]}
	}
	base := inertiaAt()
	J := mat.NewDense(6, 3*len(idx), nil)
	for bi, gi := range idx {
		for axis := 0; axis < 3; axis++ {
			saved := s.Points[gi][axis]
			s.Points[gi][axis] = saved + covStep
			plus := inertiaAt()
			s.Points[gi][axis] = saved
			for r := 0; r < 6; r++ {
				J.Set(r, 3*bi+axis, (plus[r]-base[r])/covStep)
			}
		}
	}
	sub := extractSubCov(s.Cov, idx)
	var jSub, full mat.Dense
	jSub.Mul(J, sub)
	full.Mul(&jSub, J.T())
	sym := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			sym.SetSym(i, j, full.At(i, j))
		}
	}
	return sym, nil
}
