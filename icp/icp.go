// Package icp implements rigid point-cloud registration: point-to-plane
// ICP with a multiplicative-MRP attitude update and MAD-based robust pair
// rejection (spec §4.4). Correspondence search, residual evaluation, and
// the linear update are kept as three separate pure functions (spec §9
// "keep the correspondence search, residual evaluation, and state update
// as three distinct pure functions") so each is independently testable.
package icp

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
)

// Outcome discriminates why Align stopped, replacing the teacher's
// exceptions-for-control-flow with a value callers pattern-match on
// (spec §9).
type Outcome int

const (
	Converged Outcome = iota
	NoPairs
	Singular
	Diverged
	MaxIterationsReached
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "Converged"
	case NoPairs:
		return "NoPairs"
	case Singular:
		return "Singular"
	case Diverged:
		return "Diverged"
	case MaxIterationsReached:
		return "MaxIterationsReached"
	default:
		return "Unknown"
	}
}

// Result is the output of an ICP run: the rigid transform taking a point
// in the source frame to the destination frame (spec §3 "Rigid
// transform": p_dest = M*p_src + X), the final residual RMS, and a
// per-iteration residual history for diagnostics.
type Result struct {
	M           geom.Mat3
	X           geom.Vec3
	ResidualRMS float64
	Outcome     Outcome
	Iterations  int
	History     []float64
}

// Pair is a source-to-destination correspondence with the destination
// normal cached for the point-to-plane residual. Exported so bundle (C6)
// can reuse correspondence search and rejection without duplicating them.
type Pair struct {
	SrcPos    geom.Vec3 // source point, transformed by the current (M,X)
	DstPos    geom.Vec3
	DstNormal geom.Vec3
}

// FindPairs is the correspondence-search stage (spec §4.4 step 2): for
// each (optionally sub-sampled) transformed source point, find its
// nearest destination point. h>=0 drops 2^h-1 out of every 2^h points.
func FindPairs(srcTransformed []geom.Point, dst *cloud.Cloud, h int) []Pair {
	stride := 1 << uint(h)
	var pairs []Pair
	for i := 0; i < len(srcTransformed); i += stride {
		s := srcTransformed[i]
		idx, _, ok := dst.Nearest(s.Pos)
		if !ok {
			continue
		}
		d := dst.At(idx)
		pairs = append(pairs, Pair{SrcPos: s.Pos, DstPos: d.Pos, DstNormal: d.Normal})
	}
	return pairs
}

// RejectOutliers is the residual-evaluation stage (spec §4.4 steps 2-3):
// compute the point-to-plane residual for every pair, then MAD-trim any
// pair whose residual deviates from the median by more than k sigma.
func RejectOutliers(pairs []Pair, k float64) (kept []Pair, residuals []float64) {
	if len(pairs) == 0 {
		return nil, nil
	}
	raw := make([]float64, len(pairs))
	for i, p := range pairs {
		raw[i] = p.DstNormal.Dot(p.SrcPos.Sub(p.DstPos))
	}
	median := medianOf(raw)
	devs := make([]float64, len(raw))
	for i, r := range raw {
		devs[i] = math.Abs(r - median)
	}
	mad := medianOf(devs)
	sigma := 1.4826 * mad
	if sigma == 0 {
		return pairs, raw
	}
	for i, p := range pairs {
		if math.Abs(raw[i]-median) <= k*sigma {
			kept = append(kept, p)
			residuals = append(residuals, raw[i])
		}
	}
	return kept, residuals
}

func medianOf(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}

// LinearizeAndSolve is the update stage (spec §4.4 steps 4-5): stack the
// 6-vector (delta_x, delta_sigma) normal equations from point-to-plane
// residuals and solve them. pairs carry source positions already rotated
// and translated by the current (M,X) estimate (spec §4.4 step 2); currentX
// recovers the rotated-only point M*local = SrcPos-currentX at which the
// rotation Jacobian is evaluated, since translation does not move under a
// pure attitude perturbation. Returns ok=false on a singular system.
func LinearizeAndSolve(pairs []Pair, currentX geom.Vec3) (deltaX, deltaSigma geom.Vec3, residualRMS float64, ok bool) {
	n := len(pairs)
	if n == 0 {
		return geom.Vec3{}, geom.Vec3{}, 0, false
	}
	H := mat.NewDense(n, 6, nil)
	y := mat.NewDense(n, 1, nil)
	var sumSq float64
	for i, p := range pairs {
		sPrime := p.SrcPos.Sub(currentX) // rotated-only point M*local, see doc comment above
		r := p.DstNormal.Dot(p.SrcPos.Sub(p.DstPos))
		sumSq += r * r
		rot := mrp.RotationJacobian(sPrime)
		dRdSigma := geom.Vec3{
			p.DstNormal.Dot(geom.Vec3{rot[0][0], rot[1][0], rot[2][0]}),
			p.DstNormal.Dot(geom.Vec3{rot[0][1], rot[1][1], rot[2][1]}),
			p.DstNormal.Dot(geom.Vec3{rot[0][2], rot[1][2], rot[2][2]}),
		}
		H.Set(i, 0, p.DstNormal[0])
		H.Set(i, 1, p.DstNormal[1])
		H.Set(i, 2, p.DstNormal[2])
		H.Set(i, 3, dRdSigma[0])
		H.Set(i, 4, dRdSigma[1])
		H.Set(i, 5, dRdSigma[2])
		y.Set(i, 0, -r)
	}
	var HtH mat.Dense
	HtH.Mul(H.T(), H)
	var Hty mat.Dense
	Hty.Mul(H.T(), y)

	var sym mat.SymDense
	sym.SymOuterK(1, mat.NewDense(6, 6, nil)) // allocate a 6x6 sym
	for i := 0; i < 6; i++ {
		for j := i; j < 6; j++ {
			sym.SetSym(i, j, HtH.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(&sym) {
		return geom.Vec3{}, geom.Vec3{}, math.Sqrt(sumSq / float64(n)), false
	}
	var delta mat.Dense
	if err := chol.SolveTo(&delta, &Hty); err != nil {
		return geom.Vec3{}, geom.Vec3{}, math.Sqrt(sumSq / float64(n)), false
	}
	deltaX = geom.Vec3{delta.At(0, 0), delta.At(1, 0), delta.At(2, 0)}
	deltaSigma = geom.Vec3{delta.At(3, 0), delta.At(4, 0), delta.At(5, 0)}
	residualRMS = math.Sqrt(sumSq / float64(n))
	return deltaX, deltaSigma, residualRMS, true
}

// Align performs point-to-plane ICP from src onto dst, starting from the
// optional initial guess (m0, x0) -- the identity/zero transform when nil.
// Both clouds' KD-trees are rebuilt as needed by cloud.Cloud internally.
func Align(ctx context.Context, src, dst *cloud.Cloud, cfg config.ICPConfig, m0 *geom.Mat3, x0 *geom.Vec3) (Result, error) {
	M := geom.Identity3()
	X := geom.Vec3{}
	if m0 != nil {
		M = *m0
	}
	if x0 != nil {
		X = *x0
	}

	res := Result{M: M, X: X, Outcome: MaxIterationsReached}
	divergeStreak := 0

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			res.Outcome = Converged // last consistent state retained; caller inspects ctx.Err()
			return res, errs.New(errs.Cancelled, "icp cancelled at iteration %d", iter)
		default:
		}

		transformed := transformAll(src, M, X)
		pairs := FindPairs(transformed, dst, subsampleLevel(cfg, iter))
		kept, _ := RejectOutliers(pairs, cfg.RejectSigmaK)
		if len(kept) < cfg.MinPairs {
			res.Outcome = NoPairs
			return res, errs.New(errs.NoCorrespondences, "only %d pairs accepted (minimum %d)", len(kept), cfg.MinPairs)
		}

		dX, dSigma, rms, ok := LinearizeAndSolve(kept, X)
		if !ok {
			res.Outcome = Singular
			return res, errs.New(errs.NumericSingular, "icp normal matrix singular at iteration %d", iter)
		}

		if len(res.History) >= 2 && rms > res.History[len(res.History)-1] {
			divergeStreak++
		} else {
			divergeStreak = 0
		}
		res.History = append(res.History, rms)
		if divergeStreak >= 3 {
			res.Outcome = Diverged
			return res, errs.New(errs.ConvergenceFailed, "icp residual increased for 3 consecutive iterations")
		}

		X = X.Add(dX)
		M = mrp.ToDCM(dSigma).Mul(M).Orthonormalize()

		res.M, res.X, res.ResidualRMS, res.Iterations = M, X, rms, iter+1

		if dX.Norm()+dSigma.Norm() < cfg.Tolerance {
			res.Outcome = Converged
			return res, nil
		}
	}
	return res, errs.New(errs.ConvergenceFailed, "icp exceeded %d iterations without converging", cfg.MaxIterations)
}

func subsampleLevel(cfg config.ICPConfig, iter int) int {
	if cfg.SubsampleLevels <= 0 {
		return 0
	}
	h := cfg.SubsampleLevels - iter
	if h < 0 {
		h = 0
	}
	return h
}

// transformAll applies (M,X) to every source point using a bulk-
// synchronous parallel-for (spec §5), reducing into a pre-sized output
// slice so there is no cross-worker mutation race.
func transformAll(src *cloud.Cloud, M geom.Mat3, X geom.Vec3) []geom.Point {
	n := src.Size()
	out := make([]geom.Point, n)
	const shardSize = 2048
	if n <= shardSize {
		for i := 0; i < n; i++ {
			out[i] = src.At(i).Transformed(M, X)
		}
		return out
	}
	var g errgroup.Group
	for start := 0; start < n; start += shardSize {
		start := start
		end := start + shardSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = src.At(i).Transformed(M, X)
			}
			return nil
		})
	}
	_ = g.Wait() // shard bodies never return an error
	return out
}
