package orbit

import (
	"context"
	"math"

	"github.com/cpmech/smallbody/bundle"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

// Result is the output of Find: the best-fit elements, the residual cost
// at the optimum, and the 7x7 parameter covariance from the Gauss-Newton
// curvature of the fit.
type Result struct {
	Elements   Elements
	Cost       float64
	Covariance [7][7]float64
}

// Find fits Keplerian elements (and mu) to the chain of rigid transforms
// implied by consecutive anchor-relative bundle poses (spec.md §4.7):
// poses[k] is cloud k's pose relative to the anchor (cloud 0), acquired
// at times[k], for k=0..N with poses[0] the identity anchor. The relative
// transform between consecutive clouds k, k+1 — M_k = poses[k].M^T *
// poses[k+1].M, X_k = poses[k].M^T * (poses[k+1].X - poses[k].X) — is the
// "chain of rigid transforms" the Keplerian fit is matched against.
// Samples must be uniformly spaced; the implicit epoch is
// t0 = times[0] - (times[1]-times[0]).
func Find(ctx context.Context, times []float64, poses []bundle.Pose, guess Elements, cfg config.IODConfig) (Result, error) {
	if len(times) != len(poses) {
		return Result{}, errs.New(errs.InputMalformed, "orbit: %d times but %d poses", len(times), len(poses))
	}
	if len(times) < 2 {
		return Result{}, errs.New(errs.InputMalformed, "orbit: need at least two poses to fit an orbit")
	}
	dt := times[1] - times[0]
	if dt == 0 {
		return Result{}, errs.New(errs.InputMalformed, "orbit: uniform sample period must be nonzero")
	}
	for k := 1; k < len(times); k++ {
		if math.Abs((times[k]-times[k-1])-dt) > 1e-6*math.Abs(dt) {
			return Result{}, errs.New(errs.InputMalformed, "orbit: sample times are not uniformly spaced")
		}
	}
	t0 := times[0] - dt

	select {
	case <-ctx.Done():
		return Result{}, errs.New(errs.Cancelled, "orbit fit cancelled before starting")
	default:
	}

	cost := func(el Elements) float64 {
		return residual(el, t0, times, poses)
	}
	b := defaultBounds(guess)
	best, bestCost := runSwarm(cfg, b, guess, cost)

	select {
	case <-ctx.Done():
		return Result{}, errs.New(errs.Cancelled, "orbit fit cancelled")
	default:
	}

	cov := propagateCovariance(best, t0, times, poses)
	return Result{Elements: best, Cost: bestCost, Covariance: cov}, nil
}

// residual implements spec.md §4.7's sum-of-norms objective over the N-1
// adjacent pose pairs.
func residual(el Elements, t0 float64, times []float64, poses []bundle.Pose) float64 {
	var sum float64
	for k := 0; k < len(times)-1; k++ {
		d := residualBlock(el, t0, times[k], times[k+1], poses[k], poses[k+1])
		sum += d.Norm()
	}
	return sum
}

// residualVector returns the N-1 stacked 3-vector residuals, used by the
// covariance propagation's finite-difference Jacobian.
func residualVector(el Elements, t0 float64, times []float64, poses []bundle.Pose) []geom.Vec3 {
	out := make([]geom.Vec3, len(times)-1)
	for k := 0; k < len(times)-1; k++ {
		out[k] = residualBlock(el, t0, times[k], times[k+1], poses[k], poses[k+1])
	}
	return out
}
