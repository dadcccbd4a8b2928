// Package attitude implements the batch rigid-body attitude estimator:
// a 6-vector (sigma0, omega0) fit against Euler rotational dynamics,
// integrated with an adaptive Cash-Karp stepper that carries the
// attitude state-transition matrix alongside the state (spec §4.6).
package attitude

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
)

// stateDim is len(sigma)+len(omega); fullDim adds the flattened 6x6 STM.
const stateDim = 6
const fullDim = stateDim + stateDim*stateDim

// Measurement is one absolute rotation observation between cloud 0 and
// cloud k at time Time (spec §4.6 input): M is the measured DCM, LN the
// lidar-to-inertial frame at that time, Cov the 6x6 measurement
// covariance (the upper-left 3x3 block is used as the angular-residual
// covariance, see DESIGN.md).
type Measurement struct {
	Time float64
	M    geom.Mat3
	LN   geom.Mat3
	Cov  [6][6]float64
}

// State is the attitude/angular-velocity pair at one epoch.
type State struct {
	Sigma geom.Vec3
	Omega geom.Vec3
}

// Result is the output of Estimate: the epoch-0 state, its 6x6
// covariance, and the propagated state/covariance history at every
// measurement time (spec §4.6 output).
type Result struct {
	Sigma0, Omega0 geom.Vec3
	Covariance     [6][6]float64
	History        []State
	CovHistory     [][6][6]float64
	Iterations     int
}

// Estimate runs the spec §4.6 batch least-squares iteration.
func Estimate(ctx context.Context, inertia geom.Mat3, ln0 geom.Mat3, meas []Measurement, cfg config.AttitudeConfig) (Result, error) {
	if len(meas) == 0 {
		return Result{}, errs.New(errs.InputMalformed, "attitude estimation needs at least one measurement")
	}
	t0 := meas[0].Time
	sigma0 := geom.Vec3{}
	omega0 := geom.Vec3{}

	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 5
	}

	var res Result
	for iter := 0; iter < iterations; iter++ {
		select {
		case <-ctx.Done():
			return res, errs.New(errs.Cancelled, "attitude estimation cancelled at iteration %d", iter)
		default:
		}

		states, phis, err := propagate(inertia, sigma0, omega0, t0, timesOf(meas), cfg)
		if err != nil {
			return res, err
		}

		bn0 := mrp.ToDCM(sigma0)
		AtA := mat.NewDense(stateDim, stateDim, nil)
		Atb := mat.NewDense(stateDim, 1, nil)

		for k, m := range meas {
			bMeasured := bn0.Mul(ln0.Transpose()).Mul(m.M).Mul(m.LN)
			bPredicted := mrp.ToDCM(states[k].Sigma)
			rk := mrp.FromDCM(bMeasured.Mul(bPredicted.Transpose()))

			Hk := phis[k][:3] // H-tilde = [I3 0_3] selects the top 3 rows of Phi(tk,t0)
			Rk := angularCovariance(m.Cov)
			RkInv, ok := invert3(Rk)
			if !ok {
				continue
			}
			accumulateRow(AtA, Atb, Hk, RkInv, rk)
		}

		for i := 0; i < 3; i++ {
			AtA.Set(i, i, AtA.At(i, i)+cfg.InitialMRPGauge)
		}

		delta, ok := solve6(AtA)
		if !ok {
			return res, errs.New(errs.NumericSingular, "attitude normal matrix singular at iteration %d", iter)
		}
		var rhs mat.Dense
		rhs.Mul(delta, Atb)
		dSigma := geom.Vec3{rhs.At(0, 0), rhs.At(1, 0), rhs.At(2, 0)}
		dOmega := geom.Vec3{rhs.At(3, 0), rhs.At(4, 0), rhs.At(5, 0)}

		sigma0 = mrp.Compose(sigma0, dSigma) // right-multiplicative update (spec §4.6 step 5)
		omega0 = omega0.Add(dOmega)

		res.Sigma0, res.Omega0 = sigma0, omega0
		res.Iterations = iter + 1
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				res.Covariance[i][j] = delta.At(i, j)
			}
		}
	}

	states, phis, err := propagate(inertia, sigma0, omega0, t0, timesOf(meas), cfg)
	if err != nil {
		return res, err
	}
	res.History = states
	res.CovHistory = make([][6][6]float64, len(states))
	for k, m := range meas {
		dt := m.Time - t0
		res.CovHistory[k] = propagateCovariance(phis[k], res.Covariance, dt, cfg.ProcessNoiseVel, cfg.ProcessNoiseOm)
	}
	return res, nil
}

func timesOf(meas []Measurement) []float64 {
	t := make([]float64, len(meas))
	for i, m := range meas {
		t[i] = m.Time
	}
	return t
}

// angularCovariance extracts the 3x3 attitude block (spec §4.6 step 4,
// documented simplification: R_k is taken as the upper-left 3x3 block of
// the 6x6 measurement covariance, the block that directly corresponds to
// the 3-vector MRP residual; see DESIGN.md).
func angularCovariance(cov [6][6]float64) geom.Mat3 {
	var r geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = cov[i][j]
		}
	}
	return r
}

func invert3(m geom.Mat3) (geom.Mat3, bool) {
	if math.Abs(m.Det()) < 1e-300 {
		return geom.Mat3{}, false
	}
	return m.Inverse(), true
}

// accumulateRow adds one measurement's contribution to the global 6x6
// normal equations: Hk (3x6) maps the 6-dof epoch state to a 3-vector
// residual; AtA += Hk^T Rinv Hk, Atb += Hk^T Rinv r.
func accumulateRow(AtA, Atb *mat.Dense, Hk [][6]float64, Rinv geom.Mat3, r geom.Vec3) {
	// Rinv*Hk, a 3x6 matrix
	var rh [3][6]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += Rinv[i][k] * Hk[k][j]
			}
			rh[i][j] = s
		}
	}
	for a := 0; a < 6; a++ {
		var accB float64
		for i := 0; i < 3; i++ {
			accB += Hk[i][a] * (Rinv[i][0]*r[0] + Rinv[i][1]*r[1] + Rinv[i][2]*r[2])
		}
		Atb.Set(a, 0, Atb.At(a, 0)+accB)
		for b := 0; b < 6; b++ {
			var accA float64
			for i := 0; i < 3; i++ {
				accA += Hk[i][a] * rh[i][b]
			}
			AtA.Set(a, b, AtA.At(a, b)+accA)
		}
	}
}

func solve6(AtA *mat.Dense) (*mat.Dense, bool) {
	var sym mat.SymDense
	sym.SymOuterK(1, mat.NewDense(stateDim, stateDim, nil))
	for i := 0; i < stateDim; i++ {
		for j := i; j < stateDim; j++ {
			sym.SetSym(i, j, AtA.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(&sym) {
		return nil, false
	}
	var inv mat.Dense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, false
	}
	return &inv, true
}

// propagateCovariance carries the epoch-0 covariance forward through the
// state-transition matrix, P(t) = Phi*P0*Phi^T, then inflates the diagonal
// by a white-noise process-noise term scaled by elapsed time: dt*ProcessNoiseVel
// on the attitude block and dt*ProcessNoiseOm on the angular-velocity block.
// This keeps the propagated uncertainty from collapsing to zero between
// measurements, the usual discrete-time process-noise treatment for a
// deterministic rigid-body dynamics model.
func propagateCovariance(phi [6][6]float64, p0 [6][6]float64, dt, qVel, qOm float64) [6][6]float64 {
	var tmp, out [6][6]float64
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for k := 0; k < 6; k++ {
				s += phi[i][k] * p0[k][j]
			}
			tmp[i][j] = s
		}
	}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			var s float64
			for k := 0; k < 6; k++ {
				s += tmp[i][k] * phi[j][k] // phi^T
			}
			out[i][j] = s
		}
	}
	absDt := math.Abs(dt)
	for i := 0; i < 3; i++ {
		out[i][i] += absDt * qVel
		out[3+i][3+i] += absDt * qOm
	}
	return out
}
