package attitude

import (
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
)

// propagate integrates Euler rigid-body rotational dynamics plus the
// attitude state-transition matrix from t0 through every time in times
// (spec §4.6 step 1), returning the state and Phi(t_k, t0) at each time.
func propagate(inertia geom.Mat3, sigma0, omega0 geom.Vec3, t0 float64, times []float64, cfg config.AttitudeConfig) ([]State, [][6][6]float64, error) {
	y := make([]float64, fullDim)
	y[0], y[1], y[2] = sigma0[0], sigma0[1], sigma0[2]
	y[3], y[4], y[5] = omega0[0], omega0[1], omega0[2]
	for i := 0; i < 6; i++ {
		y[6+i*6+i] = 1 // Phi(t0,t0) = I6
	}

	fcn := dynamicsFunc(inertia)
	solver := NewSolver(fullDim, fcn)
	solver.SetTol(cfg.RKCKAbsTol, cfg.RKCKRelTol)
	step := cfg.RKCKInitialStep
	if step == 0 {
		step = 1.0
	}
	solver.SetInitialStep(step)

	states := make([]State, len(times))
	phis := make([][6][6]float64, len(times))
	t := t0
	for k, tk := range times {
		if tk != t {
			if err := solver.Solve(y, t, tk, step, false); err != nil {
				return nil, nil, err
			}
			t = tk
		}
		states[k] = State{
			Sigma: geom.Vec3{y[0], y[1], y[2]},
			Omega: geom.Vec3{y[3], y[4], y[5]},
		}
		var phi [6][6]float64
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				phi[i][j] = y[6+i*6+j]
			}
		}
		phis[k] = phi
	}
	return states, phis, nil
}

// dynamicsFunc builds the right-hand side for the combined (state, STM)
// system: sigma_dot = 0.25*B(sigma)*omega; I*omega_dot = -omega x (I*omega)
// (torque-free Euler equation); Phi_dot = A(t)*Phi, with A the analytic
// Jacobian of (sigma_dot, omega_dot) with respect to (sigma, omega).
func dynamicsFunc(inertia geom.Mat3) Func {
	iInv := inertia.Inverse()
	return func(f []float64, dx, x float64, y []float64) error {
		sigma := geom.Vec3{y[0], y[1], y[2]}
		omega := geom.Vec3{y[3], y[4], y[5]}

		b := mrp.BMatrix(sigma)
		sigmaDot := b.MulVec(omega).Scale(0.25)

		iOmega := inertia.MulVec(omega)
		omegaDot := iInv.MulVec(mrp.Skew(omega).MulVec(iOmega).Scale(-1))

		f[0], f[1], f[2] = sigmaDot[0], sigmaDot[1], sigmaDot[2]
		f[3], f[4], f[5] = omegaDot[0], omegaDot[1], omegaDot[2]

		a := jacobianA(sigma, omega, inertia, iInv, iOmega)
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				var s float64
				for k := 0; k < 6; k++ {
					s += a[i][k] * y[6+k*6+j]
				}
				f[6+i*6+j] = s
			}
		}
		return nil
	}
}

// jacobianA returns d(sigma_dot, omega_dot)/d(sigma, omega), derived by
// direct differentiation of B(sigma)*omega = (1-sigma.sigma)*omega +
// 2*(sigma x omega) + 2*sigma*(sigma.omega) and of Euler's equation.
func jacobianA(sigma, omega geom.Vec3, inertia, iInv geom.Mat3, iOmega geom.Vec3) [6][6]float64 {
	var a [6][6]float64

	skewOmega := mrp.Skew(omega)
	dotSO := sigma.Dot(omega)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			delta := 0.0
			if i == j {
				delta = 1
			}
			dBOmegaDSigma := -2*sigma[j]*omega[i] - 2*skewOmega[i][j] + 2*(delta*dotSO+sigma[i]*omega[j])
			a[i][j] = 0.25 * dBOmegaDSigma
		}
	}
	b := mrp.BMatrix(sigma)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a[i][3+j] = 0.25 * b[i][j]
		}
	}

	dOmegaDotDOmega := iInv.Mul(mrp.Skew(iOmega).Sub(skewOmega.Mul(inertia)))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a[3+i][3+j] = dOmegaDotDOmega[i][j]
		}
	}
	// a[3+i][j] (d omega_dot / d sigma) is zero: torque-free dynamics have
	// no attitude-dependent forcing term.
	return a
}
