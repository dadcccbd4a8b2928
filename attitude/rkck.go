package attitude

import (
	"math"

	"github.com/cpmech/smallbody/errs"
)

// Func is the ODE right-hand side, mirroring the teacher's ode.Solver
// callback shape fcn(f, dx, x, y) (cf. mdl/retention/model.go's
// odesol.Init call): f is filled in place with dy/dx at (x, y).
type Func func(f []float64, dx, x float64, y []float64) error

// Solver is a hand-rolled adaptive Runge-Kutta-Cash-Karp-54 stepper,
// following the teacher's ode.Solver calling convention (Init/SetTol/
// Solve) since the confirmed gosl/ode API only evidences a cgo-bound
// Radau5 whose internal step control is not reproducible here.
type Solver struct {
	n      int
	fcn    Func
	atol   float64
	rtol   float64
	hInit  float64
	maxSub int
}

// NewSolver mirrors odesol.Init("...", n, fcn, jac, nil, nil): n is the
// state dimension, fcn the right-hand side. No Jacobian is needed since
// this solver is explicit.
func NewSolver(n int, fcn Func) *Solver {
	return &Solver{n: n, fcn: fcn, atol: 1e-10, rtol: 1e-8, hInit: 1e-2, maxSub: 100000}
}

// SetTol mirrors odesol.SetTol(atol, rtol).
func (s *Solver) SetTol(atol, rtol float64) {
	s.atol, s.rtol = atol, rtol
}

// SetInitialStep overrides the first trial step size.
func (s *Solver) SetInitialStep(h float64) { s.hInit = h }

// Solve mirrors odesol.Solve(y, x0, x1, dx0, fixedStp): integrates y in
// place from x0 to x1. fixedStp=true disables adaptive step control.
func (s *Solver) Solve(y []float64, x0, x1, dx0 float64, fixedStp bool) error {
	if len(y) != s.n {
		return errs.New(errs.InputMalformed, "rkck54: state length %d does not match solver dimension %d", len(y), s.n)
	}
	x := x0
	h := dx0
	if h == 0 {
		h = s.hInit
	}
	dir := 1.0
	if x1 < x0 {
		dir = -1
	}
	for sub := 0; (x1-x)*dir > 0; sub++ {
		if sub >= s.maxSub {
			return errs.New(errs.ConvergenceFailed, "rkck54: exceeded %d substeps integrating to t=%g", s.maxSub, x1)
		}
		if (x+h-x1)*dir > 0 {
			h = x1 - x
		}
		y5, y4, err := s.step(x, y, h)
		if err != nil {
			return err
		}
		if fixedStp {
			copy(y, y5)
			x += h
			continue
		}
		errRatio := s.errorNorm(y5, y4, y)
		if errRatio <= 1 {
			x += h
			copy(y, y5)
			if errRatio == 0 {
				h *= 4
			} else {
				h *= math.Min(4, math.Max(0.1, 0.9*math.Pow(errRatio, -0.2)))
			}
		} else {
			h *= math.Max(0.1, 0.9*math.Pow(errRatio, -0.25))
		}
	}
	return nil
}

// errorNorm returns the RMS of (y5-y4)/(atol+rtol*|y|), the standard
// Cash-Karp local error control quantity.
func (s *Solver) errorNorm(y5, y4, yPrev []float64) float64 {
	var sumSq float64
	for i := range y5 {
		scale := s.atol + s.rtol*math.Max(math.Abs(y5[i]), math.Abs(yPrev[i]))
		if scale == 0 {
			scale = s.atol
		}
		d := (y5[i] - y4[i]) / scale
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(y5)))
}

// Cash-Karp 5(4) Butcher tableau (Numerical Recipes §16.2).
var (
	rkckA = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	rkckB = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	rkckC5 = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	rkckC4 = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

// step advances one Cash-Karp trial step of size h from x, returning the
// 5th- and 4th-order solutions for error estimation.
func (s *Solver) step(x float64, y []float64, h float64) (y5, y4 []float64, err error) {
	n := s.n
	k := make([][]float64, 6)
	for stage := 0; stage < 6; stage++ {
		ytmp := make([]float64, n)
		copy(ytmp, y)
		for j := 0; j < stage; j++ {
			coef := rkckB[stage][j]
			if coef == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				ytmp[i] += h * coef * k[j][i]
			}
		}
		f := make([]float64, n)
		if e := s.fcn(f, h, x+rkckA[stage]*h, ytmp); e != nil {
			return nil, nil, e
		}
		k[stage] = f
	}
	y5 = make([]float64, n)
	y4 = make([]float64, n)
	for i := 0; i < n; i++ {
		var s5, s4 float64
		for stage := 0; stage < 6; stage++ {
			s5 += rkckC5[stage] * k[stage][i]
			s4 += rkckC4[stage] * k[stage][i]
		}
		y5[i] = y[i] + h*s5
		y4[i] = y[i] + h*s4
	}
	return y5, y4, nil
}
