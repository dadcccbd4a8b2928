// Package orbit implements the initial-orbit-determination finder: a
// particle-swarm fit of Keplerian elements against the chain of rigid
// transforms produced by bundle adjustment (spec §4.7).
package orbit

import (
	"math"

	"github.com/cpmech/smallbody/geom"
)

// Elements is an osculating Keplerian orbit plus the gravitational
// parameter: (a, e, i, Omega, Argp, M0, Mu), spec.md GLOSSARY "Keplerian
// elements".
type Elements struct {
	A     float64 // semi-major axis
	E     float64 // eccentricity
	I     float64 // inclination, radians
	Omega float64 // right ascension of ascending node, radians
	Argp  float64 // argument of periapsis, radians
	M0    float64 // mean anomaly at epoch, radians
	Mu    float64 // gravitational parameter
}

// solveKepler returns the eccentric anomaly E solving Kepler's equation
// E - e*sin(E) = M by Newton iteration, starting from E = M (reduced
// modulo 2*pi), or from E = pi when e > 0.8; converges quadratically for
// e < 1.
func solveKepler(m, e float64) float64 {
	ecc := math.Mod(m, 2*math.Pi)
	guess := ecc
	if e > 0.8 {
		guess = math.Pi
	}
	for iter := 0; iter < 50; iter++ {
		f := guess - e*math.Sin(guess) - ecc
		fp := 1 - e*math.Cos(guess)
		if fp == 0 {
			fp = 1e-12
		}
		delta := f / fp
		guess -= delta
		if math.Abs(delta) < 1e-14 {
			break
		}
	}
	return guess
}

// PositionAt returns the Cartesian position at time t, propagated from
// epoch t0 under two-body inverse-square gravity (spec.md §4.7).
func (el Elements) PositionAt(t, t0 float64) geom.Vec3 {
	a := el.A
	if a <= 0 {
		a = 1e-12
	}
	n := math.Sqrt(el.Mu / (a * a * a))
	m := el.M0 + n*(t-t0)
	eAnom := solveKepler(m, el.E)

	cosE, sinE := math.Cos(eAnom), math.Sin(eAnom)
	oneMinusESqrt := math.Sqrt(math.Max(0, 1-el.E*el.E))
	xPf := a * (cosE - el.E)
	yPf := a * oneMinusESqrt * sinE

	cosO, sinO := math.Cos(el.Omega), math.Sin(el.Omega)
	cosW, sinW := math.Cos(el.Argp), math.Sin(el.Argp)
	cosI, sinI := math.Cos(el.I), math.Sin(el.I)

	// perifocal-to-reference rotation, classic 3-1-3 Euler sequence
	// (Vallado, "Fundamentals of Astrodynamics", element-to-Cartesian).
	r11 := cosO*cosW - sinO*sinW*cosI
	r12 := -cosO*sinW - sinO*cosW*cosI
	r21 := sinO*cosW + cosO*sinW*cosI
	r22 := -sinO*sinW + cosO*cosW*cosI
	r31 := sinW * sinI
	r32 := cosW * sinI

	return geom.Vec3{
		r11*xPf + r12*yPf,
		r21*xPf + r22*yPf,
		r31*xPf + r32*yPf,
	}
}

// normalizeAngle wraps an angle into [0, 2*pi).
func normalizeAngle(a float64) float64 {
	const twoPi = 2 * math.Pi
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
