// Package mrp implements the Modified Rodrigues Parameter attitude
// representation shared by ICP's multiplicative-MRP update (spec §4.4),
// the bundle adjuster's rotation Jacobian (spec §4.5), and the batch
// attitude estimator's kinematics (spec §4.6).
package mrp

import (
	"math"

	"github.com/cpmech/smallbody/geom"
)

// Skew returns the skew-symmetric cross-product matrix [v x] such that
// Skew(v).MulVec(w) == v.Cross(w).
func Skew(v geom.Vec3) geom.Mat3 {
	return geom.Mat3{
		{0, -v[2], v[1]},
		{v[2], 0, -v[0]},
		{-v[1], v[0], 0},
	}
}

// ToDCM converts an MRP vector to its direction cosine matrix.
func ToDCM(sigma geom.Vec3) geom.Mat3 {
	s2 := sigma.Dot(sigma)
	sk := Skew(sigma)
	sk2 := sk.Mul(sk)
	denom := (1 + s2) * (1 + s2)
	var m geom.Mat3
	id := geom.Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = id[i][j] + (8*sk2[i][j]-4*(1-s2)*sk[i][j])/denom
		}
	}
	return m
}

// FromDCM extracts the (short-rotation) MRP vector from a direction
// cosine matrix via the standard trace/Euler-parameter route: quaternion
// first, then MRP = q_vec / (1+q0).
func FromDCM(c geom.Mat3) geom.Vec3 {
	trace := c[0][0] + c[1][1] + c[2][2]
	arg := 1 + trace
	if arg < 0 {
		arg = 0
	}
	q0 := 0.5 * math.Sqrt(arg)
	if q0 < 1e-8 {
		// near a 180-degree rotation; q0 is clamped to avoid dividing by
		// zero. No largest-diagonal fallback is used, so the vector part
		// is not recovered accurately this close to 180 degrees.
		q0 = 1e-8
	}
	q1 := (c[1][2] - c[2][1]) / (4 * q0)
	q2 := (c[2][0] - c[0][2]) / (4 * q0)
	q3 := (c[0][1] - c[1][0]) / (4 * q0)
	return geom.Vec3{q1, q2, q3}.Scale(1 / (1 + q0))
}

// Switch maps sigma to its shadow set when |sigma| > 1, avoiding the MRP
// singularity at a 2*pi rotation (GLOSSARY "MRP").
func Switch(sigma geom.Vec3) geom.Vec3 {
	n2 := sigma.Dot(sigma)
	if n2 > 1 {
		return sigma.Scale(-1 / n2)
	}
	return sigma
}

// Compose returns the MRP of the combined rotation "apply inner, then
// outer": sigma_total such that DCM(sigma_total) == DCM(outer)*DCM(inner).
// Standard MRP addition law (Schaub & Junkins), switched afterward.
func Compose(outer, inner geom.Vec3) geom.Vec3 {
	s1, s2 := inner, outer
	n1, n2 := s1.Dot(s1), s2.Dot(s2)
	cross := s2.Cross(s1)
	num := s1.Scale(1 - n2).Add(s2.Scale(1 - n1)).Sub(cross.Scale(2))
	den := 1 + n1*n2 - 2*s1.Dot(s2)
	if den == 0 {
		den = 1e-12
	}
	return Switch(num.Scale(1 / den))
}

// BMatrix returns the 3x3 kinematic matrix B(sigma) such that
// dsigma/dt = 0.25 * B(sigma) * omega.
func BMatrix(sigma geom.Vec3) geom.Mat3 {
	s2 := sigma.Dot(sigma)
	sk := Skew(sigma)
	id := geom.Identity3()
	var outer geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			outer[i][j] = sigma[i] * sigma[j]
		}
	}
	var b geom.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b[i][j] = (1-s2)*id[i][j] + 2*sk[i][j] + 2*outer[i][j]
		}
	}
	return b
}

// RotationJacobian returns dG/dsigma evaluated at sigma=0 for G(sigma) =
// DCM(sigma)*v, i.e. the linearization used by ICP/BA's normal equations
// (spec §4.4 step 4, §4.5 step 2): C(sigma)*v ~= v + 4*(v x sigma), so the
// Jacobian is the matrix J such that J*dsigma == 4*(v x dsigma).
func RotationJacobian(v geom.Vec3) geom.Mat3 {
	sk := Skew(v)
	var j geom.Mat3
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			j[i][k] = 4 * sk[i][k]
		}
	}
	return j
}
