// Package geom implements the geometric primitives shared by the point
// cloud, KD-tree, shape, and Bézier packages: oriented points, triangular
// facets, Bézier patches, rays, and bounding boxes (spec §4.1/§3 "Point
// (oriented)").
package geom

import "math"

// Vec3 is a plain 3-vector. Arithmetic is implemented as value-receiver
// methods so callers never have to reason about aliasing.
type Vec3 [3]float64

func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}
func (v Vec3) Dot(w Vec3) float64 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// MulVec applies the matrix to a vector: M*v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Mul multiplies two 3x3 matrices: this*other.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * o[k][j]
			}
			r[i][j] = s
		}
	}
	return r
}

// Add returns the elementwise sum m+o.
func (m Mat3) Add(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + o[i][j]
		}
	}
	return r
}

// Sub returns the elementwise difference m-o.
func (m Mat3) Sub(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] - o[i][j]
		}
	}
	return r
}

// Scale returns m scaled elementwise by s.
func (m Mat3) Scale(s float64) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] * s
		}
	}
	return r
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the matrix inverse via the closed-form 3x3 adjugate,
// panicking-free: a near-singular matrix yields a large but finite result
// rather than dividing by exactly zero only when det is exactly zero.
func (m Mat3) Inverse() Mat3 {
	det := m.Det()
	if det == 0 {
		det = 1e-300
	}
	inv := 1 / det
	var r Mat3
	r[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv
	r[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv
	r[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv
	r[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv
	r[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv
	r[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv
	r[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv
	r[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv
	r[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv
	return r
}

// Orthonormalize re-projects m onto SO(3) via a single Gram-Schmidt pass
// over its columns, guarding the det=+1 orthonormal invariant (spec §4.4,
// §4.5) against floating-point drift across many ICP/BA iterations.
func (m Mat3) Orthonormalize() Mat3 {
	c0 := Vec3{m[0][0], m[1][0], m[2][0]}.Normalized()
	c1 := Vec3{m[0][1], m[1][1], m[2][1]}
	c1 = c1.Sub(c0.Scale(c0.Dot(c1))).Normalized()
	c2 := c0.Cross(c1)
	return Mat3{
		{c0[0], c1[0], c2[0]},
		{c0[1], c1[1], c2[1]},
		{c0[2], c1[2], c2[2]},
	}
}

// Point is an oriented point: spec §3 "Point (oriented)".
type Point struct {
	Pos    Vec3      // position
	Normal Vec3      // outward normal, assumed unit length
	Desc   []float64 // optional descriptor histogram (SPFH/FPFH)
	Count  int       // how many pairings contained this point
	Valid  bool      // valid-feature flag
	Corr   int       // weak correspondence to another point's index; -1 if none
}

// NewPoint builds an oriented point with no descriptor and no correspondence.
func NewPoint(pos, normal Vec3) Point {
	return Point{Pos: pos, Normal: normal.Normalized(), Valid: true, Corr: -1}
}

// Transformed returns p with position and normal carried through the rigid
// transform p' = M*p + X (normals rotate only).
func (p Point) Transformed(m Mat3, x Vec3) Point {
	q := p
	q.Pos = m.MulVec(p.Pos).Add(x)
	q.Normal = m.MulVec(p.Normal)
	return q
}
