package geom

import (
	"math"
	"testing"
)

func TestVec3Basics(t *testing.T) {
	a := Vec3{1, 0, 0}
	b := Vec3{0, 1, 0}
	c := a.Cross(b)
	if c != (Vec3{0, 0, 1}) {
		t.Fatalf("cross product wrong: %v", c)
	}
	if a.Dot(b) != 0 {
		t.Fatal("orthogonal dot must be zero")
	}
}

func TestMat3Identity(t *testing.T) {
	id := Identity3()
	v := Vec3{1, 2, 3}
	if id.MulVec(v) != v {
		t.Fatal("identity must be a no-op")
	}
	if math.Abs(id.Det()-1) > 1e-15 {
		t.Fatalf("identity det = %v", id.Det())
	}
}

func TestMat3AddSubScale(t *testing.T) {
	a := Mat3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	b := Mat3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	sum := a.Add(b)
	if sum[0][0] != 2 || sum[2][2] != 10 {
		t.Fatalf("unexpected Add result: %v", sum)
	}
	diff := a.Sub(b)
	if diff[0][0] != 0 || diff[2][2] != 8 {
		t.Fatalf("unexpected Sub result: %v", diff)
	}
	scaled := b.Scale(3)
	if scaled[1][1] != 3 {
		t.Fatalf("unexpected Scale result: %v", scaled)
	}
}

func TestMat3InverseRoundTrip(t *testing.T) {
	m := Mat3{{2, 1, 0}, {0, 3, 1}, {1, 0, 4}}
	inv := m.Inverse()
	prod := m.Mul(inv)
	id := Identity3()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(prod[i][j]-id[i][j]) > 1e-9 {
				t.Fatalf("M*M^-1 != I at (%d,%d): %v", i, j, prod[i][j])
			}
		}
	}
}

func TestMat3OrthonormalizeProjectsOntoSO3(t *testing.T) {
	drifted := Mat3{{1.01, 0.01, 0}, {0, 1, 0}, {0, 0, 1}}
	m := drifted.Orthonormalize()
	prod := m.Mul(m.Transpose())
	if math.Abs(prod[0][0]-1) > 1e-9 || math.Abs(prod[1][1]-1) > 1e-9 || math.Abs(prod[0][1]) > 1e-9 {
		t.Fatalf("expected near-identity M*M^T, got %v", prod)
	}
	if math.Abs(m.Det()-1) > 1e-9 {
		t.Fatalf("expected det=+1, got %v", m.Det())
	}
}

func TestBBoxSlabAndHit(t *testing.T) {
	b := BBox{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	origin, dir := Vec3{-5, 0, 0}, Vec3{1, 0, 0}
	ts, ok := b.SlabIntersect(origin, dir)
	if !ok {
		t.Fatal("expected valid slab intersection")
	}
	if !HitsBox(b, origin, dir, ts, math.Inf(1)) {
		t.Fatal("expected ray through box to hit")
	}
	if HitsBox(b, origin, dir, ts, 0) {
		t.Fatal("a ray whose current range is already closer than the box must not re-enter it")
	}
}

func TestRayTriangleHit(t *testing.T) {
	v0 := Vec3{0, 0, 0}
	v1 := Vec3{1, 0, 0}
	v2 := Vec3{0, 1, 0}
	t0, ok := RayTriangleMollerTrumbore(Vec3{0.2, 0.2, 1}, Vec3{0, 0, -1}, v0, v1, v2)
	if !ok || math.Abs(t0-1) > 1e-12 {
		t.Fatalf("expected hit at t=1, got %v, %v", t0, ok)
	}
	_, ok = RayTriangleMollerTrumbore(Vec3{5, 5, 1}, Vec3{0, 0, -1}, v0, v1, v2)
	if ok {
		t.Fatal("ray outside triangle must miss")
	}
}

func TestBarycentricLatticeOrdering(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		tuples := BarycentricIndices(n)
		if len(tuples) != LatticeSize(n) {
			t.Fatalf("degree %d: expected %d tuples, got %d", n, LatticeSize(n), len(tuples))
		}
		for pos, tup := range tuples {
			if tup[0]+tup[1]+tup[2] != n {
				t.Fatalf("tuple %v does not sum to degree %d", tup, n)
			}
			if LatticeIndex(tup[0], tup[1], tup[2]) != pos {
				t.Fatalf("LatticeIndex(%v) = %d, want %d", tup, LatticeIndex(tup[0], tup[1], tup[2]), pos)
			}
		}
	}
}

func TestSmallestAngleVertex(t *testing.T) {
	// a thin sliver triangle: the tiny angle is at the origin (vertex 0)
	p0 := Vec3{0, 0, 0}
	p1 := Vec3{10, 0.01, 0}
	p2 := Vec3{10, -0.01, 0}
	idx := SmallestAngleVertex(p0, p1, p2)
	if idx != 0 {
		t.Fatalf("expected smallest angle at vertex 0, got %d", idx)
	}
}
