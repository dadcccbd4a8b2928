package shape

import (
	"math"
	"testing"

	"github.com/cpmech/smallbody/geom"
)

// orientOutward flips any triangle whose cross-product normal points
// toward the origin, guaranteeing every test mesh below is outward
// oriented (the divergence-theorem sums in computeMassProperties are
// only meaningful for a consistently outward-oriented closed surface).
func orientOutward(points []geom.Vec3, faces [][3]int) [][3]int {
	out := make([][3]int, len(faces))
	for i, f := range faces {
		v0, v1, v2 := points[f[0]], points[f[1]], points[f[2]]
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		c := v0.Add(v1).Add(v2)
		if n.Dot(c) < 0 {
			out[i] = [3]int{f[0], f[2], f[1]}
		} else {
			out[i] = f
		}
	}
	return out
}

// cubeMesh returns an axis-aligned cube of half-extent h centered at the
// origin, 8 vertices and 12 triangles.
func cubeMesh(h float64) ([]geom.Vec3, [][3]int) {
	pts := []geom.Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	faces := [][3]int{
		{0, 3, 1}, {3, 2, 1}, // bottom
		{4, 5, 7}, {5, 6, 7}, // top
		{0, 4, 3}, {4, 7, 3}, // left
		{1, 2, 5}, {2, 6, 5}, // right
		{0, 1, 4}, {1, 5, 4}, // front
		{3, 7, 2}, {7, 6, 2}, // back
	}
	return pts, orientOutward(pts, faces)
}

// uvSphereMesh returns a latitude/longitude triangulation of a sphere of
// radius r, with (stacks-1) interior rings of slices vertices each plus
// the two poles.
func uvSphereMesh(r float64, stacks, slices int) ([]geom.Vec3, [][3]int) {
	var pts []geom.Vec3
	topIdx := 0
	pts = append(pts, geom.Vec3{0, 0, r})
	ringStart := make([]int, stacks+1)
	for i := 1; i < stacks; i++ {
		phi := math.Pi*float64(i)/float64(stacks) - math.Pi/2
		ringStart[i] = len(pts)
		for j := 0; j < slices; j++ {
			theta := 2 * math.Pi * float64(j) / float64(slices)
			pts = append(pts, geom.Vec3{
				r * math.Cos(phi) * math.Cos(theta),
				r * math.Cos(phi) * math.Sin(theta),
				r * math.Sin(phi),
			})
		}
	}
	bottomIdx := len(pts)
	pts = append(pts, geom.Vec3{0, 0, -r})

	var faces [][3]int
	firstRing := ringStart[1]
	for j := 0; j < slices; j++ {
		faces = append(faces, [3]int{topIdx, firstRing + j, firstRing + (j+1)%slices})
	}
	for i := 1; i < stacks-1; i++ {
		r0, r1 := ringStart[i], ringStart[i+1]
		for j := 0; j < slices; j++ {
			a, b := r0+j, r0+(j+1)%slices
			c, d := r1+j, r1+(j+1)%slices
			faces = append(faces, [3]int{a, c, d}, [3]int{a, d, b})
		}
	}
	lastRing := ringStart[stacks-1]
	for j := 0; j < slices; j++ {
		faces = append(faces, [3]int{lastRing + j, bottomIdx, lastRing + (j+1)%slices})
	}
	return pts, orientOutward(pts, faces)
}

func TestUnitCubeVolumeAndDiagonalInertia(t *testing.T) {
	pts, faces := cubeMesh(1)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	wantVol := 8.0
	if math.Abs(m.Volume()-wantVol) > 1e-9 {
		t.Fatalf("volume = %v, want %v", m.Volume(), wantVol)
	}
	wantArea := 6 * 4.0
	if math.Abs(m.SurfaceArea()-wantArea) > 1e-9 {
		t.Fatalf("area = %v, want %v", m.SurfaceArea(), wantArea)
	}
	i := m.Inertia()
	off := math.Abs(i[0][1]) + math.Abs(i[0][2]) + math.Abs(i[1][2])
	if off > 1e-9 {
		t.Fatalf("axis-aligned cube inertia not diagonal: %v", i)
	}
	if math.Abs(i[0][0]-i[1][1]) > 1e-9 || math.Abs(i[1][1]-i[2][2]) > 1e-9 {
		t.Fatalf("cube inertia diagonal not isotropic: %v", i)
	}
}

func TestUnitSphereMassPropertiesMatchAnalytic(t *testing.T) {
	pts, faces := uvSphereMesh(1, 90, 90)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	wantVol := 4.0 / 3.0 * math.Pi
	if rel := math.Abs(m.Volume()-wantVol) / wantVol; rel > 0.02 {
		t.Fatalf("sphere volume relative error %v too large (V=%v, want %v)", rel, m.Volume(), wantVol)
	}
	wantArea := 4 * math.Pi
	if rel := math.Abs(m.SurfaceArea()-wantArea) / wantArea; rel > 0.02 {
		t.Fatalf("sphere area relative error %v too large", rel)
	}
	// non-dimensional diagonal inertia of a unit-density solid sphere,
	// independent of radius: (2/5)*(4*pi/3)^(-2/3).
	want := 0.4 * math.Pow(4*math.Pi/3, -2.0/3.0)
	i := m.Inertia()
	for _, v := range []float64{i[0][0], i[1][1], i[2][2]} {
		if rel := math.Abs(v-want) / want; rel > 0.03 {
			t.Fatalf("sphere non-dim inertia diagonal %v too far from analytic %v", v, want)
		}
	}
}

func TestShiftToBarycenterIdempotent(t *testing.T) {
	pts, faces := cubeMesh(1)
	// de-center the cube so shifting actually moves points.
	for i := range pts {
		pts[i] = pts[i].Add(geom.Vec3{5, -3, 2})
	}
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	m.ShiftToBarycenter()
	com1 := m.CenterMass()
	m.ShiftToBarycenter()
	com2 := m.CenterMass()
	if com1.Sub(com2).Norm() > 1e-10 {
		t.Fatalf("second shift moved CoM: %v -> %v", com1, com2)
	}
	if com2.Norm() > 1e-9 {
		t.Fatalf("CoM after shift not at origin: %v", com2)
	}
}

func TestAlignWithPrincipalAxesOnRotatedCube(t *testing.T) {
	pts, faces := cubeMesh(1)
	c := math.Cos(30 * math.Pi / 180)
	s := math.Sin(30 * math.Pi / 180)
	rot := geom.Mat3{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}
	for i := range pts {
		pts[i] = rot.MulVec(pts[i])
	}
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	m.AlignWithPrincipalAxes()
	i := m.Inertia()
	off := math.Abs(i[0][1]) + math.Abs(i[0][2]) + math.Abs(i[1][2])
	if off > 1e-9 {
		t.Fatalf("aligned cube inertia not diagonal: %v", i)
	}
	before := i
	m.AlignWithPrincipalAxes()
	after := m.Inertia()
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			if math.Abs(before[a][b]-after[a][b]) > 1e-9 {
				t.Fatalf("second alignment changed inertia: %v -> %v", before, after)
			}
		}
	}
}

func TestContainsInsideAndOutsideSphere(t *testing.T) {
	pts, faces := uvSphereMesh(1, 40, 40)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	if !m.Contains(geom.Vec3{0, 0, 0}, 1e-6) {
		t.Fatal("origin should be inside the unit sphere mesh")
	}
	if m.Contains(geom.Vec3{5, 5, 5}, 1e-6) {
		t.Fatal("a far point should be outside the unit sphere mesh")
	}
}

func TestRayIntersectHitsSphere(t *testing.T) {
	pts, faces := uvSphereMesh(1, 40, 40)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	r := geom.NewRay(geom.Vec3{0, 0, -5}, geom.Vec3{0, 0, 1})
	if !m.RayIntersect(r) {
		t.Fatal("ray through the sphere's center should hit")
	}
	if math.Abs(r.Range-4) > 0.05 {
		t.Fatalf("hit range %v, want close to 4", r.Range)
	}
}

func TestSplitFacetProducesFourChildrenAndThreeVertices(t *testing.T) {
	pts, faces := cubeMesh(1)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	nPtsBefore, nFacetsBefore := len(m.Points), len(m.Facets)
	if err := m.SplitFacet(0); err != nil {
		t.Fatalf("SplitFacet: %v", err)
	}
	if len(m.Points)-nPtsBefore != 3 {
		t.Fatalf("expected 3 new points, got %d", len(m.Points)-nPtsBefore)
	}
	if len(m.Facets)-nFacetsBefore != 3 {
		t.Fatalf("expected 3 additional facets (4 total replacing 1), got %d", len(m.Facets)-nFacetsBefore)
	}
	m.Recompute()
	if math.Abs(m.Volume()-8) > 1e-6 {
		t.Fatalf("split changed enclosed volume: %v", m.Volume())
	}
}

func TestMergeShrunkFacetReducesFacetCount(t *testing.T) {
	pts, faces := cubeMesh(1)
	m, err := NewTriangular("body", pts, faces)
	if err != nil {
		t.Fatalf("NewTriangular: %v", err)
	}
	before := len(m.Facets)
	ok, err := m.MergeShrunkFacet(0)
	if err != nil {
		t.Fatalf("MergeShrunkFacet: %v", err)
	}
	if !ok {
		t.Fatal("expected merge to report success")
	}
	if len(m.Facets) >= before {
		t.Fatalf("expected fewer facets after merge, had %d now %d", before, len(m.Facets))
	}
}

func TestSplitFacetRejectsOutOfRange(t *testing.T) {
	pts, faces := cubeMesh(1)
	m, _ := NewTriangular("body", pts, faces)
	if err := m.SplitFacet(999); err == nil {
		t.Fatal("expected error for out-of-range facet index")
	}
}
