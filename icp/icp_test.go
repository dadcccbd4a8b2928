package icp

import (
	"context"
	"math"
	"testing"

	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
)

// sphereCloud builds a coarse point cloud on the unit sphere with outward
// normals, a cheap stand-in for a LIDAR flash of a convex body.
func sphereCloud(label string, n int) *cloud.Cloud {
	c := cloud.New(label)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/float64(n-1)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		pos := geom.Vec3{r * math.Cos(theta), y, r * math.Sin(theta)}
		c.Append(geom.NewPoint(pos, pos))
	}
	return c
}

func TestAlignConvergesOnKnownRotation(t *testing.T) {
	dst := sphereCloud("dst", 400)
	sigma := geom.Vec3{0.05, -0.03, 0.02}
	R := mrp.ToDCM(sigma)
	x := geom.Vec3{0.01, -0.02, 0.005}

	src := cloud.New("src")
	for i := 0; i < dst.Size(); i++ {
		p := dst.At(i)
		// invert: src point maps to dst under (R, x), so src = R^-1*(dst - x)
		inv := R.Transpose()
		src.Append(geom.NewPoint(inv.MulVec(p.Pos.Sub(x)), inv.MulVec(p.Normal)))
	}

	cfg := config.ICPConfig{MaxIterations: 50, Tolerance: 1e-10, RejectSigmaK: 5, MinPairs: 10}
	res, err := Align(context.Background(), src, dst, cfg, nil, nil)
	if err != nil {
		t.Fatalf("expected convergence, got error: %v", err)
	}
	if res.Outcome != Converged {
		t.Fatalf("expected Converged, got %v", res.Outcome)
	}
	for i := 0; i < dst.Size(); i++ {
		got := res.M.MulVec(src.At(i).Pos).Add(res.X)
		want := dst.At(i).Pos
		if got.Sub(want).Norm() > 1e-3 {
			t.Fatalf("point %d: got %v want %v", i, got, want)
		}
	}
}

func TestAlignReportsNoPairsWhenCloudsDisjoint(t *testing.T) {
	dst := sphereCloud("dst", 50)
	src := cloud.New("src")
	for i := 0; i < 20; i++ {
		src.Append(geom.NewPoint(geom.Vec3{100, 100, float64(i)}, geom.Vec3{0, 0, 1}))
	}
	cfg := config.ICPConfig{MaxIterations: 10, Tolerance: 1e-8, RejectSigmaK: 3, MinPairs: 15}
	res, err := Align(context.Background(), src, dst, cfg, nil, nil)
	if err == nil {
		t.Fatal("expected an error for disjoint clouds")
	}
	if res.Outcome != NoPairs {
		t.Fatalf("expected NoPairs, got %v", res.Outcome)
	}
}

func TestRejectOutliersTrimsLargeResidual(t *testing.T) {
	pairs := []Pair{
		{SrcPos: geom.Vec3{0, 0, 0.001}, DstPos: geom.Vec3{0, 0, 0}, DstNormal: geom.Vec3{0, 0, 1}},
		{SrcPos: geom.Vec3{1, 0, 0.002}, DstPos: geom.Vec3{1, 0, 0}, DstNormal: geom.Vec3{0, 0, 1}},
		{SrcPos: geom.Vec3{2, 0, 0.0015}, DstPos: geom.Vec3{2, 0, 0}, DstNormal: geom.Vec3{0, 0, 1}},
		{SrcPos: geom.Vec3{3, 0, 5.0}, DstPos: geom.Vec3{3, 0, 0}, DstNormal: geom.Vec3{0, 0, 1}}, // outlier
	}
	kept, _ := RejectOutliers(pairs, 3)
	if len(kept) != 3 {
		t.Fatalf("expected 3 inliers kept, got %d", len(kept))
	}
}

func TestOrthonormalizeProjectsOntoSO3(t *testing.T) {
	drifted := geom.Mat3{{1.01, 0.01, 0}, {0, 1, 0}, {0, 0, 1}}
	m := drifted.Orthonormalize()
	prod := m.Mul(m.Transpose())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(prod[i][j]-want) > 1e-9 {
				t.Fatalf("orthonormalize failed at (%d,%d): %v", i, j, prod[i][j])
			}
		}
	}
	if math.Abs(m.Det()-1) > 1e-9 {
		t.Fatalf("expected det=+1, got %v", m.Det())
	}
}
