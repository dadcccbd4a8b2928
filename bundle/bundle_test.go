package bundle

import (
	"context"
	"math"
	"testing"

	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
)

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

// localCopy returns base's points carried back into a frame where
// applying (m,x) lands them on base, i.e. it is the inverse of (m,x).
func localCopy(base *cloud.Cloud, m geom.Mat3, x geom.Vec3) *cloud.Cloud {
	out := cloud.New("local")
	inv := m.Transpose()
	for i := 0; i < base.Size(); i++ {
		p := base.At(i)
		out.Append(geom.NewPoint(inv.MulVec(p.Pos.Sub(x)), inv.MulVec(p.Normal)))
	}
	return out
}

func TestAdjustRefinesTwoNonAnchorPoses(t *testing.T) {
	global := sphereCloud("global", 400)

	trueM1, trueX1 := mrp.ToDCM(geom.Vec3{0.05, -0.02, 0.01}), geom.Vec3{0.01, 0.02, -0.01}
	trueM2, trueX2 := mrp.ToDCM(geom.Vec3{-0.03, 0.04, 0.02}), geom.Vec3{-0.02, 0.01, 0.015}

	clouds := []*cloud.Cloud{
		global,
		localCopy(global, trueM1, trueX1),
		localCopy(global, trueM2, trueX2),
	}

	// perturb the initial guesses away from ground truth so BA has work to do
	perturbM1 := mrp.ToDCM(geom.Vec3{0.01, 0, 0}).Mul(trueM1)
	perturbM2 := mrp.ToDCM(geom.Vec3{0, -0.01, 0}).Mul(trueM2)
	initPoses := []Pose{
		{M: geom.Identity3(), X: geom.Vec3{}},
		{M: perturbM1, X: trueX1.Add(geom.Vec3{0.005, 0, 0})},
		{M: perturbM2, X: trueX2.Add(geom.Vec3{0, -0.004, 0})},
	}

	icpCfg := config.ICPConfig{RejectSigmaK: 3}
	baCfg := config.BAConfig{Iterations: 15, RidgeCoefficient: 1e-8, LoopClosureEnabled: false, GroundAnchorIndex: -1}

	res, err := Adjust(context.Background(), clouds, initPoses, nil, baCfg, icpCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Iterations == 0 {
		t.Fatal("expected at least one successful iteration")
	}

	checkClose := func(name string, got Pose, wantM geom.Mat3, wantX geom.Vec3) {
		if got.X.Sub(wantX).Norm() > 1e-3 {
			t.Fatalf("%s: translation off, got %v want %v", name, got.X, wantX)
		}
		diff := got.M.Mul(wantM.Transpose())
		angle := math.Acos(math.Min(1, math.Max(-1, (diff[0][0]+diff[1][1]+diff[2][2]-1)/2)))
		if angle > 1e-2 {
			t.Fatalf("%s: rotation off by %v rad", name, angle)
		}
	}
	checkClose("cloud1", res.Poses[1], trueM1, trueX1)
	checkClose("cloud2", res.Poses[2], trueM2, trueX2)

	if res.Poses[0].X != (geom.Vec3{}) || res.Poses[0].M != geom.Identity3() {
		t.Fatal("anchor pose must remain fixed")
	}
}

func TestDiscoverEdgesSequentialOnly(t *testing.T) {
	clouds := []*cloud.Cloud{cloud.New("a"), cloud.New("b"), cloud.New("c")}
	poses := []Pose{{M: geom.Identity3()}, {M: geom.Identity3()}, {M: geom.Identity3()}}
	cfg := config.BAConfig{LoopClosureEnabled: false}
	edges := discoverEdges(clouds, poses, nil, cfg, config.ICPConfig{})
	if len(edges) != 2 {
		t.Fatalf("expected 2 sequential edges, got %d", len(edges))
	}
}

func TestDiscoverEdgesIncludesFlyoverPairs(t *testing.T) {
	clouds := []*cloud.Cloud{cloud.New("a"), cloud.New("b"), cloud.New("c")}
	poses := []Pose{{M: geom.Identity3()}, {M: geom.Identity3()}, {M: geom.Identity3()}}
	cfg := config.BAConfig{LoopClosureEnabled: true}
	edges := discoverEdges(clouds, poses, [][2]int{{0, 2}}, cfg, config.ICPConfig{})
	if len(edges) != 3 {
		t.Fatalf("expected 2 sequential + 1 flyover edge, got %d", len(edges))
	}
}

func TestAdjustRejectsMismatchedPoseCount(t *testing.T) {
	clouds := []*cloud.Cloud{cloud.New("a"), cloud.New("b")}
	_, err := Adjust(context.Background(), clouds, []Pose{{}}, nil, config.BAConfig{Iterations: 1}, config.ICPConfig{})
	if err == nil {
		t.Fatal("expected error for mismatched pose/cloud counts")
	}
}
