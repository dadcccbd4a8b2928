package feature

import (
	"testing"

	"github.com/cpmech/smallbody/geom"
)

func TestSPFHLengthAndNonNegative(t *testing.T) {
	q := geom.NewPoint(geom.Vec3{0, 0, 0}, geom.Vec3{0, 0, 1})
	neighbors := []geom.Point{
		geom.NewPoint(geom.Vec3{1, 0, 0.1}, geom.Vec3{0, 0, 1}),
		geom.NewPoint(geom.Vec3{0, 1, 0.1}, geom.Vec3{0, 0, 1}),
		geom.NewPoint(geom.Vec3{-1, 0, 0.1}, geom.Vec3{0, 0, 1}),
	}
	h := SPFH(q, neighbors)
	if len(h) != 3*NumBins {
		t.Fatalf("expected length %d, got %d", 3*NumBins, len(h))
	}
	var total float64
	for _, v := range h {
		if v < 0 {
			t.Fatal("histogram bins must be non-negative counts")
		}
		total += v
	}
	if total != float64(3*len(neighbors)) {
		t.Fatalf("expected %d total votes (3 families x neighbors), got %v", 3*len(neighbors), total)
	}
}

func TestFPFHIdentityWithNoNeighbors(t *testing.T) {
	spfh := []float64{1, 2, 3}
	out := FPFH(spfh, nil, nil)
	for i := range spfh {
		if out[i] != spfh[i] {
			t.Fatalf("FPFH with no neighbors must equal SPFH, got %v want %v", out, spfh)
		}
	}
}

func TestDistanceZeroForIdentical(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	if Distance(a, a) != 0 {
		t.Fatal("distance to self must be zero")
	}
}

func TestDisableCommonFeaturesMarksNearMean(t *testing.T) {
	mean := []float64{0, 0, 0}
	pts := []geom.Point{
		{Desc: []float64{0, 0, 0}, Valid: true},    // exactly the mean -> disabled
		{Desc: []float64{10, 0, 0}, Valid: true},   // far from mean -> kept
	}
	DisableCommonFeatures(pts, mean, 0.5)
	if pts[0].Valid {
		t.Fatal("point at the descriptor centroid should be disabled as a common feature")
	}
	if !pts[1].Valid {
		t.Fatal("point far from the descriptor centroid should remain valid")
	}
}
