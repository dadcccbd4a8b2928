package bezier

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/shape"
)

// cubeMesh returns an axis-aligned cube of half-width h, outward-wound.
func cubeMesh(h float64) ([]geom.Vec3, [][3]int) {
	pts := []geom.Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom z=-h
		{4, 5, 6}, {4, 6, 7}, // top z=h
		{0, 1, 5}, {0, 5, 4}, // y=-h
		{3, 7, 6}, {3, 6, 2}, // y=h
		{0, 4, 7}, {0, 7, 3}, // x=-h
		{1, 2, 6}, {1, 6, 5}, // x=h
	}
	return pts, faces
}

func mustTriangular(t *testing.T) *shape.Triangular {
	t.Helper()
	pts, faces := cubeMesh(1)
	tri, err := shape.NewTriangular("body", pts, faces)
	require.NoError(t, err)
	return tri
}

func TestNewFromTriangularDegree1MatchesSourceVolume(t *testing.T) {
	tri := mustTriangular(t)
	s, err := NewFromTriangular(tri, 1)
	require.NoError(t, err)
	require.InDelta(t, tri.Volume(), s.MassProperties().Volume, 1e-9)
	require.Len(t, s.Patches, 12)
	for _, p := range s.Patches {
		require.Equal(t, 1, p.Degree)
	}
}

func TestElevateDegreePreservesGeometryOnFlatPatches(t *testing.T) {
	tri := mustTriangular(t)
	s1, err := NewFromTriangular(tri, 1)
	require.NoError(t, err)
	s2, err := NewFromTriangular(tri, 2)
	require.NoError(t, err)

	require.Equal(t, 2, s2.Degree)
	require.Len(t, s2.Patches[0].CPIdx, geom.LatticeSize(2))

	// A degree-elevated flat triangle still evaluates to the same surface
	// points; spot-check a handful of (u,v) samples per patch.
	for i := range s1.Patches {
		for _, uv := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {0.3, 0.3}, {0.5, 0.2}} {
			a := s1.eval(s1.Patches[i], uv[0], uv[1])
			b := s2.eval(s2.Patches[i], uv[0], uv[1])
			require.InDelta(t, 0.0, a.Sub(b).Norm(), 1e-9)
		}
	}
	require.InDelta(t, s1.MassProperties().Volume, s2.MassProperties().Volume, 1e-6)
}

func TestRayHitMatchesFlatCubeFace(t *testing.T) {
	tri := mustTriangular(t)
	s, err := NewFromTriangular(tri, 2)
	require.NoError(t, err)

	r := geom.NewRay(geom.Vec3{0, 0, 5}, geom.Vec3{0, 0, -1})
	require.True(t, s.RayIntersect(r))
	require.InDelta(t, 4.0, r.Range, 1e-6)
}

func TestRangeVarianceAgreesWithMonteCarlo(t *testing.T) {
	tri := mustTriangular(t)
	s, err := NewFromTriangular(tri, 2)
	require.NoError(t, err)

	n := 3 * len(s.Points)
	dense := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		dense.Set(i, i, 1e-6)
	}
	cov, err := NewControlCov(len(s.Points), dense)
	require.NoError(t, err)
	s.Cov = cov

	origin := geom.Vec3{0, 0, 5}
	dir := geom.Vec3{0, 0, -1}
	var patchIdx int
	found := false
	for i := range s.Patches {
		if _, ok := (patchRef{s: s, idx: i}).RayHit(origin, dir); ok {
			patchIdx = i
			found = true
			break
		}
	}
	require.True(t, found)

	res, err := ValidateUncertainty(context.Background(), s, origin, dir, patchIdx, config.ShapeConfig{MonteCarloRayCount: 20000})
	require.NoError(t, err)
	require.Greater(t, res.RaysHit, 1000)
	require.True(t, res.AgreesWithin5Pct || math.Abs(res.Analytic-res.Empirical) < 1e-9,
		"analytic=%g empirical=%g", res.Analytic, res.Empirical)
}

func TestValidateUncertaintyHonorsCancellation(t *testing.T) {
	tri := mustTriangular(t)
	s, err := NewFromTriangular(tri, 1)
	require.NoError(t, err)
	n := 3 * len(s.Points)
	dense := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		dense.Set(i, i, 1e-6)
	}
	cov, err := NewControlCov(len(s.Points), dense)
	require.NoError(t, err)
	s.Cov = cov

	origin := geom.Vec3{0, 0, 5}
	dir := geom.Vec3{0, 0, -1}
	var patchIdx int
	for i := range s.Patches {
		if _, ok := (patchRef{s: s, idx: i}).RayHit(origin, dir); ok {
			patchIdx = i
			break
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ValidateUncertainty(ctx, s, origin, dir, patchIdx, config.ShapeConfig{MonteCarloRayCount: 1000000})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoadBRoundTrip(t *testing.T) {
	tri := mustTriangular(t)
	s, err := NewFromTriangular(tri, 2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.b")
	require.NoError(t, SaveB(s, path))
	loaded, err := LoadB(path, "body")
	require.NoError(t, err)

	require.Equal(t, s.Degree, loaded.Degree)
	require.Len(t, loaded.Points, len(s.Points))
	require.Len(t, loaded.Patches, len(s.Patches))
	require.InDelta(t, s.MassProperties().Volume, loaded.MassProperties().Volume, 1e-9)

	os.Remove(path)
}
