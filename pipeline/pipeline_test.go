package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/mrp"
	"github.com/cpmech/smallbody/shape"
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

func localCopy(base *cloud.Cloud, m geom.Mat3, x geom.Vec3) *cloud.Cloud {
	out := cloud.New("local")
	inv := m.Transpose()
	for i := 0; i < base.Size(); i++ {
		p := base.At(i)
		out.Append(geom.NewPoint(inv.MulVec(p.Pos.Sub(x)), inv.MulVec(p.Normal)))
	}
	return out
}

func cubeMesh(h float64) *shape.Triangular {
	pts := []geom.Vec3{
		{-h, -h, -h}, {h, -h, -h}, {h, h, -h}, {-h, h, -h},
		{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2},
		{4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4},
		{3, 7, 6}, {3, 6, 2},
		{0, 4, 7}, {0, 7, 3},
		{1, 2, 6}, {1, 6, 5},
	}
	tri, err := shape.NewTriangular("body", pts, faces)
	if err != nil {
		panic(err)
	}
	return tri
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.BA.Iterations = 10
	cfg.BA.RidgeCoefficient = 1e-8
	cfg.BA.LoopClosureEnabled = false
	cfg.Shape.BezierDegree = 2
	return cfg
}

func TestExecuteRegistersBundlesAndLiftsShape(t *testing.T) {
	global := sphereCloud("global", 300)
	trueM, trueX := mrp.ToDCM(geom.Vec3{0.02, -0.01, 0.015}), geom.Vec3{0.01, -0.005, 0.008}
	clouds := []*cloud.Cloud{global, localCopy(global, trueM, trueX)}

	in := Inputs{
		Clouds:   clouds,
		SeedMesh: cubeMesh(1),
	}

	r := New(testConfig(), false)
	err := r.Execute(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, r.Registered, 1)
	require.Len(t, r.Bundle.Poses, 2)
	require.NotNil(t, r.Triangular)
	require.NotNil(t, r.Bezier)
	require.Equal(t, 2, r.Bezier.Degree)
	require.InDelta(t, r.Triangular.Volume(), r.Bezier.MassProperties().Volume, 1e-6)
}

func TestExecuteFatalOnMissingSeedMesh(t *testing.T) {
	global := sphereCloud("global", 50)
	clouds := []*cloud.Cloud{global, localCopy(global, geom.Identity3(), geom.Vec3{0.01, 0, 0})}

	in := Inputs{Clouds: clouds}

	r := New(testConfig(), false)
	err := r.Execute(context.Background(), in)
	require.Error(t, err)
	require.Nil(t, r.Bezier)
}

func TestExecuteFatalOnTooFewClouds(t *testing.T) {
	in := Inputs{
		Clouds:   []*cloud.Cloud{sphereCloud("only", 10)},
		SeedMesh: cubeMesh(1),
	}
	r := New(testConfig(), false)
	err := r.Execute(context.Background(), in)
	require.Error(t, err)
}

func TestExecuteSkipsOrbitDeterminationWithoutEnoughPoses(t *testing.T) {
	global := sphereCloud("global", 200)
	trueM, trueX := mrp.ToDCM(geom.Vec3{0.01, 0, 0}), geom.Vec3{0.005, 0, 0}
	clouds := []*cloud.Cloud{global, localCopy(global, trueM, trueX)}

	in := Inputs{
		Clouds:   clouds,
		Times:    []float64{0}, // deliberately mismatched length
		SeedMesh: cubeMesh(1),
	}

	r := New(testConfig(), false)
	err := r.Execute(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, r.Diagnostics)
	require.NotNil(t, r.Bezier)
}
