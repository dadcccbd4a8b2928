// Package bundle implements multi-cloud pose-graph bundle adjustment: a
// global refinement of every cloud's pose relative to an anchor cloud,
// jointly over sequential, loop-closure, and back-scan point-to-plane
// correspondences (spec §4.5).
package bundle

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/icp"
	"github.com/cpmech/smallbody/mrp"
)

// Pose is a rigid transform from a cloud's local frame to the anchor
// cloud's frame: p_anchor = M*p_local + X.
type Pose struct {
	M geom.Mat3
	X geom.Vec3
}

// Edge is an undirected correspondence edge between two cloud indices.
type Edge struct {
	S, D int
}

// Connectivity is the diagnostic artifact of spec §4.5: dense per-pair
// residual RMS, overlap fraction, and accepted-pair-count matrices, with
// -1 marking an absent edge (spec §6 external-interface format).
type Connectivity struct {
	N         int
	Residual  [][]float64
	Overlap   [][]float64
	PairCount [][]int
}

func newConnectivity(n int) Connectivity {
	c := Connectivity{N: n, Residual: make([][]float64, n), Overlap: make([][]float64, n), PairCount: make([][]int, n)}
	for i := 0; i < n; i++ {
		c.Residual[i] = make([]float64, n)
		c.Overlap[i] = make([]float64, n)
		c.PairCount[i] = make([]int, n)
		for j := 0; j < n; j++ {
			c.Residual[i][j] = -1
			c.Overlap[i][j] = -1
			c.PairCount[i][j] = -1
		}
	}
	return c
}

func (c *Connectivity) set(s, d int, residual, overlap float64, count int) {
	c.Residual[s][d], c.Residual[d][s] = residual, residual
	c.Overlap[s][d], c.Overlap[d][s] = overlap, overlap
	c.PairCount[s][d], c.PairCount[d][s] = count, count
}

// Result is the output of Adjust: refined poses, per-iteration residual
// RMS, the number of iterations that actually updated the state, and the
// final connectivity artifact.
type Result struct {
	Poses        []Pose
	ResidualRMS  []float64
	Iterations   int
	Connectivity Connectivity
}

// Adjust refines initPoses (one per cloud, indexed the same as clouds) by
// global bundle adjustment over sequential, loop-closure, and back-scan
// pairs. flyover, if non-empty, is a fly-over map of additional
// loop-closure index pairs (spec §4.5); pass nil to rely on the back-scan
// fallback. cloud 0, or cfg.GroundAnchorIndex if >= 0, is held fixed.
func Adjust(ctx context.Context, clouds []*cloud.Cloud, initPoses []Pose, flyover [][2]int, cfg config.BAConfig, icpCfg config.ICPConfig) (Result, error) {
	q := len(clouds)
	if q < 2 || len(initPoses) != q {
		return Result{}, errs.New(errs.InputMalformed, "bundle adjustment needs >=2 clouds with matching initial poses, got %d clouds and %d poses", q, len(initPoses))
	}
	anchor := cfg.GroundAnchorIndex
	if anchor < 0 {
		anchor = 0
	}

	poses := append([]Pose(nil), initPoses...)
	edges := discoverEdges(clouds, poses, flyover, cfg, icpCfg)

	dof, ndof := dofLayout(q, anchor)
	res := Result{Poses: poses, Connectivity: newConnectivity(q)}

	for iter := 0; iter < cfg.Iterations; iter++ {
		select {
		case <-ctx.Done():
			return res, errs.New(errs.Cancelled, "bundle adjustment cancelled at iteration %d", iter)
		default:
		}

		AtA := mat.NewDense(ndof, ndof, nil)
		Atb := mat.NewDense(ndof, 1, nil)
		var sumSq float64
		var totalPairs int

		for _, e := range edges {
			srcGlobal := transformedPoints(clouds[e.S], poses[e.S])
			dstGlobal := transformedCloud(clouds[e.D], poses[e.D])
			pairs := icp.FindPairs(srcGlobal, dstGlobal, 0)
			kept, _ := icp.RejectOutliers(pairs, icpCfg.RejectSigmaK)
			if len(pairs) > 0 {
				res.Connectivity.set(e.S, e.D, rmsResidual(kept), float64(len(kept))/float64(len(pairs)), len(kept))
			}
			for _, p := range kept {
				r := p.DstNormal.Dot(p.SrcPos.Sub(p.DstPos))
				sumSq += r * r
				totalPairs++
				jS := sixVector(p.DstNormal, mrp.RotationJacobian(p.SrcPos.Sub(poses[e.S].X)), 1)
				jD := sixVector(p.DstNormal, mrp.RotationJacobian(p.DstPos.Sub(poses[e.D].X)), -1)
				accumulatePair(AtA, Atb, dof[e.S], jS, dof[e.D], jD, r)
			}
		}

		if totalPairs == 0 {
			break
		}
		for i := 0; i < ndof; i++ {
			AtA.Set(i, i, AtA.At(i, i)+cfg.RidgeCoefficient)
		}

		delta, ok := choleskySolve(AtA, Atb, ndof)
		if !ok {
			// spec §4.5: abandon this iteration, keep the last good poses.
			break
		}

		for k := 0; k < q; k++ {
			if dof[k] < 0 {
				continue
			}
			base := dof[k]
			dX := geom.Vec3{delta.At(base, 0), delta.At(base+1, 0), delta.At(base+2, 0)}
			dSigma := geom.Vec3{delta.At(base+3, 0), delta.At(base+4, 0), delta.At(base+5, 0)}
			poses[k].X = poses[k].X.Add(dX)
			poses[k].M = mrp.ToDCM(dSigma).Mul(poses[k].M).Orthonormalize()
		}

		res.Poses = append([]Pose(nil), poses...)
		res.ResidualRMS = append(res.ResidualRMS, math.Sqrt(sumSq/float64(totalPairs)))
		res.Iterations = iter + 1
	}

	return res, nil
}

// dofLayout assigns a base column to every non-anchor cloud, -1 to the
// anchor, and returns the total unknown count 6*(Q-1).
func dofLayout(q, anchor int) (dof []int, ndof int) {
	dof = make([]int, q)
	col := 0
	for k := 0; k < q; k++ {
		if k == anchor {
			dof[k] = -1
			continue
		}
		dof[k] = col
		col += 6
	}
	return dof, col
}

// sixVector packs (sign*n, sign*n^T*rot) into the 6-dof Jacobian row for
// one side of a pair, per spec §4.5 step 2 ("sign flip on the destination
// side").
func sixVector(n geom.Vec3, rot geom.Mat3, sign float64) [6]float64 {
	dRdSigma := geom.Vec3{
		n.Dot(geom.Vec3{rot[0][0], rot[1][0], rot[2][0]}),
		n.Dot(geom.Vec3{rot[0][1], rot[1][1], rot[2][1]}),
		n.Dot(geom.Vec3{rot[0][2], rot[1][2], rot[2][2]}),
	}
	return [6]float64{sign * n[0], sign * n[1], sign * n[2], sign * dRdSigma[0], sign * dRdSigma[1], sign * dRdSigma[2]}
}

// accumulatePair adds one pair's normal-equation contribution into the
// global dense system, skipping any block belonging to the anchor (dof<0).
func accumulatePair(AtA, Atb *mat.Dense, dofS int, jS [6]float64, dofD int, jD [6]float64, r float64) {
	addSelf := func(base int, j [6]float64) {
		if base < 0 {
			return
		}
		for a := 0; a < 6; a++ {
			Atb.Set(base+a, 0, Atb.At(base+a, 0)-j[a]*r)
			for b := 0; b < 6; b++ {
				AtA.Set(base+a, base+b, AtA.At(base+a, base+b)+j[a]*j[b])
			}
		}
	}
	addSelf(dofS, jS)
	addSelf(dofD, jD)
	if dofS < 0 || dofD < 0 {
		return
	}
	for a := 0; a < 6; a++ {
		for b := 0; b < 6; b++ {
			v := jS[a] * jD[b]
			AtA.Set(dofS+a, dofD+b, AtA.At(dofS+a, dofD+b)+v)
			AtA.Set(dofD+b, dofS+a, AtA.At(dofD+b, dofS+a)+v)
		}
	}
}

// choleskySolve factors the symmetric ndof x ndof system and solves for
// delta, returning ok=false on a non-positive-definite system.
func choleskySolve(AtA, Atb *mat.Dense, ndof int) (*mat.Dense, bool) {
	var sym mat.SymDense
	sym.SymOuterK(1, mat.NewDense(ndof, ndof, nil))
	for i := 0; i < ndof; i++ {
		for j := i; j < ndof; j++ {
			sym.SetSym(i, j, AtA.At(i, j))
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(&sym) {
		return nil, false
	}
	var delta mat.Dense
	if err := chol.SolveTo(&delta, Atb); err != nil {
		return nil, false
	}
	return &delta, true
}

func rmsResidual(pairs []icp.Pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var sumSq float64
	for _, p := range pairs {
		r := p.DstNormal.Dot(p.SrcPos.Sub(p.DstPos))
		sumSq += r * r
	}
	return math.Sqrt(sumSq / float64(len(pairs)))
}

// transformedPoints returns c's points carried through pose, without
// mutating c (bundle moves every cloud independently across iterations,
// so cloud.Cloud.Transform's in-place mutation is unsuitable here).
func transformedPoints(c *cloud.Cloud, pose Pose) []geom.Point {
	out := make([]geom.Point, c.Size())
	for i := 0; i < c.Size(); i++ {
		out[i] = c.At(i).Transformed(pose.M, pose.X)
	}
	return out
}

// transformedCloud builds a throwaway cloud holding c's points under
// pose, rebuilding its KD-tree lazily on first query (spec's rebuild-on-
// stage discipline, since every cloud's global position changes each
// bundle-adjustment iteration).
func transformedCloud(c *cloud.Cloud, pose Pose) *cloud.Cloud {
	out := cloud.New(c.Label)
	out.Points = transformedPoints(c, pose)
	return out
}

// discoverEdges builds the sequential + loop-closure/back-scan edge set
// of spec §4.5.
func discoverEdges(clouds []*cloud.Cloud, poses []Pose, flyover [][2]int, cfg config.BAConfig, icpCfg config.ICPConfig) []Edge {
	q := len(clouds)
	edges := make([]Edge, 0, q)
	for k := 0; k < q-1; k++ {
		edges = append(edges, Edge{k, k + 1})
	}
	if !cfg.LoopClosureEnabled {
		return edges
	}
	if len(flyover) > 0 {
		for _, fp := range flyover {
			edges = append(edges, Edge{fp[0], fp[1]})
		}
		return edges
	}
	for k := q - 1; k > 0; k-- {
		frac := acceptanceFraction(clouds[k], clouds[0], poses[k], poses[0], icpCfg)
		if frac > cfg.MinSequentialOverlapFrac {
			edges = append(edges, Edge{k, 0})
			break
		}
	}
	return edges
}

func acceptanceFraction(src, dst *cloud.Cloud, poseS, poseD Pose, icpCfg config.ICPConfig) float64 {
	srcGlobal := transformedPoints(src, poseS)
	dstGlobal := transformedCloud(dst, poseD)
	found := icp.FindPairs(srcGlobal, dstGlobal, 0)
	if len(found) == 0 {
		return 0
	}
	kept, _ := icp.RejectOutliers(found, icpCfg.RejectSigmaK)
	return float64(len(kept)) / float64(len(found))
}
