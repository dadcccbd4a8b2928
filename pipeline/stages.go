package pipeline

import (
	"context"

	"github.com/cpmech/smallbody/attitude"
	"github.com/cpmech/smallbody/bezier"
	"github.com/cpmech/smallbody/bundle"
	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/feature"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/icp"
	"github.com/cpmech/smallbody/orbit"
)

// icpResult pairs a registration outcome with the two cloud indices it
// relates, since pairwise registration runs over a sequence of clouds
// rather than a single pair.
type icpResult struct {
	Src, Dst int
	icp.Result
}

// runFeatures computes and attaches SPFH/FPFH descriptors to every
// point in every cloud (spec §4.3), then flags near-mean "common"
// features. Descriptors feed diagnostics and any downstream re-weighting
// of correspondence search; a cloud with too few points for a meaningful
// neighborhood is simply left with empty descriptors rather than
// aborting the run, since C4's output is advisory, not a hard input to
// C5's own independent correspondence search.
func (r *Run) runFeatures(in Inputs) {
	r.msg("> Computing point feature histograms\n")
	for _, c := range in.Clouds {
		c.BuildTree()
		bbDiag := boundingDiagonal(c)
		radius := 0.05 * bbDiag
		if radius <= 0 {
			continue
		}
		spfhs := make([][]float64, c.Size())
		for i := 0; i < c.Size(); i++ {
			p := c.At(i)
			neighborIdx := c.RadiusNeighbors(p.Pos, radius)
			neighbors := make([]geom.Point, 0, len(neighborIdx))
			for _, ni := range neighborIdx {
				neighbors = append(neighbors, c.At(ni))
			}
			spfhs[i] = feature.SPFH(p, neighbors)
		}
		for i := 0; i < c.Size(); i++ {
			p := c.At(i)
			neighborIdx := c.RadiusNeighbors(p.Pos, radius)
			neighborSPFH := make([][]float64, 0, len(neighborIdx))
			neighborDist := make([]float64, 0, len(neighborIdx))
			for _, ni := range neighborIdx {
				neighborSPFH = append(neighborSPFH, spfhs[ni])
				neighborDist = append(neighborDist, p.Pos.Sub(c.At(ni).Pos).Norm())
			}
			c.Points[i].Desc = feature.FPFH(spfhs[i], neighborSPFH, neighborDist)
		}
		mean := c.MeanDescriptor()
		feature.DisableCommonFeatures(c.Points, mean, 1.5)
	}
}

func boundingDiagonal(c *cloud.Cloud) float64 {
	if c.Size() == 0 {
		return 0
	}
	b := geom.EmptyBBox()
	for i := 0; i < c.Size(); i++ {
		b.ExpandPoint(c.At(i).Pos)
	}
	return b.Max.Sub(b.Min).Norm()
}

// runRegistration pairwise-aligns every consecutive cloud in acquisition
// order via ICP (spec §4.4), seeding each alignment from identity. A
// cloud that fails to register against its predecessor is recoverable:
// it is skipped and the next pair still attempts its own alignment,
// since bundle adjustment's back-scan/loop-closure search (spec §4.5)
// can still connect the graph without every sequential edge present.
func (r *Run) runRegistration(ctx context.Context, in Inputs) error {
	if len(in.Clouds) < 2 {
		return errs.New(errs.InputMalformed, "pipeline: registration needs at least 2 clouds, got %d", len(in.Clouds))
	}
	r.msg("> Registering %d flash clouds\n", len(in.Clouds))
	for i := 0; i+1 < len(in.Clouds); i++ {
		res, err := icp.Align(ctx, in.Clouds[i+1], in.Clouds[i], r.Cfg.ICP, nil, nil)
		if err != nil {
			if errs.Is(err, errs.Cancelled) {
				return err
			}
			r.logRecoverable("icp", err)
			continue
		}
		r.Registered = append(r.Registered, icpResult{Src: i + 1, Dst: i, Result: res})
	}
	return nil
}

// runBundleAdjustment seeds one pose per cloud from the sequential ICP
// chain (a copy of the predecessor's pose, i.e. an identity relative
// transform, for any cloud whose edge to its predecessor failed to
// register) and globally refines them (spec §4.5).
func (r *Run) runBundleAdjustment(ctx context.Context, in Inputs) error {
	n := len(in.Clouds)
	poses := make([]bundle.Pose, n)
	poses[0] = bundle.Pose{M: geom.Identity3()}
	chain := make(map[int]icp.Result, len(r.Registered))
	for _, rr := range r.Registered {
		chain[rr.Src] = rr.Result
	}
	for i := 1; i < n; i++ {
		res, ok := chain[i]
		prev := poses[i-1]
		if !ok {
			poses[i] = prev
			continue
		}
		// res.M,res.X map cloud i's local frame into cloud i-1's frame;
		// compose with cloud i-1's anchor-relative pose.
		poses[i] = bundle.Pose{
			M: prev.M.Mul(res.M),
			X: prev.M.MulVec(res.X).Add(prev.X),
		}
	}

	r.msg("> Running global bundle adjustment over %d poses\n", n)
	res, err := bundle.Adjust(ctx, in.Clouds, poses, in.FlyoverPairs, r.Cfg.BA, r.Cfg.ICP)
	if err != nil {
		return err
	}
	r.Bundle = res
	return nil
}

// runAttitude runs the batch attitude estimator when measurements are
// supplied (spec §4.6); absence of measurements is not an error, since
// not every run includes a star-tracker/gyro data stream.
func (r *Run) runAttitude(ctx context.Context, in Inputs) error {
	if len(in.Measurements) == 0 {
		return nil
	}
	r.msg("> Estimating attitude from %d measurements\n", len(in.Measurements))
	res, err := attitude.Estimate(ctx, in.Inertia, in.LN0, in.Measurements, r.Cfg.Attitude)
	if err != nil {
		return err
	}
	r.Attitude = &res
	return nil
}

// runOrbitDetermination fits Keplerian elements to the bundle-adjusted
// pose chain (spec §4.7): IOD needs the bundle stage's refined poses, so
// it is skipped (not a fatal error) when that stage produced fewer than
// two poses or when in.Times does not hold exactly one timestamp per pose.
func (r *Run) runOrbitDetermination(ctx context.Context, in Inputs) error {
	if len(r.Bundle.Poses) < 2 || len(in.Times) != len(r.Bundle.Poses) {
		return errs.New(errs.ConvergenceFailed, "pipeline: orbit determination needs a bundle-adjusted pose per timestamp")
	}
	r.msg("> Running particle-swarm initial orbit determination\n")
	res, err := orbit.Find(ctx, in.Times, r.Bundle.Poses, in.OrbitGuess, r.Cfg.IOD)
	if err != nil {
		return err
	}
	r.Orbit = res
	return nil
}

// runShape lifts the seed triangular mesh into a degree-elevated Bézier
// net (spec §4.9/§4.10); both the triangular and Bézier models are
// cached on the Run for downstream artifact export.
func (r *Run) runShape(in Inputs) error {
	if in.SeedMesh == nil {
		return errs.New(errs.InputMalformed, "pipeline: no seed mesh supplied for shape reconstruction")
	}
	r.msg("> Building shape model\n")
	r.Triangular = in.SeedMesh
	s, err := bezier.NewFromTriangular(in.SeedMesh, r.Cfg.Shape.BezierDegree)
	if err != nil {
		return err
	}
	r.Bezier = s
	return nil
}
