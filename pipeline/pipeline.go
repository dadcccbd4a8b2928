// Package pipeline orchestrates the end-to-end reconstruction-and-
// navigation run: flash-cloud feature extraction, pairwise registration,
// global bundle adjustment, batch attitude estimation, initial orbit
// determination, and the triangular-to-Bézier shape lift, in the order
// spec §1 lays the components out (C3->C5->C6->{C7,C8}->C9->C10). Mirrors
// the teacher's fem.FEM: a struct carrying the run configuration and a
// verbose-message flag, a stage sequence that keeps going after a
// recoverable per-stage error and stops at the first fatal one (spec
// §7).
package pipeline

import (
	"context"
	"time"

	"github.com/cpmech/gosl/io"

	"github.com/cpmech/smallbody/attitude"
	"github.com/cpmech/smallbody/bezier"
	"github.com/cpmech/smallbody/bundle"
	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/orbit"
	"github.com/cpmech/smallbody/shape"
)

// Inputs bundles everything a Run needs that isn't part of Config: the
// flash clouds in acquisition order, their acquisition times, a fly-over
// map of additional loop-closure pairs for bundle adjustment, the seed
// mesh to lift into a Bézier net, the rigid-body inertia tensor and
// initial lidar-to-inertial DCM for attitude estimation, an optional
// attitude measurement set (nil skips C7), and an initial orbit-element
// guess for C8.
type Inputs struct {
	Clouds       []*cloud.Cloud
	Times        []float64
	FlyoverPairs [][2]int
	SeedMesh     *shape.Triangular
	Inertia      geom.Mat3
	LN0          geom.Mat3
	Measurements []attitude.Measurement
	OrbitGuess   orbit.Elements
}

// Run holds the configuration and progress-message flag threaded through
// every stage (spec §9: "an explicit configuration struct", replacing the
// teacher's macro constants), and accumulates each stage's output.
type Run struct {
	Cfg     *config.Config
	ShowMsg bool

	Registered  []icpResult
	Bundle      bundle.Result
	Attitude    *attitude.Result
	Orbit       orbit.Result
	Triangular  *shape.Triangular
	Bezier      *bezier.Shape
	Diagnostics []string
}

// New returns a Run with the given configuration.
func New(cfg *config.Config, showMsg bool) *Run {
	return &Run{Cfg: cfg, ShowMsg: showMsg}
}

func (r *Run) msg(format string, args ...interface{}) {
	if r.ShowMsg {
		io.Pf(format, args...)
	}
}

// logRecoverable records a non-fatal stage failure and continues (spec
// §7: "a single diagnostic line per recoverable event, continue with the
// next independent unit of work").
func (r *Run) logRecoverable(stage string, err error) {
	line := "> " + stage + ": " + errs.Diagnostic(err)
	r.Diagnostics = append(r.Diagnostics, line)
	if r.ShowMsg {
		io.PfRed(line + "\n")
	}
}

// Execute runs every stage in order, stopping at the first fatal error
// (InputMalformed or IOError) and otherwise continuing with whatever
// downstream stage can still proceed with partial results.
func (r *Run) Execute(ctx context.Context, in Inputs) (err error) {
	start := time.Now()
	defer func() { r.onExit(start, err) }()

	r.msg("> Starting reconstruction-and-navigation run\n")

	r.runFeatures(in)

	if err = r.runRegistration(ctx, in); err != nil {
		return err
	}
	if err = r.runBundleAdjustment(ctx, in); err != nil {
		return err
	}
	if aerr := r.runAttitude(ctx, in); aerr != nil {
		if errs.Is(aerr, errs.InputMalformed) {
			return aerr
		}
		r.logRecoverable("attitude", aerr)
	}
	if oerr := r.runOrbitDetermination(ctx, in); oerr != nil {
		if errs.Is(oerr, errs.InputMalformed) {
			return oerr
		}
		r.logRecoverable("orbit", oerr)
	}
	if err = r.runShape(in); err != nil {
		return err
	}
	return nil
}

func (r *Run) onExit(start time.Time, prevErr error) {
	if !r.ShowMsg {
		return
	}
	if prevErr == nil {
		io.PfGreen("> Success\n")
	} else {
		io.PfRed("> Failed: %v\n", prevErr)
	}
	io.Pf("> Elapsed = %v\n", time.Since(start))
}
