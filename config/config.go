// Package config holds the explicit configuration struct threaded through
// every constructor in this module, replacing the macro-constant globals
// the teacher's source pattern otherwise invites (spec §9).
package config

import (
	"encoding/json"
	"os"

	"github.com/cpmech/smallbody/errs"
)

// LidarConfig describes the (externally emulated) focal-plane flash
// geometry and noise model. The flash emulator itself is out of scope
// (spec §1); this struct only carries the parameters downstream components
// need to interpret a flash's noise characteristics.
type LidarConfig struct {
	RowsPx          int     `json:"rows_px"`           // focal-plane row resolution
	ColsPx          int     `json:"cols_px"`           // focal-plane column resolution
	FovDeg          float64 `json:"fov_deg"`            // full field of view, degrees
	FocalLengthM    float64 `json:"focal_length_m"`     // focal length, meters
	FlashHz         float64 `json:"flash_hz"`           // flash frequency
	LosNoiseBaseM   float64 `json:"los_noise_base_m"`   // baseline line-of-sight noise sigma, meters
	LosNoiseRangeK  float64 `json:"los_noise_range_k"`  // range-proportional noise coefficient (dimensionless)
}

// ICPConfig parameters for the rigid point-cloud registration engine (C5).
type ICPConfig struct {
	MaxIterations   int     `json:"max_iterations"`
	Tolerance       float64 `json:"tolerance"`        // on ||delta|| of the 6-vector update
	RejectSigmaK    float64 `json:"reject_sigma_k"`   // MAD-based robust trim multiplier
	MinPairs        int     `json:"min_pairs"`        // below this count -> NoCorrespondences
	SubsampleLevels int     `json:"subsample_levels"` // max h; pair search down-samples by 2^h
}

// BAConfig parameters for the bundle adjuster (C6).
type BAConfig struct {
	Iterations               int     `json:"iterations"`
	RidgeCoefficient         float64 `json:"ridge_coefficient"` // fixed regularization added to the normal-equation diagonal
	LoopClosureEnabled       bool    `json:"loop_closure_enabled"`
	MinSequentialOverlapFrac float64 `json:"min_sequential_overlap_frac"`
	GroundAnchorIndex        int     `json:"ground_anchor_index"` // -1 means "use cloud 0"
}

// AttitudeConfig parameters for the batch attitude estimator (C7).
type AttitudeConfig struct {
	Iterations      int     `json:"iterations"`
	InitialMRPGauge float64 `json:"initial_mrp_gauge"` // information-matrix weight on sigma0, e.g. 1e10
	RKCKRelTol      float64 `json:"rkck_rel_tol"`
	RKCKAbsTol      float64 `json:"rkck_abs_tol"`
	RKCKInitialStep float64 `json:"rkck_initial_step"`
	ProcessNoiseVel float64 `json:"process_noise_vel"`
	ProcessNoiseOm  float64 `json:"process_noise_om"`
}

// IODConfig parameters for the particle-swarm initial-orbit-determination
// finder (C8).
type IODConfig struct {
	NumParticles int     `json:"num_particles"`
	Iterations   int     `json:"iterations"`
	InertiaW     float64 `json:"inertia_w"`
	CognitiveC1  float64 `json:"cognitive_c1"`
	SocialC2     float64 `json:"social_c2"`
}

// ShapeConfig parameters for triangular/Bézier shape modeling (C9/C10).
type ShapeConfig struct {
	BezierDegree       int     `json:"bezier_degree"`        // default 2
	ContainsTolerance  float64 `json:"contains_tolerance"`   // meters
	RayNewtonTol       float64 `json:"ray_newton_tol"`       // barycentric Newton residual tolerance
	RayNewtonMaxIter   int     `json:"ray_newton_max_iter"`  // <= 10 per spec
	MonteCarloRayCount int     `json:"monte_carlo_ray_count"`
}

// KDTreeConfig parameters shared by both KD-tree instantiations (C2).
type KDTreeConfig struct {
	MaxDepth          int     `json:"max_depth"`           // 1000 per spec
	ShareFractionStop float64 `json:"share_fraction_stop"` // 0.5 per spec
}

// Config is the single struct threaded through every constructor in this
// module (spec §9: "replace [macro constants] with an explicit
// configuration struct").
type Config struct {
	Lidar    LidarConfig    `json:"lidar"`
	ICP      ICPConfig      `json:"icp"`
	BA       BAConfig       `json:"ba"`
	Attitude AttitudeConfig `json:"attitude"`
	IOD      IODConfig      `json:"iod"`
	Shape    ShapeConfig    `json:"shape"`
	KDTree   KDTreeConfig   `json:"kdtree"`
}

// Default returns a configuration with the illustrative values from spec §6.
func Default() *Config {
	return &Config{
		Lidar: LidarConfig{
			RowsPx: 256, ColsPx: 256, FovDeg: 20, FocalLengthM: 0.05,
			FlashHz: 1.0, LosNoiseBaseM: 0.01, LosNoiseRangeK: 1e-4,
		},
		ICP: ICPConfig{
			MaxIterations: 50, Tolerance: 1e-8, RejectSigmaK: 3.0,
			MinPairs: 10, SubsampleLevels: 0,
		},
		BA: BAConfig{
			Iterations: 10, RidgeCoefficient: 1e-6, LoopClosureEnabled: true,
			MinSequentialOverlapFrac: 0.3, GroundAnchorIndex: -1,
		},
		Attitude: AttitudeConfig{
			Iterations: 5, InitialMRPGauge: 1e10, RKCKRelTol: 1e-10,
			RKCKAbsTol: 1e-12, RKCKInitialStep: 1.0,
			ProcessNoiseVel: 1e-8, ProcessNoiseOm: 1e-8,
		},
		IOD: IODConfig{
			NumParticles: 500, Iterations: 200, InertiaW: 0.7298,
			CognitiveC1: 1.49618, SocialC2: 1.49618,
		},
		Shape: ShapeConfig{
			BezierDegree: 2, ContainsTolerance: 1e-9, RayNewtonTol: 1e-10,
			RayNewtonMaxIter: 10, MonteCarloRayCount: 100000,
		},
		KDTree: KDTreeConfig{MaxDepth: 1000, ShareFractionStop: 0.5},
	}
}

// Validate rejects structurally invalid configuration, returning
// errs.InputMalformed (fatal per spec §7).
func (c *Config) Validate() error {
	switch {
	case c.Shape.BezierDegree < 1:
		return errs.New(errs.InputMalformed, "unsupported bezier degree %d", c.Shape.BezierDegree)
	case c.Shape.ContainsTolerance < 0:
		return errs.New(errs.InputMalformed, "negative contains tolerance %g", c.Shape.ContainsTolerance)
	case c.KDTree.MaxDepth <= 0:
		return errs.New(errs.InputMalformed, "kdtree max depth must be positive, got %d", c.KDTree.MaxDepth)
	case c.KDTree.ShareFractionStop <= 0 || c.KDTree.ShareFractionStop > 1:
		return errs.New(errs.InputMalformed, "kdtree share-fraction-stop must be in (0,1], got %g", c.KDTree.ShareFractionStop)
	case c.ICP.MaxIterations <= 0:
		return errs.New(errs.InputMalformed, "icp max iterations must be positive")
	case c.BA.Iterations <= 0:
		return errs.New(errs.InputMalformed, "ba iterations must be positive")
	case c.IOD.NumParticles <= 0 || c.IOD.Iterations <= 0:
		return errs.New(errs.InputMalformed, "iod particle count and iterations must be positive")
	case c.Lidar.LosNoiseBaseM < 0 || c.Lidar.LosNoiseRangeK < 0:
		return errs.New(errs.InputMalformed, "lidar noise coefficients must be non-negative")
	}
	return nil
}

// Load reads a JSON configuration file by unmarshaling it onto Default(),
// so any field absent from the file keeps its default value, and then
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "reading config %q", path)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.InputMalformed, err, "parsing config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
