// Command smallbody runs the reconstruction-and-navigation pipeline over a
// seed mesh and a directory of flash clouds, mirroring the teacher's
// single-binary, single-filename-argument CLI shape (no MPI, no .sim
// stage file: this module has one fixed stage sequence, not a configurable
// simulation graph).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cpmech/gosl/io"

	"github.com/cpmech/smallbody/bezier"
	"github.com/cpmech/smallbody/bundle"
	"github.com/cpmech/smallbody/cloud"
	"github.com/cpmech/smallbody/config"
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/orbit"
	"github.com/cpmech/smallbody/pipeline"
	"github.com/cpmech/smallbody/shape"
)

func main() {
	meshPath := flag.String("mesh", "", "seed triangular mesh (.obj)")
	cloudsDir := flag.String("clouds", "", "directory of flash clouds (*.xyzn, sorted by name = acquisition order)")
	cfgPath := flag.String("config", "", "JSON configuration file (defaults to config.Default())")
	outDir := flag.String("out", ".", "output directory for shape/connectivity artifacts")
	quiet := flag.Bool("quiet", false, "suppress progress messages")
	flag.Parse()

	if *meshPath == "" || *cloudsDir == "" {
		io.PfRed("ERROR: -mesh and -clouds are required\n")
		flag.Usage()
		os.Exit(2)
	}

	code := run(*meshPath, *cloudsDir, *cfgPath, *outDir, !*quiet)
	os.Exit(code)
}

// run wires the CLI flags into a pipeline.Run and reports the spec §6 exit
// semantics: zero on success, nonzero with a one-line diagnostic on any
// fatal error.
func run(meshPath, cloudsDir, cfgPath, outDir string, showMsg bool) int {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		io.PfRed("ERROR: %v\n", err)
		return 1
	}

	mesh, err := shape.LoadOBJ(meshPath, "seed")
	if err != nil {
		io.PfRed("ERROR: %v\n", err)
		return 1
	}

	clouds, times, err := loadClouds(cloudsDir)
	if err != nil {
		io.PfRed("ERROR: %v\n", err)
		return 1
	}

	in := pipeline.Inputs{
		Clouds:     clouds,
		Times:      times,
		SeedMesh:   mesh,
		OrbitGuess: orbit.Elements{A: 1000, E: 0.01, Mu: 4e2},
	}

	r := pipeline.New(cfg, showMsg)
	ctx := context.Background()
	if err := r.Execute(ctx, in); err != nil {
		io.PfRed("ERROR: %v\n", err)
		return 1
	}

	if err := writeArtifacts(r, outDir); err != nil {
		io.PfRed("ERROR: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadClouds reads every *.xyzn file in dir, sorted by filename, as the
// flash acquisition order; the acquisition time of each flash is its
// index (no flash-emulator timestamp metadata is in scope, spec §4 Non-goals).
func loadClouds(dir string) ([]*cloud.Cloud, []float64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errs.Wrap(errs.IOError, err, "reading cloud directory %q", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".xyzn" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	clouds := make([]*cloud.Cloud, 0, len(names))
	times := make([]float64, 0, len(names))
	for i, name := range names {
		c, err := cloud.LoadXYZN(filepath.Join(dir, name), name)
		if err != nil {
			return nil, nil, err
		}
		clouds = append(clouds, c)
		times = append(times, float64(i))
	}
	return clouds, times, nil
}

func writeArtifacts(r *pipeline.Run, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errs.Wrap(errs.IOError, err, "creating output directory %q", outDir)
	}
	if r.Triangular != nil {
		if err := shape.SaveOBJ(r.Triangular, filepath.Join(outDir, "shape.obj")); err != nil {
			return err
		}
	}
	if r.Bezier != nil {
		if err := bezier.SaveB(r.Bezier, filepath.Join(outDir, "shape.b")); err != nil {
			return err
		}
	}
	if r.Bundle.Connectivity.N > 0 {
		if err := bundle.SaveConnectivity(r.Bundle.Connectivity, filepath.Join(outDir, "connectivity.txt")); err != nil {
			return err
		}
	}
	for _, line := range r.Diagnostics {
		fmt.Println(line)
	}
	return nil
}
