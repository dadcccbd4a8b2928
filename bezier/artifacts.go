package bezier

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

// SaveB writes the Bézier control-point net format named in spec §6: a
// header line with degree and patch count, a "p" line per point, and a
// "c" line per patch listing its control-point indices in
// geom.BarycentricIndices order.
func SaveB(s *Shape, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "creating bezier file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	if _, err := fmt.Fprintf(w, "degree %d points %d patches %d\n", s.Degree, len(s.Points), len(s.Patches)); err != nil {
		return errs.Wrap(errs.IOError, err, "writing bezier file %q", path)
	}
	for _, p := range s.Points {
		if _, err := fmt.Fprintf(w, "p %.10g %.10g %.10g\n", p[0], p[1], p[2]); err != nil {
			return errs.Wrap(errs.IOError, err, "writing bezier file %q", path)
		}
	}
	for _, patch := range s.Patches {
		fields := make([]string, len(patch.CPIdx))
		for i, idx := range patch.CPIdx {
			fields[i] = strconv.Itoa(idx)
		}
		if _, err := fmt.Fprintf(w, "c %s\n", strings.Join(fields, " ")); err != nil {
			return errs.Wrap(errs.IOError, err, "writing bezier file %q", path)
		}
	}
	return w.Flush()
}

// LoadB reads the format written by SaveB and rebuilds the model's cached
// mass properties and ray-trace tree before returning.
func LoadB(path, frame string) (*Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "opening bezier file %q", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return nil, errs.New(errs.InputMalformed, "%q: empty bezier file", path)
	}
	header := strings.Fields(sc.Text())
	if len(header) != 6 || header[0] != "degree" || header[2] != "points" || header[4] != "patches" {
		return nil, errs.New(errs.InputMalformed, "%q: malformed bezier header", path)
	}
	degree, derr := strconv.Atoi(header[1])
	nPoints, perr := strconv.Atoi(header[3])
	nPatches, cerr := strconv.Atoi(header[5])
	if derr != nil || perr != nil || cerr != nil {
		return nil, errs.New(errs.InputMalformed, "%q: malformed bezier header counts", path)
	}

	s := &Shape{Frame: frame, Degree: degree}
	lineNo := 1
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "p":
			if len(fields) != 4 {
				return nil, errs.New(errs.InputMalformed, "line %d of %q: malformed point", lineNo, path)
			}
			var xyz [3]float64
			for i := 0; i < 3; i++ {
				v, e := strconv.ParseFloat(fields[i+1], 64)
				if e != nil {
					return nil, errs.Wrap(errs.InputMalformed, e, "line %d of %q: bad coordinate", lineNo, path)
				}
				xyz[i] = v
			}
			s.Points = append(s.Points, geom.Vec3{xyz[0], xyz[1], xyz[2]})
		case "c":
			idx := make([]int, len(fields)-1)
			for i, tok := range fields[1:] {
				v, e := strconv.Atoi(tok)
				if e != nil {
					return nil, errs.Wrap(errs.InputMalformed, e, "line %d of %q: bad control index", lineNo, path)
				}
				idx[i] = v
			}
			if len(idx) != geom.LatticeSize(degree) {
				return nil, errs.New(errs.InputMalformed, "line %d of %q: patch has %d control points, want %d for degree %d", lineNo, path, len(idx), geom.LatticeSize(degree), degree)
			}
			s.Patches = append(s.Patches, geom.Patch{Degree: degree, CPIdx: idx})
		default:
			return nil, errs.New(errs.InputMalformed, "line %d of %q: unknown record %q", lineNo, path, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "reading bezier file %q", path)
	}
	if len(s.Points) != nPoints || len(s.Patches) != nPatches {
		return nil, errs.New(errs.InputMalformed, "%q: header counts do not match body", path)
	}
	s.Recompute()
	return s, nil
}
