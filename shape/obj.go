package shape

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

// LoadOBJ reads the standard Wavefront .obj subset named in spec §6: "v"
// and "f" lines only. A face with a vertex count other than 3 fails the
// load with InputMalformed, since the model this package builds assumes a
// pure-triangle mesh throughout.
func LoadOBJ(path, frame string) (*Triangular, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "opening mesh file %q", path)
	}
	defer f.Close()

	var points []geom.Vec3
	var faces [][3]int
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, errs.New(errs.InputMalformed, "line %d of %q: malformed vertex", lineNo, path)
			}
			var xyz [3]float64
			for i := 0; i < 3; i++ {
				v, perr := strconv.ParseFloat(fields[i+1], 64)
				if perr != nil {
					return nil, errs.Wrap(errs.InputMalformed, perr, "line %d of %q: bad vertex coordinate", lineNo, path)
				}
				xyz[i] = v
			}
			points = append(points, geom.Vec3{xyz[0], xyz[1], xyz[2]})
		case "f":
			idxFields := fields[1:]
			if len(idxFields) != 3 {
				return nil, errs.New(errs.InputMalformed, "line %d of %q: face has %d vertices, mesh must be triangulated", lineNo, path, len(idxFields))
			}
			var tri [3]int
			for i, tok := range idxFields {
				tok = strings.SplitN(tok, "/", 2)[0]
				v, perr := strconv.Atoi(tok)
				if perr != nil {
					return nil, errs.Wrap(errs.InputMalformed, perr, "line %d of %q: bad face index", lineNo, path)
				}
				if v < 0 {
					v = len(points) + v + 1 // relative indexing
				}
				tri[i] = v - 1 // obj indices are 1-based
			}
			faces = append(faces, tri)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "reading mesh file %q", path)
	}
	return NewTriangular(frame, points, faces)
}

// SaveOBJ writes the model as a triangulated .obj (spec §6 "triangular
// .obj for a sampled representation").
func SaveOBJ(m *Triangular, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "creating mesh file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, p := range m.Points {
		if _, err := fmt.Fprintf(w, "v %.10g %.10g %.10g\n", p[0], p[1], p[2]); err != nil {
			return errs.Wrap(errs.IOError, err, "writing mesh file %q", path)
		}
	}
	for _, fc := range m.Facets {
		if _, err := fmt.Fprintf(w, "f %d %d %d\n", fc.V0+1, fc.V1+1, fc.V2+1); err != nil {
			return errs.Wrap(errs.IOError, err, "writing mesh file %q", path)
		}
	}
	return w.Flush()
}
