// Package cloud implements the owning point-cloud container: an ordered
// sequence of oriented points with a label, a lazily rebuilt KD-tree, and
// a cached mean descriptor (spec §3 "Point cloud", §4.2).
package cloud

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
	"github.com/cpmech/smallbody/kdtree"
)

// Cloud owns one flash's worth of oriented points. The tree, once built,
// reflects the current point positions; any Transform call invalidates it
// (spec §3 invariant). One Cloud exists per lidar flash and is retained
// for the run (spec §3 lifetime).
type Cloud struct {
	Label  string
	Points []geom.Point

	tree       *kdtree.PointTree
	treeStale  bool
	meanDesc   []float64
	meanValid  bool
}

// New returns an empty, labeled cloud.
func New(label string) *Cloud {
	return &Cloud{Label: label, treeStale: true}
}

// Size returns the number of points.
func (c *Cloud) Size() int { return len(c.Points) }

// At returns the point at index i.
func (c *Cloud) At(i int) geom.Point { return c.Points[i] }

// Append inserts an oriented point and marks the tree and mean descriptor
// stale.
func (c *Cloud) Append(p geom.Point) {
	c.Points = append(c.Points, p)
	c.treeStale = true
	c.meanValid = false
}

// Transform applies a rigid transform to every point in place, per spec
// §4.2 "full in-place rigid transform". Invalidates the tree.
func (c *Cloud) Transform(m geom.Mat3, x geom.Vec3) {
	for i := range c.Points {
		c.Points[i] = c.Points[i].Transformed(m, x)
	}
	c.treeStale = true
}

// BuildTree (re)builds the KD-tree over the cloud's current positions.
// Query methods call it through ensureTree whenever a Transform/Append has
// left the tree stale, so they never return neighbors computed against
// moved points; calling it directly only builds the tree ahead of time.
func (c *Cloud) BuildTree() {
	positions := make([]geom.Vec3, len(c.Points))
	for i, p := range c.Points {
		positions[i] = p.Pos
	}
	c.tree = kdtree.BuildPointTree(positions)
	c.treeStale = false
}

// ensureTree rebuilds the tree transparently if it is stale, so query
// methods never hand back results computed against moved points.
func (c *Cloud) ensureTree() {
	if c.treeStale || c.tree == nil {
		c.BuildTree()
	}
}

// Nearest returns the index of, and squared distance to, the cloud point
// closest to q.
func (c *Cloud) Nearest(q geom.Vec3) (idx int, distSq float64, ok bool) {
	c.ensureTree()
	return c.tree.Nearest(q)
}

// KNearest returns the k closest cloud points as a map from squared
// distance to index (spec §4.2).
func (c *Cloud) KNearest(q geom.Vec3, k int) map[float64]int {
	c.ensureTree()
	return c.tree.KNearest(q, k)
}

// RadiusNeighbors returns indices of every point within r of q.
func (c *Cloud) RadiusNeighbors(q geom.Vec3, r float64) []int {
	c.ensureTree()
	return c.tree.RadiusNeighbors(q, r)
}

// MeanDescriptor returns the element-wise mean of every point's
// descriptor histogram, caching the result until the next Append.
func (c *Cloud) MeanDescriptor() []float64 {
	if c.meanValid {
		return c.meanDesc
	}
	var dim int
	for _, p := range c.Points {
		if len(p.Desc) > dim {
			dim = len(p.Desc)
		}
	}
	mean := make([]float64, dim)
	if len(c.Points) == 0 {
		c.meanDesc, c.meanValid = mean, true
		return mean
	}
	for _, p := range c.Points {
		for i, v := range p.Desc {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(c.Points))
	}
	c.meanDesc, c.meanValid = mean, true
	return mean
}

// Merge sub-samples uniformly across the given clouds to produce a combined
// cloud with at most `retained` points (spec §4.2 "Merge constructor").
func Merge(clouds []*Cloud, retained int) *Cloud {
	out := New("merged")
	total := 0
	for _, c := range clouds {
		total += c.Size()
	}
	if total == 0 || retained <= 0 {
		return out
	}
	if retained >= total {
		for _, c := range clouds {
			out.Points = append(out.Points, c.Points...)
		}
		out.treeStale = true
		return out
	}
	stride := float64(total) / float64(retained)
	taken := 0.0
	seen := 0
	for _, c := range clouds {
		for _, p := range c.Points {
			if float64(seen) >= taken {
				out.Points = append(out.Points, p)
				taken += stride
			}
			seen++
		}
	}
	out.treeStale = true
	return out
}

// LoadXYZN reads a whitespace-separated xyz(+nxnynz) point file (spec §4.2
// / §6). A row is kept iff at least one of its parsed fields is non-NaN.
func LoadXYZN(path, label string) (*Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "opening point cloud file %q", path)
	}
	defer f.Close()

	c := New(label)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errs.New(errs.IOError, "line %d of %q: expected at least 3 fields, got %d", lineNo, path, len(fields))
		}
		vals := make([]float64, len(fields))
		anyValid := false
		for i, f := range fields {
			v, perr := strconv.ParseFloat(f, 64)
			if perr != nil {
				v = math.NaN()
			}
			vals[i] = v
			if !math.IsNaN(v) {
				anyValid = true
			}
		}
		if !anyValid {
			continue
		}
		pos := geom.Vec3{vals[0], vals[1], vals[2]}
		normal := geom.Vec3{}
		if len(vals) >= 6 {
			normal = geom.Vec3{vals[3], vals[4], vals[5]}
		}
		c.Append(geom.NewPoint(pos, normal))
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "reading point cloud file %q", path)
	}
	return c, nil
}

// SaveXYZN writes the cloud in the spec §6 point-cloud output format,
// optionally pre-applying a rigid transform.
func SaveXYZN(c *Cloud, path string, m *geom.Mat3, x *geom.Vec3) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "creating point cloud file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, p := range c.Points {
		q := p
		if m != nil && x != nil {
			q = p.Transformed(*m, *x)
		}
		if _, err := fmt.Fprintf(w, "%.10g %.10g %.10g %.10g %.10g %.10g\n",
			q.Pos[0], q.Pos[1], q.Pos[2], q.Normal[0], q.Normal[1], q.Normal[2]); err != nil {
			return errs.Wrap(errs.IOError, err, "writing point cloud file %q", path)
		}
	}
	return nil
}
