package cloud

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

func sphereCloud(n int) *Cloud {
	c := New("sphere")
	for i := 0; i < n; i++ {
		theta := math.Pi * float64(i) / float64(n)
		phi := 2 * math.Pi * float64(i) * 0.61803398875
		pos := geom.Vec3{math.Sin(theta) * math.Cos(phi), math.Sin(theta) * math.Sin(phi), math.Cos(theta)}
		c.Append(geom.NewPoint(pos, pos))
	}
	return c
}

func TestTransformInvalidatesTree(t *testing.T) {
	c := sphereCloud(50)
	c.BuildTree()
	idx, _, _ := c.Nearest(geom.Vec3{1, 0, 0})
	before := c.Points[idx].Pos

	c.Transform(geom.Identity3(), geom.Vec3{10, 0, 0})
	idx2, _, _ := c.Nearest(geom.Vec3{11, 0, 0})
	after := c.Points[idx2].Pos

	if math.Abs(after[0]-before[0]-10) > 1e-9 {
		t.Fatalf("nearest query after transform used stale tree: before=%v after=%v", before, after)
	}
}

func TestMergeRetainsBudget(t *testing.T) {
	a := sphereCloud(100)
	b := sphereCloud(100)
	m := Merge([]*Cloud{a, b}, 50)
	if m.Size() > 50 {
		t.Fatalf("merge must respect retained budget, got %d", m.Size())
	}
	if m.Size() == 0 {
		t.Fatal("merge of non-empty clouds must not be empty")
	}
}

func TestLoadXYZNRoundTrip(t *testing.T) {
	c := sphereCloud(20)
	path := filepath.Join(t.TempDir(), "cloud.xyzn")
	if err := SaveXYZN(c, path, nil, nil); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadXYZN(path, "reloaded")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != c.Size() {
		t.Fatalf("expected %d points, got %d", c.Size(), loaded.Size())
	}
}

func TestLoadXYZNSkipsAllNaNRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xyzn")
	content := "1 2 3\nnan nan nan\n4 5 6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadXYZN(path, "x")
	if err != nil {
		t.Fatal(err)
	}
	if c.Size() != 2 {
		t.Fatalf("expected the all-NaN row to be dropped, got %d points", c.Size())
	}
}

func TestLoadXYZNMissingFile(t *testing.T) {
	_, err := LoadXYZN("/does/not/exist.xyzn", "x")
	if !errs.Is(err, errs.IOError) {
		t.Fatalf("expected IOError, got %v", err)
	}
}
