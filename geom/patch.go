package geom

// LatticeSize returns (n+1)(n+2)/2, the number of control points in a
// degree-n triangular Bézier patch (spec §3 "Bézier triangular patch of
// degree n").
func LatticeSize(n int) int {
	return (n + 1) * (n + 2) / 2
}

// BarycentricIndices enumerates the lattice {(i,j,k): i+j+k=n} in a fixed,
// deterministic order (i major, j minor) so that patches of the same
// degree always agree on control-point ordering.
func BarycentricIndices(n int) [][3]int {
	out := make([][3]int, 0, LatticeSize(n))
	for i := 0; i <= n; i++ {
		for j := 0; j <= n-i; j++ {
			k := n - i - j
			out = append(out, [3]int{i, j, k})
		}
	}
	return out
}

// LatticeIndex returns the position of tuple (i,j,k) within the ordering
// produced by BarycentricIndices(i+j+k).
func LatticeIndex(i, j, k int) int {
	n := i + j + k
	// number of tuples with first coordinate < i is sum_{a=0}^{i-1}(n-a+1)
	pos := 0
	for a := 0; a < i; a++ {
		pos += n - a + 1
	}
	return pos + j
}

// Patch is a degree-n triangular Bézier patch: its control points are
// referenced by stable index into the owning shape model's arena, in the
// canonical BarycentricIndices(n) order (spec §9 arena-plus-index scheme).
type Patch struct {
	Degree int
	CPIdx  []int // len == LatticeSize(Degree)
}

// CPAt returns the arena index of the control point at barycentric
// position (i,j,k).
func (p *Patch) CPAt(i, j, k int) int {
	return p.CPIdx[LatticeIndex(i, j, k)]
}
