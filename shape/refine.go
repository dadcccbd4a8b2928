package shape

import (
	"github.com/cpmech/smallbody/errs"
	"github.com/cpmech/smallbody/geom"
)

// SplitFacet subdivides facet idx into four children by inserting a new
// vertex at each edge midpoint (the standard 1-to-4 triangular
// refinement): three new control points and nine edges replace the
// parent's three, spec §4.8's exact "3 new vertices, 9 new edges" count
// for this operation. The parent facet slot is overwritten with the
// first child; three more are appended. Does not call Recompute; the
// caller batches refinement and recomputes once.
func (m *Triangular) SplitFacet(idx int) error {
	if idx < 0 || idx >= len(m.Facets) {
		return errs.New(errs.InputMalformed, "shape: facet index %d out of range", idx)
	}
	f := m.Facets[idx]
	v0, v1, v2 := m.Points[f.V0], m.Points[f.V1], m.Points[f.V2]

	m01 := len(m.Points)
	m.Points = append(m.Points, v0.Add(v1).Scale(0.5))
	m12 := len(m.Points)
	m.Points = append(m.Points, v1.Add(v2).Scale(0.5))
	m20 := len(m.Points)
	m.Points = append(m.Points, v2.Add(v0).Scale(0.5))

	m.Facets[idx] = geom.Facet{V0: f.V0, V1: m01, V2: m20}
	m.Facets = append(m.Facets,
		geom.Facet{V0: m01, V1: f.V1, V2: m12},
		geom.Facet{V0: m12, V1: f.V2, V2: m20},
		geom.Facet{V0: m01, V1: m12, V2: m20},
	)
	return nil
}

// MergeShrunkFacet collapses facet idx along the edge opposite its
// smallest-interior-angle vertex (spec §4.8): the edge's two endpoints
// are merged to their midpoint, every facet referencing either endpoint
// is repointed at the merged vertex, and any facet degenerating to a
// repeated-vertex triangle (the collapsed facet itself, and its neighbor
// across the collapsed edge, if present) is dropped. Reports false
// without modifying the model if idx is out of range or the facet is
// already degenerate.
func (m *Triangular) MergeShrunkFacet(idx int) (bool, error) {
	if idx < 0 || idx >= len(m.Facets) {
		return false, errs.New(errs.InputMalformed, "shape: facet index %d out of range", idx)
	}
	f := m.Facets[idx]
	p0, p1, p2 := m.Points[f.V0], m.Points[f.V1], m.Points[f.V2]
	smallest := geom.SmallestAngleVertex(p0, p1, p2)

	verts := [3]int{f.V0, f.V1, f.V2}
	pos := [3]geom.Vec3{p0, p1, p2}
	// the edge opposite the smallest-angle vertex joins the other two.
	a, b := (smallest+1)%3, (smallest+2)%3
	keep, drop := verts[a], verts[b]
	if keep == drop {
		return false, nil
	}
	merged := pos[a].Add(pos[b]).Scale(0.5)
	m.Points[keep] = merged

	kept := m.Facets[:0]
	for i, other := range m.Facets {
		if i == idx {
			continue
		}
		reindex := func(v int) int {
			if v == drop {
				return keep
			}
			return v
		}
		other.V0, other.V1, other.V2 = reindex(other.V0), reindex(other.V1), reindex(other.V2)
		if other.V0 == other.V1 || other.V1 == other.V2 || other.V0 == other.V2 {
			continue // degenerated by the collapse: the neighbor across the merged edge
		}
		kept = append(kept, other)
	}
	m.Facets = kept
	return true, nil
}
