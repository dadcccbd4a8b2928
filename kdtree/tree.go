// Package kdtree implements the spatial index shared by point-cloud
// registration, ray tracing, and nearest-neighbor queries (spec §4.1).
//
// A single build/traversal core is shared by the two instantiations named
// in spec §2 C2: PointTree (nearest-neighbor / radius / k-NN over oriented
// points) and ElementTree (ray traversal over triangular facets or Bézier
// patches). Both are built on top of the unexported node type in this
// file, following the teacher's "KD-tree immutable after build, rebuilt
// between iterations" discipline (spec §5).
package kdtree

import "github.com/cpmech/smallbody/geom"

// Vertexer is implemented by anything that can report the vertices used
// to decide which side of a split plane it falls on (spec §4.1: "an
// element is assigned to left/right based on whether any of its vertices
// lies on that side of the axis midpoint").
type Vertexer interface {
	Verts() []geom.Vec3
}

// node is the shared KD-tree node type. Internal nodes carry no element
// list (spec §3: "an internal node stores an empty element list and two
// children"); leaves carry the indices of the items they own.
type node struct {
	Box         geom.BBox
	Left, Right *node
	Items       []int // indices into the original item slice; empty on internal nodes
	Depth       int
}

// buildConfig bundles the two tunables named in spec §4.1.
type buildConfig struct {
	MaxDepth          int
	ShareFractionStop float64
}

func defaultBuildConfig() buildConfig {
	return buildConfig{MaxDepth: 1000, ShareFractionStop: 0.5}
}

// boxOf computes the precise bounding box of a set of items by their
// indices (spec §4.1: "Bounding boxes are computed precisely over each
// node's element set").
func boxOf(items []Vertexer, idx []int) geom.BBox {
	b := geom.EmptyBBox()
	for _, i := range idx {
		for _, v := range items[i].Verts() {
			b.ExpandPoint(v)
		}
	}
	return b
}

// classify reports whether any vertex of the item lies strictly below
// mid (onLow) and whether any lies at-or-above mid (onHigh). An element
// whose vertices are all exactly on the split plane is flagged degenerate:
// DESIGN.md resolves that open question by routing it to the side holding
// its centroid (left, by the same >=/< convention, when the centroid also
// lands exactly on the plane).
func classify(item Vertexer, axis int, mid float64) (onLow, onHigh, degenerate bool) {
	verts := item.Verts()
	allOnPlane := true
	for _, v := range verts {
		if v[axis] < mid {
			onLow = true
		} else {
			onHigh = true
		}
		if v[axis] != mid {
			allOnPlane = false
		}
	}
	degenerate = allOnPlane && len(verts) > 0
	return
}

// build constructs the tree recursively, following spec §4.1 exactly:
// median-axis split on the longest bbox axis; stop when >= shareFraction
// of elements are duplicated across children, when one element remains,
// or at maxDepth.
func build(items []Vertexer, idx []int, depth int, cfg buildConfig) *node {
	n := &node{Box: boxOf(items, idx), Depth: depth}
	if len(idx) <= 1 || depth >= cfg.MaxDepth {
		n.Items = idx
		return n
	}
	axis := n.Box.LongestAxis()
	mid := n.Box.Center()[axis]

	var lowIdx, highIdx []int
	for _, i := range idx {
		onLow, onHigh, degenerate := classify(items[i], axis, mid)
		switch {
		case degenerate:
			// all vertices lie exactly on the split plane: assign by
			// centroid, left on a further tie (DESIGN.md open question).
			// The centroid of an all-on-plane element is itself on the
			// plane, so this always resolves to "left".
			lowIdx = append(lowIdx, i)
		case onLow && onHigh:
			// genuinely straddles: appears on both sides (spec §4.1).
			lowIdx = append(lowIdx, i)
			highIdx = append(highIdx, i)
		case onHigh:
			highIdx = append(highIdx, i)
		default:
			lowIdx = append(lowIdx, i)
		}
	}

	shared := countShared(lowIdx, highIdx)
	total := len(idx)
	if total > 0 && float64(shared)/float64(total) >= cfg.ShareFractionStop {
		n.Items = idx
		return n
	}
	if len(lowIdx) == 0 || len(highIdx) == 0 {
		n.Items = idx
		return n
	}

	n.Left = build(items, lowIdx, depth+1, cfg)
	n.Right = build(items, highIdx, depth+1, cfg)
	return n
}

func countShared(a, b []int) int {
	set := make(map[int]bool, len(a))
	for _, i := range a {
		set[i] = true
	}
	shared := 0
	for _, i := range b {
		if set[i] {
			shared++
		}
	}
	return shared
}

// isLeaf reports whether n is a leaf node.
func (n *node) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}
