package kdtree

import "github.com/cpmech/smallbody/geom"

// RayElement is any surface element an ElementTree can traverse: a
// triangular facet or a Bézier patch, both owned by the shape model that
// built the tree (spec §4.1: "heterogeneous surface elements").
type RayElement interface {
	Vertexer
	// RayHit tests the ray against this element alone, returning the hit
	// distance and whether a hit occurred within the element's bounds.
	RayHit(origin, dir geom.Vec3) (t float64, ok bool)
}

type elementItem struct {
	el RayElement
}

func (e elementItem) Verts() []geom.Vec3 { return e.el.Verts() }

// ElementTree indexes a fixed set of surface elements for ray traversal
// (spec §4.1).
type ElementTree struct {
	root *node
	els  []RayElement
}

// BuildElementTree builds an immutable KD-tree over the given elements.
func BuildElementTree(elements []RayElement, cfg ...PointTreeConfig) *ElementTree {
	c := resolvePointCfg(cfg)
	items := make([]Vertexer, len(elements))
	idx := make([]int, len(elements))
	for i, e := range elements {
		items[i] = elementItem{el: e}
		idx[i] = i
	}
	return &ElementTree{
		root: build(items, idx, 0, buildConfig{MaxDepth: c.MaxDepth, ShareFractionStop: c.ShareFractionStop}),
		els:  elements,
	}
}

// RayIntersect traverses the tree per spec §4.1: at each node, test the
// ray against the node's bbox via the six-slab midpoint acceptance rule,
// recurse into both children when accepted, and at leaves test every
// owned element, keeping the closest hit. Returns whether any hit
// occurred; the ray's Range/Hit fields carry the result.
func (t *ElementTree) RayIntersect(r *geom.Ray) bool {
	if t.root == nil {
		return false
	}
	var visit func(n *node)
	visit = func(n *node) {
		if n == nil {
			return
		}
		ts, ok := n.Box.SlabIntersect(r.Origin, r.Dir)
		if !ok || !geom.HitsBox(n.Box, r.Origin, r.Dir, ts, r.Range) {
			return
		}
		if n.isLeaf() {
			for _, i := range n.Items {
				if hitT, hit := t.els[i].RayHit(r.Origin, r.Dir); hit {
					r.Offer(hitT)
				}
			}
			return
		}
		visit(n.Left)
		visit(n.Right)
	}
	visit(t.root)
	return r.Hit
}

// Elements returns the underlying element slice in build order, so a
// caller can map a ray hit back to the element it struck by re-running a
// leaf-local test, or via a hit-tracking wrapper element.
func (t *ElementTree) Elements() []RayElement { return t.els }
