package kdtree

import (
	"sort"

	"github.com/cpmech/smallbody/geom"
)

// pointItem adapts a single coordinate into the Vertexer interface so the
// shared build() core can treat points and elements uniformly.
type pointItem struct {
	pos geom.Vec3
}

func (p pointItem) Verts() []geom.Vec3 { return []geom.Vec3{p.pos} }

// PointTree indexes a fixed set of positions for nearest-neighbor,
// k-nearest, and radius queries (spec §4.1/§4.2).
type PointTree struct {
	root  *node
	items []Vertexer
	pos   []geom.Vec3
}

// BuildPointTree builds an immutable KD-tree over the given positions.
// Rebuild whenever the owning cloud's points move (spec §5: "KD-trees are
// immutable after build; rebuilds happen between iterations").
func BuildPointTree(positions []geom.Vec3, cfg ...PointTreeConfig) *PointTree {
	c := resolvePointCfg(cfg)
	items := make([]Vertexer, len(positions))
	idx := make([]int, len(positions))
	for i, p := range positions {
		items[i] = pointItem{pos: p}
		idx[i] = i
	}
	return &PointTree{
		root:  build(items, idx, 0, buildConfig{MaxDepth: c.MaxDepth, ShareFractionStop: c.ShareFractionStop}),
		items: items,
		pos:   positions,
	}
}

// PointTreeConfig mirrors config.KDTreeConfig without creating an import
// cycle between kdtree and config.
type PointTreeConfig struct {
	MaxDepth          int
	ShareFractionStop float64
}

func resolvePointCfg(cfg []PointTreeConfig) PointTreeConfig {
	if len(cfg) > 0 {
		return cfg[0]
	}
	d := defaultBuildConfig()
	return PointTreeConfig{MaxDepth: d.MaxDepth, ShareFractionStop: d.ShareFractionStop}
}

// Nearest returns the index of the closest indexed position to q and its
// squared distance. ok is false for an empty tree.
func (t *PointTree) Nearest(q geom.Vec3) (idx int, distSq float64, ok bool) {
	if t.root == nil {
		return 0, 0, false
	}
	best := -1
	bestD := 0.0
	var visit func(n *node)
	visit = func(n *node) {
		if n == nil {
			return
		}
		if n.isLeaf() {
			for _, i := range n.Items {
				d := t.pos[i].Sub(q).Dot(t.pos[i].Sub(q))
				if best == -1 || d < bestD {
					best, bestD = i, d
				}
			}
			return
		}
		// visit the child whose box is closer to q first (cheap ordering
		// heuristic; correctness does not depend on it, since a child is
		// skipped only when its box is no closer than the best point found).
		dl := boxDistSq(n.Left.Box, q)
		dr := boxDistSq(n.Right.Box, q)
		if dl <= dr {
			if best == -1 || dl < bestD {
				visit(n.Left)
			}
			if best == -1 || dr < bestD {
				visit(n.Right)
			}
		} else {
			if best == -1 || dr < bestD {
				visit(n.Right)
			}
			if best == -1 || dl < bestD {
				visit(n.Left)
			}
		}
	}
	visit(t.root)
	if best == -1 {
		return 0, 0, false
	}
	return best, bestD, true
}

func boxDistSq(b geom.BBox, q geom.Vec3) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		if q[i] < b.Min[i] {
			diff := b.Min[i] - q[i]
			d += diff * diff
		} else if q[i] > b.Max[i] {
			diff := q[i] - b.Max[i]
			d += diff * diff
		}
	}
	return d
}

// KNearest returns the k closest indexed positions, as a map from squared
// distance to index, matching spec §4.2's "k-nearest points (map
// distance->index)". Ties on distance overwrite one another in the map,
// which is the same tradeoff the spec's description implies.
func (t *PointTree) KNearest(q geom.Vec3, k int) map[float64]int {
	out := make(map[float64]int, k)
	if t.root == nil || k <= 0 {
		return out
	}
	type cand struct {
		idx int
		d   float64
	}
	var all []cand
	var collect func(n *node)
	collect = func(n *node) {
		if n == nil {
			return
		}
		if n.isLeaf() {
			for _, i := range n.Items {
				diff := t.pos[i].Sub(q)
				all = append(all, cand{i, diff.Dot(diff)})
			}
			return
		}
		collect(n.Left)
		collect(n.Right)
	}
	collect(t.root)
	sort.Slice(all, func(i, j int) bool { return all[i].d < all[j].d })
	seen := make(map[int]bool)
	for _, c := range all {
		if seen[c.idx] {
			continue
		}
		seen[c.idx] = true
		out[c.d] = c.idx
		if len(out) >= k {
			break
		}
	}
	return out
}

// RadiusNeighbors returns the indices of every indexed position within
// radius r of q.
func (t *PointTree) RadiusNeighbors(q geom.Vec3, r float64) []int {
	var out []int
	if t.root == nil {
		return out
	}
	r2 := r * r
	seen := make(map[int]bool)
	var visit func(n *node)
	visit = func(n *node) {
		if n == nil || boxDistSq(n.Box, q) > r2 {
			return
		}
		if n.isLeaf() {
			for _, i := range n.Items {
				if seen[i] {
					continue
				}
				diff := t.pos[i].Sub(q)
				if diff.Dot(diff) <= r2 {
					seen[i] = true
					out = append(out, i)
				}
			}
			return
		}
		visit(n.Left)
		visit(n.Right)
	}
	visit(t.root)
	return out
}
