package geom

import "math"

// BBox is an axis-aligned bounding box (spec §3 "KD-tree node").
type BBox struct {
	Min, Max Vec3
}

// EmptyBBox returns a box primed for expansion via Expand/ExpandPoint.
func EmptyBBox() BBox {
	return BBox{
		Min: Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// ExpandPoint grows the box, if needed, to contain p.
func (b *BBox) ExpandPoint(p Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Expand grows the box to contain o.
func (b *BBox) Expand(o BBox) {
	b.ExpandPoint(o.Min)
	b.ExpandPoint(o.Max)
}

// LongestAxis returns 0, 1, or 2 for the box's longest dimension.
func (b BBox) LongestAxis() int {
	ext := b.Max.Sub(b.Min)
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	return axis
}

// Center returns the box's midpoint.
func (b BBox) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Contains reports whether p lies within the box (inclusive).
func (b BBox) Contains(p Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// SlabIntersect computes the ray/box slab intersection per spec §4.1: the
// three pairs of {tEnter, tExit} for each axis' slab. ok is false if the
// ray direction has a zero component aligned with a degenerate slab that
// the ray origin does not lie within.
func (b BBox) SlabIntersect(origin, dir Vec3) (ts [6]float64, ok bool) {
	ok = true
	for i := 0; i < 3; i++ {
		if dir[i] == 0 {
			if origin[i] < b.Min[i] || origin[i] > b.Max[i] {
				ok = false
			}
			ts[2*i] = math.Inf(-1)
			ts[2*i+1] = math.Inf(1)
			continue
		}
		inv := 1 / dir[i]
		t1 := (b.Min[i] - origin[i]) * inv
		t2 := (b.Max[i] - origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		ts[2*i] = t1
		ts[2*i+1] = t2
	}
	return
}

// HitsBox applies the spec §4.1 traversal acceptance test: sort the six
// slab values, form the test point at t_test = the mean of the third and
// fourth sorted values, and accept iff that point actually lies inside b
// AND currentRange (the ray's best-known hit distance so far) exceeds
// sorted[2], the box-entry t.
func HitsBox(b BBox, origin, dir Vec3, ts [6]float64, currentRange float64) bool {
	sorted := ts
	// insertion sort over 6 elements; plenty fast, keeps no allocations.
	for i := 1; i < 6; i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	tEnter := sorted[2]
	tTest := (sorted[2] + sorted[3]) / 2
	point := origin.Add(dir.Scale(tTest))
	if !b.Contains(point) {
		return false
	}
	return currentRange > tEnter
}
