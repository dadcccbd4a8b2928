// Package feature implements the SPFH/FPFH local shape descriptors used as
// correspondence hints during registration (spec §4.3).
package feature

import (
	"math"

	"github.com/cpmech/smallbody/geom"
	"gonum.org/v1/gonum/stat"
)

// NumBins is the per-angle histogram resolution; the descriptor is the
// 3-bin-family concatenation (alpha, phi, theta), each quantized into
// NumBins buckets, for a total descriptor length of 3*NumBins.
const NumBins = 11

// SPFH computes the Simplified Point Feature Histogram of q against its
// neighborhood, exactly per spec §4.3: for each neighbor p_i, build the
// local Darboux frame (u,v,w) at q and accumulate (alpha, phi, theta).
func SPFH(q geom.Point, neighbors []geom.Point) []float64 {
	hist := make([]float64, 3*NumBins)
	if len(neighbors) == 0 {
		return hist
	}
	u := q.Normal
	for _, pi := range neighbors {
		d := pi.Pos.Sub(q.Pos)
		dist := d.Norm()
		if dist == 0 {
			continue
		}
		v := d.Cross(u)
		if v.Norm() == 0 {
			continue
		}
		v = v.Normalized()
		w := u.Cross(v)

		alpha := v.Dot(pi.Normal)
		phi := u.Dot(d.Scale(1 / dist))
		theta := math.Atan2(w.Dot(pi.Normal), u.Dot(pi.Normal))

		addToBin(hist, 0, alpha, -1, 1)
		addToBin(hist, 1, phi, -1, 1)
		addToBin(hist, 2, theta, -math.Pi, math.Pi)
	}
	return hist
}

// addToBin increments the histogram bucket that value falls into within
// [lo, hi), for the family starting at famIdx*NumBins.
func addToBin(hist []float64, famIdx int, value, lo, hi float64) {
	if value < lo {
		value = lo
	}
	if value >= hi {
		value = math.Nextafter(hi, lo)
	}
	bin := int((value - lo) / (hi - lo) * NumBins)
	if bin < 0 {
		bin = 0
	}
	if bin >= NumBins {
		bin = NumBins - 1
	}
	hist[famIdx*NumBins+bin]++
}

// FPFH computes the Fast Point Feature Histogram at q given its own SPFH
// and the (point, SPFH, distance) triples of its neighbors, per spec
// §4.3: FPFH(q) = SPFH(q) + (1/|N|) * sum_i SPFH(p_i)/|q-p_i|.
func FPFH(spfhQ []float64, neighborSPFH [][]float64, neighborDist []float64) []float64 {
	out := make([]float64, len(spfhQ))
	copy(out, spfhQ)
	if len(neighborSPFH) == 0 {
		return out
	}
	n := float64(len(neighborSPFH))
	for i, nh := range neighborSPFH {
		dist := neighborDist[i]
		if dist == 0 {
			continue
		}
		w := 1 / dist
		for k, v := range nh {
			out[k] += v * w / n
		}
	}
	return out
}

// Distance returns the L2 distance between two descriptor histograms. L2
// is used (rather than chi-squared) because FPFH's inverse-distance
// reweighting already normalizes bin magnitudes across flashes of
// differing point density; see DESIGN.md.
func Distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DisableCommonFeatures marks as invalid (Valid=false) any point whose
// descriptor distance to the cloud's mean descriptor is below
// beta*mean(distances), per spec §4.3.
func DisableCommonFeatures(points []geom.Point, meanDesc []float64, beta float64) {
	if len(points) == 0 {
		return
	}
	distances := make([]float64, len(points))
	for i, p := range points {
		distances[i] = Distance(p.Desc, meanDesc)
	}
	meanDist := stat.Mean(distances, nil)
	threshold := beta * meanDist
	for i := range points {
		if distances[i] < threshold {
			points[i].Valid = false
		}
	}
}
