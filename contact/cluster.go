package contact

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Range is the half-open span [Start, End) of one cluster in an order slice.
type Range struct {
	Start, End int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// NormalThresholdClustering groups points whose normals lie within threshold
// radians of the first point of their group. Groups are seeded in input order,
// so identical input yields identical output. It returns the cluster ranges
// and order, the point indices laid out cluster after cluster; both reuse the
// storage of the slices passed in.
func NormalThresholdClustering(points []Point, threshold float64, order []int, ranges []Range) ([]int, []Range) {
	order = order[:0]
	ranges = ranges[:0]
	if len(points) == 0 {
		return order, ranges
	}

	cosThreshold := math.Cos(threshold)
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	var seeds []mgl64.Vec3
	for i, p := range points {
		for c, seed := range seeds {
			if p.Normal.Dot(seed) >= cosThreshold {
				labels[i] = c
				break
			}
		}
		if labels[i] < 0 {
			labels[i] = len(seeds)
			seeds = append(seeds, p.Normal)
		}
	}

	for i := range points {
		order = append(order, i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return labels[order[i]] < labels[order[j]]
	})

	start := 0
	for i := 1; i <= len(order); i++ {
		if i == len(order) || labels[order[i]] != labels[order[start]] {
			ranges = append(ranges, Range{Start: start, End: i})
			start = i
		}
	}

	return order, ranges
}
