package contact

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Profile selects how clusters are reduced.
type Profile int

const (
	// Box keeps the rectangle corners of every manifold.
	Box Profile = iota
	// Simple keeps the deepest point of every normal cluster.
	Simple
	// ConvexHull keeps every hull point of every manifold.
	ConvexHull
	// None passes valid points through unchanged.
	None
)

const (
	DefaultNormalThreshold   = 10 * math.Pi / 180
	DefaultManifoldTolerance = 13 * math.Pi / 180
	DefaultMaxHalfExtent     = 0.2
)

var ErrUnknownProfile = errors.New("contact: unknown clustering profile")

func (p Profile) String() string {
	switch p {
	case Box:
		return "box"
	case Simple:
		return "simple"
	case ConvexHull:
		return "convexhull"
	case None:
		return "none"
	}
	return "unknown"
}

// ParseProfile maps a configuration name to a Profile.
func ParseProfile(name string) (Profile, error) {
	switch strings.ToLower(name) {
	case "", "box":
		return Box, nil
	case "simple":
		return Simple, nil
	case "convexhull", "hull":
		return ConvexHull, nil
	case "none":
		return None, nil
	}
	return Box, errors.Wrapf(ErrUnknownProfile, "%q", name)
}

// MarshalText and UnmarshalText let a Profile appear by name in config files.
func (p Profile) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Profile) UnmarshalText(text []byte) error {
	profile, err := ParseProfile(string(text))
	if err != nil {
		return err
	}
	*p = profile
	return nil
}

// Clusterer reduces the contacts of one body pair. Its scratch buffers are
// reused between calls, so one Clusterer serves one goroutine.
type Clusterer struct {
	Profile           Profile
	NormalThreshold   float64
	ManifoldTolerance float64
	MaxHalfExtent     float64

	order  []int
	ranges []Range
	valid  []Point
}

func NewClusterer(profile Profile) *Clusterer {
	return &Clusterer{
		Profile:           profile,
		NormalThreshold:   DefaultNormalThreshold,
		ManifoldTolerance: DefaultManifoldTolerance,
		MaxHalfExtent:     DefaultMaxHalfExtent,
	}
}

// Cluster returns the representative points of points under the profile.
func (c *Clusterer) Cluster(points []Point) []Point {
	valid := c.filter(points)

	switch c.Profile {
	case None:
		return append([]Point(nil), valid...)
	case Simple:
		return c.deepestPerCluster(valid)
	case ConvexHull:
		var result []Point
		for _, m := range c.fit(valid) {
			result = append(result, m.Hull()...)
		}
		return result
	default:
		var result []Point
		for _, m := range c.fit(valid) {
			result = append(result, m.Representatives()...)
		}
		return result
	}
}

// FitManifolds groups points by normal, then fits manifolds inside each
// group. A point joins the first manifold of its group that accepts it and
// starts a new one otherwise.
func (c *Clusterer) FitManifolds(points []Point) []*Manifold {
	return c.fit(c.filter(points))
}

func (c *Clusterer) fit(points []Point) []*Manifold {
	c.order, c.ranges = NormalThresholdClustering(points, c.NormalThreshold, c.order, c.ranges)

	var manifolds []*Manifold
	for _, r := range c.ranges {
		first := len(manifolds)
		for _, idx := range c.order[r.Start:r.End] {
			accepted := false
			for _, m := range manifolds[first:] {
				if m.AddPoint(points[idx]) {
					accepted = true
					break
				}
			}
			if accepted {
				continue
			}

			m := NewManifold(c.ManifoldTolerance, c.MaxHalfExtent)
			if m.AddPoint(points[idx]) {
				manifolds = append(manifolds, m)
			}
		}
	}

	return manifolds
}

func (c *Clusterer) deepestPerCluster(points []Point) []Point {
	c.order, c.ranges = NormalThresholdClustering(points, c.NormalThreshold, c.order, c.ranges)

	result := make([]Point, 0, len(c.ranges))
	for _, r := range c.ranges {
		deepest := c.order[r.Start]
		for _, idx := range c.order[r.Start+1 : r.End] {
			if points[idx].Depth > points[deepest].Depth {
				deepest = idx
			}
		}
		result = append(result, points[deepest])
	}

	return result
}

func (c *Clusterer) filter(points []Point) []Point {
	c.valid = c.valid[:0]
	for _, p := range points {
		if p.Valid() {
			c.valid = append(c.valid, p)
		}
	}
	return c.valid
}
