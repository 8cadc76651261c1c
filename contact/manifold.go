package contact

import (
	"math"
	"sort"

	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxRepresentatives is the number of rectangle corners a manifold reports.
const MaxRepresentatives = 4

// Rectangle is an oriented bounding rectangle in the manifold plane.
type Rectangle struct {
	Center mgl64.Vec3
	// AxisU and AxisV span the plane; HalfU and HalfV are the half extents along them.
	AxisU, AxisV mgl64.Vec3
	HalfU, HalfV float64
}

// MaxHalfExtent is the larger of the two half extents.
func (r Rectangle) MaxHalfExtent() float64 {
	return math.Max(r.HalfU, r.HalfV)
}

// Corners returns the corners counter-clockwise around the normal.
func (r Rectangle) Corners() [4]mgl64.Vec3 {
	u := r.AxisU.Mul(r.HalfU)
	v := r.AxisV.Mul(r.HalfV)

	return [4]mgl64.Vec3{
		r.Center.Sub(u).Sub(v),
		r.Center.Add(u).Sub(v),
		r.Center.Add(u).Add(v),
		r.Center.Sub(u).Add(v),
	}
}

// Manifold is a contact patch: points sharing a normal (within tolerance)
// whose minimum-area bounding rectangle stays small.
type Manifold struct {
	tolerance     float64
	maxHalfExtent float64

	normalSum mgl64.Vec3
	members   []Point
	hull      []int
	rect      Rectangle
}

// NewManifold creates an empty manifold accepting normals within tolerance
// radians of its average and rectangles up to maxHalfExtent.
func NewManifold(tolerance, maxHalfExtent float64) *Manifold {
	return &Manifold{tolerance: tolerance, maxHalfExtent: maxHalfExtent}
}

// AddPoint admits p unless it would tilt the manifold or stretch its
// rectangle beyond the limits.
func (m *Manifold) AddPoint(p Point) bool {
	if !p.Valid() {
		return false
	}

	if len(m.members) == 0 {
		m.normalSum = p.Normal
		m.members = append(m.members, p)
		m.hull = append(m.hull[:0], 0)
		m.rect = Rectangle{Center: p.Position}
		m.rect.AxisU, m.rect.AxisV = kinematics.TangentBasis(p.Normal)
		return true
	}

	if angleBetween(m.Normal(), p.Normal) > m.tolerance {
		return false
	}

	normal := m.normalSum.Add(p.Normal).Normalize()
	candidates := make([]mgl64.Vec3, 0, len(m.hull)+1)
	indices := make([]int, 0, len(m.hull)+1)
	for _, h := range m.hull {
		candidates = append(candidates, m.members[h].Position)
		indices = append(indices, h)
	}
	candidates = append(candidates, p.Position)
	indices = append(indices, len(m.members))

	hull, rect := fitRectangle(candidates, normal)
	if rect.MaxHalfExtent() > m.maxHalfExtent {
		return false
	}

	m.normalSum = m.normalSum.Add(p.Normal)
	m.members = append(m.members, p)
	m.hull = m.hull[:0]
	for _, h := range hull {
		m.hull = append(m.hull, indices[h])
	}
	m.rect = rect

	return true
}

// Normal is the normalized average of the member normals.
func (m *Manifold) Normal() mgl64.Vec3 {
	if m.normalSum.LenSqr() == 0 {
		return mgl64.Vec3{}
	}
	return m.normalSum.Normalize()
}

func (m *Manifold) Len() int {
	return len(m.members)
}

// Points returns every accepted point in insertion order.
func (m *Manifold) Points() []Point {
	return m.members
}

func (m *Manifold) Rectangle() Rectangle {
	return m.rect
}

// Hull returns the members on the convex hull of the patch.
func (m *Manifold) Hull() []Point {
	hull := make([]Point, 0, len(m.hull))
	for _, h := range m.hull {
		hull = append(hull, m.members[h])
	}
	return hull
}

// MaxDepth is the deepest member penetration.
func (m *Manifold) MaxDepth() float64 {
	depth := math.Inf(-1)
	for _, p := range m.members {
		depth = math.Max(depth, p.Depth)
	}
	return depth
}

// Representatives returns the members themselves when there are at most
// four of them, otherwise the member nearest to each rectangle corner.
func (m *Manifold) Representatives() []Point {
	if len(m.members) <= MaxRepresentatives {
		return append([]Point(nil), m.members...)
	}

	result := make([]Point, 0, MaxRepresentatives)
	var chosen [MaxRepresentatives]int
	for _, corner := range m.rect.Corners() {
		best, bestDist := -1, math.Inf(1)
		// only hull members can be nearest to a corner of the enclosing rectangle
		for _, h := range m.hull {
			if d := m.members[h].Position.Sub(corner).LenSqr(); d < bestDist {
				best, bestDist = h, d
			}
		}

		duplicate := false
		for _, c := range chosen[:len(result)] {
			if c == best {
				duplicate = true
				break
			}
		}
		if !duplicate {
			chosen[len(result)] = best
			result = append(result, m.members[best])
		}
	}

	return result
}

func angleBetween(a, b mgl64.Vec3) float64 {
	cos := a.Dot(b) / math.Sqrt(a.LenSqr()*b.LenSqr())
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// fitRectangle projects points on the plane orthogonal to normal and returns
// the indices of their convex hull and its minimum-area bounding rectangle.
func fitRectangle(points []mgl64.Vec3, normal mgl64.Vec3) ([]int, Rectangle) {
	tangent1, tangent2 := kinematics.TangentBasis(normal)

	origin := points[0]
	planar := make([]mgl64.Vec2, len(points))
	var height float64
	for i, p := range points {
		d := p.Sub(origin)
		planar[i] = mgl64.Vec2{d.Dot(tangent1), d.Dot(tangent2)}
		height += d.Dot(normal)
	}
	height /= float64(len(points))

	hull := convexHull(planar)

	axis := mgl64.Vec2{1, 0}
	minU, maxU, minV, maxV := extents(planar, hull, axis)
	bestArea := (maxU - minU) * (maxV - minV)

	for i := range hull {
		edge := planar[hull[(i+1)%len(hull)]].Sub(planar[hull[i]])
		if edge.LenSqr() < 1e-24 {
			continue
		}
		edge = edge.Normalize()

		u0, u1, v0, v1 := extents(planar, hull, edge)
		if area := (u1 - u0) * (v1 - v0); area < bestArea-1e-15 {
			bestArea = area
			axis = edge
			minU, maxU, minV, maxV = u0, u1, v0, v1
		}
	}

	perp := mgl64.Vec2{-axis[1], axis[0]}
	u := tangent1.Mul(axis[0]).Add(tangent2.Mul(axis[1]))
	v := tangent1.Mul(perp[0]).Add(tangent2.Mul(perp[1]))
	cu, cv := (minU+maxU)/2, (minV+maxV)/2

	return hull, Rectangle{
		Center: origin.Add(u.Mul(cu)).Add(v.Mul(cv)).Add(normal.Mul(height)),
		AxisU:  u,
		AxisV:  v,
		HalfU:  (maxU - minU) / 2,
		HalfV:  (maxV - minV) / 2,
	}
}

func extents(planar []mgl64.Vec2, hull []int, axis mgl64.Vec2) (minU, maxU, minV, maxV float64) {
	perp := mgl64.Vec2{-axis[1], axis[0]}
	minU, minV = math.Inf(1), math.Inf(1)
	maxU, maxV = math.Inf(-1), math.Inf(-1)

	for _, h := range hull {
		u := planar[h].Dot(axis)
		v := planar[h].Dot(perp)
		minU, maxU = math.Min(minU, u), math.Max(maxU, u)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
	}

	return minU, maxU, minV, maxV
}

// convexHull is Andrew's monotone chain, returning indices counter-clockwise
// without collinear points.
func convexHull(points []mgl64.Vec2) []int {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := points[idx[i]], points[idx[j]]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})

	// coincident points collapse to the first of them
	unique := idx[:0:0]
	for _, i := range idx {
		if len(unique) > 0 && points[unique[len(unique)-1]].Sub(points[i]).LenSqr() < 1e-24 {
			continue
		}
		unique = append(unique, i)
	}
	if len(unique) < 3 {
		return unique
	}

	cross := func(o, a, b mgl64.Vec2) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]int, 0, 2*len(unique))
	for _, i := range unique {
		for len(hull) >= 2 && cross(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}
	lower := len(hull) + 1
	for k := len(unique) - 2; k >= 0; k-- {
		i := unique[k]
		for len(hull) >= lower && cross(points[hull[len(hull)-2]], points[hull[len(hull)-1]], points[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, i)
	}

	hull = hull[:len(hull)-1]
	if len(hull) < 2 {
		// every point collinear: keep both ends
		return []int{unique[0], unique[len(unique)-1]}
	}

	return hull
}
