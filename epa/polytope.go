package epa

import (
	"math"
	"sort"
	"sync"

	"github.com/akmonengine/keel/gjk"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Face is a triangle of the expanding polytope.
type Face struct {
	Points   [3]mgl64.Vec3
	Normal   mgl64.Vec3 // outward
	Distance float64    // from the origin to the face plane
}

// edgeEntry is an edge normalized so that A < B, with the number of
// visible faces sharing it. Count == 1 marks the horizon.
type edgeEntry struct {
	A, B  mgl64.Vec3
	Count int
}

// PolytopeBuilder owns the growable buffers of one EPA run.
type PolytopeBuilder struct {
	faces          []Face
	uniquePoints   []mgl64.Vec3
	edges          []edgeEntry
	visibleIndices []int
}

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			faces:          make([]Face, 0, polytopeInitialCapacity),
			uniquePoints:   make([]mgl64.Vec3, 0, polytopeInitialCapacity),
			edges:          make([]edgeEntry, 0, polytopeInitialCapacity),
			visibleIndices: make([]int, 0, polytopeInitialCapacity),
		}
	},
}

func (b *PolytopeBuilder) Reset() {
	b.faces = b.faces[:0]
	b.uniquePoints = b.uniquePoints[:0]
	b.edges = b.edges[:0]
	b.visibleIndices = b.visibleIndices[:0]
}

// BuildInitialFaces creates the 4 faces of the GJK tetrahedron.
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return errors.Errorf("epa: invalid simplex count %d, expected 4", simplex.Count)
	}

	p0, p1, p2, p3 := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]
	candidates := [4]Face{
		createFaceOutward(p0, p1, p2, p3),
		createFaceOutward(p0, p2, p3, p1),
		createFaceOutward(p0, p3, p1, p2),
		createFaceOutward(p1, p3, p2, p0),
	}

	for _, face := range candidates {
		if face.Distance >= MinFaceDistance {
			b.faces = append(b.faces, face)
		}
	}

	// a polytope needs at least 3 faces, keep everything for degenerate inputs
	if len(b.faces) < 3 {
		b.faces = append(b.faces[:0], candidates[:]...)
	}

	return nil
}

// createFaceOutward orients the triangle normal away from oppositePoint and the origin.
func createFaceOutward(p0, p1, p2, oppositePoint mgl64.Vec3) Face {
	face := Face{Points: [3]mgl64.Vec3{p0, p1, p2}}

	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	length := normal.Len()
	if length < 1e-8 {
		face.Normal = mgl64.Vec3{0, 1, 0}
		face.Distance = MinFaceDistance
		return face
	}
	normal = normal.Mul(1.0 / length)

	if normal.Dot(oppositePoint.Sub(p0)) > 0 {
		normal = normal.Mul(-1)
	}

	distance := p0.Dot(normal)
	if distance < 0 {
		normal = normal.Mul(-1)
		distance = -distance
	}

	face.Normal = snapNormalToAxis(normal)
	face.Distance = math.Max(distance, MinFaceDistance)

	return face
}

// ClosestFaceIndex returns the index of the face nearest the origin, -1 if none.
func (b *PolytopeBuilder) ClosestFaceIndex() int {
	if len(b.faces) == 0 {
		return -1
	}

	closest := 0
	for i := 1; i < len(b.faces); i++ {
		if b.faces[i].Distance < b.faces[closest].Distance {
			closest = i
		}
	}

	return closest
}

// centroid averages the distinct vertices of the polytope.
func (b *PolytopeBuilder) centroid() mgl64.Vec3 {
	b.uniquePoints = b.uniquePoints[:0]

	for i := range b.faces {
		for _, point := range b.faces[i].Points {
			idx := sort.Search(len(b.uniquePoints), func(k int) bool {
				return compareVec3(b.uniquePoints[k], point) >= 0
			})
			if idx < len(b.uniquePoints) && b.uniquePoints[idx] == point {
				continue
			}

			b.uniquePoints = append(b.uniquePoints, mgl64.Vec3{})
			copy(b.uniquePoints[idx+1:], b.uniquePoints[idx:])
			b.uniquePoints[idx] = point
		}
	}

	if len(b.uniquePoints) == 0 {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, p := range b.uniquePoints {
		sum = sum.Add(p)
	}

	return sum.Mul(1.0 / float64(len(b.uniquePoints)))
}

func (b *PolytopeBuilder) findVisibleFaces(support mgl64.Vec3) {
	b.visibleIndices = b.visibleIndices[:0]

	for i := range b.faces {
		if support.Sub(b.faces[i].Points[0]).Dot(b.faces[i].Normal) > 0 {
			b.visibleIndices = append(b.visibleIndices, i)
		}
	}
}

func (b *PolytopeBuilder) findHorizon() {
	b.edges = b.edges[:0]

	for _, faceIdx := range b.visibleIndices {
		face := &b.faces[faceIdx]
		edges := [3][2]mgl64.Vec3{
			{face.Points[0], face.Points[1]},
			{face.Points[1], face.Points[2]},
			{face.Points[2], face.Points[0]},
		}

		for _, edge := range edges {
			a, c := edge[0], edge[1]
			if compareVec3(a, c) > 0 {
				a, c = c, a
			}

			found := false
			for i := range b.edges {
				if b.edges[i].A == a && b.edges[i].B == c {
					b.edges[i].Count++
					found = true
					break
				}
			}
			if !found {
				b.edges = append(b.edges, edgeEntry{A: a, B: c, Count: 1})
			}
		}
	}
}

// removeVisibleFaces deletes from the highest index down so swap-with-last stays valid.
func (b *PolytopeBuilder) removeVisibleFaces() {
	sort.Sort(sort.Reverse(sort.IntSlice(b.visibleIndices)))

	for _, idx := range b.visibleIndices {
		if idx < len(b.faces) {
			b.faces[idx] = b.faces[len(b.faces)-1]
			b.faces = b.faces[:len(b.faces)-1]
		}
	}
}

// AddPoint expands the polytope with a support point: faces that see it are
// removed and the horizon is stitched to it.
func (b *PolytopeBuilder) AddPoint(support mgl64.Vec3, closestIndex int) {
	centroid := b.centroid()

	b.findVisibleFaces(support)
	if len(b.visibleIndices) >= len(b.faces) {
		b.visibleIndices = append(b.visibleIndices[:0], closestIndex)
	}

	b.findHorizon()
	b.removeVisibleFaces()

	for _, edge := range b.edges {
		if edge.Count == 1 {
			b.faces = append(b.faces, createFaceOutward(edge.A, edge.B, support, centroid))
		}
	}

	if len(b.faces) == 0 {
		b.faces = append(b.faces, Face{
			Points:   [3]mgl64.Vec3{support, support, support},
			Normal:   mgl64.Vec3{0, 1, 0},
			Distance: MinFaceDistance,
		})
	}
}

// compareVec3 orders vectors lexicographically on x, y, then z.
func compareVec3(a, b mgl64.Vec3) int {
	for i := 0; i < 3; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
