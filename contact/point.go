// Package contact reduces raw contact points into a few stable
// representatives per contact patch.
package contact

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Point is one contact between two bodies.
type Point struct {
	Position mgl64.Vec3
	// Normal is a unit vector from body A into body B.
	Normal mgl64.Vec3
	// Depth is positive when the bodies overlap by more than the allowed penetration.
	Depth float64

	// Index and Generation locate the point in the Arena of the step that produced it.
	Index      int
	Generation uint64
}

// Valid reports whether p can take part in a manifold.
func (p Point) Valid() bool {
	if math.IsNaN(p.Depth) || math.IsInf(p.Depth, 0) {
		return false
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(p.Position[i]) || math.IsInf(p.Position[i], 0) {
			return false
		}
	}

	return math.Abs(p.Normal.Len()-1) < 1e-6
}

// Arena is the per-step contact scratch buffer. Reset starts a new
// generation; points from older generations are no longer valid.
type Arena struct {
	points     []Point
	generation uint64
}

func NewArena(capacity int) *Arena {
	return &Arena{points: make([]Point, 0, capacity)}
}

// Reset empties the arena, keeping its storage.
func (a *Arena) Reset() {
	a.points = a.points[:0]
	a.generation++
}

// Append stores p and returns it stamped with its slot and generation.
func (a *Arena) Append(p Point) Point {
	p.Index = len(a.points)
	p.Generation = a.generation
	a.points = append(a.points, p)

	return p
}

// Points returns the points of the current generation. The slice is only
// valid until the next Reset.
func (a *Arena) Points() []Point {
	return a.points
}

func (a *Arena) Len() int {
	return len(a.points)
}

func (a *Arena) Generation() uint64 {
	return a.generation
}

// Owns reports whether p was produced by the current generation of a.
func (a *Arena) Owns(p Point) bool {
	return p.Generation == a.generation && p.Index >= 0 && p.Index < len(a.points)
}

// At returns the point stored at index in the current generation.
func (a *Arena) At(index int) (Point, bool) {
	if index < 0 || index >= len(a.points) {
		return Point{}, false
	}
	return a.points[index], true
}
