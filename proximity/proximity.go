// Package proximity answers distance and overlap queries between placed
// collision shapes. Results are witness points and signed separations:
// negative separation means the shapes overlap.
package proximity

import (
	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// QueryType selects how much work a query may do.
type QueryType int

const (
	// FirstContact stops at the first overlap deeper than the tolerance.
	FirstContact QueryType = iota
	// AllContacts reports every contact within the separation threshold.
	AllContacts
)

// Query configures a narrow-phase request.
type Query struct {
	Type QueryType
	// Tolerance is the overlap InCollision accepts before reporting a collision.
	Tolerance float64
}

var ErrUnsupportedPair = errors.New("proximity: unsupported shape pair")

// Result receives Distances results. Slices are reused between calls.
type Result struct {
	Distances []float64
	PointsA   []mgl64.Vec3
	PointsB   []mgl64.Vec3
	// Normals point from A toward B.
	Normals []mgl64.Vec3
}

func (r *Result) Reset() {
	r.Distances = r.Distances[:0]
	r.PointsA = r.PointsA[:0]
	r.PointsB = r.PointsB[:0]
	r.Normals = r.Normals[:0]
}

func (r *Result) Len() int {
	return len(r.Distances)
}

func (r *Result) add(distance float64, pointA, pointB, normal mgl64.Vec3) {
	r.Distances = append(r.Distances, distance)
	r.PointsA = append(r.PointsA, pointA)
	r.PointsB = append(r.PointsB, pointB)
	r.Normals = append(r.Normals, normal)
}

// Strategy is a narrow-phase engine.
type Strategy interface {
	// InCollision reports whether a and b overlap deeper than query.Tolerance.
	InCollision(a actor.Shape, aT kinematics.Transform, b actor.Shape, bT kinematics.Transform, query Query) (bool, error)
	// Distances appends to out every contact separated by at most maxSeparation.
	Distances(a actor.Shape, aT kinematics.Transform, b actor.Shape, bT kinematics.Transform, maxSeparation float64, query Query, out *Result) error
}
