package actor

import (
	"math"

	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// BodyKind is the closed set of mechanical roles a body can play.
type BodyKind int

const (
	// Rigid bodies are integrated by the solver.
	Rigid BodyKind = iota
	// Kinematic bodies follow velocities commanded from outside and act as infinite mass.
	Kinematic
	// Fixed bodies never move.
	Fixed
	// RigidJoint bodies are integrated like Rigid ones and hang off a joint.
	RigidJoint
)

func (k BodyKind) String() string {
	switch k {
	case Rigid:
		return "rigid"
	case Kinematic:
		return "kinematic"
	case Fixed:
		return "fixed"
	case RigidJoint:
		return "rigid-joint"
	}
	return "unknown"
}

// Dynamic reports whether the solver integrates bodies of this kind.
func (k BodyKind) Dynamic() bool {
	return k == Rigid || k == RigidJoint
}

// Valid reports whether k is one of the declared kinds.
func (k BodyKind) Valid() bool {
	return k >= Rigid && k <= RigidJoint
}

// Handle identifies a registered body. Handles are dense, starting at 0.
type Handle int

// NoHandle is the world: an immovable body with no geometry.
const NoHandle Handle = -1

// BodyInfo carries the inertial and surface description of a body.
type BodyInfo struct {
	Mass       float64
	MassCenter mgl64.Vec3 // in the body frame
	Inertia    mgl64.Mat3 // about MassCenter, body frame axes
	Material   string
	ObjectType string

	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05
}

// Geometry is a shape placed in the body frame.
type Geometry struct {
	Shape  Shape
	Offset kinematics.Transform
}

// Body is a named mechanical entity bound to one scene-graph frame.
type Body struct {
	Name  string
	Frame kinematics.FrameID
	// Frames lists additional frames rigidly owned by the body.
	Frames     []kinematics.FrameID
	Kind       BodyKind
	Info       BodyInfo
	Geometries []Geometry
}

// NewBody creates a body with unit-density mass properties derived from its geometries.
func NewBody(name string, frame kinematics.FrameID, kind BodyKind, geometries ...Geometry) *Body {
	b := &Body{
		Name:       name,
		Frame:      frame,
		Kind:       kind,
		Geometries: geometries,
	}
	b.SetDensity(1.0)

	return b
}

// Attach places shape at offset in the body frame.
func (b *Body) Attach(shape Shape, offset kinematics.Transform) {
	b.Geometries = append(b.Geometries, Geometry{Shape: shape, Offset: offset})
}

// SetDensity recomputes mass, center of mass and inertia from the geometries.
// Unbounded shapes (planes) contribute nothing.
func (b *Body) SetDensity(density float64) {
	var mass float64
	var weighted mgl64.Vec3

	for _, g := range b.Geometries {
		m := g.Shape.ComputeMass(density)
		if math.IsInf(m, 0) || m <= 0 {
			continue
		}
		mass += m
		weighted = weighted.Add(g.Offset.Position.Mul(m))
	}

	b.Info.Mass = mass
	b.Info.MassCenter = mgl64.Vec3{}
	b.Info.Inertia = mgl64.Mat3{}
	if mass <= 0 {
		return
	}
	b.Info.MassCenter = weighted.Mul(1.0 / mass)

	for _, g := range b.Geometries {
		m := g.Shape.ComputeMass(density)
		if math.IsInf(m, 0) || m <= 0 {
			continue
		}
		// rotate the shape inertia into the body axes, then shift it with the parallel axis theorem
		r := g.Offset.Rotation.Normalize().Mat4().Mat3()
		local := r.Mul3(g.Shape.ComputeInertia(m)).Mul3(r.Transpose())
		d := g.Offset.Position.Sub(b.Info.MassCenter)
		shift := mgl64.Ident3().Mul(d.Dot(d)).Sub(outer(d, d)).Mul(m)
		b.Info.Inertia = b.Info.Inertia.Add(local.Add(shift))
	}
}

// Bounds returns the union of the geometries' boxes for the body frame placed at world.
func (b *Body) Bounds(world kinematics.Transform) (AABB, bool) {
	aabb := EmptyAABB()
	unbounded := false

	for _, g := range b.Geometries {
		if g.Shape.Type() == ShapeTypePlane {
			unbounded = true
		}
		aabb = aabb.Union(g.Shape.ComputeAABB(world.Compose(g.Offset)))
	}

	return aabb, unbounded
}

// OwnsFrame reports whether frame is the body frame or one of its aliases.
func (b *Body) OwnsFrame(frame kinematics.FrameID) bool {
	if frame == b.Frame {
		return true
	}
	for _, f := range b.Frames {
		if f == frame {
			return true
		}
	}
	return false
}

// MassFrame is the placement of the center of mass in the body frame.
func (b *Body) MassFrame() kinematics.Transform {
	return kinematics.NewTransform(b.Info.MassCenter, mgl64.QuatIdent())
}

func outer(a, c mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		a[0] * c[0], a[1] * c[0], a[2] * c[0],
		a[0] * c[1], a[1] * c[1], a[2] * c[1],
		a[0] * c[2], a[1] * c[2], a[2] * c[2],
	}
}
