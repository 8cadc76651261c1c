package actor

import (
	"math"

	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	case ShapeTypePlane:
		return "plane"
	}
	return "unknown"
}

// Shape is a convex collision geometry expressed in its own local frame.
// Shapes hold no placement and are never mutated by the simulation, so
// several scenes may share them.
type Shape interface {
	Type() ShapeType
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform kinematics.Transform) AABB
	// ComputeMass calculates the mass of the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	Support(direction mgl64.Vec3) mgl64.Vec3
	ContactFeature(direction mgl64.Vec3) []mgl64.Vec3
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

// Corners returns the 8 vertices in local space.
func (b *Box) Corners() [8]mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	return [8]mgl64.Vec3{
		{-hx, -hy, -hz},
		{+hx, -hy, -hz},
		{-hx, +hy, -hz},
		{+hx, +hy, -hz},
		{-hx, -hy, +hz},
		{+hx, -hy, +hz},
		{-hx, +hy, +hz},
		{+hx, +hy, +hz},
	}
}

func (b *Box) ComputeAABB(transform kinematics.Transform) AABB {
	aabb := EmptyAABB()
	for _, corner := range b.Corners() {
		world := transform.Apply(corner)
		aabb = aabb.Union(AABB{Min: world, Max: world})
	}

	return aabb
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// full dimensions are 2*halfExtents
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0

	return mgl64.Diag3(mgl64.Vec3{
		factor * (y*y + z*z),
		factor * (x*x + z*z),
		factor * (x*x + y*y),
	})
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

// ContactFeature returns the face whose outward normal is most aligned with
// direction, vertices counter-clockwise seen from outside.
func (b *Box) ContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	axis, sign := 0, 1.0
	best := -math.MaxFloat64
	for i := 0; i < 3; i++ {
		if direction[i] > best {
			axis, sign, best = i, 1, direction[i]
		}
		if -direction[i] > best {
			axis, sign, best = i, -1, -direction[i]
		}
	}

	switch {
	case axis == 0 && sign > 0:
		return []mgl64.Vec3{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}}
	case axis == 0:
		return []mgl64.Vec3{{-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}}
	case axis == 1 && sign > 0:
		return []mgl64.Vec3{{-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}}
	case axis == 1:
		return []mgl64.Vec3{{-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}}
	case sign > 0:
		return []mgl64.Vec3{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}
	default:
		return []mgl64.Vec3{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}
	}
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

// ComputeAABB is not affected by rotation, only by position
func (s *Sphere) ComputeAABB(transform kinematics.Transform) AABB {
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	// I = (2/5) * m * r²
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Diag3(mgl64.Vec3{i, i, i})
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-16 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Normalize().Mul(s.Radius)
}

func (s *Sphere) ContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{s.Support(direction)}
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3 // Plane normal (must be normalized)
	Distance float64    // Plane constant (signed distance from origin)
}

const (
	planeHalfSize  = 1000.0
	planeThickness = 1.0
)

func (p *Plane) Type() ShapeType {
	return ShapeTypePlane
}

// Origin is the point of the plane closest to the local origin.
func (p *Plane) Origin() mgl64.Vec3 {
	return p.Normal.Mul(-p.Distance)
}

// ComputeAABB returns a slab of planeThickness below the surface, unbounded
// along every axis the normal is not aligned with.
func (p *Plane) ComputeAABB(transform kinematics.Transform) AABB {
	const infinity = 1e10

	normal := transform.ApplyVector(p.Normal)
	origin := transform.Apply(p.Origin())

	aabb := AABB{Min: origin.Sub(normal.Mul(planeThickness)), Max: origin}
	aabb = aabb.Union(AABB{Min: origin, Max: origin.Sub(normal.Mul(planeThickness))})

	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < 1.0-1e-9 {
			aabb.Min[i] = -infinity
			aabb.Max[i] = infinity
		}
	}

	return aabb
}

// ComputeMass returns +Inf, planes are always static.
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

// Support treats the plane as a large slab. Can obviously break for bigger scenes.
func (p *Plane) Support(direction mgl64.Vec3) mgl64.Vec3 {
	tangent1, tangent2 := kinematics.TangentBasis(p.Normal)

	point := p.Origin()
	if direction.Dot(p.Normal) < 0 {
		point = point.Sub(p.Normal.Mul(planeThickness))
	}
	point = point.Add(tangent1.Mul(math.Copysign(planeHalfSize, direction.Dot(tangent1))))
	point = point.Add(tangent2.Mul(math.Copysign(planeHalfSize, direction.Dot(tangent2))))

	return point
}

// ContactFeature returns 4 points forming a large square on the surface.
func (p *Plane) ContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	tangent1, tangent2 := kinematics.TangentBasis(p.Normal)
	center := p.Origin()

	return []mgl64.Vec3{
		center.Add(tangent1.Mul(-planeHalfSize)).Add(tangent2.Mul(-planeHalfSize)),
		center.Add(tangent1.Mul(-planeHalfSize)).Add(tangent2.Mul(planeHalfSize)),
		center.Add(tangent1.Mul(planeHalfSize)).Add(tangent2.Mul(planeHalfSize)),
		center.Add(tangent1.Mul(planeHalfSize)).Add(tangent2.Mul(-planeHalfSize)),
	}
}
