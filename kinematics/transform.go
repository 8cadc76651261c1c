// Package kinematics holds the hierarchical frame tree of a scene and the
// value-type configuration state evaluated against it.
package kinematics

import "github.com/go-gl/mathgl/mgl64"

// Transform is a rigid placement: rotate, then translate.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Identity returns the transform that leaves every point in place.
func Identity() Transform {
	return Transform{
		Position: mgl64.Vec3{0, 0, 0},
		Rotation: mgl64.QuatIdent(),
	}
}

// NewTransform creates a transform from a position and a rotation.
// A zero quaternion is replaced by the identity.
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	if rotation.W == 0 && rotation.V.LenSqr() == 0 {
		rotation = mgl64.QuatIdent()
	}

	return Transform{Position: position, Rotation: rotation.Normalize()}
}

// Translation is a pure translation.
func Translation(x, y, z float64) Transform {
	return Transform{Position: mgl64.Vec3{x, y, z}, Rotation: mgl64.QuatIdent()}
}

// Apply maps a point from the local space of t into its parent space.
func (t Transform) Apply(point mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(point).Add(t.Position)
}

// ApplyVector rotates a direction, ignoring the translation.
func (t Transform) ApplyVector(direction mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Rotate(direction)
}

// InverseApply maps a point from parent space into the local space of t.
func (t Transform) InverseApply(point mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Conjugate().Rotate(point.Sub(t.Position))
}

// InverseApplyVector rotates a direction from parent space into local space.
func (t Transform) InverseApplyVector(direction mgl64.Vec3) mgl64.Vec3 {
	return t.rotation().Conjugate().Rotate(direction)
}

// Compose returns t * child, the placement of child expressed in the parent space of t.
func (t Transform) Compose(child Transform) Transform {
	rotation := t.rotation()

	return Transform{
		Position: rotation.Rotate(child.Position).Add(t.Position),
		Rotation: rotation.Mul(child.rotation()).Normalize(),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inverse := t.rotation().Conjugate()

	return Transform{
		Position: inverse.Rotate(t.Position).Mul(-1),
		Rotation: inverse,
	}
}

// ApproxEqual compares positions and rotations within epsilon. q and -q are the same rotation.
func (t Transform) ApproxEqual(other Transform, epsilon float64) bool {
	if !t.Position.ApproxEqualThreshold(other.Position, epsilon) {
		return false
	}

	a, b := t.rotation(), other.rotation()
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}

	return a.ApproxEqualThreshold(b, epsilon)
}

// rotation guards against the zero quaternion of an uninitialized Transform.
func (t Transform) rotation() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V.LenSqr() == 0 {
		return mgl64.QuatIdent()
	}

	return t.Rotation
}

// TangentBasis returns two unit vectors completing normal to an orthonormal basis.
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if normal.X() > 0.9 || normal.X() < -0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
