// Package solver is the reference constraint solver: an XPBD integrator
// stepping bodies under the contact and joint records of a constraint.Set.
package solver

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Motion is how the solver moves a body.
type Motion int

const (
	// Dynamic bodies are integrated under forces and constraints.
	Dynamic Motion = iota
	// Kinematic bodies follow their commanded velocity and have infinite mass.
	Kinematic
	// Static bodies never move.
	Static
)

func (m Motion) String() string {
	switch m {
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	case Static:
		return "static"
	}
	return "unknown"
}

// Body holds the constant properties of a body. Its changing state lives in
// the World's State so that it can be saved and restored as one value.
type Body struct {
	Handle  actor.Handle
	Motion  Motion
	Enabled bool

	Mass           float64
	InertiaLocal   mgl64.Mat3
	LinearDamping  float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping float64 // 0.0 - 1.0, typical: 0.05

	inverseMass         float64
	inverseInertiaLocal mgl64.Mat3
}

// NewBody creates an enabled body. Mass and inertia are about the center of mass.
func NewBody(motion Motion, mass float64, inertia mgl64.Mat3) Body {
	b := Body{
		Handle:       actor.NoHandle,
		Motion:       motion,
		Enabled:      true,
		Mass:         mass,
		InertiaLocal: inertia,
	}
	if mass > 0 && !math.IsInf(mass, 0) {
		b.inverseMass = 1.0 / mass
		b.inverseInertiaLocal = inertia.Inv()
	}

	return b
}

func (b *Body) dynamic() bool {
	return b.Motion == Dynamic && b.Enabled && b.inverseMass > 0
}

func (b *Body) moving() bool {
	return b.Enabled && (b.Motion == Dynamic || b.Motion == Kinematic)
}

// BodyState is the part of a body that changes during a step.
type BodyState struct {
	// Position is the world position of the center of mass.
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	Velocity        mgl64.Vec3 // m/s
	AngularVelocity mgl64.Vec3 // rad/s
	Force           mgl64.Vec3
	Torque          mgl64.Vec3
}

// scratch is per-substep bookkeeping that is never part of a snapshot.
type scratch struct {
	previousPosition        mgl64.Vec3
	previousRotation        mgl64.Quat
	presolveVelocity        mgl64.Vec3
	presolveAngularVelocity mgl64.Vec3
}

// ref binds a body to its state for the duration of a solve.
type ref struct {
	body    *Body
	state   *BodyState
	scratch *scratch
}

func (r ref) inverseInertiaWorld() mgl64.Mat3 {
	if !r.body.dynamic() {
		return mgl64.Mat3{}
	}
	// I_world^(-1) = R * I_local^(-1) * R^T
	R := r.state.Rotation.Mat4().Mat3()
	return R.Mul3(r.body.inverseInertiaLocal).Mul3(R.Transpose())
}

func (r ref) inverseMass() float64 {
	if !r.body.dynamic() {
		return 0
	}
	return r.body.inverseMass
}

// inverseMassAt is the generalized inverse mass of the body for a
// correction along n applied at offset rel from the center of mass.
func (r ref) inverseMassAt(rel, n mgl64.Vec3) float64 {
	if !r.body.dynamic() {
		return 0
	}
	rn := rel.Cross(n)
	return r.body.inverseMass + r.inverseInertiaWorld().Mul3x1(rn).Dot(rn)
}

func (r ref) inverseInertiaAlong(n mgl64.Vec3) float64 {
	if !r.body.dynamic() {
		return 0
	}
	return r.inverseInertiaWorld().Mul3x1(n).Dot(n)
}

// applyPositional moves the body by the positional impulse p applied at rel.
func (r ref) applyPositional(p, rel mgl64.Vec3) {
	if !r.body.dynamic() {
		return
	}
	deltaRot := r.inverseInertiaWorld().Mul3x1(rel.Cross(p))

	r.state.Position = r.state.Position.Add(p.Mul(r.body.inverseMass))
	r.state.Rotation = rotate(r.state.Rotation, deltaRot)
}

func (r ref) applyAngular(p mgl64.Vec3) {
	if !r.body.dynamic() {
		return
	}
	r.state.Rotation = rotate(r.state.Rotation, r.inverseInertiaWorld().Mul3x1(p))
}

// applyImpulse changes the velocities by the impulse p applied at rel.
func (r ref) applyImpulse(p, rel mgl64.Vec3) {
	if !r.body.dynamic() {
		return
	}
	r.state.Velocity = r.state.Velocity.Add(p.Mul(r.body.inverseMass))
	r.state.AngularVelocity = r.state.AngularVelocity.Add(r.inverseInertiaWorld().Mul3x1(rel.Cross(p)))
}

func (r ref) applyAngularImpulse(p mgl64.Vec3) {
	if !r.body.dynamic() {
		return
	}
	r.state.AngularVelocity = r.state.AngularVelocity.Add(r.inverseInertiaWorld().Mul3x1(p))
}

// velocityAt is the world velocity of the material point at rel.
func (r ref) velocityAt(rel mgl64.Vec3) mgl64.Vec3 {
	return r.state.Velocity.Add(r.state.AngularVelocity.Cross(rel))
}

func (r ref) presolveVelocityAt(rel mgl64.Vec3) mgl64.Vec3 {
	return r.scratch.presolveVelocity.Add(r.scratch.presolveAngularVelocity.Cross(rel))
}

func (r ref) integrate(h float64, gravity mgl64.Vec3) {
	r.scratch.previousPosition = r.state.Position
	r.scratch.previousRotation = r.state.Rotation

	if !r.body.moving() {
		r.scratch.presolveVelocity = mgl64.Vec3{}
		r.scratch.presolveAngularVelocity = mgl64.Vec3{}
		return
	}

	if r.body.dynamic() {
		r.state.Velocity = r.state.Velocity.Add(gravity.Mul(h))
		r.state.Velocity = r.state.Velocity.Add(r.state.Force.Mul(h * r.body.inverseMass))
		r.state.Velocity = r.state.Velocity.Mul(math.Exp(-r.body.LinearDamping * h))

		angularAccel := r.inverseInertiaWorld().Mul3x1(r.state.Torque)
		r.state.AngularVelocity = r.state.AngularVelocity.Add(angularAccel.Mul(h))
		r.state.AngularVelocity = r.state.AngularVelocity.Mul(math.Exp(-r.body.AngularDamping * h))
	}

	r.state.Position = r.state.Position.Add(r.state.Velocity.Mul(h))

	omegaQuat := mgl64.Quat{V: r.state.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(r.state.Rotation).Scale(0.5)
	r.state.Rotation = r.state.Rotation.Add(qDot.Scale(h)).Normalize()

	r.scratch.presolveVelocity = r.state.Velocity
	r.scratch.presolveAngularVelocity = r.state.AngularVelocity
}

// update derives the velocities of a dynamic body from its corrected motion.
func (r ref) update(h float64) {
	if !r.body.dynamic() {
		return
	}

	r.state.Velocity = r.state.Position.Sub(r.scratch.previousPosition).Mul(1.0 / h)
	qDelta := r.state.Rotation.Mul(r.scratch.previousRotation.Conjugate()).Normalize()
	if qDelta.W >= 0.0 {
		r.state.AngularVelocity = qDelta.V.Mul(2.0 / h)
	} else {
		r.state.AngularVelocity = qDelta.V.Mul(-2.0 / h)
	}
}

// rotate applies the small rotation vector deltaRot to q.
func rotate(q mgl64.Quat, deltaRot mgl64.Vec3) mgl64.Quat {
	if deltaRot.LenSqr() < 1e-24 {
		return q
	}
	qDelta := mgl64.Quat{W: 0, V: deltaRot}.Mul(q).Scale(0.5)
	return q.Add(qDelta).Normalize()
}
