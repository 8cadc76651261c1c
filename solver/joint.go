package solver

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/constraint"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

var (
	ErrUnknownBody  = errors.New("solver: unknown body")
	ErrUnknownJoint = errors.New("solver: unknown joint slot")
)

// Joint is a joint constraint registered with the World. Its geometry is
// captured in body space when it is added; the per-step limits and motor
// come from the JointRecord bound to its slot.
type Joint struct {
	Kind   constraint.JointKind
	BodyA  actor.Handle
	BodyB  actor.Handle
	active bool

	localAnchorA, localAnchorB mgl64.Vec3
	localAxisA, localAxisB     mgl64.Vec3
	localRefA, localRefB       mgl64.Vec3
	rest                       mgl64.Quat

	record *constraint.JointRecord

	impulseA, torqueA mgl64.Vec3
	impulseB, torqueB mgl64.Vec3
}

// AddJoint registers a joint between a and b (actor.NoHandle for the world)
// through anchor along axis, both in world coordinates at the current pose.
// The joint coordinate is zero at the current pose.
func (w *World) AddJoint(kind constraint.JointKind, a, b actor.Handle, anchor, axis mgl64.Vec3) (int, error) {
	switch kind {
	case constraint.Hinge, constraint.Slider, constraint.Fixed:
	default:
		return -1, errors.Wrapf(constraint.ErrUnsupportedKind, "kind %v", kind)
	}
	for _, h := range []actor.Handle{a, b} {
		if h != actor.NoHandle && !w.valid(h) {
			return -1, errors.Wrapf(ErrUnknownBody, "handle %d", h)
		}
	}
	if axis.Len() < epsilon {
		axis = mgl64.Vec3{0, 0, 1}
	}
	axis = axis.Normalize()

	ra, rb := w.ref(a), w.ref(b)
	qA, qB := ra.state.Rotation, rb.state.Rotation
	reference, _ := kinematics.TangentBasis(axis)

	j := &Joint{
		Kind:         kind,
		BodyA:        a,
		BodyB:        b,
		active:       true,
		localAnchorA: qA.Conjugate().Rotate(anchor.Sub(ra.state.Position)),
		localAnchorB: qB.Conjugate().Rotate(anchor.Sub(rb.state.Position)),
		localAxisA:   qA.Conjugate().Rotate(axis),
		localAxisB:   qB.Conjugate().Rotate(axis),
		localRefA:    qA.Conjugate().Rotate(reference),
		localRefB:    qB.Conjugate().Rotate(reference),
		rest:         qA.Conjugate().Mul(qB),
	}
	w.joints = append(w.joints, j)

	return len(w.joints) - 1, nil
}

// RemoveJoint deactivates the joint in slot. Slots are never reused.
func (w *World) RemoveJoint(slot int) error {
	if slot < 0 || slot >= len(w.joints) {
		return errors.Wrapf(ErrUnknownJoint, "slot %d", slot)
	}
	w.joints[slot].active = false
	return nil
}

// JointPosition is the joint coordinate of slot: an angle for hinges and a
// displacement for sliders.
func (w *World) JointPosition(slot int) float64 {
	if slot < 0 || slot >= len(w.joints) {
		return 0
	}
	j := w.joints[slot]
	a, b := w.ref(j.BodyA), w.ref(j.BodyB)

	switch j.Kind {
	case constraint.Hinge:
		return j.angle(a, b)
	case constraint.Slider:
		rA, rB := j.anchors(a, b)
		return b.state.Position.Add(rB).Sub(a.state.Position.Add(rA)).Dot(j.axis(a))
	}
	return 0
}

// JointVelocity is the time derivative of JointPosition.
func (w *World) JointVelocity(slot int) float64 {
	if slot < 0 || slot >= len(w.joints) {
		return 0
	}
	j := w.joints[slot]
	a, b := w.ref(j.BodyA), w.ref(j.BodyB)
	axis := j.axis(a)

	switch j.Kind {
	case constraint.Hinge:
		return b.state.AngularVelocity.Sub(a.state.AngularVelocity).Dot(axis)
	case constraint.Slider:
		rA, rB := j.anchors(a, b)
		return b.velocityAt(rB).Sub(a.velocityAt(rA)).Dot(axis)
	}
	return 0
}

func (j *Joint) anchors(a, b ref) (rA, rB mgl64.Vec3) {
	return a.state.Rotation.Rotate(j.localAnchorA), b.state.Rotation.Rotate(j.localAnchorB)
}

func (j *Joint) axis(a ref) mgl64.Vec3 {
	return a.state.Rotation.Rotate(j.localAxisA)
}

// angle is the signed rotation of B relative to A about the hinge axis.
func (j *Joint) angle(a, b ref) float64 {
	axis := j.axis(a)
	refA := a.state.Rotation.Rotate(j.localRefA)
	refB := b.state.Rotation.Rotate(j.localRefB)
	// project refB onto the plane of the hinge
	refB = refB.Sub(axis.Mul(refB.Dot(axis)))

	return math.Atan2(refA.Cross(refB).Dot(axis), refA.Dot(refB))
}

func (j *Joint) resetFeedback() {
	j.impulseA, j.torqueA = mgl64.Vec3{}, mgl64.Vec3{}
	j.impulseB, j.torqueB = mgl64.Vec3{}, mgl64.Vec3{}
}

func (j *Joint) accumulatePositional(p, rA, rB mgl64.Vec3) {
	j.impulseA = j.impulseA.Add(p)
	j.torqueA = j.torqueA.Add(rA.Cross(p))
	j.impulseB = j.impulseB.Sub(p)
	j.torqueB = j.torqueB.Add(rB.Cross(p.Mul(-1)))
}

func (j *Joint) accumulateAngular(p mgl64.Vec3) {
	j.torqueA = j.torqueA.Add(p)
	j.torqueB = j.torqueB.Sub(p)
}

// solvePosition enforces the structural constraints of the joint, a position
// motor and its limits. erp is the fraction of the structural error removed.
func (j *Joint) solvePosition(a, b ref, h, alphaTilde, erp float64) {
	unbounded := math.Inf(1)
	rA, rB := j.anchors(a, b)

	switch j.Kind {
	case constraint.Hinge:
		// anchors coincide
		delta := b.state.Position.Add(rB).Sub(a.state.Position.Add(rA))
		j.accumulatePositional(positional(a, b, rA, rB, delta.Mul(erp), alphaTilde, unbounded), rA, rB)

		// axes aligned
		axisA := j.axis(a)
		axisB := b.state.Rotation.Rotate(j.localAxisB)
		j.accumulateAngular(angular(a, b, axisA.Cross(axisB).Mul(erp), alphaTilde, unbounded))

		axis := j.axis(a)
		if j.record.Mode == constraint.MotorPosition && j.record.MaxForce > 0 {
			theta := j.angle(a, b)
			maxLambda := j.record.MaxForce * h * h
			j.accumulateAngular(angular(a, b, axis.Mul(theta-j.record.TargetPosition), alphaTilde, maxLambda))
		}
		// limits are projected last and in full so no motor can hold the joint outside them
		if j.record.Limited {
			theta := j.angle(a, b)
			if excess := theta - clamp(theta, j.record.Lo, j.record.Hi); excess != 0 {
				j.accumulateAngular(angular(a, b, axis.Mul(excess), alphaTilde, unbounded))
			}
		}

	case constraint.Slider:
		j.accumulateAngular(angular(a, b, rotationError(a.state.Rotation, b.state.Rotation, j.rest).Mul(erp), alphaTilde, unbounded))

		rA, rB = j.anchors(a, b)
		axis := j.axis(a)
		delta := b.state.Position.Add(rB).Sub(a.state.Position.Add(rA))
		perpendicular := delta.Sub(axis.Mul(delta.Dot(axis)))
		j.accumulatePositional(positional(a, b, rA, rB, perpendicular.Mul(erp), alphaTilde, unbounded), rA, rB)

		if j.record.Mode == constraint.MotorPosition && j.record.MaxForce > 0 {
			rA, rB = j.anchors(a, b)
			s := b.state.Position.Add(rB).Sub(a.state.Position.Add(rA)).Dot(axis)
			maxLambda := j.record.MaxForce * h * h
			j.accumulatePositional(positional(a, b, rA, rB, axis.Mul(s-j.record.TargetPosition), alphaTilde, maxLambda), rA, rB)
		}
		if j.record.Limited {
			rA, rB = j.anchors(a, b)
			s := b.state.Position.Add(rB).Sub(a.state.Position.Add(rA)).Dot(axis)
			if excess := s - clamp(s, j.record.Lo, j.record.Hi); excess != 0 {
				j.accumulatePositional(positional(a, b, rA, rB, axis.Mul(excess), alphaTilde, unbounded), rA, rB)
			}
		}

	case constraint.Fixed:
		delta := b.state.Position.Add(rB).Sub(a.state.Position.Add(rA))
		j.accumulatePositional(positional(a, b, rA, rB, delta.Mul(erp), alphaTilde, unbounded), rA, rB)
		j.accumulateAngular(angular(a, b, rotationError(a.state.Rotation, b.state.Rotation, j.rest).Mul(erp), alphaTilde, unbounded))
	}
}

// solveVelocity drives a velocity motor towards its target speed.
func (j *Joint) solveVelocity(a, b ref, h float64) {
	if j.record.Mode != constraint.MotorVelocity || j.record.MaxForce <= 0 {
		return
	}
	maxImpulse := j.record.MaxForce * h
	axis := j.axis(a)

	switch j.Kind {
	case constraint.Hinge:
		k := a.inverseInertiaAlong(axis) + b.inverseInertiaAlong(axis)
		if k < epsilon {
			return
		}
		current := b.state.AngularVelocity.Sub(a.state.AngularVelocity).Dot(axis)
		impulse := clamp((j.record.TargetVelocity-current)/k, -maxImpulse, maxImpulse)
		p := axis.Mul(impulse)
		a.applyAngularImpulse(p.Mul(-1))
		b.applyAngularImpulse(p)
		j.accumulateAngular(p.Mul(-h))

	case constraint.Slider:
		rA, rB := j.anchors(a, b)
		k := a.inverseMassAt(rA, axis) + b.inverseMassAt(rB, axis)
		if k < epsilon {
			return
		}
		current := b.velocityAt(rB).Sub(a.velocityAt(rA)).Dot(axis)
		impulse := clamp((j.record.TargetVelocity-current)/k, -maxImpulse, maxImpulse)
		p := axis.Mul(impulse)
		a.applyImpulse(p.Mul(-1), rA)
		b.applyImpulse(p, rB)
		j.accumulatePositional(p.Mul(-h), rA, rB)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
