package solver

import (
	"math"

	"github.com/akmonengine/keel/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// contactConstraint is a contact record bound to its bodies for one step.
// Anchors are stored in body space so that the overlap follows the bodies
// through the substeps.
type contactConstraint struct {
	record *constraint.ContactRecord
	a, b   ref

	localA, localB mgl64.Vec3
	// overlap is the geometric overlap at the start of the step.
	overlap float64

	touching bool
	lambda   float64

	impulseA, torqueA mgl64.Vec3
	impulseB, torqueB mgl64.Vec3
}

func (c *contactConstraint) prepare(record *constraint.ContactRecord, a, b ref, depthBias float64) {
	*c = contactConstraint{record: record, a: a, b: b}

	c.localA = a.state.Rotation.Conjugate().Rotate(record.Position.Sub(a.state.Position))
	c.localB = b.state.Rotation.Conjugate().Rotate(record.Position.Sub(b.state.Position))
	c.overlap = record.Depth - depthBias
}

func (c *contactConstraint) anchors() (rA, rB mgl64.Vec3) {
	return c.a.state.Rotation.Rotate(c.localA), c.b.state.Rotation.Rotate(c.localB)
}

// solvePosition pushes the bodies apart until no more than layer of overlap remains.
func (c *contactConstraint) solvePosition(alphaTilde, layer float64) {
	n := c.record.Normal
	rA, rB := c.anchors()

	pA := c.a.state.Position.Add(rA)
	pB := c.b.state.Position.Add(rB)
	overlap := c.overlap - pB.Sub(pA).Dot(n)
	if overlap > 0 {
		c.touching = true
	}

	penetration := overlap - layer
	if penetration <= 1e-8 {
		return
	}

	p := positional(c.a, c.b, rA, rB, n.Mul(-penetration), alphaTilde, math.Inf(1))
	c.lambda += p.Len()
	c.accumulate(p, rA, rB)
}

// solveVelocity applies restitution and friction to a touching contact.
func (c *contactConstraint) solveVelocity(h float64, gravity mgl64.Vec3) {
	if !c.touching {
		return
	}

	n := c.record.Normal
	surface := c.record.Surface
	rA, rB := c.anchors()

	vA := c.a.velocityAt(rA)
	vB := c.b.velocityAt(rB)
	relativeVel := vB.Sub(vA)
	normalVel := relativeVel.Dot(n)

	relativeVelPrev := c.b.presolveVelocityAt(rB).Sub(c.a.presolveVelocityAt(rA))
	normalVelPrev := relativeVelPrev.Dot(n)

	effectiveMassNormal := c.a.inverseMassAt(rA, n) + c.b.inverseMassAt(rB, n)
	if effectiveMassNormal < 1e-10 {
		return
	}

	restitution := surface.Restitution
	// resting contacts do not bounce off the velocity gravity adds in one substep
	if math.Abs(normalVelPrev) <= 2*gravity.Len()*h {
		restitution = 0
	}

	targetVel := -restitution * normalVelPrev
	if normalVelPrev > 0 {
		targetVel = 0
	}
	lambdaNormal := (targetVel - normalVel) / effectiveMassNormal
	if lambdaNormal < 0 {
		lambdaNormal = 0
	}

	normalImpulse := n.Mul(lambdaNormal)
	c.a.applyImpulse(normalImpulse.Mul(-1), rA)
	c.b.applyImpulse(normalImpulse, rB)
	c.accumulate(normalImpulse.Mul(-h), rA, rB)

	// Coulomb friction bounded by the normal impulse of this pass and the
	// position correction of the substep.
	normalBound := lambdaNormal + c.lambda/h
	if normalBound <= 0 {
		return
	}

	tangentVel := relativeVel.Sub(n.Mul(normalVel))
	tangentSpeed := tangentVel.Len()
	if tangentSpeed <= 1e-6 {
		return
	}
	tangentDir := tangentVel.Mul(1.0 / tangentSpeed)

	effectiveMassTangent := c.a.inverseMassAt(rA, tangentDir) + c.b.inverseMassAt(rB, tangentDir)
	if effectiveMassTangent < 1e-10 {
		return
	}

	lambdaTangent := tangentSpeed / effectiveMassTangent
	if lambdaTangent > surface.StaticFriction*normalBound {
		lambdaTangent = surface.DynamicFriction * normalBound
	}

	frictionImpulse := tangentDir.Mul(-lambdaTangent)
	c.a.applyImpulse(frictionImpulse.Mul(-1), rA)
	c.b.applyImpulse(frictionImpulse, rB)
	c.accumulate(frictionImpulse.Mul(-h), rA, rB)
}

// accumulate records the positional impulse p applied to A; B received -p.
func (c *contactConstraint) accumulate(p, rA, rB mgl64.Vec3) {
	c.impulseA = c.impulseA.Add(p)
	c.torqueA = c.torqueA.Add(rA.Cross(p))
	c.impulseB = c.impulseB.Sub(p)
	c.torqueB = c.torqueB.Add(rB.Cross(p.Mul(-1)))
}

func (c *contactConstraint) resetSubstep() {
	c.touching = false
	c.lambda = 0
}
