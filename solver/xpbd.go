package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-12

// positional removes delta, the offset of B's anchor from A's, by moving both
// bodies along it in proportion to their generalized inverse masses.
// alphaTilde is compliance/h². The magnitude of the correction is bounded by
// maxLambda. It returns the positional impulse applied to A; B receives its
// opposite.
func positional(a, b ref, rA, rB, delta mgl64.Vec3, alphaTilde, maxLambda float64) mgl64.Vec3 {
	c := delta.Len()
	if c < epsilon {
		return mgl64.Vec3{}
	}
	n := delta.Mul(1.0 / c)

	w := a.inverseMassAt(rA, n) + b.inverseMassAt(rB, n)
	if w+alphaTilde < epsilon {
		return mgl64.Vec3{}
	}

	lambda := math.Min(c/(w+alphaTilde), maxLambda)
	p := n.Mul(lambda)

	a.applyPositional(p, rA)
	b.applyPositional(p.Mul(-1), rB)

	return p
}

// angular removes delta, the rotation vector of B relative to A.
// It returns the angular impulse applied to A; B receives its opposite.
func angular(a, b ref, delta mgl64.Vec3, alphaTilde, maxLambda float64) mgl64.Vec3 {
	c := delta.Len()
	if c < epsilon {
		return mgl64.Vec3{}
	}
	n := delta.Mul(1.0 / c)

	w := a.inverseInertiaAlong(n) + b.inverseInertiaAlong(n)
	if w+alphaTilde < epsilon {
		return mgl64.Vec3{}
	}

	lambda := math.Min(c/(w+alphaTilde), maxLambda)
	p := n.Mul(lambda)

	a.applyAngular(p)
	b.applyAngular(p.Mul(-1))

	return p
}

// rotationError is the rotation vector taking the orientation A·rest to B.
func rotationError(qA, qB, rest mgl64.Quat) mgl64.Vec3 {
	target := qA.Mul(rest)
	qErr := qB.Mul(target.Conjugate())
	if qErr.W < 0 {
		qErr = qErr.Scale(-1)
	}
	return qErr.V.Mul(2)
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func finiteQuat(q mgl64.Quat) bool {
	return finite(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}
