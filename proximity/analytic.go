package proximity

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/epa"
	"github.com/akmonengine/keel/gjk"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Analytic is the built-in narrow phase: closed-form queries for pairs
// involving spheres and planes, GJK/EPA with clipped manifolds for box pairs.
// It keeps scratch buffers and is not safe for concurrent use.
type Analytic struct {
	scratch Result
}

func NewAnalytic() *Analytic {
	return &Analytic{}
}

// InCollision reports whether the shapes overlap deeper than query.Tolerance.
func (s *Analytic) InCollision(a actor.Shape, aT kinematics.Transform, b actor.Shape, bT kinematics.Transform, query Query) (bool, error) {
	s.scratch.Reset()

	// only contacts at least Tolerance deep are accepted, so the first one settles the answer
	err := s.Distances(a, aT, b, bT, -math.Abs(query.Tolerance), Query{Type: FirstContact}, &s.scratch)
	if err != nil {
		return false, err
	}

	return s.scratch.Len() > 0, nil
}

// Distances appends every contact between a and b separated by at most maxSeparation.
func (s *Analytic) Distances(a actor.Shape, aT kinematics.Transform, b actor.Shape, bT kinematics.Transform, maxSeparation float64, query Query, out *Result) error {
	flip := false
	if a.Type() > b.Type() {
		a, b = b, a
		aT, bT = bT, aT
		flip = true
	}

	e := emitter{out: out, flip: flip, maxSeparation: maxSeparation, first: query.Type == FirstContact}

	switch {
	case a.Type() == actor.ShapeTypeSphere && b.Type() == actor.ShapeTypeSphere:
		sphereSphere(a.(*actor.Sphere), aT, b.(*actor.Sphere), bT, &e)
	case a.Type() == actor.ShapeTypeSphere && b.Type() == actor.ShapeTypeBox:
		sphereBox(a.(*actor.Sphere), aT, b.(*actor.Box), bT, &e)
	case a.Type() == actor.ShapeTypeSphere && b.Type() == actor.ShapeTypePlane:
		spherePlane(a.(*actor.Sphere), aT, b.(*actor.Plane), bT, &e)
	case a.Type() == actor.ShapeTypeBox && b.Type() == actor.ShapeTypePlane:
		boxPlane(a.(*actor.Box), aT, b.(*actor.Plane), bT, &e)
	case a.Type() == actor.ShapeTypeBox && b.Type() == actor.ShapeTypeBox:
		return convexConvex(a, aT, b, bT, &e)
	default:
		return errors.Wrapf(ErrUnsupportedPair, "%v-%v", a.Type(), b.Type())
	}

	return nil
}

// emitter filters contacts by separation, restores the caller's A/B order
// and stops after the first contact in FirstContact mode.
type emitter struct {
	out           *Result
	flip          bool
	maxSeparation float64
	first         bool
	done          bool
}

func (e *emitter) emit(distance float64, pointA, pointB, normal mgl64.Vec3) {
	if e.done || distance > e.maxSeparation {
		return
	}

	if e.flip {
		e.out.add(distance, pointB, pointA, normal.Mul(-1))
	} else {
		e.out.add(distance, pointA, pointB, normal)
	}
	e.done = e.first
}

func sphereSphere(a *actor.Sphere, aT kinematics.Transform, b *actor.Sphere, bT kinematics.Transform, e *emitter) {
	diff := bT.Position.Sub(aT.Position)
	dist := diff.Len()

	normal := mgl64.Vec3{0, 0, 1}
	if dist > 1e-12 {
		normal = diff.Mul(1 / dist)
	}

	e.emit(
		dist-a.Radius-b.Radius,
		aT.Position.Add(normal.Mul(a.Radius)),
		bT.Position.Sub(normal.Mul(b.Radius)),
		normal,
	)
}

func sphereBox(a *actor.Sphere, aT kinematics.Transform, b *actor.Box, bT kinematics.Transform, e *emitter) {
	center := aT.Position
	local := bT.InverseApply(center)
	half := b.HalfExtents

	inside := true
	var clamped mgl64.Vec3
	for i := 0; i < 3; i++ {
		clamped[i] = math.Max(-half[i], math.Min(half[i], local[i]))
		if math.Abs(local[i]) > half[i] {
			inside = false
		}
	}

	if !inside {
		closest := bT.Apply(clamped)
		diff := closest.Sub(center)
		dist := diff.Len()
		normal := diff.Mul(1 / dist)

		e.emit(dist-a.Radius, center.Add(normal.Mul(a.Radius)), closest, normal)
		return
	}

	// center inside the box: leave through the nearest face
	axis := 0
	faceDist := half[0] - math.Abs(local[0])
	for i := 1; i < 3; i++ {
		if d := half[i] - math.Abs(local[i]); d < faceDist {
			axis, faceDist = i, d
		}
	}
	var outward mgl64.Vec3
	outward[axis] = math.Copysign(1, local[axis])
	outward = bT.ApplyVector(outward)

	e.emit(
		-(faceDist + a.Radius),
		center.Sub(outward.Mul(a.Radius)),
		center.Add(outward.Mul(faceDist)),
		outward.Mul(-1),
	)
}

func planeFrame(p *actor.Plane, pT kinematics.Transform) (normal, origin mgl64.Vec3) {
	return pT.ApplyVector(p.Normal).Normalize(), pT.Apply(p.Origin())
}

func spherePlane(a *actor.Sphere, aT kinematics.Transform, b *actor.Plane, bT kinematics.Transform, e *emitter) {
	planeNormal, origin := planeFrame(b, bT)
	height := aT.Position.Sub(origin).Dot(planeNormal)

	e.emit(
		height-a.Radius,
		aT.Position.Sub(planeNormal.Mul(a.Radius)),
		aT.Position.Sub(planeNormal.Mul(height)),
		planeNormal.Mul(-1),
	)
}

// boxPlane reports one contact per vertex, like a box resting on a face.
func boxPlane(a *actor.Box, aT kinematics.Transform, b *actor.Plane, bT kinematics.Transform, e *emitter) {
	planeNormal, origin := planeFrame(b, bT)

	for _, corner := range a.Corners() {
		vertex := aT.Apply(corner)
		height := vertex.Sub(origin).Dot(planeNormal)

		e.emit(height, vertex, vertex.Sub(planeNormal.Mul(height)), planeNormal.Mul(-1))
		if e.done {
			return
		}
	}
}

// convexConvex sweeps A by the separation threshold so that shapes separated
// but within the band still overlap for GJK, then measures with EPA and
// clips a manifold from the unswept shapes.
func convexConvex(a actor.Shape, aT kinematics.Transform, b actor.Shape, bT kinematics.Transform, e *emitter) error {
	margin := math.Max(e.maxSeparation, 0)
	swept := placed{shape: a, transform: aT, margin: margin}
	other := placed{shape: b, transform: bT}

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)
	simplex.Reset()

	if !gjk.GJK(swept, other, simplex) {
		return nil
	}

	penetration, err := epa.EPA(swept, other, simplex)
	if err != nil {
		return err
	}
	if margin-penetration.Depth > e.maxSeparation {
		return nil
	}

	contacts := epa.GenerateManifold(placed{shape: a, transform: aT}, other, penetration.Normal, e.maxSeparation)
	for _, c := range contacts {
		e.emit(c.Separation, c.PointA, c.PointB, penetration.Normal)
		if e.done {
			break
		}
	}

	return nil
}
