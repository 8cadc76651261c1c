// Package epa implements the Expanding Polytope Algorithm: starting from the
// GJK simplex of two overlapping convex sets, it finds the minimum translation
// that separates them, then builds a clipped contact manifold.
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"math"

	"github.com/akmonengine/keel/gjk"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

const (
	// MaxIterations limits polytope expansion.
	MaxIterations = 32

	// ConvergenceTolerance: a support point improving the closest face by
	// less than this ends the expansion.
	ConvergenceTolerance = 0.0001

	// MinFaceDistance: faces closer to the origin are degenerate.
	MinFaceDistance = 0.0001

	// NormalSnapThreshold clamps nearly-zero normal components to exactly zero.
	NormalSnapThreshold = 1e-8

	// DegeneratePenetrationEstimate is used when the simplex is too small to measure depth.
	DegeneratePenetrationEstimate = 0.01

	polytopeInitialCapacity = 4
)

var ErrNoConvergence = errors.New("epa: failed to converge")

// Penetration is the minimum translation of B along Normal (from A toward B)
// that separates the two sets.
type Penetration struct {
	Normal mgl64.Vec3
	Depth  float64
}

// EPA computes the penetration of two overlapping sets from the GJK simplex.
func EPA(a, b gjk.Convex, simplex *gjk.Simplex) (Penetration, error) {
	if simplex.Count < 4 {
		return degeneratePenetration(a, b, simplex), nil
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return Penetration{}, err
	}

	for i := 0; i < MaxIterations; i++ {
		if len(builder.faces) == 0 {
			break
		}

		closestIndex := builder.ClosestFaceIndex()
		closest := builder.faces[closestIndex]

		if closest.Distance < MinFaceDistance {
			builder.faces[closestIndex] = builder.faces[len(builder.faces)-1]
			builder.faces = builder.faces[:len(builder.faces)-1]
			continue
		}

		support := gjk.MinkowskiSupport(a, b, closest.Normal)
		if support.Dot(closest.Normal)-closest.Distance < ConvergenceTolerance {
			return Penetration{Normal: closest.Normal, Depth: closest.Distance}, nil
		}

		builder.AddPoint(support, closestIndex)
	}

	return Penetration{}, errors.Wrapf(ErrNoConvergence, "after %d iterations", MaxIterations)
}

// degeneratePenetration estimates the result when GJK stopped on a touching
// point or segment instead of a tetrahedron.
func degeneratePenetration(a, b gjk.Convex, simplex *gjk.Simplex) Penetration {
	if simplex.Count >= 2 {
		p0, p1 := simplex.Points[0], simplex.Points[1]
		closest := p0
		if p1.Len() < p0.Len() {
			closest = p1
		}
		if depth := closest.Len(); depth > NormalSnapThreshold {
			return Penetration{Normal: closest.Mul(1 / depth), Depth: depth}
		}
	}

	normal := b.Center().Sub(a.Center())
	if length := normal.Len(); length < NormalSnapThreshold {
		normal = mgl64.Vec3{0, 1, 0}
	} else {
		normal = normal.Mul(1.0 / length)
	}

	return Penetration{Normal: normal, Depth: DegeneratePenetrationEstimate}
}

// snapNormalToAxis clamps nearly-zero components so axis-aligned contacts
// stay exactly axis-aligned.
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length <= 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}

	return normal.Mul(1.0 / length)
}
