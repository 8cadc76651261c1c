// Package gjk implements the Gilbert-Johnson-Keerthi overlap test between
// two convex sets given only their support mappings.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// MaxIterations bounds the simplex refinement loop.
const MaxIterations = 32

// Convex is a convex set placed in world space.
type Convex interface {
	// SupportWorld returns the point of the set furthest along direction.
	SupportWorld(direction mgl64.Vec3) mgl64.Vec3
	// Center is any interior point, used to seed the search direction.
	Center() mgl64.Vec3
}

// Simplex holds 1-4 points of the Minkowski difference, newest last.
type Simplex struct {
	Points [4]mgl64.Vec3
	Count  int
}

// Reset empties the simplex for reuse.
func (s *Simplex) Reset() {
	s.Count = 0
}

// SimplexPool recycles simplices across narrow-phase queries.
var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// MinkowskiSupport returns the support point of A - B along direction.
func MinkowskiSupport(a, b Convex, direction mgl64.Vec3) mgl64.Vec3 {
	return a.SupportWorld(direction).Sub(b.SupportWorld(direction.Mul(-1)))
}

// GJK reports whether a and b overlap. On overlap the simplex is a
// tetrahedron enclosing the origin (or a degenerate touching simplex),
// ready to seed EPA.
func GJK(a, b Convex, simplex *Simplex) bool {
	direction := b.Center().Sub(a.Center())
	if direction.LenSqr() < 1e-8 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.Points[0] = MinkowskiSupport(a, b, direction)
	simplex.Count = 1

	direction = simplex.Points[0].Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return true
	}

	for i := 0; i < MaxIterations; i++ {
		newPoint := MinkowskiSupport(a, b, direction)

		// the new point does not pass the origin: separated
		if newPoint.Dot(direction) <= 0 {
			return false
		}

		simplex.Points[simplex.Count] = newPoint
		simplex.Count++

		if containsOrigin(simplex, &direction) {
			return true
		}
	}

	return false
}

// containsOrigin reduces the simplex to the feature closest to the origin
// and updates the search direction. Only a tetrahedron can contain the origin.
func containsOrigin(simplex *Simplex, direction *mgl64.Vec3) bool {
	switch simplex.Count {
	case 2:
		return line(simplex, direction)
	case 3:
		return triangle(simplex, direction)
	case 4:
		return tetrahedron(simplex, direction)
	}
	return false
}

// line keeps the newest vertex or the whole edge, whichever region holds
// the origin, and aims the direction at it. A segment through the origin
// counts as contact.
func line(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[1]
	b := simplex.Points[0]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		simplex.Points[0] = a
		simplex.Count = 1
		*direction = ao
		return false
	}

	if ab.Dot(ao) <= 0 {
		simplex.Points[0] = a
		simplex.Count = 1
		*direction = ao
		return false
	}

	abPerp := ab.Cross(ao).Cross(ab)
	if abPerp.LenSqr() < 1e-8 {
		// origin on the segment
		return true
	}

	*direction = abPerp
	return false
}

// triangle reduces to the edge facing the origin, or keeps the face wound
// so its normal points at the origin. Collinear vertices fall back to line.
func triangle(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[2]
	b := simplex.Points[1]
	c := simplex.Points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	// collinear points, fall back to the newest edge
	if abc.LenSqr() < 1e-10 {
		simplex.Points[0] = b
		simplex.Points[1] = a
		simplex.Count = 2
		return line(simplex, direction)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		simplex.Points[0] = b
		simplex.Points[1] = a
		simplex.Count = 2
		*direction = ab.Cross(ao).Cross(ab)
		return false
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		simplex.Points[0] = c
		simplex.Points[1] = a
		simplex.Count = 2
		*direction = ac.Cross(ao).Cross(ac)
		return false
	}

	if abc.Dot(ao) > 0 {
		*direction = abc
	} else {
		// keep the winding so the normal faces the origin
		simplex.Points[0] = b
		simplex.Points[1] = c
		simplex.Points[2] = a
		*direction = abc.Mul(-1)
	}

	return false
}

// tetrahedron reports true when the origin lies behind all three faces
// sharing the newest vertex. Otherwise it keeps the face the origin sees.
func tetrahedron(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[3]
	b := simplex.Points[2]
	c := simplex.Points[1]
	d := simplex.Points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	// face normals point away from the opposite vertex
	abc := outward(ab.Cross(ac), ad)
	acd := outward(ac.Cross(ad), ab)
	adb := outward(ad.Cross(ab), ac)

	if abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10 {
		simplex.Points[0] = c
		simplex.Points[1] = b
		simplex.Points[2] = a
		simplex.Count = 3
		return triangle(simplex, direction)
	}

	switch {
	case abc.Dot(ao) > 0:
		simplex.Points[0] = c
		simplex.Points[1] = b
		simplex.Points[2] = a
	case acd.Dot(ao) > 0:
		simplex.Points[0] = d
		simplex.Points[1] = c
		simplex.Points[2] = a
	case adb.Dot(ao) > 0:
		simplex.Points[0] = b
		simplex.Points[1] = d
		simplex.Points[2] = a
	default:
		return true
	}

	simplex.Count = 3
	return triangle(simplex, direction)
}

// outward flips normal so it points away from toOpposite.
func outward(normal, toOpposite mgl64.Vec3) mgl64.Vec3 {
	if normal.Dot(toOpposite) > 0 {
		return normal.Mul(-1)
	}
	return normal
}
