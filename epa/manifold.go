package epa

import (
	"math"

	"github.com/akmonengine/keel/gjk"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxManifoldPoints caps the points produced by GenerateManifold.
const MaxManifoldPoints = 4

// Featured is a convex set that also exposes the vertex, edge or face it
// presents along a direction, in world space.
type Featured interface {
	gjk.Convex
	FeatureWorld(direction mgl64.Vec3) []mgl64.Vec3
}

// Contact is one point of a manifold: witness points on each set and their
// signed separation along the manifold normal (negative when overlapping).
type Contact struct {
	PointA     mgl64.Vec3
	PointB     mgl64.Vec3
	Separation float64
}

// GenerateManifold builds up to 4 contacts for two sets touching along
// normal (from A toward B), using Sutherland-Hodgman clipping of the incident
// feature against the reference face. Points separated by more than margin
// are dropped.
func GenerateManifold(a, b Featured, normal mgl64.Vec3, margin float64) []Contact {
	featureA := a.FeatureWorld(normal)
	featureB := b.FeatureWorld(normal.Mul(-1))

	// the plane of each set's extreme point along the normal
	planeA := a.SupportWorld(normal).Dot(normal)
	planeB := b.SupportWorld(normal.Mul(-1)).Dot(normal)

	incidentIsB := len(featureB) <= len(featureA)
	incident, reference := featureA, featureB
	if incidentIsB {
		incident, reference = featureB, featureA
	}

	if len(reference) >= 3 {
		incident = clipIncidentAgainstReference(incident, reference, normal)
	}

	contacts := make([]Contact, 0, len(incident))
	for _, p := range incident {
		var c Contact
		if incidentIsB {
			c.Separation = p.Dot(normal) - planeA
			c.PointB = p
			c.PointA = p.Sub(normal.Mul(c.Separation))
		} else {
			c.Separation = planeB - p.Dot(normal)
			c.PointA = p
			c.PointB = p.Add(normal.Mul(c.Separation))
		}

		if c.Separation <= margin {
			contacts = append(contacts, c)
		}
	}

	if len(contacts) == 0 {
		pointA := a.SupportWorld(normal)
		pointB := b.SupportWorld(normal.Mul(-1))
		separation := pointB.Sub(pointA).Dot(normal)
		contacts = append(contacts, Contact{
			PointA:     pointA,
			PointB:     pointA.Add(normal.Mul(separation)),
			Separation: separation,
		})
	}

	if len(contacts) > MaxManifoldPoints {
		contacts = reduceToExtremes(contacts, normal)
	}

	return contacts
}

// clipIncidentAgainstReference clips the incident polygon against the side
// planes of the reference face.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	center := computeCenter(reference)
	output := incident

	for i := 0; i < len(reference) && len(output) > 0; i++ {
		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		clipNormal := v2.Sub(v1).Cross(normal)
		if clipNormal.LenSqr() < 1e-16 {
			continue
		}
		clipNormal = clipNormal.Normalize()
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		output = clipPolygonAgainstPlane(output, v1, clipNormal)
	}

	return output
}

// clipPolygonAgainstPlane keeps the part of polygon on the positive side of the plane.
func clipPolygonAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	const tolerance = 1e-6

	if len(polygon) == 0 {
		return polygon
	}
	if len(polygon) == 1 {
		if polygon[0].Sub(planePoint).Dot(planeNormal) >= -tolerance {
			return polygon
		}
		return nil
	}

	output := make([]mgl64.Vec3, 0, len(polygon)+2)
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -tolerance {
			output = append(output, current)
			if nextDist < -tolerance {
				output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
			}
		} else if nextDist >= -tolerance {
			output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
		}
	}

	// a segment yields its two clipped endpoints twice
	if len(polygon) == 2 && len(output) > 2 {
		output = dedupe(output)
	}

	return output
}

func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	denom := dir.Dot(planeNormal)
	if math.Abs(denom) < 1e-10 {
		return p1
	}

	t := -p1.Sub(planePoint).Dot(planeNormal) / denom
	t = math.Max(0, math.Min(1, t))

	return p1.Add(dir.Mul(t))
}

func computeCenter(points []mgl64.Vec3) mgl64.Vec3 {
	if len(points) == 0 {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}

func dedupe(points []mgl64.Vec3) []mgl64.Vec3 {
	out := points[:0]
	for _, p := range points {
		duplicate := false
		for _, q := range out {
			if p.Sub(q).LenSqr() < 1e-18 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, p)
		}
	}
	return out
}

// reduceToExtremes keeps the contacts extremal along the two tangent axes,
// in a fixed order so identical inputs give identical outputs.
func reduceToExtremes(contacts []Contact, normal mgl64.Vec3) []Contact {
	tangent1, tangent2 := kinematics.TangentBasis(normal)

	var extremes [4]int
	best := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i, c := range contacts {
		x := c.PointA.Dot(tangent1)
		y := c.PointA.Dot(tangent2)

		if x < best[0] {
			best[0], extremes[0] = x, i
		}
		if x > best[1] {
			best[1], extremes[1] = x, i
		}
		if y < best[2] {
			best[2], extremes[2] = y, i
		}
		if y > best[3] {
			best[3], extremes[3] = y, i
		}
	}

	result := make([]Contact, 0, MaxManifoldPoints)
	var seen [MaxManifoldPoints]int
	for _, idx := range extremes {
		duplicate := false
		for _, s := range seen[:len(result)] {
			if s == idx {
				duplicate = true
				break
			}
		}
		if !duplicate {
			seen[len(result)] = idx
			result = append(result, contacts[idx])
		}
	}

	return result
}
