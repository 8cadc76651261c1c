package proximity

import (
	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// placed puts a local shape into world space for GJK/EPA, optionally
// swept by a sphere of radius margin.
type placed struct {
	shape     actor.Shape
	transform kinematics.Transform
	margin    float64
}

func (p placed) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	local := p.transform.InverseApplyVector(direction)
	support := p.transform.Apply(p.shape.Support(local))

	if p.margin > 0 && direction.LenSqr() > 1e-16 {
		support = support.Add(direction.Normalize().Mul(p.margin))
	}

	return support
}

func (p placed) Center() mgl64.Vec3 {
	return p.transform.Position
}

func (p placed) FeatureWorld(direction mgl64.Vec3) []mgl64.Vec3 {
	feature := p.shape.ContactFeature(p.transform.InverseApplyVector(direction))

	world := make([]mgl64.Vec3, len(feature))
	for i, v := range feature {
		world[i] = p.transform.Apply(v)
	}

	return world
}
