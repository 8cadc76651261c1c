package epa

import (
	"math"
	"testing"

	"github.com/akmonengine/keel/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

type box struct {
	center mgl64.Vec3
	half   mgl64.Vec3
}

func (b box) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	p := b.half
	for i := 0; i < 3; i++ {
		if direction[i] < 0 {
			p[i] = -p[i]
		}
	}
	return b.center.Add(p)
}

func (b box) Center() mgl64.Vec3 { return b.center }

// FeatureWorld returns the axis-aligned face facing direction.
func (b box) FeatureWorld(direction mgl64.Vec3) []mgl64.Vec3 {
	axis := 0
	for i := 1; i < 3; i++ {
		if math.Abs(direction[i]) > math.Abs(direction[axis]) {
			axis = i
		}
	}
	u, v := (axis+1)%3, (axis+2)%3
	sign := math.Copysign(1, direction[axis])

	face := make([]mgl64.Vec3, 0, 4)
	for _, s := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		var p mgl64.Vec3
		p[axis] = sign * b.half[axis]
		p[u] = s[0] * b.half[u]
		p[v] = s[1] * b.half[v]
		face = append(face, b.center.Add(p))
	}
	return face
}

func TestEPA_BoxesOverlapAlongX(t *testing.T) {
	a := box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}
	b := box{mgl64.Vec3{1.8, 0.1, -0.2}, mgl64.Vec3{1, 1, 1}}

	simplex := &gjk.Simplex{}
	if !gjk.GJK(a, b, simplex) {
		t.Fatal("expected overlap")
	}

	penetration, err := EPA(a, b, simplex)
	if err != nil {
		t.Fatalf("EPA: %v", err)
	}
	if math.Abs(penetration.Depth-0.2) > 1e-3 {
		t.Errorf("depth = %v, want 0.2", penetration.Depth)
	}
	if !penetration.Normal.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-6) {
		t.Errorf("normal = %v, want +X", penetration.Normal)
	}
}

func TestDegeneratePenetration_SinglePoint(t *testing.T) {
	a := box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}
	b := box{mgl64.Vec3{0, 0, 3}, mgl64.Vec3{1, 1, 1}}
	simplex := &gjk.Simplex{Count: 1}

	got := degeneratePenetration(a, b, simplex)
	if !got.Normal.ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-12) {
		t.Errorf("normal = %v, want +Z", got.Normal)
	}
	if got.Depth != DegeneratePenetrationEstimate {
		t.Errorf("depth = %v, want %v", got.Depth, DegeneratePenetrationEstimate)
	}
}

func TestSnapNormalToAxis(t *testing.T) {
	got := snapNormalToAxis(mgl64.Vec3{1e-10, 1, -1e-9})
	if got != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("snap = %v, want (0,1,0)", got)
	}
	if got := snapNormalToAxis(mgl64.Vec3{}); got != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("snap zero = %v, want default (0,1,0)", got)
	}
}

func TestPolytope_CentroidCountsEveryVertex(t *testing.T) {
	b := &PolytopeBuilder{}
	simplex := &gjk.Simplex{
		Points: [4]mgl64.Vec3{{1, 1, 1}, {-1, -1, 1}, {-1, 1, -1}, {1, -1, -1}},
		Count:  4,
	}
	if err := b.BuildInitialFaces(simplex); err != nil {
		t.Fatalf("BuildInitialFaces: %v", err)
	}

	centroid := b.centroid()
	if len(b.uniquePoints) != 4 {
		t.Errorf("unique points = %d, want 4", len(b.uniquePoints))
	}
	if centroid.Len() > 1e-12 {
		t.Errorf("centroid = %v, want origin", centroid)
	}
}

func TestGenerateManifold_StackedBoxes(t *testing.T) {
	a := box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}
	b := box{mgl64.Vec3{0, 0, 1.95}, mgl64.Vec3{0.5, 0.5, 1}}

	contacts := GenerateManifold(a, b, mgl64.Vec3{0, 0, 1}, 0.001)
	if len(contacts) != 4 {
		t.Fatalf("contacts = %d, want 4", len(contacts))
	}
	for _, c := range contacts {
		if math.Abs(c.Separation+0.05) > 1e-9 {
			t.Errorf("separation = %v, want -0.05", c.Separation)
		}
		if d := c.PointB.Sub(c.PointA).Dot(mgl64.Vec3{0, 0, 1}); math.Abs(d-c.Separation) > 1e-9 {
			t.Errorf("witness gap %v does not match separation %v", d, c.Separation)
		}
	}
}

func TestGenerateManifold_DropsBeyondMargin(t *testing.T) {
	a := box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}
	b := box{mgl64.Vec3{0, 0, 2.5}, mgl64.Vec3{1, 1, 1}}

	contacts := GenerateManifold(a, b, mgl64.Vec3{0, 0, 1}, 0.1)
	if len(contacts) != 1 {
		t.Fatalf("contacts = %d, want the single fallback", len(contacts))
	}
	if math.Abs(contacts[0].Separation-0.5) > 1e-9 {
		t.Errorf("fallback separation = %v, want 0.5", contacts[0].Separation)
	}
}

func TestReduceToExtremes_Deterministic(t *testing.T) {
	var contacts []Contact
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 4
		p := mgl64.Vec3{math.Cos(angle), math.Sin(angle), 0}
		contacts = append(contacts, Contact{PointA: p, PointB: p})
	}

	first := reduceToExtremes(contacts, mgl64.Vec3{0, 0, 1})
	second := reduceToExtremes(contacts, mgl64.Vec3{0, 0, 1})
	if len(first) == 0 || len(first) > MaxManifoldPoints {
		t.Fatalf("reduced to %d points", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("point %d differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}
