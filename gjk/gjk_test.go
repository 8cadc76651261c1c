package gjk

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

type sphere struct {
	center mgl64.Vec3
	radius float64
}

func (s sphere) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	return s.center.Add(direction.Normalize().Mul(s.radius))
}

func (s sphere) Center() mgl64.Vec3 { return s.center }

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

func TestMinkowskiSupport(t *testing.T) {
	a := sphere{mgl64.Vec3{0, 0, 0}, 1}
	b := sphere{mgl64.Vec3{3, 0, 0}, 1}

	// max(A.x) - min(B.x) = 1 - 2
	support := MinkowskiSupport(a, b, mgl64.Vec3{1, 0, 0})
	if support.X() != -1 {
		t.Errorf("support.X = %v, want -1", support.X())
	}
}

func TestGJK(t *testing.T) {
	tests := []struct {
		name string
		a, b Convex
		want bool
	}{
		{"spheres intersecting", sphere{mgl64.Vec3{0, 0, 0}, 1}, sphere{mgl64.Vec3{1.5, 0, 0}, 1}, true},
		{"spheres separated", sphere{mgl64.Vec3{0, 0, 0}, 1}, sphere{mgl64.Vec3{3, 0, 0}, 1}, false},
		{"spheres concentric", sphere{mgl64.Vec3{0, 0, 0}, 1}, sphere{mgl64.Vec3{0, 0, 0}, 0.5}, true},
		{"boxes intersecting", box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}, box{mgl64.Vec3{1.5, 0.2, -0.3}, mgl64.Vec3{1, 1, 1}}, true},
		{"boxes separated diagonally", box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}, box{mgl64.Vec3{2.5, 2.5, 2.5}, mgl64.Vec3{1, 1, 1}}, false},
		{"sphere in box", box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}}, sphere{mgl64.Vec3{0.5, 0, 0}, 0.5}, true},
		{"sphere near box corner", box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}, sphere{mgl64.Vec3{1.6, 1.6, 1.6}, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			simplex := &Simplex{}
			if got := GJK(tt.a, tt.b, simplex); got != tt.want {
				t.Errorf("GJK = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGJK_OverlapYieldsTetrahedron(t *testing.T) {
	simplex := SimplexPool.Get().(*Simplex)
	defer SimplexPool.Put(simplex)
	simplex.Reset()

	a := box{mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}}
	b := box{mgl64.Vec3{1.2, 0.3, 0.1}, mgl64.Vec3{1, 1, 1}}
	if !GJK(a, b, simplex) {
		t.Fatal("expected overlap")
	}
	if simplex.Count != 4 {
		t.Errorf("simplex count = %d, want 4", simplex.Count)
	}
}

func TestLine_OriginBehindA(t *testing.T) {
	simplex := &Simplex{Points: [4]mgl64.Vec3{{3, 0, 0}, {1, 0, 0}}, Count: 2}
	var direction mgl64.Vec3

	if line(simplex, &direction) {
		t.Fatal("a line cannot contain the origin here")
	}
	if simplex.Count != 1 || simplex.Points[0] != (mgl64.Vec3{1, 0, 0}) {
		t.Errorf("simplex = %v, want reduced to A", simplex.Points[:simplex.Count])
	}
	if direction != (mgl64.Vec3{-1, 0, 0}) {
		t.Errorf("direction = %v, want toward origin", direction)
	}
}

func TestTetrahedron_ContainsOrigin(t *testing.T) {
	simplex := &Simplex{
		Points: [4]mgl64.Vec3{{1, 1, 1}, {-1, -1, 1}, {-1, 1, -1}, {1, -1, -1}},
		Count:  4,
	}
	var direction mgl64.Vec3

	if !tetrahedron(simplex, &direction) {
		t.Error("regular tetrahedron around the origin should contain it")
	}
}
