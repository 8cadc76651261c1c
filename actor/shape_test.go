package actor

import (
	"math"
	"testing"

	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

func TestBoxComputeInertia(t *testing.T) {
	tests := []struct {
		name         string
		box          *Box
		mass         float64
		expectedDiag mgl64.Vec3
	}{
		{"unit cube", &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, 12.0, mgl64.Vec3{8, 8, 8}},
		{"rectangular box 2x3x4", &Box{HalfExtents: mgl64.Vec3{2, 3, 4}}, 12.0, mgl64.Vec3{100, 80, 52}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.ComputeInertia(tt.mass)
			if !mat3Equal(got, mgl64.Diag3(tt.expectedDiag), 1e-9) {
				t.Errorf("inertia = %v, want diag %v", got, tt.expectedDiag)
			}
		})
	}
}

func TestSphereComputeMassAndInertia(t *testing.T) {
	s := &Sphere{Radius: 2}
	mass := s.ComputeMass(1)
	want := 4.0 / 3.0 * math.Pi * 8
	if math.Abs(mass-want) > 1e-9 {
		t.Errorf("mass = %v, want %v", mass, want)
	}

	inertia := s.ComputeInertia(10)
	if math.Abs(inertia.At(0, 0)-16) > 1e-9 {
		t.Errorf("Ixx = %v, want 16", inertia.At(0, 0))
	}
}

func TestBoxComputeAABB_Rotated(t *testing.T) {
	b := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}
	transform := kinematics.NewTransform(mgl64.Vec3{5, 0, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1}))

	aabb := b.ComputeAABB(transform)
	r := math.Sqrt2
	if !vec3Equal(aabb.Min, mgl64.Vec3{5 - r, -r, -1}, 1e-9) || !vec3Equal(aabb.Max, mgl64.Vec3{5 + r, r, 1}, 1e-9) {
		t.Errorf("aabb = %v, want [%v, %v]", aabb, mgl64.Vec3{5 - r, -r, -1}, mgl64.Vec3{5 + r, r, 1})
	}
}

func TestPlaneComputeAABB_Unbounded(t *testing.T) {
	p := &Plane{Normal: mgl64.Vec3{0, 0, 1}, Distance: 0}
	aabb := p.ComputeAABB(kinematics.Identity())

	if aabb.Min.X() > -1e9 || aabb.Max.Y() < 1e9 {
		t.Errorf("plane aabb should be unbounded along the surface, got %v", aabb)
	}
	if aabb.Max.Z() != 0 || aabb.Min.Z() != -planeThickness {
		t.Errorf("plane slab z = [%v, %v], want [-%v, 0]", aabb.Min.Z(), aabb.Max.Z(), planeThickness)
	}
}

func TestBoxSupport(t *testing.T) {
	b := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}
	got := b.Support(mgl64.Vec3{-1, 1, -0.1})
	want := mgl64.Vec3{-1, 2, -3}

	if !vec3Equal(got, want, 1e-12) {
		t.Errorf("support = %v, want %v", got, want)
	}
}

func TestBoxContactFeature_FacesDirection(t *testing.T) {
	b := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}
	directions := []mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

	for _, d := range directions {
		face := b.ContactFeature(d)
		if len(face) != 4 {
			t.Fatalf("face for %v has %d vertices, want 4", d, len(face))
		}
		support := b.Support(d).Dot(d)
		for _, v := range face {
			if math.Abs(v.Dot(d)-support) > 1e-12 {
				t.Errorf("vertex %v of face %v is not on the support plane", v, d)
			}
		}
	}
}

func TestAABBUnionAndOverlap(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	b := AABB{Min: mgl64.Vec3{2, 2, 2}, Max: mgl64.Vec3{3, 3, 3}}

	if a.Overlaps(b) {
		t.Error("separated boxes should not overlap")
	}
	if !a.Expand(0.6).Overlaps(b.Expand(0.6)) {
		t.Error("expanded boxes should overlap")
	}

	u := EmptyAABB().Union(a).Union(b)
	if !u.ContainsPoint(mgl64.Vec3{1.5, 1.5, 1.5}) {
		t.Errorf("union %v should contain the gap", u)
	}
	if !EmptyAABB().Empty() {
		t.Error("EmptyAABB should be empty")
	}
}
