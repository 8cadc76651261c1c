package kinematics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransform_ComposeInverse(t *testing.T) {
	a := NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{0, 0, 1}))
	identity := a.Compose(a.Inverse())

	if !identity.ApproxEqual(Identity(), 1e-9) {
		t.Errorf("a * inv(a) = %v, want identity", identity)
	}

	p := mgl64.Vec3{0.5, -1, 2}
	back := a.InverseApply(a.Apply(p))
	if !back.ApproxEqualThreshold(p, 1e-9) {
		t.Errorf("InverseApply(Apply(p)) = %v, want %v", back, p)
	}
}

func TestTransform_ZeroValueIsIdentity(t *testing.T) {
	var zero Transform
	p := mgl64.Vec3{1, 2, 3}

	if got := zero.Apply(p); !got.ApproxEqualThreshold(p, 1e-12) {
		t.Errorf("zero transform moved point to %v", got)
	}
}

func TestTree_WorldTransformChain(t *testing.T) {
	tree := NewTree()
	base, err := tree.AddFrame("base", WorldFrame)
	if err != nil {
		t.Fatalf("AddFrame: %v", err)
	}
	arm, err := tree.AddFrame("arm", base)
	if err != nil {
		t.Fatalf("AddFrame: %v", err)
	}

	s := tree.NewState()
	tree.SetTransform(base, NewTransform(mgl64.Vec3{1, 0, 0}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})), s)
	tree.SetTransform(arm, Translation(1, 0, 0), s)

	got := tree.WorldTransform(arm, s).Position
	want := mgl64.Vec3{1, 1, 0}
	if !got.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("arm world position = %v, want %v", got, want)
	}
}

func TestTree_SetWorldTransformUsesParentInSameState(t *testing.T) {
	tree := NewTree()
	base, _ := tree.AddFrame("base", WorldFrame)
	arm, _ := tree.AddFrame("arm", base)

	s := tree.NewState()
	tree.SetTransform(base, Translation(0, 0, 2), s)

	world := Translation(1, 0, 2)
	tree.SetWorldTransform(arm, world, s)

	if !s.Transforms[arm].ApproxEqual(Translation(1, 0, 0), 1e-9) {
		t.Errorf("relative = %v, want (1,0,0)", s.Transforms[arm])
	}
	if !tree.WorldTransform(arm, s).ApproxEqual(world, 1e-9) {
		t.Errorf("round trip = %v, want %v", tree.WorldTransform(arm, s), world)
	}
}

func TestTree_DuplicateFrame(t *testing.T) {
	tree := NewTree()
	if _, err := tree.AddFrame("a", WorldFrame); err != nil {
		t.Fatalf("AddFrame: %v", err)
	}
	if _, err := tree.AddFrame("a", WorldFrame); err == nil {
		t.Error("expected duplicate frame error")
	}
	if _, err := tree.AddFrame("b", 42); err == nil {
		t.Error("expected unknown parent error")
	}
}

func TestTree_OrderParentsFirst(t *testing.T) {
	tree := NewTree()
	a, _ := tree.AddFrame("a", WorldFrame)
	b, _ := tree.AddFrame("b", a)
	c, _ := tree.AddFrame("c", b)
	d, _ := tree.AddFrame("d", WorldFrame)

	order := tree.Order([]FrameID{c, b, d, a})
	want := []FrameID{a, d, b, c}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestState_CloneDoesNotAlias(t *testing.T) {
	tree := NewTree()
	f, _ := tree.AddFrame("f", WorldFrame)
	s := tree.NewState()
	s.EnsureJoints(2)
	s.Q[1] = 0.5
	s.Commands[0] = Command{Mode: CommandPosition, Position: 1}
	tree.SetTransform(f, Translation(1, 2, 3), s)

	clone := s.Clone()
	clone.Q[1] = 9
	clone.Commands[0].Position = 7
	clone.Transforms[f].Position[0] = 42

	if s.Q[1] != 0.5 {
		t.Errorf("Q aliased: %v", s.Q[1])
	}
	if s.Commands[0].Position != 1 {
		t.Errorf("Commands aliased: %v", s.Commands[0].Position)
	}
	if s.Transforms[f].Position.X() != 1 {
		t.Errorf("Transforms aliased: %v", s.Transforms[f].Position)
	}
}
