package joint

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

func createRevolute(name string) Joint {
	return Joint{
		Name:   name,
		Kind:   Revolute,
		Parent: 0,
		Child:  1,
		Axis:   mgl64.Vec3{0, 0, 2},
		Lower:  -1,
		Upper:  1,
	}
}

func TestArena_AddNormalizesAxis(t *testing.T) {
	var arena Arena
	id, err := arena.Add(createRevolute("shoulder"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	j, err := arena.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if j.Axis != (mgl64.Vec3{0, 0, 1}) {
		t.Errorf("axis = %v, want unit Z", j.Axis)
	}
	if j.Owner != NoOwner {
		t.Errorf("owner = %d, want NoOwner", j.Owner)
	}
}

func TestArena_DependentNeedsEarlierOwner(t *testing.T) {
	var arena Arena

	finger := Joint{Name: "finger", Kind: DependentRevolute, Axis: mgl64.Vec3{1, 0, 0}, Owner: 0, Scale: 2}
	if _, err := arena.Add(finger); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("err = %v, want ErrInvalidOwner", err)
	}

	owner, _ := arena.Add(createRevolute("knuckle"))
	finger.Owner = owner
	id, err := arena.Add(finger)
	if err != nil {
		t.Fatalf("Add dependent: %v", err)
	}
	if got, _ := arena.Lookup("finger"); got != id {
		t.Errorf("Lookup(finger) = %d, want %d", got, id)
	}
}

func TestJoint_Clamp(t *testing.T) {
	j := createRevolute("elbow")

	if got := j.Clamp(1.5); got != 1 {
		t.Errorf("Clamp(1.5) = %v, want 1", got)
	}
	if got := j.Clamp(-3); got != -1 {
		t.Errorf("Clamp(-3) = %v, want -1", got)
	}

	j.Lower, j.Upper = math.Inf(-1), math.Inf(1)
	if got := j.Clamp(42); got != 42 {
		t.Errorf("unlimited Clamp(42) = %v, want 42", got)
	}
}

func TestKind_Predicates(t *testing.T) {
	if !DependentPrismatic.Dependent() || Prismatic.Dependent() {
		t.Error("Dependent() wrong for prismatic kinds")
	}
	if !DependentRevolute.Angular() || DependentPrismatic.Angular() {
		t.Error("Angular() wrong for dependent kinds")
	}
	if Kind(9).Valid() {
		t.Error("Kind(9) reported valid")
	}
}
