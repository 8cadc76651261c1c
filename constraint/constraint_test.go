package constraint

import (
	"math"
	"testing"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/joint"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

func createTable(t *testing.T) *MaterialTable {
	t.Helper()
	table := NewMaterialTable()
	for _, m := range []Material{
		{Name: "steel", StaticFriction: 0.64, DynamicFriction: 0.36, Restitution: 0.2, Compliance: ConcreteCompliance},
		{Name: "wood", StaticFriction: 0.25, DynamicFriction: 0.16, Restitution: 0.6, Compliance: WoodCompliance},
		{Name: "foam", StaticFriction: 1, DynamicFriction: 1, Compliance: RubberCompliance, Soft: true},
	} {
		if _, err := table.AddMaterial(m); err != nil {
			t.Fatalf("AddMaterial(%s): %v", m.Name, err)
		}
	}
	return table
}

func createPendulumArena(t *testing.T) *joint.Arena {
	t.Helper()
	arena := &joint.Arena{}
	if _, err := arena.Add(joint.Joint{
		Name: "shoulder", Kind: joint.Revolute, Parent: actor.NoHandle, Child: 0,
		Axis: mgl64.Vec3{0, 1, 0}, Lower: -1, Upper: 1, MaxForce: 50,
	}); err != nil {
		t.Fatalf("Add shoulder: %v", err)
	}
	if _, err := arena.Add(joint.Joint{
		Name: "elbow", Kind: joint.DependentRevolute, Parent: 0, Child: 1,
		Axis: mgl64.Vec3{0, 1, 0}, Lower: -0.1, Upper: 0.1, Owner: 0, Scale: 2, Offset: 0.5,
	}); err != nil {
		t.Fatalf("Add elbow: %v", err)
	}
	return arena
}

func TestMixRestitution(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Material
		expected float64
	}{
		{"both zero", Material{Restitution: 0}, Material{Restitution: 0}, 0},
		{"one zero, one high", Material{Restitution: 0}, Material{Restitution: 0.8}, 0.4},
		{"same", Material{Restitution: 0.5}, Material{Restitution: 0.5}, 0.5},
		{"perfect", Material{Restitution: 1}, Material{Restitution: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MixRestitution(tt.a, tt.b); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("MixRestitution = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMixFriction_GeometricMean(t *testing.T) {
	a := Material{StaticFriction: 0.64, DynamicFriction: 0.36}
	b := Material{StaticFriction: 0.25, DynamicFriction: 0.16}

	if got := MixStaticFriction(a, b); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("static = %v, want 0.4", got)
	}
	if got := MixDynamicFriction(a, b); math.Abs(got-0.24) > 1e-12 {
		t.Errorf("dynamic = %v, want 0.24", got)
	}
}

func TestMaterialTable_LookupPrecedence(t *testing.T) {
	table := createTable(t)
	if err := table.SetPair("steel", "wood", Surface{StaticFriction: 0.9}); err != nil {
		t.Fatalf("SetPair: %v", err)
	}
	if err := table.SetTypePair("gripper", "part", Surface{StaticFriction: 2}); err != nil {
		t.Fatalf("SetTypePair: %v", err)
	}
	table.Freeze()

	steel, wood, foam := table.MaterialID("steel"), table.MaterialID("wood"), table.MaterialID("foam")
	gripper, part := table.TypeID("gripper"), table.TypeID("part")

	if got := table.Lookup(wood, steel, Unknown, Unknown).StaticFriction; got != 0.9 {
		t.Errorf("material pair friction = %v, want 0.9", got)
	}
	if got := table.Lookup(wood, steel, part, gripper).StaticFriction; got != 2 {
		t.Errorf("type pair friction = %v, want 2", got)
	}
	if got := table.Lookup(steel, steel, Unknown, Unknown); math.Abs(got.Restitution-0.2) > 1e-12 {
		t.Errorf("mixed restitution = %v, want 0.2", got.Restitution)
	}
	if !table.Lookup(foam, Unknown, Unknown, Unknown).Soft {
		t.Error("soft material lost against unknown material")
	}
	if got := table.Lookup(Unknown, Unknown, Unknown, Unknown); got != table.Default {
		t.Errorf("unknown pair = %+v, want default", got)
	}
}

func TestMaterialTable_FrozenRejectsChanges(t *testing.T) {
	table := createTable(t)
	table.Freeze()

	if _, err := table.AddMaterial(Material{Name: "ice"}); !errors.Is(err, ErrFrozen) {
		t.Errorf("AddMaterial after Freeze: err = %v, want ErrFrozen", err)
	}
	if err := table.SetPair("steel", "wood", Surface{}); !errors.Is(err, ErrFrozen) {
		t.Errorf("SetPair after Freeze: err = %v, want ErrFrozen", err)
	}
}

func TestFeedbackPool_Exhaustion(t *testing.T) {
	pool := NewFeedbackPool(2)

	for i := 0; i < 2; i++ {
		if slot, err := pool.Acquire(); err != nil || slot != i {
			t.Fatalf("Acquire %d = %d, %v", i, slot, err)
		}
	}
	if _, err := pool.Acquire(); !errors.Is(err, ErrFeedbackPoolExhausted) {
		t.Fatalf("third Acquire: err = %v, want ErrFeedbackPoolExhausted", err)
	}

	pool.Reset()
	if pool.Slot(0) != nil {
		t.Error("slot readable after Reset")
	}
	if slot, err := pool.Acquire(); err != nil || slot != 0 {
		t.Errorf("Acquire after Reset = %d, %v; want 0", slot, err)
	}
}

func TestAssembleContacts_FeedbackForSensedBodies(t *testing.T) {
	table := createTable(t)
	pool := NewFeedbackPool(8)
	asm := NewAssembler(table, pool)
	asm.WantsFeedback = func(h actor.Handle) bool { return h == 1 }

	points := []contact.Point{
		{Position: mgl64.Vec3{0, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Depth: 0.01, Index: 0},
		{Position: mgl64.Vec3{1, 0, 0}, Normal: mgl64.Vec3{0, 0, 1}, Depth: 0.02, Index: 1},
	}
	pairs := []PairInput{
		{A: Participant{Handle: 0, Material: table.MaterialID("steel")}, B: Participant{Handle: 1, Material: table.MaterialID("wood")}, Points: points},
		{A: Participant{Handle: 0}, B: Participant{Handle: 2}, Points: points[:1]},
	}

	var set Set
	if err := asm.AssembleContacts(&set, pairs); err != nil {
		t.Fatalf("AssembleContacts: %v", err)
	}
	if len(set.Contacts) != 3 {
		t.Fatalf("got %d records, want 3", len(set.Contacts))
	}
	if set.Contacts[0].Feedback != 0 || set.Contacts[1].Feedback != 1 {
		t.Errorf("feedback slots = %d,%d, want 0,1", set.Contacts[0].Feedback, set.Contacts[1].Feedback)
	}
	if set.Contacts[2].Feedback != NoFeedback {
		t.Errorf("unsensed pair got feedback slot %d", set.Contacts[2].Feedback)
	}
	if set.Contacts[1].Source != 1 || set.Contacts[1].Depth != 0.02 {
		t.Errorf("record %+v does not match its point", set.Contacts[1])
	}
}

func TestAssembleContacts_PoolExhaustion(t *testing.T) {
	asm := NewAssembler(createTable(t), NewFeedbackPool(1))
	asm.WantsFeedback = func(actor.Handle) bool { return true }

	points := make([]contact.Point, 3)
	var set Set
	err := asm.AssembleContacts(&set, []PairInput{{A: Participant{Handle: 0}, B: Participant{Handle: 1}, Points: points}})
	if !errors.Is(err, ErrFeedbackPoolExhausted) {
		t.Errorf("err = %v, want ErrFeedbackPoolExhausted", err)
	}
}

func TestAssembleJoints_PositionTargetClampedToLimits(t *testing.T) {
	arena := createPendulumArena(t)
	state := &kinematics.State{}
	state.EnsureJoints(arena.Len())
	state.Commands[0] = kinematics.Command{Mode: kinematics.CommandPosition, Position: 2.5}

	var set Set
	asm := NewAssembler(createTable(t), NewFeedbackPool(4))
	if err := asm.AssembleJoints(&set, arena, state, []float64{0, 0}); err != nil {
		t.Fatalf("AssembleJoints: %v", err)
	}

	shoulder := set.Joints[0]
	if shoulder.Kind != Hinge || shoulder.Mode != MotorPosition {
		t.Fatalf("shoulder record %+v, want hinge with position motor", shoulder)
	}
	if shoulder.TargetPosition != 1 {
		t.Errorf("target = %v, want clamped to 1", shoulder.TargetPosition)
	}
	if !shoulder.Limited || shoulder.Hi != 1 || shoulder.Lo != -1 {
		t.Errorf("limits = [%v,%v] limited=%v, want [-1,1]", shoulder.Lo, shoulder.Hi, shoulder.Limited)
	}
	if shoulder.MaxForce != 50 {
		t.Errorf("max force = %v, want 50", shoulder.MaxForce)
	}
}

func TestAssembleJoints_DependentUsesPreviousOwnerPosition(t *testing.T) {
	arena := createPendulumArena(t)
	state := &kinematics.State{}
	state.EnsureJoints(arena.Len())
	// the candidate state already moved the owner; the coupling must not see it
	state.Q[0] = 0.9
	state.Commands[1] = kinematics.Command{Mode: kinematics.CommandPosition, Position: -5}

	for _, previous := range []float64{-0.3, 0, 0.25, 0.7} {
		var set Set
		asm := NewAssembler(createTable(t), NewFeedbackPool(4))
		if err := asm.AssembleJoints(&set, arena, state, []float64{previous, 0}); err != nil {
			t.Fatalf("AssembleJoints: %v", err)
		}

		elbow := set.Joints[1]
		want := 2*previous + 0.5
		if elbow.TargetPosition != want {
			t.Errorf("owner at %v: target = %v, want %v", previous, elbow.TargetPosition, want)
		}
		if !elbow.Coupled || elbow.Mode != MotorPosition {
			t.Errorf("elbow record %+v, want coupled position motor", elbow)
		}
		if !math.IsInf(elbow.MaxForce, 1) {
			t.Errorf("coupling max force = %v, want unbounded", elbow.MaxForce)
		}
	}
}

func TestAssembleJoints_VelocityCommand(t *testing.T) {
	arena := createPendulumArena(t)
	state := &kinematics.State{}
	state.EnsureJoints(arena.Len())
	state.Commands[0] = kinematics.Command{Mode: kinematics.CommandVelocity, Velocity: 3}

	var set Set
	asm := NewAssembler(createTable(t), NewFeedbackPool(4))
	if err := asm.AssembleJoints(&set, arena, state, nil); err != nil {
		t.Fatalf("AssembleJoints: %v", err)
	}
	if set.Joints[0].Mode != MotorVelocity || set.Joints[0].TargetVelocity != 3 {
		t.Errorf("record %+v, want velocity motor at 3", set.Joints[0])
	}
}

func TestDataMap_Freeze(t *testing.T) {
	m := NewDataMap("a", "b")
	if id, _ := m.ID("b"); id != 1 {
		t.Errorf("ID(b) = %d, want 1", id)
	}
	m.Freeze()
	if id, err := m.Intern("a"); err != nil || id != 0 {
		t.Errorf("Intern known name after freeze = %d, %v", id, err)
	}
	if _, err := m.Intern("c"); !errors.Is(err, ErrFrozen) {
		t.Errorf("Intern new name after freeze: err = %v, want ErrFrozen", err)
	}
}
