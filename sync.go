package keel

import (
	"sort"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/akmonengine/keel/solver"
	"github.com/go-gl/mathgl/mgl64"
)

// SceneGraph is the kinematic tree the simulator mirrors. Placements are
// parent-relative and live in a kinematics.State.
type SceneGraph interface {
	WorldTransform(frame kinematics.FrameID, s *kinematics.State) kinematics.Transform
	SetTransform(frame kinematics.FrameID, transform kinematics.Transform, s *kinematics.State)
	Parent(frame kinematics.FrameID) (kinematics.FrameID, bool)
}

// Synchronizer moves state between the scene graph and the engine.
type Synchronizer struct {
	registry *Registry
	world    *solver.World
	graph    SceneGraph

	// jointSlots maps a joint.ID to its engine slot.
	jointSlots []int

	order []actor.Handle
}

func NewSynchronizer(registry *Registry, world *solver.World, graph SceneGraph) *Synchronizer {
	return &Synchronizer{registry: registry, world: world, graph: graph}
}

// BindJoint records the engine slot of the next joint.
func (s *Synchronizer) BindJoint(slot int) {
	s.jointSlots = append(s.jointSlots, slot)
}

// Pose is the world placement of the body frame of h, as the engine sees it.
func (s *Synchronizer) Pose(h actor.Handle) kinematics.Transform {
	body := s.registry.Body(h)
	st := s.world.State(h)
	if body == nil || st == nil {
		return kinematics.Identity()
	}

	com := kinematics.NewTransform(st.Position, st.Rotation)
	return com.Compose(body.MassFrame().Inverse())
}

// Place moves the engine bodies to the placements of state and clears their
// velocities. Kinematic bodies take the twist of their frame.
func (s *Synchronizer) Place(state *kinematics.State) {
	for i, body := range s.registry.Bodies() {
		h := actor.Handle(i)
		com := s.graph.WorldTransform(body.Frame, state).Compose(body.MassFrame())
		s.world.SetPose(h, com.Position, com.Rotation)
		s.world.SetVelocity(h, mgl64.Vec3{}, mgl64.Vec3{})
	}
	s.PreStep(state)
}

// PreStep pushes the commanded twists of kinematic bodies into the engine.
func (s *Synchronizer) PreStep(state *kinematics.State) {
	for i, body := range s.registry.Bodies() {
		if body.Kind != actor.Kinematic {
			continue
		}
		h := actor.Handle(i)
		twist := state.Twist(body.Frame)
		world := s.graph.WorldTransform(body.Frame, state)
		lever := world.ApplyVector(body.Info.MassCenter)

		s.world.SetVelocity(h, twist.Linear.Add(twist.Angular.Cross(lever)), twist.Angular)
	}
}

// PostStep writes the engine state into state. Parents are written before
// their children, so every parent-relative placement is computed against the
// parent's new placement.
func (s *Synchronizer) PostStep(state *kinematics.State) {
	for _, h := range s.ordered() {
		body := s.registry.Body(h)
		if body.Kind == actor.Fixed {
			continue
		}

		world := s.Pose(h)
		parentWorld := kinematics.Identity()
		if parent, ok := s.graph.Parent(body.Frame); ok {
			parentWorld = s.graph.WorldTransform(parent, state)
		}
		s.graph.SetTransform(body.Frame, parentWorld.Inverse().Compose(world), state)

		st := s.world.State(h)
		lever := world.ApplyVector(body.Info.MassCenter)
		state.SetTwist(body.Frame, kinematics.Twist{
			Linear:  st.Velocity.Sub(st.AngularVelocity.Cross(lever)),
			Angular: st.AngularVelocity,
		})
	}

	state.EnsureJoints(len(s.jointSlots))
	for id, slot := range s.jointSlots {
		state.Q[id] = s.world.JointPosition(slot)
		state.QDot[id] = s.world.JointVelocity(slot)
	}
}

// ordered returns the handles sorted by frame depth, ties by handle.
func (s *Synchronizer) ordered() []actor.Handle {
	if len(s.order) == s.registry.Len() {
		return s.order
	}

	bodies := s.registry.Bodies()
	depths := make([]int, len(bodies))
	s.order = s.order[:0]
	for i, body := range bodies {
		depths[i] = s.depth(body.Frame)
		s.order = append(s.order, actor.Handle(i))
	}
	sort.SliceStable(s.order, func(i, j int) bool {
		return depths[s.order[i]] < depths[s.order[j]]
	})

	return s.order
}

func (s *Synchronizer) depth(frame kinematics.FrameID) int {
	depth := 0
	for f, ok := s.graph.Parent(frame); ok; f, ok = s.graph.Parent(f) {
		depth++
	}
	return depth
}
