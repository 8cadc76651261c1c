package kinematics

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"
)

// Twist is a world-frame velocity of a frame origin.
type Twist struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

// CommandMode selects how a joint command is interpreted.
type CommandMode int

const (
	CommandNone CommandMode = iota
	CommandVelocity
	CommandPosition
)

// Command is what a controller asks of a joint for the next step.
type Command struct {
	Mode     CommandMode
	Velocity float64
	Position float64
}

// State is the configuration of a scene: parent-relative placements and
// velocities per frame, coordinates and commands per joint.
// It is a value: Clone never shares storage with the original.
type State struct {
	Transforms []Transform
	Twists     []Twist
	Q          []float64
	QDot       []float64
	Commands   []Command
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	clone := &State{}
	if err := copier.CopyWithOption(clone, s, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen for identical types
		panic(err)
	}

	return clone
}

// EnsureJoints grows the per-joint slices to hold n joints.
func (s *State) EnsureJoints(n int) {
	for len(s.Q) < n {
		s.Q = append(s.Q, 0)
	}
	for len(s.QDot) < n {
		s.QDot = append(s.QDot, 0)
	}
	for len(s.Commands) < n {
		s.Commands = append(s.Commands, Command{})
	}
}

// Twist returns the velocity of a frame, zero when unknown.
func (s *State) Twist(id FrameID) Twist {
	if id < 0 || int(id) >= len(s.Twists) {
		return Twist{}
	}
	return s.Twists[id]
}

// SetTwist stores the velocity of a frame.
func (s *State) SetTwist(id FrameID, twist Twist) {
	if id < 0 {
		return
	}
	s.grow(int(id) + 1)
	s.Twists[id] = twist
}

// Command returns the command for joint i, CommandNone when out of range.
func (s *State) Command(i int) Command {
	if i < 0 || i >= len(s.Commands) {
		return Command{}
	}
	return s.Commands[i]
}

func (s *State) grow(n int) {
	for len(s.Transforms) < n {
		s.Transforms = append(s.Transforms, Identity())
	}
	for len(s.Twists) < n {
		s.Twists = append(s.Twists, Twist{})
	}
}
