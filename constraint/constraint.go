// Package constraint turns clustered contacts and declared joints into the
// constraint records a solver consumes for one step.
package constraint

import (
	"github.com/akmonengine/keel/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// ContactRecord is one contact constraint between two bodies.
type ContactRecord struct {
	BodyA, BodyB actor.Handle
	Position     mgl64.Vec3
	// Normal points from A into B.
	Normal mgl64.Vec3
	// Depth is the error the solver corrects; negative inside the allowed band.
	Depth   float64
	Surface Surface

	Feedback int
	// Source is the index of the originating contact point in the step's arena.
	Source int
}

// JointKind is the engine-level constraint built for a joint.
type JointKind int

const (
	Hinge JointKind = iota
	Slider
	// Fixed welds two bodies together.
	Fixed
)

func (k JointKind) String() string {
	switch k {
	case Hinge:
		return "hinge"
	case Slider:
		return "slider"
	case Fixed:
		return "fixed"
	}
	return "unknown"
}

// MotorMode selects what a joint motor drives.
type MotorMode int

const (
	MotorOff MotorMode = iota
	MotorVelocity
	MotorPosition
)

// JointRecord is the per-step state of one joint constraint. Slot selects the
// joint the solver registered at scene initialization.
type JointRecord struct {
	Slot         int
	Kind         JointKind
	BodyA, BodyB actor.Handle

	Limited bool
	Lo, Hi  float64
	// MaxForce bounds the motor force or torque.
	MaxForce float64

	Mode           MotorMode
	TargetVelocity float64
	TargetPosition float64
	// Coupled joints track a target derived from another joint.
	Coupled bool

	Feedback int
}

// Set is the constraint set of one step.
type Set struct {
	Contacts []ContactRecord
	Joints   []JointRecord
}

// Reset empties the set, keeping its storage.
func (s *Set) Reset() {
	s.Contacts = s.Contacts[:0]
	s.Joints = s.Joints[:0]
}

func (s *Set) Len() int {
	return len(s.Contacts) + len(s.Joints)
}
