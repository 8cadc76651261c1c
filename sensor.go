package keel

import (
	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/constraint"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// Sensor receives the constraint feedback of the body owning its frame after
// every committed step. side is 1 when that body was the first body of the
// records and 2 otherwise; other is the body on the far side. contacts is
// empty for joint feedback.
type Sensor interface {
	Frame() kinematics.FrameID
	AddFeedback(records []constraint.Feedback, contacts []contact.Point, other actor.Handle, side int)
}

// Resetter is implemented by sensors that keep state between steps.
type Resetter interface {
	Reset()
}

// ForceSensor sums the forces and torques applied to its body.
type ForceSensor struct {
	frame kinematics.FrameID

	Force    mgl64.Vec3
	Torque   mgl64.Vec3
	Contacts int
	// Touching lists the bodies that pushed on the sensor body, in delivery order.
	Touching []actor.Handle
}

func NewForceSensor(frame kinematics.FrameID) *ForceSensor {
	return &ForceSensor{frame: frame}
}

func (s *ForceSensor) Frame() kinematics.FrameID {
	return s.frame
}

func (s *ForceSensor) AddFeedback(records []constraint.Feedback, contacts []contact.Point, other actor.Handle, side int) {
	for _, fb := range records {
		if side == 1 {
			s.Force = s.Force.Add(fb.Force1)
			s.Torque = s.Torque.Add(fb.Torque1)
		} else {
			s.Force = s.Force.Add(fb.Force2)
			s.Torque = s.Torque.Add(fb.Torque2)
		}
	}
	s.Contacts += len(contacts)

	for _, h := range s.Touching {
		if h == other {
			return
		}
	}
	s.Touching = append(s.Touching, other)
}

// Reset clears the accumulated readings.
func (s *ForceSensor) Reset() {
	s.Force = mgl64.Vec3{}
	s.Torque = mgl64.Vec3{}
	s.Contacts = 0
	s.Touching = s.Touching[:0]
}
