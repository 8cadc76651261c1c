package constraint

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/joint"
	"github.com/akmonengine/keel/kinematics"
	"github.com/pkg/errors"
)

var ErrUnsupportedKind = errors.New("constraint: unsupported joint kind")

// Participant is one side of a contact pair.
type Participant struct {
	Handle   actor.Handle
	Material int
	Type     int
}

// PairInput holds the clustered contacts of one body pair.
type PairInput struct {
	A, B   Participant
	Points []contact.Point
}

// Assembler builds constraint records. Feedback slots are taken from Pool
// for every constraint touching a body WantsFeedback accepts.
type Assembler struct {
	Materials     *MaterialTable
	Pool          *FeedbackPool
	WantsFeedback func(actor.Handle) bool
}

func NewAssembler(materials *MaterialTable, pool *FeedbackPool) *Assembler {
	return &Assembler{Materials: materials, Pool: pool}
}

// AssembleContacts appends one contact record per point of every pair.
func (a *Assembler) AssembleContacts(set *Set, pairs []PairInput) error {
	for _, pair := range pairs {
		surface := a.Materials.Lookup(pair.A.Material, pair.B.Material, pair.A.Type, pair.B.Type)

		wants := a.wants(pair.A.Handle, pair.B.Handle)

		for _, p := range pair.Points {
			rec := ContactRecord{
				BodyA:    pair.A.Handle,
				BodyB:    pair.B.Handle,
				Position: p.Position,
				Normal:   p.Normal,
				Depth:    p.Depth,
				Surface:  surface,
				Feedback: NoFeedback,
				Source:   p.Index,
			}
			if wants {
				slot, err := a.Pool.Acquire()
				if err != nil {
					return err
				}
				rec.Feedback = slot
			}
			set.Contacts = append(set.Contacts, rec)
		}
	}

	return nil
}

// AssembleJoints appends one record per joint of arena, in ID order.
// Commands come from the candidate state; dependent targets are computed
// from previousQ, the joint coordinates of the last committed state, so no
// joint sees another joint's in-progress update.
func (a *Assembler) AssembleJoints(set *Set, arena *joint.Arena, state *kinematics.State, previousQ []float64) error {
	for i, j := range arena.All() {
		id := joint.ID(i)

		rec := JointRecord{
			Slot:     i,
			BodyA:    j.Parent,
			BodyB:    j.Child,
			Limited:  j.Limited(),
			Lo:       j.Lower,
			Hi:       j.Upper,
			MaxForce: j.MaxForce,
			Feedback: NoFeedback,
		}

		switch j.Kind {
		case joint.Revolute, joint.DependentRevolute:
			rec.Kind = Hinge
		case joint.Prismatic, joint.DependentPrismatic:
			rec.Kind = Slider
		default:
			return errors.Wrapf(ErrUnsupportedKind, "joint %q kind %v", j.Name, j.Kind)
		}

		if j.Kind.Dependent() {
			rec.Mode = MotorPosition
			rec.Coupled = true
			rec.TargetPosition = DependentTarget(j, previousQ)
			if rec.MaxForce <= 0 {
				rec.MaxForce = math.Inf(1)
			}
		} else {
			command := state.Command(int(id))
			switch command.Mode {
			case kinematics.CommandVelocity:
				rec.Mode = MotorVelocity
				rec.TargetVelocity = command.Velocity
			case kinematics.CommandPosition:
				rec.Mode = MotorPosition
				rec.TargetPosition = j.Clamp(command.Position)
			}
		}

		if a.wants(j.Parent, j.Child) {
			slot, err := a.Pool.Acquire()
			if err != nil {
				return err
			}
			rec.Feedback = slot
		}

		set.Joints = append(set.Joints, rec)
	}

	return nil
}

// DependentTarget is Scale * q[owner] + Offset.
func DependentTarget(j joint.Joint, q []float64) float64 {
	var owner float64
	if j.Owner >= 0 && int(j.Owner) < len(q) {
		owner = q[j.Owner]
	}
	return j.Scale*owner + j.Offset
}

func (a *Assembler) wants(handles ...actor.Handle) bool {
	if a.WantsFeedback == nil || a.Pool == nil {
		return false
	}
	for _, h := range handles {
		if h != actor.NoHandle && a.WantsFeedback(h) {
			return true
		}
	}
	return false
}
