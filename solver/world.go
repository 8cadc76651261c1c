package solver

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Config holds the world-level solver parameters.
type Config struct {
	Gravity       mgl64.Vec3
	MaxIterations int
	// CFM is the compliance added to every constraint.
	CFM float64
	// ERP is the fraction of joint error removed per solver pass.
	ERP float64
	// ContactSurfaceLayer is the overlap contacts are allowed to keep.
	ContactSurfaceLayer float64
	// DepthBias is subtracted from a contact record's depth to get the
	// geometric overlap.
	DepthBias   float64
	MaxVelocity float64
}

func DefaultConfig() Config {
	return Config{
		Gravity:             mgl64.Vec3{0, 0, -9.81},
		MaxIterations:       20,
		CFM:                 1e-7,
		ERP:                 0.2,
		ContactSurfaceLayer: 0.0001,
		DepthBias:           0.0005,
		MaxVelocity:         1e4,
	}
}

// World owns the solver bodies and joints. It is not safe for concurrent use.
type World struct {
	Config

	bodies  []Body
	state   State
	scratch []scratch

	ground        Body
	groundState   BodyState
	groundScratch scratch

	joints []*Joint

	set      *constraint.Set
	pool     *constraint.FeedbackPool
	contacts []contactConstraint
}

func NewWorld(config Config) *World {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 1
	}
	if config.ERP <= 0 || config.ERP > 1 {
		config.ERP = 1
	}

	w := &World{Config: config}
	w.ground = NewBody(Static, math.Inf(1), mgl64.Ident3())
	w.groundState = BodyState{Rotation: mgl64.QuatIdent()}

	return w
}

// AddBody registers body with its initial center of mass pose and returns its handle.
func (w *World) AddBody(body Body, position mgl64.Vec3, rotation mgl64.Quat) actor.Handle {
	handle := actor.Handle(len(w.bodies))
	body.Handle = handle

	w.bodies = append(w.bodies, body)
	w.state.Bodies = append(w.state.Bodies, BodyState{Position: position, Rotation: rotation.Normalize()})
	w.scratch = append(w.scratch, scratch{})

	return handle
}

func (w *World) Len() int {
	return len(w.bodies)
}

func (w *World) valid(h actor.Handle) bool {
	return h >= 0 && int(h) < len(w.bodies)
}

// Body returns the properties of h, nil if h is unknown.
func (w *World) Body(h actor.Handle) *Body {
	if !w.valid(h) {
		return nil
	}
	return &w.bodies[h]
}

// State returns the live state of h, nil if h is unknown.
func (w *World) State(h actor.Handle) *BodyState {
	if !w.valid(h) {
		return nil
	}
	return &w.state.Bodies[h]
}

func (w *World) SetMotion(h actor.Handle, motion Motion) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	w.bodies[h].Motion = motion
	return nil
}

func (w *World) SetEnabled(h actor.Handle, enabled bool) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	w.bodies[h].Enabled = enabled
	return nil
}

// SetPose teleports h.
func (w *World) SetPose(h actor.Handle, position mgl64.Vec3, rotation mgl64.Quat) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	s := &w.state.Bodies[h]
	s.Position = position
	s.Rotation = rotation.Normalize()
	return nil
}

func (w *World) SetVelocity(h actor.Handle, linear, angular mgl64.Vec3) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	s := &w.state.Bodies[h]
	s.Velocity = linear
	s.AngularVelocity = angular
	return nil
}

// AddForce accumulates a force through the center of mass of h until the next step.
func (w *World) AddForce(h actor.Handle, force mgl64.Vec3) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	s := &w.state.Bodies[h]
	s.Force = s.Force.Add(force)
	return nil
}

func (w *World) AddTorque(h actor.Handle, torque mgl64.Vec3) error {
	if !w.valid(h) {
		return errors.Wrapf(ErrUnknownBody, "handle %d", h)
	}
	s := &w.state.Bodies[h]
	s.Torque = s.Torque.Add(torque)
	return nil
}

// SetConstraints binds the constraint set the next step solves. Feedback
// for records holding a slot is written to pool.
func (w *World) SetConstraints(set *constraint.Set, pool *constraint.FeedbackPool) {
	w.set = set
	w.pool = pool
}

// Save snapshots the full dynamic state.
func (w *World) Save() *State {
	return w.state.Clone()
}

// Restore puts the world back to a snapshot taken by Save.
func (w *World) Restore(snapshot *State) {
	w.state.CopyFrom(snapshot)
}

// Finite reports whether every body state is free of NaN and Inf.
func (w *World) Finite() bool {
	for _, s := range w.state.Bodies {
		if !finite(s.Position) || !finiteQuat(s.Rotation) || !finite(s.Velocity) || !finite(s.AngularVelocity) {
			return false
		}
	}
	return true
}

// MaxSpeed is the largest linear speed of a moving body.
func (w *World) MaxSpeed() float64 {
	var speed float64
	for i, s := range w.state.Bodies {
		if !w.bodies[i].moving() {
			continue
		}
		speed = math.Max(speed, s.Velocity.Len())
	}
	return speed
}

func (w *World) ref(h actor.Handle) ref {
	if !w.valid(h) {
		return ref{body: &w.ground, state: &w.groundState, scratch: &w.groundScratch}
	}
	return ref{body: &w.bodies[h], state: &w.state.Bodies[h], scratch: &w.scratch[h]}
}

// step advances the world by dt using substeps passes of iterations
// constraint projections each.
func (w *World) step(dt float64, substeps, iterations int) Status {
	if substeps < 1 {
		substeps = 1
	}
	if iterations < 1 {
		iterations = 1
	}
	h := dt / float64(substeps)

	joints := w.bindJoints()
	w.bindContacts()

	alphaTilde := w.CFM / (h * h)

	for s := 0; s < substeps; s++ {
		for i := range w.bodies {
			w.ref(actor.Handle(i)).integrate(h, w.Gravity)
		}
		for i := range w.contacts {
			w.contacts[i].resetSubstep()
		}

		for it := 0; it < iterations; it++ {
			for i := range w.contacts {
				c := &w.contacts[i]
				c.solvePosition(alphaTilde+c.record.Surface.Compliance/(h*h), w.ContactSurfaceLayer)
			}
			for _, j := range joints {
				j.solvePosition(w.ref(j.BodyA), w.ref(j.BodyB), h, alphaTilde, w.ERP)
			}
		}

		for i := range w.bodies {
			w.ref(actor.Handle(i)).update(h)
		}

		for i := range w.contacts {
			w.contacts[i].solveVelocity(h, w.Gravity)
		}
		for _, j := range joints {
			j.solveVelocity(w.ref(j.BodyA), w.ref(j.BodyB), h)
		}
	}

	for i := range w.state.Bodies {
		w.state.Bodies[i].Force = mgl64.Vec3{}
		w.state.Bodies[i].Torque = mgl64.Vec3{}
	}

	w.writeFeedback(joints, h, dt)

	if !w.Finite() || w.MaxSpeed() > w.MaxVelocity {
		return NumericalWarning
	}
	return Success
}

func (w *World) bindContacts() {
	w.contacts = w.contacts[:0]
	if w.set == nil {
		return
	}
	for i := range w.set.Contacts {
		record := &w.set.Contacts[i]
		a, b := w.ref(record.BodyA), w.ref(record.BodyB)
		if !a.body.dynamic() && !b.body.dynamic() {
			continue
		}

		w.contacts = append(w.contacts, contactConstraint{})
		w.contacts[len(w.contacts)-1].prepare(record, a, b, w.DepthBias)
	}
}

// bindJoints attaches this step's records to their registered joints.
func (w *World) bindJoints() []*Joint {
	for _, j := range w.joints {
		j.record = nil
		j.resetFeedback()
	}
	if w.set == nil {
		return nil
	}

	joints := make([]*Joint, 0, len(w.set.Joints))
	for i := range w.set.Joints {
		record := &w.set.Joints[i]
		if record.Slot < 0 || record.Slot >= len(w.joints) {
			continue
		}
		j := w.joints[record.Slot]
		if !j.active {
			continue
		}
		j.record = record
		joints = append(joints, j)
	}
	return joints
}

// writeFeedback converts the accumulated positional impulses into the
// average force and torque over the step.
func (w *World) writeFeedback(joints []*Joint, h, dt float64) {
	if w.pool == nil {
		return
	}
	scale := 1.0 / (h * dt)

	for i := range w.contacts {
		c := &w.contacts[i]
		if fb := w.pool.Slot(c.record.Feedback); fb != nil {
			fb.Force1 = fb.Force1.Add(c.impulseA.Mul(scale))
			fb.Torque1 = fb.Torque1.Add(c.torqueA.Mul(scale))
			fb.Force2 = fb.Force2.Add(c.impulseB.Mul(scale))
			fb.Torque2 = fb.Torque2.Add(c.torqueB.Mul(scale))
		}
	}
	for _, j := range joints {
		if fb := w.pool.Slot(j.record.Feedback); fb != nil {
			fb.Force1 = fb.Force1.Add(j.impulseA.Mul(scale))
			fb.Torque1 = fb.Torque1.Add(j.torqueA.Mul(scale))
			fb.Force2 = fb.Force2.Add(j.impulseB.Mul(scale))
			fb.Torque2 = fb.Torque2.Add(j.torqueB.Mul(scale))
		}
	}
}
