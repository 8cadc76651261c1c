package keel

import (
	"log/slog"
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/broadphase"
	"github.com/akmonengine/keel/constraint"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/joint"
	"github.com/akmonengine/keel/kinematics"
	"github.com/akmonengine/keel/proximity"
	"github.com/akmonengine/keel/solver"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

const (
	defaultCellSize = 2.0
	defaultNumCells = 1024
)

// UpdateInfo is handed to controllers before every solver attempt.
type UpdateInfo struct {
	// DT is the step the solver is about to take.
	DT float64
	// DTRequested is the macro-step asked of Step.
	DTRequested float64
	// DTPrev is the last committed step on a first attempt, and the
	// requested step when retrying after a rollback.
	DTPrev   float64
	Time     float64
	Rollback bool
	Attempt  int
}

// Controller mutates joint commands and kinematic twists on the candidate
// state of an attempt. The candidate is discarded on rollback.
type Controller interface {
	Update(info UpdateInfo, state *kinematics.State)
}

type ControllerFunc func(info UpdateInfo, state *kinematics.State)

func (f ControllerFunc) Update(info UpdateInfo, state *kinematics.State) {
	f(info, state)
}

// StepReport describes a committed step.
type StepReport struct {
	Time         float64
	DT           float64
	Requested    float64
	Attempts     int
	BadSolutions int
	Contacts     int
	// MaxDepth is the deepest contact depth fed to the solver, -Inf without contacts.
	MaxDepth float64
}

// Bisected reports whether the step committed less than the requested time.
func (r StepReport) Bisected() bool {
	return r.DT < r.Requested
}

type Option func(*Simulator)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

func WithBroadPhase(bp BroadPhase) Option {
	return func(s *Simulator) { s.broadPhase = bp }
}

func WithNarrowPhase(np proximity.Strategy) Option {
	return func(s *Simulator) { s.narrowPhase = np }
}

func WithStepper(stepper solver.Stepper) Option {
	return func(s *Simulator) { s.stepper = stepper }
}

// WithMaterials shares a frozen material table instead of building one from the config.
func WithMaterials(materials *constraint.MaterialTable) Option {
	return func(s *Simulator) { s.materials = materials }
}

// Simulator advances a scene with rollback: a step that leaves bodies
// interpenetrating or the solver unhappy is undone and retried with half the
// step, up to Config.MaxBisections attempts.
type Simulator struct {
	config Config
	logger *slog.Logger

	graph SceneGraph
	state *kinematics.State

	broadPhase  BroadPhase
	narrowPhase proximity.Strategy
	stepper     solver.Stepper
	materials   *constraint.MaterialTable

	registry  *Registry
	generator *Generator
	clusterer *contact.Clusterer
	assembler *constraint.Assembler
	pool      *constraint.FeedbackPool
	set       constraint.Set
	world     *solver.World
	sync      *Synchronizer
	joints    joint.Arena

	// participants holds the material and object type ids of each body.
	participants []constraint.Participant
	jointSlots   []int
	attachments  map[handlePair]int
	attached     []handlePair

	controllers []Controller
	sensors     []Sensor
	sensorsOf   map[actor.Handle][]Sensor

	Events Events

	time   float64
	dtPrev float64

	inputs   []constraint.PairInput
	feedback []constraint.Feedback
}

// NewSimulator binds a simulator to graph and the caller-owned state it
// keeps up to date.
func NewSimulator(graph SceneGraph, state *kinematics.State, config Config, opts ...Option) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Simulator{
		config:      config,
		graph:       graph,
		state:       state,
		attachments: make(map[handlePair]int),
		sensorsOf:   make(map[actor.Handle][]Sensor),
		Events:      NewEvents(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.broadPhase == nil {
		s.broadPhase = broadphase.NewSpatialGrid(defaultCellSize, defaultNumCells)
	}
	if s.narrowPhase == nil {
		s.narrowPhase = proximity.NewAnalytic()
	}
	if s.stepper == nil {
		s.stepper = solver.NewStepper(config.StepMethod)
	}
	if s.materials == nil {
		materials, err := config.BuildMaterials()
		if err != nil {
			return nil, err
		}
		s.materials = materials
	}

	s.registry = NewRegistry(s.logger)
	s.generator = NewGenerator(s.registry, s.broadPhase, s.narrowPhase, s.materials, config, s.logger)
	s.clusterer = contact.NewClusterer(config.ContactClusteringAlg)
	s.pool = constraint.NewFeedbackPool(config.FeedbackPoolSize)
	s.assembler = constraint.NewAssembler(s.materials, s.pool)
	s.assembler.WantsFeedback = func(h actor.Handle) bool {
		return len(s.sensorsOf[h]) > 0
	}
	s.world = solver.NewWorld(config.solverConfig())
	s.sync = NewSynchronizer(s.registry, s.world, graph)
	s.logger = s.logger.With("component", "simulator")

	return s, nil
}

func (s *Simulator) Time() float64 {
	return s.time
}

func (s *Simulator) Config() Config {
	return s.config
}

func (s *Simulator) Registry() *Registry {
	return s.registry
}

// World exposes the engine, for inspection.
func (s *Simulator) World() *solver.World {
	return s.world
}

func (s *Simulator) State() *kinematics.State {
	return s.state
}

// AddBody registers body at the placement its frame has in the current state.
func (s *Simulator) AddBody(body *actor.Body) (actor.Handle, error) {
	h, err := s.registry.RegisterBody(body)
	if err != nil {
		return actor.NoHandle, err
	}

	engineBody := solver.NewBody(motionOf(body.Kind), body.Info.Mass, body.Info.Inertia)
	engineBody.LinearDamping = body.Info.LinearDamping
	engineBody.AngularDamping = body.Info.AngularDamping

	com := s.graph.WorldTransform(body.Frame, s.state).Compose(body.MassFrame())
	s.world.AddBody(engineBody, com.Position, com.Rotation)

	s.participants = append(s.participants, constraint.Participant{
		Handle:   h,
		Material: s.materials.MaterialID(body.Info.Material),
		Type:     s.materials.TypeID(body.Info.ObjectType),
	})

	s.logger.Debug("body added", "body", body.Name, "handle", h, "kind", body.Kind)

	return h, nil
}

func motionOf(kind actor.BodyKind) solver.Motion {
	switch kind {
	case actor.Kinematic:
		return solver.Kinematic
	case actor.Fixed:
		return solver.Static
	}
	return solver.Dynamic
}

// AddJoint declares j between two registered bodies (actor.NoHandle for the
// world). Its coordinate is zero at the current placement of the bodies.
func (s *Simulator) AddJoint(j joint.Joint) (joint.ID, error) {
	for _, h := range []actor.Handle{j.Parent, j.Child} {
		if h != actor.NoHandle && s.registry.Body(h) == nil {
			return joint.NoOwner, configError("add joint", errors.Wrapf(ErrUnknownBody, "joint %q handle %d", j.Name, h))
		}
	}

	id, err := s.joints.Add(j)
	if err != nil {
		return joint.NoOwner, configError("add joint", err)
	}
	added, _ := s.joints.Get(id)

	kind := constraint.Hinge
	if !added.Kind.Angular() {
		kind = constraint.Slider
	}
	slot, err := s.world.AddJoint(kind, added.Parent, added.Child, added.Anchor, added.Axis)
	if err != nil {
		return joint.NoOwner, configError("add joint", err)
	}
	s.jointSlots = append(s.jointSlots, slot)
	s.sync.BindJoint(slot)
	s.state.EnsureJoints(s.joints.Len())

	return id, nil
}

// Joints is the joint arena of the scene.
func (s *Simulator) Joints() *joint.Arena {
	return &s.joints
}

func (s *Simulator) handle(op string, frame kinematics.FrameID) (actor.Handle, error) {
	h, ok := s.registry.Handle(frame)
	if !ok {
		return actor.NoHandle, configError(op, errors.Wrapf(ErrUnknownBody, "frame %d", frame))
	}
	return h, nil
}

// Attach welds the bodies of frameA and frameB in their current relative
// placement. Attached bodies do not collide with each other.
func (s *Simulator) Attach(frameA, frameB kinematics.FrameID) error {
	a, err := s.handle("attach", frameA)
	if err != nil {
		return err
	}
	b, err := s.handle("attach", frameB)
	if err != nil {
		return err
	}
	pair := makeHandlePair(a, b)
	if _, ok := s.attachments[pair]; ok || a == b {
		return configError("attach", errors.Wrapf(ErrAlreadyAttached, "%q and %q", s.registry.Body(a).Name, s.registry.Body(b).Name))
	}

	slot, err := s.world.AddJoint(constraint.Fixed, pair.a, pair.b, s.world.State(pair.b).Position, mgl64.Vec3{0, 0, 1})
	if err != nil {
		return configError("attach", err)
	}
	s.attachments[pair] = slot
	s.attached = append(s.attached, pair)
	s.generator.Weld(pair.a, pair.b)

	return nil
}

// Detach releases a weld made by Attach.
func (s *Simulator) Detach(frameA, frameB kinematics.FrameID) error {
	a, err := s.handle("detach", frameA)
	if err != nil {
		return err
	}
	b, err := s.handle("detach", frameB)
	if err != nil {
		return err
	}
	pair := makeHandlePair(a, b)
	slot, ok := s.attachments[pair]
	if !ok {
		return configError("detach", errors.Wrapf(ErrNotAttached, "%q and %q", s.registry.Body(a).Name, s.registry.Body(b).Name))
	}

	if err := s.world.RemoveJoint(slot); err != nil {
		return configError("detach", err)
	}
	delete(s.attachments, pair)
	s.generator.Unweld(pair.a, pair.b)
	for i, p := range s.attached {
		if p == pair {
			s.attached = append(s.attached[:i], s.attached[i+1:]...)
			break
		}
	}

	return nil
}

func (s *Simulator) Attached(frameA, frameB kinematics.FrameID) bool {
	a, okA := s.registry.Handle(frameA)
	b, okB := s.registry.Handle(frameB)
	if !okA || !okB {
		return false
	}
	_, ok := s.attachments[makeHandlePair(a, b)]
	return ok
}

// ExcludePair declares the bodies of frameA and frameB as never colliding.
func (s *Simulator) ExcludePair(frameA, frameB kinematics.FrameID) error {
	a, err := s.handle("exclude pair", frameA)
	if err != nil {
		return err
	}
	b, err := s.handle("exclude pair", frameB)
	if err != nil {
		return err
	}
	s.generator.ExcludePair(a, b)
	return nil
}

func (s *Simulator) AddController(c Controller) {
	s.controllers = append(s.controllers, c)
}

// AddSensor attaches sensor to the body owning its frame.
func (s *Simulator) AddSensor(sensor Sensor) error {
	h, err := s.handle("add sensor", sensor.Frame())
	if err != nil {
		return err
	}
	s.sensors = append(s.sensors, sensor)
	s.sensorsOf[h] = append(s.sensorsOf[h], sensor)
	return nil
}

func (s *Simulator) RemoveSensor(sensor Sensor) {
	for i, other := range s.sensors {
		if other == sensor {
			s.sensors = append(s.sensors[:i], s.sensors[i+1:]...)
			break
		}
	}
	for h, list := range s.sensorsOf {
		for i, other := range list {
			if other == sensor {
				s.sensorsOf[h] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(s.sensorsOf[h]) == 0 {
			delete(s.sensorsOf, h)
		}
	}
}

// SetEnabled removes the body of frame from integration and collision
// response, or brings it back.
func (s *Simulator) SetEnabled(frame kinematics.FrameID, enabled bool) error {
	h, err := s.handle("set enabled", frame)
	if err != nil {
		return err
	}
	if err := s.registry.SetEnabled(h, enabled); err != nil {
		return err
	}
	return s.world.SetEnabled(h, enabled)
}

// SetDynamicsEnabled turns a rigid body into a kinematic one holding its
// placement, or gives it back to the solver.
func (s *Simulator) SetDynamicsEnabled(frame kinematics.FrameID, enabled bool) error {
	h, err := s.handle("set dynamics", frame)
	if err != nil {
		return err
	}
	body := s.registry.Body(h)
	if !body.Kind.Dynamic() {
		return configError("set dynamics", errors.Wrapf(ErrUnsupportedKind, "body %q is %v", body.Name, body.Kind))
	}

	motion := solver.Dynamic
	if !enabled {
		motion = solver.Kinematic
		if err := s.world.SetVelocity(h, mgl64.Vec3{}, mgl64.Vec3{}); err != nil {
			return err
		}
	}
	return s.world.SetMotion(h, motion)
}

// ApplyForce adds a force through the center of mass and a torque to the
// body of frame, for the next step only.
func (s *Simulator) ApplyForce(frame kinematics.FrameID, force, torque mgl64.Vec3) error {
	h, err := s.handle("apply force", frame)
	if err != nil {
		return err
	}
	if err := s.world.AddForce(h, force); err != nil {
		return err
	}
	return s.world.AddTorque(h, torque)
}

// Reset restarts the simulation from state: time goes back to zero, bodies
// are placed from the scene graph at rest, re-enabled and given back the
// motion of their kind, sensors are cleared.
func (s *Simulator) Reset(state *kinematics.State) {
	if state != nil {
		s.state = state
	}
	s.time = 0
	s.dtPrev = 0

	for i := range s.registry.Bodies() {
		h := actor.Handle(i)
		s.registry.SetEnabled(h, true)
		s.world.SetEnabled(h, true)
		s.world.SetMotion(h, motionOf(s.registry.Body(h).Kind))
	}
	s.world.Restore(s.clearedForces())
	s.sync.Place(s.state)
	s.state.EnsureJoints(s.joints.Len())

	for _, sensor := range s.sensors {
		if r, ok := sensor.(Resetter); ok {
			r.Reset()
		}
	}
	s.pool.Reset()
	s.set.Reset()
	s.Events.reset()
}

func (s *Simulator) clearedForces() *solver.State {
	snapshot := s.world.Save()
	for i := range snapshot.Bodies {
		snapshot.Bodies[i].Force = mgl64.Vec3{}
		snapshot.Bodies[i].Torque = mgl64.Vec3{}
	}
	return snapshot
}

// Step advances the simulation by at most dt. On success the state passed
// to NewSimulator holds the committed configuration and the report tells how
// much time was actually simulated. A *DivergenceError leaves the simulator
// at the last committed state; a *ConfigError means the scene must be fixed.
func (s *Simulator) Step(dt float64) (StepReport, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return StepReport{}, configError("step", errors.Wrapf(ErrInvalidConfig, "dt %g", dt))
	}

	committed := s.world.Save()
	if err := s.detect(); err != nil {
		return StepReport{}, err
	}

	dtTry := dt
	badSolutions := 0
	attempt := 1
	for ; attempt <= s.config.MaxBisections; attempt++ {
		if attempt > 1 {
			if !s.config.CacheCollisions && s.world.Finite() {
				if err := s.detectAhead(committed); err != nil {
					s.world.Restore(committed)
					return StepReport{}, err
				}
			}
			s.world.Restore(committed)
			dtTry /= 2
		}

		candidate := s.state.Clone()
		info := UpdateInfo{
			DT:          dtTry,
			DTRequested: dt,
			DTPrev:      s.dtPrev,
			Time:        s.time,
			Rollback:    attempt > 1,
			Attempt:     attempt,
		}
		if attempt > 1 || info.DTPrev == 0 {
			info.DTPrev = dt
		}
		for _, c := range s.controllers {
			c.Update(info, candidate)
		}

		if err := s.assemble(candidate); err != nil {
			s.world.Restore(committed)
			s.pool.Reset()
			s.set.Reset()
			return StepReport{}, err
		}
		s.sync.PreStep(candidate)

		status := s.stepper.StepWorld(s.world, dtTry)
		bad := status != solver.Success
		if bad {
			badSolutions++
		}

		penetrating := s.generator.InPenetration(s.sync.Pose)
		finite := s.world.Finite()
		if !penetrating && finite && (!bad || attempt > s.config.BadSolutionGrace) {
			if bad {
				s.logger.Warn("bad solution accepted", "time", s.time, "dt", dtTry, "attempt", attempt)
			}
			return s.commit(candidate, dt, dtTry, attempt, badSolutions), nil
		}

		s.logger.Debug("attempt rejected", "time", s.time, "dt", dtTry, "attempt", attempt,
			"status", status, "penetrating", penetrating, "finite", finite)
	}

	return StepReport{}, s.diverge(committed, dt, dtTry, attempt-1, badSolutions)
}

// detect generates and clusters the contacts of the committed state.
func (s *Simulator) detect() error {
	return s.cluster(s.generator.Generate(s.sync.Pose))
}

// detectAhead generates contacts at the placement a rejected attempt reached
// and carries each one back onto the committed placement of its bodies. The
// retry then starts with the contacts the failed attempt ran into, at their
// committed separation.
func (s *Simulator) detectAhead(committed *solver.State) error {
	pairs, err := s.generator.Generate(s.sync.Pose)
	if err != nil {
		return err
	}

	for _, p := range pairs {
		backA, backB := s.rewind(committed, p.A), s.rewind(committed, p.B)
		for i := range p.Points {
			p.Points[i] = s.rebase(p.Points[i], backA, backB)
		}
	}

	return s.cluster(pairs, nil)
}

// rewind maps the current engine placement of h onto its committed one.
func (s *Simulator) rewind(committed *solver.State, h actor.Handle) kinematics.Transform {
	current := s.world.State(h)
	past := committed.Bodies[h]
	return kinematics.NewTransform(past.Position, past.Rotation).
		Compose(kinematics.NewTransform(current.Position, current.Rotation).Inverse())
}

// rebase moves the witness points of p with their bodies and recomputes the
// depth from their new separation.
func (s *Simulator) rebase(p contact.Point, backA, backB kinematics.Transform) contact.Point {
	half := p.Normal.Mul((s.config.MaxPenetration - p.Depth) / 2)
	pA := backA.Apply(p.Position.Sub(half))
	pB := backB.Apply(p.Position.Add(half))

	p.Normal = backA.ApplyVector(p.Normal)
	p.Position = pA.Add(pB).Mul(0.5)
	p.Depth = s.config.MaxPenetration - pB.Sub(pA).Dot(p.Normal)

	return p
}

// cluster reduces the contacts of every pair into the inputs of the next
// assembly.
func (s *Simulator) cluster(pairs []PairContacts, err error) error {
	if err != nil {
		return err
	}

	s.inputs = s.inputs[:0]
	for _, p := range pairs {
		points := s.clusterer.Cluster(p.Points)
		if len(points) == 0 {
			continue
		}
		s.inputs = append(s.inputs, constraint.PairInput{
			A:      s.participants[p.A],
			B:      s.participants[p.B],
			Points: points,
		})
	}

	return nil
}

// assemble fills the constraint set of one attempt.
func (s *Simulator) assemble(candidate *kinematics.State) error {
	s.pool.Reset()
	s.set.Reset()

	if err := s.assembler.AssembleContacts(&s.set, s.inputs); err != nil {
		return configError("assemble contacts", err)
	}
	if err := s.assembler.AssembleJoints(&s.set, &s.joints, candidate, s.state.Q); err != nil {
		return configError("assemble joints", err)
	}
	for i := range s.set.Joints {
		s.set.Joints[i].Slot = s.jointSlots[s.set.Joints[i].Slot]
	}

	for _, pair := range s.attached {
		record := constraint.JointRecord{
			Slot:     s.attachments[pair],
			Kind:     constraint.Fixed,
			BodyA:    pair.a,
			BodyB:    pair.b,
			Feedback: constraint.NoFeedback,
		}
		if len(s.sensorsOf[pair.a]) > 0 || len(s.sensorsOf[pair.b]) > 0 {
			slot, err := s.pool.Acquire()
			if err != nil {
				return configError("assemble attachments", err)
			}
			record.Feedback = slot
		}
		s.set.Joints = append(s.set.Joints, record)
	}

	if used := s.pool.Used(); used > s.pool.Cap()*9/10 {
		s.logger.Warn("feedback pool nearly exhausted", "used", used, "capacity", s.pool.Cap())
	}

	s.world.SetConstraints(&s.set, s.pool)
	return nil
}

func (s *Simulator) commit(candidate *kinematics.State, dt, dtTry float64, attempts, badSolutions int) StepReport {
	s.time += dtTry
	s.dtPrev = dtTry

	s.sync.PostStep(candidate)
	*s.state = *candidate

	report := StepReport{
		Time:         s.time,
		DT:           dtTry,
		Requested:    dt,
		Attempts:     attempts,
		BadSolutions: badSolutions,
		Contacts:     len(s.set.Contacts),
		MaxDepth:     math.Inf(-1),
	}
	for _, record := range s.set.Contacts {
		report.MaxDepth = math.Max(report.MaxDepth, record.Depth)
	}

	s.deliverFeedback()
	s.pool.Reset()

	for _, in := range s.inputs {
		s.Events.recordContact(in.A.Handle, in.B.Handle)
	}
	if report.Bisected() {
		s.Events.emitBisected(dt, dtTry, attempts)
	}
	s.Events.flush()

	return report
}

// deliverFeedback hands each sensor the feedback of the constraints touching
// its body, grouped by the body on the other side.
func (s *Simulator) deliverFeedback() {
	if len(s.sensorsOf) == 0 {
		return
	}

	offset := 0
	for _, in := range s.inputs {
		records := s.set.Contacts[offset : offset+len(in.Points)]
		offset += len(in.Points)

		s.feedback = s.feedback[:0]
		for _, r := range records {
			if fb := s.pool.Slot(r.Feedback); fb != nil {
				s.feedback = append(s.feedback, *fb)
			}
		}
		s.deliver(in.A.Handle, in.B.Handle, in.Points)
	}

	for _, r := range s.set.Joints {
		s.feedback = s.feedback[:0]
		if fb := s.pool.Slot(r.Feedback); fb != nil {
			s.feedback = append(s.feedback, *fb)
		}
		s.deliver(r.BodyA, r.BodyB, nil)
	}
}

func (s *Simulator) deliver(a, b actor.Handle, points []contact.Point) {
	if len(s.feedback) == 0 {
		return
	}
	for _, sensor := range s.sensorsOf[a] {
		sensor.AddFeedback(s.feedback, points, b, 1)
	}
	for _, sensor := range s.sensorsOf[b] {
		sensor.AddFeedback(s.feedback, points, a, 2)
	}
}

func (s *Simulator) diverge(committed *solver.State, dt, dtTry float64, attempts, badSolutions int) error {
	penetrating := s.generator.Penetrating(s.sync.Pose)

	s.world.Restore(committed)
	s.pool.Reset()
	s.set.Reset()

	err := &DivergenceError{
		Time:         s.time,
		DT:           dt,
		DTTried:      dtTry,
		Attempts:     attempts,
		BadSolutions: badSolutions,
		Penetrating:  penetrating,
	}

	s.logger.Error("too large penetrations, step abandoned", "time", s.time, "dt", dt, "dtTried", dtTry,
		"attempts", attempts, "badSolutions", badSolutions, "pairs", len(penetrating))
	for _, p := range penetrating {
		s.logger.Debug("penetrating pair", "pair", p.String())
	}
	for i, body := range s.registry.Bodies() {
		st := s.world.State(actor.Handle(i))
		s.logger.Debug("body state", "body", body.Name, "position", st.Position, "velocity", st.Velocity)
	}

	return err
}
