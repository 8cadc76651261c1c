// simpleScene drops a sphere and a box on the ground next to a pendulum and
// prints where they settle. With -monitor the steps are streamed to
// websocket viewers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/akmonengine/keel"
	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/joint"
	"github.com/akmonengine/keel/kinematics"
	"github.com/akmonengine/keel/monitor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	steps := flag.Int("steps", 300, "number of steps")
	dt := flag.Float64("dt", 1.0/60.0, "step duration in seconds")
	monitorAddr := flag.String("monitor", "", "serve a websocket monitor on this address, e.g. :8080")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *configPath, *steps, *dt, *monitorAddr); err != nil {
		logger.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

type scene struct {
	tree  *kinematics.Tree
	state *kinematics.State
	sim   *keel.Simulator

	sphere, box, bob kinematics.FrameID
	sensor           *keel.ForceSensor
}

func run(logger *slog.Logger, configPath string, steps int, dt float64, monitorAddr string) error {
	config := keel.DefaultConfig()
	if configPath != "" {
		var err error
		if config, err = keel.LoadConfig(configPath); err != nil {
			return err
		}
	}

	s, err := setupScene(logger, config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var hub *monitor.Hub
	if monitorAddr != "" {
		hub = monitor.NewHub(logger)
		go func() {
			if err := hub.ListenAndServe(ctx, monitorAddr); err != nil {
				logger.Error("monitor stopped", "error", err)
			}
		}()
	}

	s.sim.Events.Subscribe(keel.CONTACT_ENTER, func(e keel.Event) {
		enter := e.(keel.ContactEnterEvent)
		logger.Info("contact", "a", s.sim.Registry().Body(enter.BodyA).Name, "b", s.sim.Registry().Body(enter.BodyB).Name)
	})
	s.sim.Events.Subscribe(keel.STEP_BISECTED, func(e keel.Event) {
		bisected := e.(keel.StepBisectedEvent)
		logger.Info("step bisected", "requested", bisected.Requested, "committed", bisected.Committed, "attempts", bisected.Attempts)
	})

	for i := 0; i < steps && ctx.Err() == nil; i++ {
		s.sensor.Reset()
		report, err := s.sim.Step(dt)
		var divergence *keel.DivergenceError
		if errors.As(err, &divergence) {
			for _, pair := range divergence.Penetrating {
				logger.Warn("penetrating", "pair", pair.String())
			}
			return err
		}
		if err != nil {
			return err
		}

		if hub != nil {
			if _, err := hub.Publish(monitor.Snapshot(s.sim, report)); err != nil {
				logger.Warn("publish failed", "error", err)
			}
			time.Sleep(time.Duration(report.DT * float64(time.Second)))
		}
	}

	for name, frame := range map[string]kinematics.FrameID{"sphere": s.sphere, "box": s.box, "bob": s.bob} {
		fmt.Printf("%-6s %v\n", name, s.tree.WorldTransform(frame, s.state).Position)
	}
	fmt.Printf("pendulum angle %.4f rad\n", s.state.Q[0])
	fmt.Printf("ground load over the last step %v N\n", s.sensor.Force)

	return nil
}

func setupScene(logger *slog.Logger, config keel.Config) (*scene, error) {
	tree := kinematics.NewTree()
	state := tree.NewState()
	s := &scene{tree: tree, state: state}

	sim, err := keel.NewSimulator(tree, state, config, keel.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s.sim = sim

	addFrame := func(name string, position mgl64.Vec3) (kinematics.FrameID, error) {
		frame, err := tree.AddFrame(name, kinematics.WorldFrame)
		if err != nil {
			return kinematics.NoFrame, err
		}
		tree.SetTransform(frame, kinematics.NewTransform(position, mgl64.QuatIdent()), state)
		return frame, nil
	}

	ground, err := addFrame("ground", mgl64.Vec3{})
	if err != nil {
		return nil, err
	}
	if s.sphere, err = addFrame("sphere", mgl64.Vec3{0, 0, 2}); err != nil {
		return nil, err
	}
	if s.box, err = addFrame("box", mgl64.Vec3{2, 0, 1}); err != nil {
		return nil, err
	}
	pivot, err := addFrame("pivot", mgl64.Vec3{-2, 0, 3})
	if err != nil {
		return nil, err
	}
	if s.bob, err = addFrame("bob", mgl64.Vec3{-1, 0, 3}); err != nil {
		return nil, err
	}

	bodies := []*actor.Body{
		actor.NewBody("ground", ground, actor.Fixed, actor.Geometry{
			Shape:  &actor.Plane{Normal: mgl64.Vec3{0, 0, 1}},
			Offset: kinematics.Identity(),
		}),
		actor.NewBody("sphere", s.sphere, actor.Rigid, actor.Geometry{
			Shape:  &actor.Sphere{Radius: 0.5},
			Offset: kinematics.Identity(),
		}),
		actor.NewBody("box", s.box, actor.Rigid, actor.Geometry{
			Shape:  &actor.Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}},
			Offset: kinematics.Identity(),
		}),
		actor.NewBody("pivot", pivot, actor.Fixed),
		actor.NewBody("bob", s.bob, actor.RigidJoint, actor.Geometry{
			Shape:  &actor.Sphere{Radius: 0.2},
			Offset: kinematics.Identity(),
		}),
	}
	handles := make([]actor.Handle, len(bodies))
	for i, body := range bodies {
		if handles[i], err = sim.AddBody(body); err != nil {
			return nil, err
		}
	}

	_, err = sim.AddJoint(joint.Joint{
		Name:   "pendulum",
		Kind:   joint.Revolute,
		Parent: handles[3],
		Child:  handles[4],
		Axis:   mgl64.Vec3{0, 1, 0},
		Anchor: mgl64.Vec3{-2, 0, 3},
		Lower:  -math.Pi / 2,
		Upper:  math.Pi / 2,
	})
	if err != nil {
		return nil, err
	}

	s.sensor = keel.NewForceSensor(ground)
	if err := sim.AddSensor(s.sensor); err != nil {
		return nil, err
	}

	return s, nil
}
