package keel

import (
	"math"
	"testing"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

func TestStepAll(t *testing.T) {
	scenes := make([]*testScene, 3)
	sims := make([]*Simulator, len(scenes))
	for i := range scenes {
		scenes[i] = newTestScene(t, DefaultConfig())
		frame := scenes[i].addFrame(t, "ball", kinematics.WorldFrame, mgl64.Vec3{0, 0, 10})
		scenes[i].addBody(t, createSphereBody("ball", frame, actor.Rigid, 0.5))
		sims[i] = scenes[i].sim
	}

	for step := 0; step < 5; step++ {
		for i, err := range StepAll(sims, dt, 2) {
			if err != nil {
				t.Fatalf("step %d sim %d: %v", step, i, err)
			}
		}
	}

	for i, sim := range sims {
		if math.Abs(sim.Time()-5*dt) > 1e-12 {
			t.Errorf("sim %d time = %v, want %v", i, sim.Time(), 5*dt)
		}
	}
	first := scenes[0].worldPosition(1)
	for i, scene := range scenes[1:] {
		if p := scene.worldPosition(1); p != first {
			t.Errorf("sim %d at %v, want %v", i+1, p, first)
		}
	}
}

func TestTask_CoversEveryItem(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 8} {
		seen := make([]int, 5)
		task(workers, []int{0, 1, 2, 3, 4}, func(i int) { seen[i]++ })
		for i, n := range seen {
			if n != 1 {
				t.Errorf("workers %d: item %d visited %d times", workers, i, n)
			}
		}
	}
}
