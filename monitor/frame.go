package monitor

import (
	"github.com/akmonengine/keel"
	"github.com/akmonengine/keel/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Body is the placement of one body's mass center.
type Body struct {
	Name     string       `json:"name"`
	Handle   actor.Handle `json:"handle"`
	Kind     string       `json:"kind"`
	Enabled  bool         `json:"enabled"`
	Position mgl64.Vec3   `json:"position"`
	Rotation [4]float64   `json:"rotation"` // w, x, y, z
}

// Frame is what viewers receive after each committed step.
type Frame struct {
	Time     float64 `json:"time"`
	DT       float64 `json:"dt"`
	Attempts int     `json:"attempts"`
	Contacts int     `json:"contacts"`
	MaxDepth float64 `json:"max_depth,omitempty"`
	Bodies   []Body  `json:"bodies"`
}

// Snapshot captures sim after the step described by report.
func Snapshot(sim *keel.Simulator, report keel.StepReport) Frame {
	frame := Frame{
		Time:     report.Time,
		DT:       report.DT,
		Attempts: report.Attempts,
		Contacts: report.Contacts,
	}
	if report.Contacts > 0 {
		frame.MaxDepth = report.MaxDepth
	}

	registry := sim.Registry()
	for i, body := range registry.Bodies() {
		h := actor.Handle(i)
		st := sim.World().State(h)
		if st == nil {
			continue
		}
		frame.Bodies = append(frame.Bodies, Body{
			Name:     body.Name,
			Handle:   h,
			Kind:     body.Kind.String(),
			Enabled:  registry.Enabled(h),
			Position: st.Position,
			Rotation: [4]float64{st.Rotation.W, st.Rotation.V.X(), st.Rotation.V.Y(), st.Rotation.V.Z()},
		})
	}

	return frame
}
