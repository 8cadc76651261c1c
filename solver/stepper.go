package solver

import (
	"strings"

	"github.com/pkg/errors"
)

// Status is the outcome of one solver step.
type Status int

const (
	Success Status = iota
	// NumericalWarning reports a step whose result should not be trusted.
	NumericalWarning
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NumericalWarning:
		return "numerical warning"
	}
	return "unknown"
}

// Stepper advances a World by one step.
type Stepper interface {
	StepWorld(w *World, dt float64) Status
}

// StepperFunc adapts a function to the Stepper interface.
type StepperFunc func(w *World, dt float64) Status

func (f StepperFunc) StepWorld(w *World, dt float64) Status {
	return f(w, dt)
}

// XPBDStep splits the step into MaxIterations substeps of one projection each.
type XPBDStep struct{}

func (XPBDStep) StepWorld(w *World, dt float64) Status {
	return w.step(dt, w.MaxIterations, 1)
}

// QuickStep takes one substep with MaxIterations projections.
type QuickStep struct{}

func (QuickStep) StepWorld(w *World, dt float64) Status {
	return w.step(dt, 1, w.MaxIterations)
}

// Method names a Stepper in configuration files.
type Method int

const (
	WorldStep Method = iota
	WorldQuickStep
)

var ErrUnknownMethod = errors.New("solver: unknown step method")

func (m Method) String() string {
	switch m {
	case WorldStep:
		return "WorldStep"
	case WorldQuickStep:
		return "WorldQuickStep"
	}
	return "unknown"
}

func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "worldstep", "step", "":
		return WorldStep, nil
	case "worldquickstep", "quickstep", "quick":
		return WorldQuickStep, nil
	}
	return WorldStep, errors.Wrapf(ErrUnknownMethod, "%q", name)
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NewStepper returns the Stepper implementing m.
func NewStepper(m Method) Stepper {
	if m == WorldQuickStep {
		return QuickStep{}
	}
	return XPBDStep{}
}
