package keel

import (
	"fmt"
	"strings"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/constraint"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

var (
	ErrDuplicateFrame        = errors.New("keel: frame already registered")
	ErrFeedbackPoolExhausted = constraint.ErrFeedbackPoolExhausted
	ErrUnsupportedKind       = constraint.ErrUnsupportedKind
	ErrUnknownBody           = errors.New("keel: unknown body")
	ErrAlreadyAttached       = errors.New("keel: bodies already attached")
	ErrNotAttached           = errors.New("keel: bodies not attached")
	ErrInvalidConfig         = errors.New("keel: invalid configuration")
	ErrDivergence            = errors.New("keel: simulation diverged")
)

// ConfigError is a setup or modeling mistake. The scene must be fixed; retrying
// the same call fails the same way.
type ConfigError struct {
	Op  string
	Err error
}

func (e *ConfigError) Error() string {
	return "keel: " + e.Op + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configError(op string, err error) error {
	return &ConfigError{Op: op, Err: err}
}

// PairReport describes a body pair still interpenetrating when a step diverged.
type PairReport struct {
	BodyA, BodyB         actor.Handle
	NameA, NameB         string
	PositionA, PositionB mgl64.Vec3
	Depth                float64
}

func (r PairReport) String() string {
	return fmt.Sprintf("%s(%d) at %v / %s(%d) at %v: overlap %.6g", r.NameA, r.BodyA, r.PositionA, r.NameB, r.BodyB, r.PositionB, r.Depth)
}

// DivergenceError reports a macro-step abandoned after every bisection
// attempt failed. The simulator is back at the last committed state.
type DivergenceError struct {
	Time         float64
	DT           float64
	DTTried      float64
	Attempts     int
	BadSolutions int
	Penetrating  []PairReport
}

func (e *DivergenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "keel: simulation diverged at t=%g: dt %g bisected to %g over %d attempts (%d bad solutions)",
		e.Time, e.DT, e.DTTried, e.Attempts, e.BadSolutions)
	if len(e.Penetrating) > 0 {
		fmt.Fprintf(&b, ", %d pairs penetrating", len(e.Penetrating))
	}
	return b.String()
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergence
}
