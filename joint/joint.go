// Package joint declares the joints of a scene. Joints live in an Arena and
// reference each other by ID, so a dependent joint names its owner without
// holding a pointer to it.
package joint

import (
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Kind is the closed set of joint types.
type Kind int

const (
	Revolute Kind = iota
	Prismatic
	// DependentRevolute follows Scale * owner + Offset.
	DependentRevolute
	// DependentPrismatic follows Scale * owner + Offset.
	DependentPrismatic
)

func (k Kind) String() string {
	switch k {
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	case DependentRevolute:
		return "dependent-revolute"
	case DependentPrismatic:
		return "dependent-prismatic"
	}
	return "unknown"
}

// Dependent reports whether the joint derives its motion from an owner.
func (k Kind) Dependent() bool {
	return k == DependentRevolute || k == DependentPrismatic
}

// Angular reports whether the joint coordinate is an angle.
func (k Kind) Angular() bool {
	return k == Revolute || k == DependentRevolute
}

func (k Kind) Valid() bool {
	return k >= Revolute && k <= DependentPrismatic
}

// ID indexes a joint in its Arena.
type ID int

// NoOwner marks a joint that is not dependent.
const NoOwner ID = -1

var (
	ErrUnknownJoint = errors.New("joint: unknown joint")
	ErrInvalidOwner = errors.New("joint: dependent joint needs an earlier owner")
	ErrInvalidKind  = errors.New("joint: unsupported kind")
	ErrInvalidAxis  = errors.New("joint: zero axis")
)

// Joint couples Child to Parent. Axis and Anchor are world-space values at
// scene initialization; Lower and Upper bound the joint coordinate, radians
// for angular joints and length units otherwise.
type Joint struct {
	Name   string
	Kind   Kind
	Parent actor.Handle
	Child  actor.Handle

	Axis   mgl64.Vec3
	Anchor mgl64.Vec3

	Lower, Upper float64
	// MaxForce bounds the actuation force or torque. Zero leaves the joint passive.
	MaxForce float64

	Owner  ID
	Scale  float64
	Offset float64
}

// Limited reports whether the joint has a range. Lower >= Upper, as in the
// zero value, leaves the joint free.
func (j *Joint) Limited() bool {
	return j.Lower < j.Upper && (!math.IsInf(j.Lower, -1) || !math.IsInf(j.Upper, 1))
}

// Clamp bounds value to [Lower, Upper] when the joint is limited.
func (j *Joint) Clamp(value float64) float64 {
	if !j.Limited() {
		return value
	}
	if value < j.Lower {
		return j.Lower
	}
	if value > j.Upper {
		return j.Upper
	}
	return value
}

// Arena owns the joints of one scene.
type Arena struct {
	joints []Joint
}

// Add validates j and appends it. A dependent joint's owner must already be
// in the arena, which keeps the ownership graph acyclic.
func (a *Arena) Add(j Joint) (ID, error) {
	if !j.Kind.Valid() {
		return NoOwner, errors.Wrapf(ErrInvalidKind, "joint %q kind %d", j.Name, j.Kind)
	}
	if j.Axis.LenSqr() < 1e-24 {
		return NoOwner, errors.Wrapf(ErrInvalidAxis, "joint %q", j.Name)
	}
	if j.Kind.Dependent() {
		if j.Owner < 0 || int(j.Owner) >= len(a.joints) {
			return NoOwner, errors.Wrapf(ErrInvalidOwner, "joint %q owner %d", j.Name, j.Owner)
		}
	} else {
		j.Owner = NoOwner
	}
	j.Axis = j.Axis.Normalize()

	a.joints = append(a.joints, j)

	return ID(len(a.joints) - 1), nil
}

func (a *Arena) Len() int {
	return len(a.joints)
}

// Get returns the joint with id.
func (a *Arena) Get(id ID) (*Joint, error) {
	if id < 0 || int(id) >= len(a.joints) {
		return nil, errors.Wrapf(ErrUnknownJoint, "%d", id)
	}
	return &a.joints[id], nil
}

// All returns the joints in ID order.
func (a *Arena) All() []Joint {
	return a.joints
}

// Lookup finds a joint by name.
func (a *Arena) Lookup(name string) (ID, bool) {
	for i := range a.joints {
		if a.joints[i].Name == name {
			return ID(i), true
		}
	}
	return NoOwner, false
}
