package keel

import (
	"log/slog"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/pkg/errors"
)

// Registry maps scene-graph frames to engine handles and body records.
type Registry struct {
	logger  *slog.Logger
	bodies  []*actor.Body
	enabled []bool
	frames  map[kinematics.FrameID]actor.Handle
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger.With("component", "registry"),
		frames: make(map[kinematics.FrameID]actor.Handle),
	}
}

// RegisterBody adds body and returns its handle. Every frame the body owns
// resolves to the same handle.
func (r *Registry) RegisterBody(body *actor.Body) (actor.Handle, error) {
	if body == nil {
		return actor.NoHandle, configError("register body", errors.Wrap(ErrInvalidConfig, "nil body"))
	}
	if !body.Kind.Valid() {
		return actor.NoHandle, configError("register body", errors.Wrapf(ErrUnsupportedKind, "body %q kind %d", body.Name, body.Kind))
	}

	frames := append([]kinematics.FrameID{body.Frame}, body.Frames...)
	seen := make(map[kinematics.FrameID]bool, len(frames))
	for _, f := range frames {
		if h, taken := r.frames[f]; taken {
			return actor.NoHandle, configError("register body",
				errors.Wrapf(ErrDuplicateFrame, "body %q frame %d already belongs to %q", body.Name, f, r.bodies[h].Name))
		}
		if seen[f] {
			return actor.NoHandle, configError("register body",
				errors.Wrapf(ErrDuplicateFrame, "body %q lists frame %d twice", body.Name, f))
		}
		seen[f] = true
	}

	handle := actor.Handle(len(r.bodies))
	r.bodies = append(r.bodies, body)
	r.enabled = append(r.enabled, true)
	for _, f := range frames {
		r.frames[f] = handle
	}

	if len(body.Geometries) == 0 {
		r.logger.Warn("body has no collision geometry", "body", body.Name, "frame", body.Frame, "handle", handle)
	}

	return handle, nil
}

// Lookup resolves a frame to its body.
func (r *Registry) Lookup(frame kinematics.FrameID) (*actor.Body, actor.Handle, bool) {
	h, ok := r.frames[frame]
	if !ok {
		return nil, actor.NoHandle, false
	}
	return r.bodies[h], h, true
}

// Handle resolves a frame to the handle of its body.
func (r *Registry) Handle(frame kinematics.FrameID) (actor.Handle, bool) {
	h, ok := r.frames[frame]
	return h, ok
}

// Body returns the body of h, nil if h is unknown.
func (r *Registry) Body(h actor.Handle) *actor.Body {
	if !r.valid(h) {
		return nil
	}
	return r.bodies[h]
}

func (r *Registry) Bodies() []*actor.Body {
	return r.bodies
}

func (r *Registry) Len() int {
	return len(r.bodies)
}

// SetEnabled excludes a body from integration and collision response, or
// brings it back.
func (r *Registry) SetEnabled(h actor.Handle, enabled bool) error {
	if !r.valid(h) {
		return configError("set enabled", errors.Wrapf(ErrUnknownBody, "handle %d", h))
	}
	r.enabled[h] = enabled
	return nil
}

func (r *Registry) Enabled(h actor.Handle) bool {
	return r.valid(h) && r.enabled[h]
}

func (r *Registry) valid(h actor.Handle) bool {
	return h >= 0 && int(h) < len(r.bodies)
}
