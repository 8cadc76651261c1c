package kinematics

import (
	"sort"

	"github.com/pkg/errors"
)

// FrameID indexes a frame of a Tree.
type FrameID int

const (
	// WorldFrame is the root of every tree.
	WorldFrame FrameID = 0
	// NoFrame marks an absent frame.
	NoFrame FrameID = -1
)

var (
	ErrUnknownFrame   = errors.New("kinematics: unknown frame")
	ErrDuplicateFrame = errors.New("kinematics: duplicate frame name")
)

type frame struct {
	name   string
	parent FrameID
	depth  int
}

// Tree is the static topology of a scene: named frames, each placed
// relative to its parent. Placements live in a State, not in the Tree,
// so one Tree can evaluate any number of states.
type Tree struct {
	frames []frame
	byName map[string]FrameID
}

func NewTree() *Tree {
	return &Tree{
		frames: []frame{{name: "world", parent: NoFrame}},
		byName: map[string]FrameID{"world": WorldFrame},
	}
}

// AddFrame appends a frame under parent.
func (t *Tree) AddFrame(name string, parent FrameID) (FrameID, error) {
	if !t.valid(parent) {
		return NoFrame, errors.Wrapf(ErrUnknownFrame, "parent %d of %q", parent, name)
	}
	if _, exists := t.byName[name]; exists {
		return NoFrame, errors.Wrapf(ErrDuplicateFrame, "%q", name)
	}

	id := FrameID(len(t.frames))
	t.frames = append(t.frames, frame{name: name, parent: parent, depth: t.frames[parent].depth + 1})
	t.byName[name] = id

	return id, nil
}

func (t *Tree) Len() int {
	return len(t.frames)
}

func (t *Tree) Name(id FrameID) string {
	if !t.valid(id) {
		return ""
	}
	return t.frames[id].name
}

func (t *Tree) Lookup(name string) (FrameID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Parent returns the parent of id; the world frame has none.
func (t *Tree) Parent(id FrameID) (FrameID, bool) {
	if !t.valid(id) || id == WorldFrame {
		return NoFrame, false
	}
	return t.frames[id].parent, true
}

// Depth is the number of edges between id and the world frame.
func (t *Tree) Depth(id FrameID) int {
	if !t.valid(id) {
		return -1
	}
	return t.frames[id].depth
}

// Order returns frames sorted parents-first, ties broken by id.
func (t *Tree) Order(ids []FrameID) []FrameID {
	ordered := append([]FrameID(nil), ids...)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := t.Depth(ordered[i]), t.Depth(ordered[j])
		if di != dj {
			return di < dj
		}
		return ordered[i] < ordered[j]
	})

	return ordered
}

// NewState allocates a state with every frame at identity.
func (t *Tree) NewState() *State {
	s := &State{
		Transforms: make([]Transform, len(t.frames)),
		Twists:     make([]Twist, len(t.frames)),
	}
	for i := range s.Transforms {
		s.Transforms[i] = Identity()
	}

	return s
}

// WorldTransform evaluates the chain from the world frame down to id in s.
func (t *Tree) WorldTransform(id FrameID, s *State) Transform {
	if !t.valid(id) || id == WorldFrame {
		return Identity()
	}
	s.grow(len(t.frames))

	world := s.Transforms[id]
	for parent := t.frames[id].parent; parent != WorldFrame && parent != NoFrame; parent = t.frames[parent].parent {
		world = s.Transforms[parent].Compose(world)
	}

	return world
}

// SetTransform stores the parent-relative placement of id in s.
func (t *Tree) SetTransform(id FrameID, transform Transform, s *State) {
	if !t.valid(id) || id == WorldFrame {
		return
	}
	s.grow(len(t.frames))
	s.Transforms[id] = transform
}

// SetWorldTransform converts a world placement to parent-relative using the
// parent's placement evaluated in the same state, then stores it.
func (t *Tree) SetWorldTransform(id FrameID, world Transform, s *State) {
	parent, ok := t.Parent(id)
	if !ok {
		return
	}
	t.SetTransform(id, t.WorldTransform(parent, s).Inverse().Compose(world), s)
}

func (t *Tree) valid(id FrameID) bool {
	return id >= 0 && int(id) < len(t.frames)
}
