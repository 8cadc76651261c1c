package solver

import (
	"github.com/jinzhu/copier"
)

// State is the dynamic state of every body of a World. Restoring a saved
// State makes the next step bit-identical to one taken from the saved point.
type State struct {
	Bodies []BodyState
}

func (s *State) Clone() *State {
	clone := &State{}
	if err := copier.CopyWithOption(clone, s, copier.Option{DeepCopy: true}); err != nil {
		panic(err)
	}

	return clone
}

// CopyFrom overwrites s with other, reusing the storage of s.
func (s *State) CopyFrom(other *State) {
	if cap(s.Bodies) < len(other.Bodies) {
		s.Bodies = make([]BodyState, len(other.Bodies))
	}
	s.Bodies = s.Bodies[:len(other.Bodies)]
	copy(s.Bodies, other.Bodies)
}
