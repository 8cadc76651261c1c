package constraint

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// DefaultFeedbackPoolSize is the number of feedback slots available per step.
const DefaultFeedbackPoolSize = 5000

// NoFeedback marks a constraint that records no feedback.
const NoFeedback = -1

var ErrFeedbackPoolExhausted = errors.New("constraint: feedback pool exhausted")

// Feedback is the force and torque a constraint applied to each of its bodies
// during the last committed step.
type Feedback struct {
	Force1  mgl64.Vec3
	Torque1 mgl64.Vec3
	Force2  mgl64.Vec3
	Torque2 mgl64.Vec3
}

// FeedbackPool is a bounded array of feedback slots handed out in order and
// reclaimed all at once by Reset.
type FeedbackPool struct {
	slots      []Feedback
	next       int
	generation uint64
}

func NewFeedbackPool(capacity int) *FeedbackPool {
	if capacity <= 0 {
		capacity = DefaultFeedbackPoolSize
	}
	return &FeedbackPool{slots: make([]Feedback, capacity)}
}

// Acquire hands out the next free slot.
func (p *FeedbackPool) Acquire() (int, error) {
	if p.next >= len(p.slots) {
		return NoFeedback, errors.Wrapf(ErrFeedbackPoolExhausted, "capacity %d", len(p.slots))
	}
	slot := p.next
	p.slots[slot] = Feedback{}
	p.next++

	return slot, nil
}

// Slot returns the feedback stored in slot, nil for NoFeedback or a slot not handed out.
func (p *FeedbackPool) Slot(slot int) *Feedback {
	if slot < 0 || slot >= p.next {
		return nil
	}
	return &p.slots[slot]
}

// Reset reclaims every slot. Slots handed out before are invalid afterwards.
func (p *FeedbackPool) Reset() {
	p.next = 0
	p.generation++
}

func (p *FeedbackPool) Used() int {
	return p.next
}

func (p *FeedbackPool) Cap() int {
	return len(p.slots)
}

func (p *FeedbackPool) Generation() uint64 {
	return p.generation
}
