package keel

import (
	"sort"

	"github.com/akmonengine/keel/actor"
)

const (
	CONTACT_ENTER EventType = iota
	CONTACT_STAY
	CONTACT_EXIT
	STEP_BISECTED
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Contact events. BodyA < BodyB.
type ContactEnterEvent struct {
	BodyA, BodyB actor.Handle
}

func (e ContactEnterEvent) Type() EventType { return CONTACT_ENTER }

type ContactStayEvent struct {
	BodyA, BodyB actor.Handle
}

func (e ContactStayEvent) Type() EventType { return CONTACT_STAY }

type ContactExitEvent struct {
	BodyA, BodyB actor.Handle
}

func (e ContactExitEvent) Type() EventType { return CONTACT_EXIT }

// StepBisectedEvent is emitted when a step committed with less than the requested dt.
type StepBisectedEvent struct {
	Requested float64
	Committed float64
	Attempts  int
}

func (e StepBisectedEvent) Type() EventType { return STEP_BISECTED }

// EventListener - callback for events
type EventListener func(event Event)

// Events dispatches step events to listeners after each committed step.
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	// contact tracking for Enter/Stay/Exit detection
	previousActivePairs map[handlePair]bool
	currentActivePairs  map[handlePair]bool
	sorted              []handlePair
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[handlePair]bool),
		currentActivePairs:  make(map[handlePair]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContact marks a and b as touching during the committed step.
func (e *Events) recordContact(a, b actor.Handle) {
	e.currentActivePairs[makeHandlePair(a, b)] = true
}

func (e *Events) emitBisected(requested, committed float64, attempts int) {
	e.buffer = append(e.buffer, StepBisectedEvent{Requested: requested, Committed: committed, Attempts: attempts})
}

// processContactEvents compares current and previous pairs to detect
// Enter/Stay/Exit. Events come out ordered by pair.
func (e *Events) processContactEvents() {
	for _, pair := range e.sortedPairs(e.currentActivePairs) {
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, ContactStayEvent{BodyA: pair.a, BodyB: pair.b})
		} else {
			e.buffer = append(e.buffer, ContactEnterEvent{BodyA: pair.a, BodyB: pair.b})
		}
	}

	for _, pair := range e.sortedPairs(e.previousActivePairs) {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, ContactExitEvent{BodyA: pair.a, BodyB: pair.b})
		}
	}

	// Swap for next step and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (e *Events) sortedPairs(pairs map[handlePair]bool) []handlePair {
	e.sorted = e.sorted[:0]
	for pair := range pairs {
		e.sorted = append(e.sorted, pair)
	}
	sort.Slice(e.sorted, func(i, j int) bool {
		if e.sorted[i].a != e.sorted[j].a {
			return e.sorted[i].a < e.sorted[j].a
		}
		return e.sorted[i].b < e.sorted[j].b
	})
	return e.sorted
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processContactEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}

// reset forgets tracked contacts without emitting Exit events.
func (e *Events) reset() {
	clear(e.previousActivePairs)
	clear(e.currentActivePairs)
	e.buffer = e.buffer[:0]
}
