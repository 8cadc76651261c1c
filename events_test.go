package keel

import (
	"testing"

	"github.com/akmonengine/keel/actor"
)

func TestEvents_OrderedByPair(t *testing.T) {
	events := NewEvents()
	var got []ContactEnterEvent
	events.Subscribe(CONTACT_ENTER, func(e Event) {
		got = append(got, e.(ContactEnterEvent))
	})

	events.recordContact(3, 1)
	events.recordContact(0, 2)
	events.recordContact(1, 3)
	events.flush()

	want := []ContactEnterEvent{{BodyA: 0, BodyB: 2}, {BodyA: 1, BodyB: 3}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEvents_ResetForgetsContacts(t *testing.T) {
	events := NewEvents()
	exits := 0
	events.Subscribe(CONTACT_EXIT, func(Event) { exits++ })

	events.recordContact(0, 1)
	events.flush()
	events.reset()
	events.flush()

	if exits != 0 {
		t.Errorf("got %d exit events after reset, want 0", exits)
	}
}

func TestSimulator_ContactLifecycle(t *testing.T) {
	scene, _, sphere := newRestingScene(t, DefaultConfig())

	var types []EventType
	record := func(e Event) { types = append(types, e.Type()) }
	for _, eventType := range []EventType{CONTACT_ENTER, CONTACT_STAY, CONTACT_EXIT} {
		scene.sim.Events.Subscribe(eventType, record)
	}

	for i := 0; i < 2; i++ {
		if _, err := scene.sim.Step(dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := scene.sim.SetEnabled(sphere, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if _, err := scene.sim.Step(dt); err != nil {
		t.Fatalf("step: %v", err)
	}

	want := []EventType{CONTACT_ENTER, CONTACT_STAY, CONTACT_EXIT}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestEvents_ExitCarriesPair(t *testing.T) {
	events := NewEvents()
	var exit ContactExitEvent
	events.Subscribe(CONTACT_EXIT, func(e Event) { exit = e.(ContactExitEvent) })

	events.recordContact(actor.Handle(4), actor.Handle(2))
	events.flush()
	events.flush()

	if exit.BodyA != 2 || exit.BodyB != 4 {
		t.Errorf("exit = %+v, want bodies 2 and 4", exit)
	}
}
