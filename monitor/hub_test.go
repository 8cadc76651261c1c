package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/akmonengine/keel"
	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(hub)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Failed to connect to hub: %v", err)
	}

	waitFor(t, func() bool { return hub.Clients() == 1 })

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesViewer(t *testing.T) {
	hub := NewHub(nil)
	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	frame := Frame{Time: 0.5, DT: 0.01, Attempts: 2, Bodies: []Body{{Name: "ball", Handle: 1, Position: mgl64.Vec3{1, 2, 3}}}}
	if dropped, err := hub.Publish(frame); err != nil || dropped != 0 {
		t.Fatalf("Publish = %d, %v", dropped, err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Time != 0.5 || got.Attempts != 2 || len(got.Bodies) != 1 || got.Bodies[0].Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("got %+v", got)
	}
}

func TestHub_SlowViewerDropsFrames(t *testing.T) {
	hub := NewHub(nil)
	slow := &client{send: make(chan []byte, 1)}
	hub.clients[slow] = struct{}{}

	dropped := 0
	for i := 0; i < 3; i++ {
		n, err := hub.Publish(Frame{Time: float64(i)})
		if err != nil {
			t.Fatalf("Publish: %v", err)
		}
		dropped += n
	}

	if dropped != 2 {
		t.Errorf("dropped = %d, want 2 with a one-slot buffer", dropped)
	}
	if len(slow.send) != 1 {
		t.Errorf("queued = %d, want 1", len(slow.send))
	}
}

func TestHub_CloseDisconnectsViewers(t *testing.T) {
	hub := NewHub(nil)
	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	hub.Close()

	if hub.Clients() != 0 {
		t.Errorf("Clients = %d after Close", hub.Clients())
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Errorf("viewer still connected after Close")
	}
}

func TestHub_ViewerHangUp(t *testing.T) {
	hub := NewHub(nil)
	conn, closeAll := dialHub(t, hub)
	defer closeAll()

	conn.Close()
	waitFor(t, func() bool { return hub.Clients() == 0 })
}

func TestSnapshot(t *testing.T) {
	tree := kinematics.NewTree()
	state := tree.NewState()
	sim, err := keel.NewSimulator(tree, state, keel.DefaultConfig())
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}

	frame, _ := tree.AddFrame("ball", kinematics.WorldFrame)
	tree.SetTransform(frame, kinematics.Translation(0, 0, 10), state)
	sim.AddBody(actor.NewBody("ball", frame, actor.Rigid, actor.Geometry{
		Shape:  &actor.Sphere{Radius: 0.5},
		Offset: kinematics.Identity(),
	}))

	report, err := sim.Step(0.01)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	snapshot := Snapshot(sim, report)
	if snapshot.Time != report.Time || len(snapshot.Bodies) != 1 {
		t.Fatalf("got %+v", snapshot)
	}
	if b := snapshot.Bodies[0]; b.Name != "ball" || b.Kind != "rigid" || !b.Enabled || b.Position.Z() >= 10 {
		t.Errorf("body = %+v", b)
	}
	if snapshot.MaxDepth != 0 {
		t.Errorf("max depth = %v without contacts, want 0", snapshot.MaxDepth)
	}
}
