package broadphase

import (
	"testing"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

func boxProxy(frame kinematics.FrameID, center mgl64.Vec3, half float64) Proxy {
	h := mgl64.Vec3{half, half, half}
	return Proxy{Frame: frame, Bounds: actor.AABB{Min: center.Sub(h), Max: center.Add(h)}}
}

func planeProxy(frame kinematics.FrameID) Proxy {
	shape := &actor.Plane{Normal: mgl64.Vec3{0, 0, 1}}
	return Proxy{Frame: frame, Bounds: shape.ComputeAABB(kinematics.Identity()), Static: true, Unbounded: true}
}

func drain(next func() (kinematics.FrameID, kinematics.FrameID, bool)) []Pair {
	var pairs []Pair
	for {
		a, b, ok := next()
		if !ok {
			return pairs
		}
		pairs = append(pairs, Pair{a, b})
	}
}

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestHashCell_InRange(t *testing.T) {
	grid := NewSpatialGrid(1.0, 10)
	if len(grid.cells) != 16 {
		t.Fatalf("cells = %d, want 16", len(grid.cells))
	}

	for x := -20; x <= 20; x++ {
		for y := -20; y <= 20; y++ {
			h := grid.hashCell(CellKey{x, y, 3})
			if h < 0 || h >= len(grid.cells) {
				t.Fatalf("hashCell(%d,%d,3) = %d out of range", x, y, h)
			}
		}
	}
}

func TestSpatialGrid_OverlappingPairsOnly(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	grid.Update([]Proxy{
		boxProxy(3, mgl64.Vec3{0, 0, 0}, 0.5),
		boxProxy(1, mgl64.Vec3{0.8, 0, 0}, 0.5),
		boxProxy(2, mgl64.Vec3{10, 0, 0}, 0.5),
	})

	pairs := drain(grid.Next)
	if len(pairs) != 1 {
		t.Fatalf("got %v, want one pair", pairs)
	}
	if pairs[0] != (Pair{1, 3}) {
		t.Errorf("pair = %v, want {1 3}", pairs[0])
	}

	if _, _, ok := grid.Next(); ok {
		t.Error("Next after drain returned a pair")
	}
}

func TestSpatialGrid_PlanePairsWithEveryone(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	ground := planeProxy(1)
	wall := planeProxy(2)

	grid.Update([]Proxy{
		ground,
		wall,
		boxProxy(3, mgl64.Vec3{0, 0, 5}, 0.5),
		boxProxy(4, mgl64.Vec3{50, 0, 5}, 0.5),
	})

	pairs := drain(grid.Next)
	want := []Pair{{1, 3}, {1, 4}, {2, 3}, {2, 4}}
	if len(pairs) != len(want) {
		t.Fatalf("got %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestSpatialGrid_MatchesAllPairs(t *testing.T) {
	var proxies []Proxy
	frame := kinematics.FrameID(1)
	for x := 0; x < 6; x++ {
		for y := 0; y < 6; y++ {
			proxies = append(proxies, boxProxy(frame, mgl64.Vec3{float64(x) * 0.9, float64(y) * 0.9, 0}, 0.5))
			frame++
		}
	}
	proxies = append(proxies, boxProxy(frame, mgl64.Vec3{2, 2, 0}, 40))

	grid := NewSpatialGrid(1.0, 32)
	grid.Update(proxies)
	var all AllPairs
	all.Update(proxies)

	got := drain(grid.Next)
	want := drain(all.Next)
	if len(got) != len(want) {
		t.Fatalf("grid found %d pairs, exhaustive search %d", len(got), len(want))
	}

	index := make(map[Pair]bool, len(want))
	for _, p := range want {
		index[p] = true
	}
	for _, p := range got {
		if !index[p] {
			t.Errorf("grid pair %v not found by exhaustive search", p)
		}
	}
}
