// Package broadphase prunes the candidate body pairs handed to the narrow phase.
package broadphase

import (
	"math"
	"sort"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/kinematics"
	"github.com/go-gl/mathgl/mgl64"
)

// Proxy is what the broad phase knows of a body: its frame and world bounds.
type Proxy struct {
	Frame  kinematics.FrameID
	Bounds actor.AABB
	// Static proxies never pair with each other.
	Static bool
	// Unbounded proxies (planes) pair with every other proxy.
	Unbounded bool
}

// Pair is a candidate pair, ordered so that A < B.
type Pair struct {
	A, B kinematics.FrameID
}

func makePair(a, b kinematics.FrameID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// CellKey is the integer coordinate of a grid cell.
type CellKey struct {
	X, Y, Z int
}

type cell struct {
	proxyIndices []int
}

// SpatialGrid is a uniform hashed grid. Update rebuilds it from scratch and
// Next then drains the candidate pairs in ascending (A, B) order.
type SpatialGrid struct {
	cellSize float64
	cells    []cell
	cellMask int

	proxies   []Proxy
	oversized []int
	seen      map[Pair]struct{}
	pairs     []Pair
	cursor    int
}

// NewSpatialGrid creates a grid of cellSize cells hashed into numCells
// buckets, rounded up to a power of two.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]cell, numCells)
	for i := range cells {
		cells[i].proxyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
		seen:     make(map[Pair]struct{}),
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Update replaces the proxy set and recomputes the candidate pairs.
func (sg *SpatialGrid) Update(proxies []Proxy) {
	sg.clear()
	sg.proxies = append(sg.proxies[:0], proxies...)

	for i, p := range sg.proxies {
		// proxies covering more cells than the grid has buckets are tested against everyone
		if p.Unbounded || p.Bounds.Empty() || sg.span(p.Bounds) > len(sg.cells) {
			sg.oversized = append(sg.oversized, i)
			continue
		}
		sg.insert(i, p.Bounds)
	}
	sg.sortCells()

	sg.findPairs()
	sort.Slice(sg.pairs, func(i, j int) bool {
		if sg.pairs[i].A != sg.pairs[j].A {
			return sg.pairs[i].A < sg.pairs[j].A
		}
		return sg.pairs[i].B < sg.pairs[j].B
	})
}

// Next returns the next candidate pair, false once drained.
func (sg *SpatialGrid) Next() (kinematics.FrameID, kinematics.FrameID, bool) {
	if sg.cursor >= len(sg.pairs) {
		return kinematics.NoFrame, kinematics.NoFrame, false
	}
	p := sg.pairs[sg.cursor]
	sg.cursor++

	return p.A, p.B, true
}

func (sg *SpatialGrid) clear() {
	for i := range sg.cells {
		sg.cells[i].proxyIndices = sg.cells[i].proxyIndices[:0]
	}
	for k := range sg.seen {
		delete(sg.seen, k)
	}
	sg.oversized = sg.oversized[:0]
	sg.pairs = sg.pairs[:0]
	sg.cursor = 0
}

func (sg *SpatialGrid) insert(index int, bounds actor.AABB) {
	minCell := sg.worldToCell(bounds.Min)
	maxCell := sg.worldToCell(bounds.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				idx := sg.hashCell(CellKey{x, y, z})
				sg.cells[idx].proxyIndices = append(sg.cells[idx].proxyIndices, index)
			}
		}
	}
}

func (sg *SpatialGrid) sortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].proxyIndices) > 1 {
			sort.Ints(sg.cells[i].proxyIndices)
		}
	}
}

// span is the number of cells bounds covers, saturating instead of overflowing.
func (sg *SpatialGrid) span(bounds actor.AABB) int {
	extent := bounds.Max.Sub(bounds.Min)
	total := 1.0
	for i := 0; i < 3; i++ {
		total *= math.Floor(extent[i]/sg.cellSize) + 2
	}
	if total > math.MaxInt32 || math.IsNaN(total) {
		return math.MaxInt32
	}

	return int(total)
}

func (sg *SpatialGrid) findPairs() {
	for i, a := range sg.proxies {
		if a.Unbounded || a.Bounds.Empty() {
			continue
		}
		minCell := sg.worldToCell(a.Bounds.Min)
		maxCell := sg.worldToCell(a.Bounds.Max)
		if sg.span(a.Bounds) > len(sg.cells) {
			continue
		}

		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					idx := sg.hashCell(CellKey{x, y, z})
					for _, other := range sg.cells[idx].proxyIndices {
						if other <= i {
							continue
						}
						sg.consider(i, other)
					}
				}
			}
		}
	}

	for _, i := range sg.oversized {
		for j := range sg.proxies {
			if j != i {
				sg.consider(i, j)
			}
		}
	}
}

func (sg *SpatialGrid) consider(i, j int) {
	a, b := sg.proxies[i], sg.proxies[j]
	if !Accept(a, b) {
		return
	}

	pair := makePair(a.Frame, b.Frame)
	if _, dup := sg.seen[pair]; dup {
		return
	}
	sg.seen[pair] = struct{}{}
	sg.pairs = append(sg.pairs, pair)
}

// Accept is the filter every broad phase applies to a proxy pair.
func Accept(a, b Proxy) bool {
	if a.Frame == b.Frame {
		return false
	}
	if a.Static && b.Static {
		return false
	}
	if a.Unbounded || b.Unbounded {
		return true
	}

	return a.Bounds.Overlaps(b.Bounds)
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
