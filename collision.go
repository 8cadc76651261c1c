package keel

import (
	"log/slog"
	"math"

	"github.com/akmonengine/keel/actor"
	"github.com/akmonengine/keel/broadphase"
	"github.com/akmonengine/keel/constraint"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/kinematics"
	"github.com/akmonengine/keel/proximity"
)

// degenerateWitness is the witness point separation below which a contact
// carries no usable geometry.
const degenerateWitness = 1e-8

// BroadPhase filters candidate frame pairs. Next must be drained after every Update.
type BroadPhase interface {
	Update(proxies []broadphase.Proxy)
	Next() (kinematics.FrameID, kinematics.FrameID, bool)
}

// PoseFunc returns the world transform of a body frame.
type PoseFunc func(h actor.Handle) kinematics.Transform

// PairContacts holds the contacts found between two bodies. Points live in
// the generator's arena and are valid until the next Generate.
type PairContacts struct {
	A, B   actor.Handle
	Points []contact.Point
}

type handlePair struct {
	a, b actor.Handle
}

func makeHandlePair(a, b actor.Handle) handlePair {
	if b < a {
		a, b = b, a
	}
	return handlePair{a: a, b: b}
}

// Generator produces contact points between registered bodies.
type Generator struct {
	Registry    *Registry
	BroadPhase  BroadPhase
	NarrowPhase proximity.Strategy
	Materials   *constraint.MaterialTable

	MaxSepDistance   float64
	SoftContactLayer float64
	MaxPenetration   float64

	logger   *slog.Logger
	excluded map[handlePair]struct{}
	welded   map[handlePair]struct{}
	arena    *contact.Arena
	result   proximity.Result
	proxies  []broadphase.Proxy
	pending  []contact.Point
	pairs    []PairContacts
	spans    [][2]int
}

func NewGenerator(registry *Registry, bp BroadPhase, np proximity.Strategy, materials *constraint.MaterialTable, config Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		Registry:         registry,
		BroadPhase:       bp,
		NarrowPhase:      np,
		Materials:        materials,
		MaxSepDistance:   config.MaxSepDistance,
		SoftContactLayer: config.SoftContactLayer,
		MaxPenetration:   config.MaxPenetration,
		logger:           logger.With("component", "collision"),
		excluded:         make(map[handlePair]struct{}),
		welded:           make(map[handlePair]struct{}),
		arena:            contact.NewArena(256),
	}
}

// ExcludePair stops contacts between a and b from being generated.
func (g *Generator) ExcludePair(a, b actor.Handle) {
	g.excluded[makeHandlePair(a, b)] = struct{}{}
}

func (g *Generator) Excluded(a, b actor.Handle) bool {
	_, ok := g.excluded[makeHandlePair(a, b)]
	return ok
}

// Weld marks a and b as rigidly attached. Welded pairs are neither
// collided nor checked for penetration until Unweld.
func (g *Generator) Weld(a, b actor.Handle) {
	g.welded[makeHandlePair(a, b)] = struct{}{}
}

func (g *Generator) Unweld(a, b actor.Handle) {
	delete(g.welded, makeHandlePair(a, b))
}

func (g *Generator) Welded(a, b actor.Handle) bool {
	_, ok := g.welded[makeHandlePair(a, b)]
	return ok
}

// Arena is the scratch buffer holding the points of the last Generate.
func (g *Generator) Arena() *contact.Arena {
	return g.arena
}

// Generate returns every contact within the search radius, pair by pair in
// broad-phase order. Point depth is MaxPenetration minus the signed separation.
func (g *Generator) Generate(pose PoseFunc) ([]PairContacts, error) {
	g.arena.Reset()
	g.pairs = g.pairs[:0]
	g.spans = g.spans[:0]

	g.candidates(pose, func(a, b actor.Handle) bool {
		if !g.collide(a, b, pose) || len(g.pending) == 0 {
			return true
		}
		start := g.arena.Len()
		for _, p := range g.pending {
			g.arena.Append(p)
		}
		g.pairs = append(g.pairs, PairContacts{A: a, B: b})
		g.spans = append(g.spans, [2]int{start, g.arena.Len()})
		return true
	})

	points := g.arena.Points()
	for i := range g.pairs {
		g.pairs[i].Points = points[g.spans[i][0]:g.spans[i][1]]
	}

	return g.pairs, nil
}

// InPenetration reports whether any pair overlaps deeper than MaxPenetration.
// It stops at the first such pair.
func (g *Generator) InPenetration(pose PoseFunc) bool {
	found := false
	query := proximity.Query{Type: proximity.FirstContact, Tolerance: g.MaxPenetration}

	g.candidates(pose, func(a, b actor.Handle) bool {
		bodyA, bodyB := g.Registry.Body(a), g.Registry.Body(b)
		poseA, poseB := pose(a), pose(b)

		for _, ga := range bodyA.Geometries {
			for _, gb := range bodyB.Geometries {
				hit, err := g.NarrowPhase.InCollision(ga.Shape, poseA.Compose(ga.Offset), gb.Shape, poseB.Compose(gb.Offset), query)
				if err != nil {
					g.logger.Warn("penetration query failed", "bodyA", bodyA.Name, "bodyB", bodyB.Name, "error", err)
					continue
				}
				if hit {
					found = true
					return false
				}
			}
		}
		return true
	})

	return found
}

// Penetrating lists every pair overlapping deeper than MaxPenetration.
func (g *Generator) Penetrating(pose PoseFunc) []PairReport {
	var reports []PairReport
	query := proximity.Query{Type: proximity.AllContacts}

	g.candidates(pose, func(a, b actor.Handle) bool {
		bodyA, bodyB := g.Registry.Body(a), g.Registry.Body(b)
		poseA, poseB := pose(a), pose(b)
		deepest := math.Inf(1)

		for _, ga := range bodyA.Geometries {
			for _, gb := range bodyB.Geometries {
				g.result.Reset()
				if err := g.NarrowPhase.Distances(ga.Shape, poseA.Compose(ga.Offset), gb.Shape, poseB.Compose(gb.Offset), -g.MaxPenetration, query, &g.result); err != nil {
					continue
				}
				for _, d := range g.result.Distances {
					deepest = math.Min(deepest, d)
				}
			}
		}
		if !math.IsInf(deepest, 1) {
			reports = append(reports, PairReport{
				BodyA: a, BodyB: b,
				NameA: bodyA.Name, NameB: bodyB.Name,
				PositionA: poseA.Position, PositionB: poseB.Position,
				Depth: -deepest,
			})
		}
		return true
	})

	return reports
}

// candidates feeds the broad phase and calls visit for every pair that may
// collide, until visit returns false. The broad phase is always drained.
func (g *Generator) candidates(pose PoseFunc, visit func(a, b actor.Handle) bool) {
	g.proxies = g.proxies[:0]
	for i, body := range g.Registry.Bodies() {
		bounds, unbounded := body.Bounds(pose(actor.Handle(i)))
		g.proxies = append(g.proxies, broadphase.Proxy{
			Frame:     body.Frame,
			Bounds:    bounds.Expand(g.MaxSepDistance + g.SoftContactLayer),
			Static:    body.Kind == actor.Fixed,
			Unbounded: unbounded,
		})
	}
	g.BroadPhase.Update(g.proxies)

	stopped := false
	for {
		frameA, frameB, ok := g.BroadPhase.Next()
		if !ok {
			return
		}
		if stopped {
			continue
		}

		a, okA := g.Registry.Handle(frameA)
		b, okB := g.Registry.Handle(frameB)
		if !okA || !okB || a == b {
			continue
		}
		if !g.Registry.Enabled(a) || !g.Registry.Enabled(b) || g.Excluded(a, b) || g.Welded(a, b) {
			continue
		}
		if b < a {
			a, b = b, a
		}
		if !visit(a, b) {
			stopped = true
		}
	}
}

// collide collects the contacts between a and b in g.pending. It returns
// false when the narrow phase failed for the pair.
func (g *Generator) collide(a, b actor.Handle, pose PoseFunc) bool {
	g.pending = g.pending[:0]
	bodyA, bodyB := g.Registry.Body(a), g.Registry.Body(b)
	poseA, poseB := pose(a), pose(b)

	maxSeparation := g.MaxSepDistance
	if g.soft(bodyA) || g.soft(bodyB) {
		maxSeparation += g.SoftContactLayer
	}
	query := proximity.Query{Type: proximity.AllContacts, Tolerance: g.MaxPenetration}

	for _, ga := range bodyA.Geometries {
		for _, gb := range bodyB.Geometries {
			g.result.Reset()
			err := g.NarrowPhase.Distances(ga.Shape, poseA.Compose(ga.Offset), gb.Shape, poseB.Compose(gb.Offset), maxSeparation, query, &g.result)
			if err != nil {
				g.logger.Warn("contact query failed, pair skipped", "bodyA", bodyA.Name, "bodyB", bodyB.Name, "error", err)
				return false
			}

			for i, d := range g.result.Distances {
				pA, pB := g.result.PointsA[i], g.result.PointsB[i]
				if pB.Sub(pA).Len() < degenerateWitness && math.Abs(d) < degenerateWitness {
					continue
				}
				g.pending = append(g.pending, contact.Point{
					Position: pA.Add(pB).Mul(0.5),
					Normal:   g.result.Normals[i],
					Depth:    g.MaxPenetration - d,
				})
			}
		}
	}

	return true
}

func (g *Generator) soft(body *actor.Body) bool {
	if g.Materials == nil {
		return false
	}
	return g.Materials.Soft(g.Materials.MaterialID(body.Info.Material))
}
