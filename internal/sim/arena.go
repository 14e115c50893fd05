package sim

import (
	"math"
	"sort"
	"sync"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/systems/physics"
)

var (
	_ npc.Raycaster      = (*Arena)(nil)
	_ npc.TargetResolver = (*Arena)(nil)
	_ npc.Sampler        = (*Arena)(nil)
	_ npc.StrikeHandler  = (*Arena)(nil)
)

// Listener receives hearing trigger callbacks. *npc.Agent implements it.
type Listener interface {
	HearEnter(zone npc.Tier, b npc.Body)
	HearStay(zone npc.Tier, b npc.Body)
	HearExit(zone npc.Tier, h npc.Handle)
}

// BodyView is the presentation view of a body.
type BodyView struct {
	ID       npc.Handle   `json:"id"`
	Tag      string       `json:"tag"`
	Position physics.Vec3 `json:"position"`
	Velocity physics.Vec3 `json:"velocity"`
	Health   float64      `json:"health"`
}

// ArenaStats counts strike outcomes.
type ArenaStats struct {
	Struck   int     `json:"struck"`
	Damage   float64 `json:"damage"`
	Respawns int     `json:"respawns"`
}

type body struct {
	spec   BodySpec
	pos    physics.Vec3
	vel    physics.Vec3
	next   int
	health float64
}

type guard struct {
	id     npc.Handle
	tag    string
	radius float64
	rings  Rings
	mover  *Mover
	ears   Listener
	vel    physics.Vec3
}

type occupant struct {
	listener npc.Handle
	zone     npc.Tier
	source   npc.Handle
}

// Arena is the reference world around the agents. Every entity and obstacle
// is an infinite vertical cylinder, so line of sight is tested on the XZ
// plane. It answers the agents' perception queries and applies strikes.
type Arena struct {
	mu        sync.RWMutex
	bounds    Bounds
	bodies    []*body
	guards    []*guard
	obstacles []ObstacleSpec
	inside    map[occupant]struct{}
	stats     ArenaStats
}

func NewArena(bounds Bounds) *Arena {
	return &Arena{bounds: bounds, inside: make(map[occupant]struct{})}
}

func (a *Arena) AddBody(spec BodySpec) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := &body{spec: spec, health: spec.Health}
	b.respawn()
	a.bodies = append(a.bodies, b)
	sort.Slice(a.bodies, func(i, j int) bool { return a.bodies[i].spec.ID < a.bodies[j].spec.ID })
}

func (a *Arena) AddObstacle(spec ObstacleSpec) {
	a.mu.Lock()
	a.obstacles = append(a.obstacles, spec)
	a.mu.Unlock()
}

// AddGuard places an agent's body in the arena. ears may be nil until the
// agent exists; see Listen.
func (a *Arena) AddGuard(spec AgentSpec, mover *Mover) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guards = append(a.guards, &guard{
		id:     npc.Handle(spec.ID),
		tag:    spec.Tag,
		radius: spec.Radius,
		rings:  spec.Rings,
		mover:  mover,
	})
	sort.Slice(a.guards, func(i, j int) bool { return a.guards[i].id < a.guards[j].id })
}

// Listen attaches the hearing callbacks of guard id.
func (a *Arena) Listen(id npc.Handle, ears Listener) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.guards {
		if g.id == id {
			g.ears = ears
			return true
		}
	}
	return false
}

// Advance moves every body and guard dt seconds forward and then fires the
// hearing triggers.
func (a *Arena) Advance(dt float64) {
	a.mu.Lock()
	for _, b := range a.bodies {
		b.advance(dt)
	}
	for _, g := range a.guards {
		g.vel = g.mover.Advance(dt)
	}
	calls := a.triggersLocked()
	a.mu.Unlock()

	// Callbacks run unlocked: listeners query the arena from their ticks.
	for _, call := range calls {
		call()
	}
}

func (a *Arena) emittersLocked() []npc.Body {
	out := make([]npc.Body, 0, len(a.bodies)+len(a.guards))
	for _, b := range a.bodies {
		out = append(out, npc.Body{Handle: npc.Handle(b.spec.ID), Tag: b.spec.Tag, Position: b.pos, Velocity: b.vel})
	}
	for _, g := range a.guards {
		out = append(out, npc.Body{Handle: g.id, Tag: g.tag, Position: g.mover.Position(), Velocity: g.vel})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (a *Arena) triggersLocked() []func() {
	var calls []func()
	emitters := a.emittersLocked()
	for _, g := range a.guards {
		if g.ears == nil {
			continue
		}
		ears := g.ears
		at := g.mover.Position()
		for _, zone := range npc.Zones() {
			r := g.rings.Radius(zone)
			for _, e := range emitters {
				if e.Handle == g.id {
					continue
				}
				key := occupant{listener: g.id, zone: zone, source: e.Handle}
				_, was := a.inside[key]
				now := r > 0 && at.FlatDist(e.Position) <= r
				switch {
				case now && !was:
					a.inside[key] = struct{}{}
					calls = append(calls, func() { ears.HearEnter(zone, e) })
				case now && was:
					calls = append(calls, func() { ears.HearStay(zone, e) })
				case !now && was:
					delete(a.inside, key)
					calls = append(calls, func() { ears.HearExit(zone, e.Handle) })
				}
			}
		}
	}
	return calls
}

// CastRay returns the nearest cylinder hit along dir. Cylinders containing
// the origin are skipped so a guard never sees itself.
func (a *Arena) CastRay(origin, dir physics.Vec3, maxDistance float64) (npc.Hit, bool) {
	flat := dir.Flat()
	if flat.IsZero() {
		return npc.Hit{}, false
	}
	ray := physics.Ray{Origin: origin.Flat(), Dir: flat.Normalize()}

	a.mu.RLock()
	defer a.mu.RUnlock()

	best := npc.Hit{Distance: math.Inf(1)}
	found := false
	try := func(h npc.Handle, tag string, pos physics.Vec3, radius float64) {
		s := physics.Sphere{Center: pos.Flat(), Radius: radius}
		if ray.Origin.Dist(s.Center) <= radius {
			return
		}
		d, ok := ray.IntersectSphere(s)
		if !ok || d > maxDistance || d >= best.Distance {
			return
		}
		best = npc.Hit{Handle: h, Tag: tag, Position: pos, Distance: d}
		found = true
	}
	for _, o := range a.obstacles {
		try(npc.Handle(o.ID), o.Tag, o.Center, o.Radius)
	}
	for _, b := range a.bodies {
		try(npc.Handle(b.spec.ID), b.spec.Tag, b.pos, b.spec.Radius)
	}
	for _, g := range a.guards {
		try(g.id, g.tag, g.mover.Position(), g.radius)
	}
	return best, found
}

func (a *Arena) Resolve(h npc.Handle) (npc.TargetStatus, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, b := range a.bodies {
		if npc.Handle(b.spec.ID) == h {
			return npc.TargetStatus{Handle: h, Tag: b.spec.Tag, Position: b.pos, Valid: true}, true
		}
	}
	for _, g := range a.guards {
		if g.id == h {
			return npc.TargetStatus{Handle: h, Tag: g.tag, Position: g.mover.Position(), Valid: true}, true
		}
	}
	return npc.TargetStatus{}, false
}

// SamplePosition clamps p into the arena. Points inside an obstacle or
// farther than maxDistance from the clamped result are rejected.
func (a *Arena) SamplePosition(p physics.Vec3, maxDistance float64) (physics.Vec3, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	c := a.bounds.Clamp(p)
	if c.FlatDist(p) > maxDistance {
		return physics.Vec3{}, false
	}
	for _, o := range a.obstacles {
		if c.FlatDist(o.Center) <= o.Radius {
			return physics.Vec3{}, false
		}
	}
	return c, true
}

// Strike damages a body; a body out of health respawns at the start of its
// path. Struck guards take no damage.
func (a *Arena) Strike(_, target npc.Handle, damage float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Struck++
	a.stats.Damage += damage
	for _, b := range a.bodies {
		if npc.Handle(b.spec.ID) != target {
			continue
		}
		b.health -= damage
		if b.health <= 0 {
			b.health = b.spec.Health
			b.respawn()
			a.stats.Respawns++
		}
		return
	}
}

func (a *Arena) Stats() ArenaStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Bodies returns every body sorted by ID.
func (a *Arena) Bodies() []BodyView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]BodyView, len(a.bodies))
	for i, b := range a.bodies {
		out[i] = BodyView{ID: npc.Handle(b.spec.ID), Tag: b.spec.Tag, Position: b.pos, Velocity: b.vel, Health: b.health}
	}
	return out
}

func (b *body) respawn() {
	b.pos = b.spec.Path[0]
	b.vel = physics.Vec3{}
	b.next = 1 % len(b.spec.Path)
}

func (b *body) advance(dt float64) {
	goal := b.spec.Path[b.next]
	b.pos, b.vel = stepToward(b.pos, goal, b.spec.Speed, dt)
	if b.pos.FlatDist(goal) == 0 {
		b.next = (b.next + 1) % len(b.spec.Path)
	}
}
