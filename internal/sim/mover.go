package sim

import (
	"sync"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/systems/physics"
)

var _ npc.Navigator = (*Mover)(nil)

// Mover is a kinematic navigator: it walks straight at a fixed speed toward
// its destination. Destinations outside the arena are unreachable.
type Mover struct {
	mu     sync.Mutex
	bounds Bounds
	speed  float64
	pos    physics.Vec3
	fwd    physics.Vec3
	dest   physics.Vec3
	has    bool
}

func NewMover(spawn physics.Vec3, speed float64, bounds Bounds) *Mover {
	return &Mover{bounds: bounds, speed: speed, pos: spawn, fwd: physics.V3(0, 0, 1)}
}

func (m *Mover) SetDestination(p physics.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bounds.Contains(p) {
		m.has = false
		return
	}
	m.dest, m.has = p, true
}

func (m *Mover) Destination() (physics.Vec3, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dest, m.has
}

func (m *Mover) Position() physics.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *Mover) Forward() physics.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fwd
}

// Advance moves the mover dt seconds along its route and returns its velocity.
func (m *Mover) Advance(dt float64) physics.Vec3 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.has {
		return physics.Vec3{}
	}
	pos, vel := stepToward(m.pos, m.dest, m.speed, dt)
	if !vel.IsZero() {
		m.fwd = vel.Flat().Normalize()
	}
	m.pos = pos
	return vel
}

// stepToward moves from toward to on the XZ plane and reports the velocity
// used. It never overshoots.
func stepToward(from, to physics.Vec3, speed, dt float64) (physics.Vec3, physics.Vec3) {
	delta := to.Sub(from).Flat()
	dist := delta.Len()
	if dist == 0 || speed <= 0 || dt <= 0 {
		return from, physics.Vec3{}
	}
	dir := delta.Scale(1 / dist)
	step := speed * dt
	if step >= dist {
		return physics.Vec3{X: to.X, Y: from.Y, Z: to.Z}, dir.Scale(dist / dt)
	}
	return from.Add(dir.Scale(step)), dir.Scale(speed)
}
