package npc

import (
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// Handle identifies an agent or entity. Holding a Handle never keeps its
// referent alive; resolve it each tick.
type Handle string

// Memory is an agent's short-term knowledge of its target and of where it
// was before it started chasing.
type Memory struct {
	target      Handle
	lastSeen    physics.Vec3
	hasSeen     bool
	confirmedAt time.Time
	lastBeen    physics.Vec3
}

func NewMemory(spawn physics.Vec3) *Memory {
	return &Memory{lastBeen: spawn}
}

// Confirm records a sighting of target at p.
func (m *Memory) Confirm(now time.Time, target Handle, p physics.Vec3) {
	m.target = target
	m.lastSeen = p
	m.hasSeen = true
	m.confirmedAt = now
}

// Credible reports whether the last sighting is younger than expiry.
func (m *Memory) Credible(now time.Time, expiry time.Duration) bool {
	return m.hasSeen && m.SinceSighting(now) < expiry
}

// SinceSighting is the time since the last confirmed sighting, or zero if
// nothing was ever seen.
func (m *Memory) SinceSighting(now time.Time) time.Duration {
	if !m.hasSeen {
		return 0
	}
	return now.Sub(m.confirmedAt)
}

func (m *Memory) Target() Handle { return m.target }

// LastSeen returns the last confirmed target position.
func (m *Memory) LastSeen() (physics.Vec3, bool) { return m.lastSeen, m.hasSeen }

// RememberPosition stores where to return once a chase is over.
func (m *Memory) RememberPosition(p physics.Vec3) { m.lastBeen = p }

// LastBeen is the remembered pre-chase position.
func (m *Memory) LastBeen() physics.Vec3 { return m.lastBeen }

// Forget drops the target but keeps the pre-chase position.
func (m *Memory) Forget() {
	m.target = ""
	m.hasSeen = false
	m.confirmedAt = time.Time{}
}
