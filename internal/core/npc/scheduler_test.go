package npc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

func TestSchedulerFiresOnce(t *testing.T) {
	var s Scheduler
	_, ok := s.Poll(t0)
	assert.False(t, ok)

	s.Schedule(t0, 7*time.Second, StateReturning)
	p, ok := s.Pending()
	assert.True(t, ok)
	assert.Equal(t, at(7*time.Second), p.FireAt)

	_, ok = s.Poll(at(6999 * time.Millisecond))
	assert.False(t, ok)

	st, ok := s.Poll(at(7 * time.Second))
	assert.True(t, ok)
	assert.Equal(t, StateReturning, st)

	_, ok = s.Poll(at(8 * time.Second))
	assert.False(t, ok, "a fired entry is removed")
}

func TestSchedulerSameTargetKeepsDeadline(t *testing.T) {
	var s Scheduler
	s.Schedule(t0, 2*time.Second, StatePatrol)
	s.Schedule(at(time.Second), 2*time.Second, StatePatrol)

	p, _ := s.Pending()
	assert.Equal(t, at(2*time.Second), p.FireAt)

	s.Schedule(at(time.Second), 5*time.Second, StateRoam)
	p, _ = s.Pending()
	assert.Equal(t, StateRoam, p.Target)
	assert.Equal(t, at(6*time.Second), p.FireAt)

	s.Cancel()
	_, ok := s.Pending()
	assert.False(t, ok)
	_, ok = s.Poll(at(time.Hour))
	assert.False(t, ok)
}

func TestCooldown(t *testing.T) {
	var c Cooldown
	assert.True(t, c.Ready(t0), "zero cooldown is ready")

	c.Start(t0, 2500*time.Millisecond)
	assert.False(t, c.Ready(at(2*time.Second)))
	assert.Equal(t, 500*time.Millisecond, c.Remaining(at(2*time.Second)))
	assert.True(t, c.Ready(at(2500*time.Millisecond)))
	assert.Zero(t, c.Remaining(at(3*time.Second)))
}

func TestMemory(t *testing.T) {
	spawn := physics.V3(1, 0, 1)
	m := NewMemory(spawn)
	assert.Equal(t, spawn, m.LastBeen())
	assert.False(t, m.Credible(t0, time.Second))
	assert.Zero(t, m.SinceSighting(t0))

	m.Confirm(t0, "player", physics.V3(5, 0, 5))
	assert.Equal(t, Handle("player"), m.Target())
	last, ok := m.LastSeen()
	assert.True(t, ok)
	assert.Equal(t, physics.V3(5, 0, 5), last)

	assert.True(t, m.Credible(at(1999*time.Millisecond), 2*time.Second))
	assert.False(t, m.Credible(at(2*time.Second), 2*time.Second))
	assert.Equal(t, 3*time.Second, m.SinceSighting(at(3*time.Second)))

	m.RememberPosition(physics.V3(9, 0, 9))
	m.Forget()
	assert.Empty(t, m.Target())
	_, ok = m.LastSeen()
	assert.False(t, ok)
	assert.Equal(t, physics.V3(9, 0, 9), m.LastBeen())
}
