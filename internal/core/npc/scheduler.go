package npc

import "time"

// PendingTransition is a forced transition waiting for its deadline.
type PendingTransition struct {
	FireAt time.Time
	Target State
}

// Scheduler holds at most one pending transition per agent.
type Scheduler struct {
	pending PendingTransition
	armed   bool
}

// Schedule arms a transition to target after d. If the pending entry already
// targets the same state it is kept with its original deadline; any other
// entry is replaced.
func (s *Scheduler) Schedule(now time.Time, d time.Duration, target State) {
	if s.armed && s.pending.Target == target {
		return
	}
	s.pending = PendingTransition{FireAt: now.Add(d), Target: target}
	s.armed = true
}

func (s *Scheduler) Cancel() {
	s.pending = PendingTransition{}
	s.armed = false
}

// Pending returns the armed entry, if any.
func (s *Scheduler) Pending() (PendingTransition, bool) {
	return s.pending, s.armed
}

// Poll fires the pending transition once its deadline has passed.
func (s *Scheduler) Poll(now time.Time) (State, bool) {
	if !s.armed || now.Before(s.pending.FireAt) {
		return 0, false
	}
	target := s.pending.Target
	s.Cancel()
	return target, true
}

// Cooldown tracks when an action may run again. The zero value is ready.
type Cooldown struct {
	readyAt time.Time
}

func (c *Cooldown) Start(now time.Time, d time.Duration) { c.readyAt = now.Add(d) }

func (c *Cooldown) Ready(now time.Time) bool { return !now.Before(c.readyAt) }

// Remaining is zero when ready.
func (c *Cooldown) Remaining(now time.Time) time.Duration {
	if c.Ready(now) {
		return 0
	}
	return c.readyAt.Sub(now)
}
