package npc

import "github.com/zeusync/sentry/internal/core/systems/physics"

var _ Navigator = (*DedupNavigator)(nil)

// DedupNavigator forwards destination requests only when they differ from
// the last one it issued, so re-issuing the same goal every tick does not
// restart path computation.
type DedupNavigator struct {
	inner  Navigator
	last   physics.Vec3
	issued bool
	calls  int
}

func NewDedupNavigator(inner Navigator) *DedupNavigator {
	return &DedupNavigator{inner: inner}
}

func (d *DedupNavigator) SetDestination(p physics.Vec3) {
	if d.issued && d.last == p {
		return
	}
	d.last, d.issued = p, true
	d.calls++
	d.inner.SetDestination(p)
}

func (d *DedupNavigator) Destination() (physics.Vec3, bool) { return d.inner.Destination() }
func (d *DedupNavigator) Position() physics.Vec3            { return d.inner.Position() }
func (d *DedupNavigator) Forward() physics.Vec3             { return d.inner.Forward() }

// Issued counts requests that reached the wrapped navigator.
func (d *DedupNavigator) Issued() int { return d.calls }
