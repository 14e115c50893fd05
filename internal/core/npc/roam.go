package npc

import (
	"math"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// roam keeps a sampled goal around home, re-sampling when the navigator
// dropped the last one.
func (b *Brain) roam(in Input, out *Output) {
	if b.roaming && b.roamIssued && (!in.HasDestination || in.Destination != b.roamGoal) {
		b.roaming = false
	}
	if !b.roaming {
		goal, ok := b.sampleRoam()
		if !ok {
			return
		}
		b.roamGoal, b.roaming, b.roamIssued = goal, true, false
	}
	goal := b.roamGoal
	out.Move = &goal
	b.roamIssued = true
}

// sampleRoam draws a point uniformly from the disc of radius roam.radius
// around home and snaps it to the walkable surface.
func (b *Brain) sampleRoam() (physics.Vec3, bool) {
	r := b.cfg.Roam.Radius
	angle := b.rng.Float64() * 2 * math.Pi
	dist := r * math.Sqrt(b.rng.Float64())
	candidate := b.home.Add(physics.FromYaw(angle).Scale(dist))
	p, ok := b.sampler.SamplePosition(candidate, r)
	if !ok || p.FlatDist(b.home) > r {
		return physics.Vec3{}, false
	}
	return p, true
}
