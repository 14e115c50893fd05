package npc

import "github.com/zeusync/sentry/internal/core/systems/physics"

// Navigator moves an agent through the world. Implementations own the
// agent's position.
type Navigator interface {
	// SetDestination asks the pathfinder to route toward p.
	SetDestination(p physics.Vec3)
	// Destination returns the current goal. ok is false when there is none
	// or the last goal was unreachable.
	Destination() (p physics.Vec3, ok bool)
	// Position is the agent's current location.
	Position() physics.Vec3
	// Forward is the horizontal direction the agent faces.
	Forward() physics.Vec3
}

// Sampler snaps a point to the nearest walkable location.
type Sampler interface {
	SamplePosition(p physics.Vec3, maxDistance float64) (physics.Vec3, bool)
}

// Hit is the first thing a ray touched.
type Hit struct {
	Handle   Handle
	Tag      string
	Position physics.Vec3
	Distance float64
}

// Raycaster answers line-of-sight queries. It is shared by every agent and
// must be safe for concurrent use.
type Raycaster interface {
	CastRay(origin, dir physics.Vec3, maxDistance float64) (Hit, bool)
}

// TargetStatus is a resolved target handle.
type TargetStatus struct {
	Handle   Handle
	Tag      string
	Position physics.Vec3
	Valid    bool
}

// TargetResolver turns handles into live positions. A handle that no longer
// resolves is stale. Must be safe for concurrent use.
type TargetResolver interface {
	Resolve(h Handle) (TargetStatus, bool)
}

// Alertable is anything that can be told about a hostile.
type Alertable interface {
	ReceiveAlert(target Handle)
}

// StrikeHandler applies the consequences of a landed strike. Health and
// respawn live behind it.
type StrikeHandler interface {
	Strike(source, target Handle, damage float64)
}
