package npc

import (
	"math"
	"sync"
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

type fakeNav struct {
	mu   sync.Mutex
	pos  physics.Vec3
	fwd  physics.Vec3
	dest physics.Vec3
	has  bool
	sets []physics.Vec3
}

func newFakeNav(pos physics.Vec3) *fakeNav {
	return &fakeNav{pos: pos, fwd: physics.V3(0, 0, 1)}
}

func (n *fakeNav) SetDestination(p physics.Vec3) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dest, n.has = p, true
	n.sets = append(n.sets, p)
}

func (n *fakeNav) Destination() (physics.Vec3, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dest, n.has
}

func (n *fakeNav) Position() physics.Vec3 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pos
}

func (n *fakeNav) Forward() physics.Vec3 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fwd
}

func (n *fakeNav) moveTo(p physics.Vec3) {
	n.mu.Lock()
	n.pos = p
	n.mu.Unlock()
}

func (n *fakeNav) requests() []physics.Vec3 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]physics.Vec3(nil), n.sets...)
}

type fakeResolver struct {
	mu      sync.Mutex
	targets map[Handle]TargetStatus
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{targets: make(map[Handle]TargetStatus)}
}

func (r *fakeResolver) set(h Handle, tag string, p physics.Vec3) {
	r.mu.Lock()
	r.targets[h] = TargetStatus{Handle: h, Tag: tag, Position: p, Valid: true}
	r.mu.Unlock()
}

func (r *fakeResolver) drop(h Handle) {
	r.mu.Lock()
	delete(r.targets, h)
	r.mu.Unlock()
}

func (r *fakeResolver) Resolve(h Handle) (TargetStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.targets[h]
	return st, ok
}

type prop struct {
	handle Handle
	tag    string
	sphere physics.Sphere
}

// fakeRaycaster hits the nearest sphere along a ray.
type fakeRaycaster struct {
	props []prop
}

func (f *fakeRaycaster) CastRay(origin, dir physics.Vec3, maxDistance float64) (Hit, bool) {
	best, found := Hit{Distance: math.Inf(1)}, false
	ray := physics.Ray{Origin: origin, Dir: dir}
	for _, p := range f.props {
		d, ok := ray.IntersectSphere(p.sphere)
		if !ok || d > maxDistance || d >= best.Distance {
			continue
		}
		best = Hit{Handle: p.handle, Tag: p.tag, Position: p.sphere.Center, Distance: d}
		found = true
	}
	return best, found
}

// passSampler accepts every point.
type passSampler struct{}

func (passSampler) SamplePosition(p physics.Vec3, _ float64) (physics.Vec3, bool) { return p, true }

func sight(h Handle, p physics.Vec3, now time.Time) PerceptionEvent {
	return PerceptionEvent{Target: h, Tag: "player", Position: p, Sense: SenseSight, At: now}
}

func sound(h Handle, p physics.Vec3, tier Tier, now time.Time) PerceptionEvent {
	return PerceptionEvent{Target: h, Tag: "player", Position: p, Sense: SenseSound, Tier: tier, At: now}
}

func live(h Handle, p physics.Vec3) TargetStatus {
	return TargetStatus{Handle: h, Tag: "player", Position: p, Valid: true}
}
