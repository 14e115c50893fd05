package npc

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// Input is everything a Brain observes during one tick.
type Input struct {
	Events         []PerceptionEvent
	Position       physics.Vec3
	Forward        physics.Vec3
	Destination    physics.Vec3
	HasDestination bool
	// Target is the resolution of Brain.Target() taken before the tick.
	Target TargetStatus
}

// Output is the result of one tick.
type Output struct {
	State      State         `json:"state"`
	Move       *physics.Vec3 `json:"move,omitempty"`
	Facing     *float64      `json:"facing,omitempty"`
	Transition *Transition   `json:"transition,omitempty"`
	Effects    []Effect      `json:"effects,omitempty"`
}

// Reason explains a transition.
type Reason string

const (
	ReasonSighted       Reason = "sighted"
	ReasonAlerted       Reason = "alerted"
	ReasonHeard         Reason = "heard"
	ReasonInReach       Reason = "in reach"
	ReasonMemoryExpired Reason = "memory expired"
	ReasonSearchTimeout Reason = "search timeout"
	ReasonArrived       Reason = "arrived"
	ReasonStruck        Reason = "struck"
	ReasonOutOfReach    Reason = "out of reach"
	ReasonTargetLost    Reason = "target lost"
	ReasonPause         Reason = "pause"
	ReasonResume        Reason = "resume"
	ReasonRequest       Reason = "request"
)

type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	At     time.Time `json:"at"`
	Reason Reason    `json:"reason"`
	Target Handle    `json:"target,omitempty"`
}

type EffectKind uint8

const (
	// EffectAggravate alerts nearby allies to Target.
	EffectAggravate EffectKind = iota + 1
	// EffectStrike lands a hit of Damage on Target.
	EffectStrike
)

func (k EffectKind) String() string {
	switch k {
	case EffectAggravate:
		return "aggravate"
	case EffectStrike:
		return "strike"
	}
	return fmt.Sprintf("effect(%d)", uint8(k))
}

func (k EffectKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EffectKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "aggravate":
		*k = EffectAggravate
	case "strike":
		*k = EffectStrike
	default:
		return fmt.Errorf("unknown effect %q", b)
	}
	return nil
}

// Effect is a side effect that must be applied outside the agent, after
// every agent has finished its tick.
type Effect struct {
	Kind   EffectKind   `json:"kind"`
	Source Handle       `json:"source"`
	Target Handle       `json:"target"`
	Origin physics.Vec3 `json:"origin"`
	Damage float64      `json:"damage,omitempty"`
}

type request struct {
	to     State
	target TargetStatus
}

// Brain is the behavior state machine of a single agent. It is not safe for
// concurrent use; Agent serializes access.
type Brain struct {
	id     Handle
	cfg    Config
	traits Traits
	allow  tagSet

	state     State
	base      State
	enteredAt time.Time
	started   bool

	memory   *Memory
	sched    Scheduler
	cooldown Cooldown

	waypoint  int
	searchSet bool
	struck    bool

	home       physics.Vec3
	roamGoal   physics.Vec3
	roaming    bool
	roamIssued bool
	sampler    Sampler
	rng        *rand.Rand

	yaw    float64
	hasYaw bool

	pending *request
}

// NewBrain applies defaults to cfg, validates it and starts in the base
// state. Traits that fail validation are disabled and reported in the
// returned slice; the Brain is always usable.
func NewBrain(id Handle, cfg Config, spawn physics.Vec3, sampler Sampler) (*Brain, []error) {
	cfg = cfg.WithDefaults()
	traits, errs := cfg.resolveTraits()
	if traits.Roam && sampler == nil {
		traits.Roam = false
		errs = append(errs, configErr(TraitRoam, "no position sampler"))
	}
	if cfg.Facing.Rate <= 0 || cfg.Facing.Rate > 1 {
		// reported by resolveTraits; turn instantly instead
		cfg.Facing.Rate = 1
	}

	b := &Brain{
		id:      id,
		cfg:     cfg,
		traits:  traits,
		allow:   newTagSet(cfg.Chase.AllowList),
		base:    traits.BaseState(),
		memory:  NewMemory(spawn),
		home:    spawn,
		sampler: sampler,
		rng:     rand.New(rand.NewPCG(xxhash.Sum64String(string(id)), cfg.Seed)),
	}
	b.state = b.base
	if cfg.Roam.Home != nil {
		b.home = *cfg.Roam.Home
	}
	if n := len(cfg.Patrol.Waypoints); n > 0 && cfg.Patrol.Start > 0 {
		b.waypoint = cfg.Patrol.Start % n
	}
	return b, errs
}

func (b *Brain) ID() Handle       { return b.id }
func (b *Brain) State() State     { return b.state }
func (b *Brain) BaseState() State { return b.base }
func (b *Brain) Traits() Traits   { return b.traits }
func (b *Brain) Target() Handle   { return b.memory.Target() }
func (b *Brain) Memory() *Memory  { return b.memory }
func (b *Brain) Waypoint() int    { return b.waypoint }
func (b *Brain) Yaw() float64     { return b.yaw }
func (b *Brain) Config() Config   { return b.cfg }

// Pending returns the scheduled transition, if any.
func (b *Brain) Pending() (PendingTransition, bool) { return b.sched.Pending() }

// Since is the time spent in the current state.
func (b *Brain) Since(now time.Time) time.Duration {
	if !b.started {
		return 0
	}
	return now.Sub(b.enteredAt)
}

// CooldownRemaining is the time until the next strike may land.
func (b *Brain) CooldownRemaining(now time.Time) time.Duration { return b.cooldown.Remaining(now) }

// Request asks the brain to switch state on its next tick. Only idle,
// patrol, roam and chase can be requested, and only while their trait is
// enabled. Chase needs a resolvable target.
func (b *Brain) Request(to State, target TargetStatus) error {
	var trait Trait
	switch to {
	case StateIdle:
		trait = TraitIdle
	case StatePatrol:
		trait = TraitPatrol
	case StateRoam:
		trait = TraitRoam
	case StateChase:
		trait = TraitChase
	default:
		return fmt.Errorf("%w: %s cannot be requested", ErrInvalidTransition, to)
	}
	if !b.traits.Has(trait) {
		return fmt.Errorf("%w: %s trait is disabled", ErrInvalidTransition, trait)
	}
	if to == StateChase && !target.Valid {
		return fmt.Errorf("%w: %q", ErrStaleReference, target.Handle)
	}
	b.pending = &request{to: to, target: target}
	return nil
}

// Advance runs one tick. The same brain state and inputs always produce the
// same output.
func (b *Brain) Advance(now time.Time, in Input) Output {
	if !b.started {
		b.started = true
		b.enteredAt = now
	}
	if !b.hasYaw || b.state != StateChase {
		if !in.Forward.IsZero() {
			b.yaw = in.Forward.Yaw()
		}
		b.hasYaw = true
	}

	var out Output
	p := b.perceive(in)
	if t, ok := b.decide(now, in, p); ok {
		out.Transition = &t
	}
	b.act(now, in, p, &out)
	out.State = b.state
	return out
}

type percepts struct {
	// sight is the nearest allow-listed sighting or alert.
	sight *PerceptionEvent
	// sound is the most certain allow-listed sound.
	sound *PerceptionEvent
	// target is a sighting or alert of the remembered target.
	target *PerceptionEvent
}

func (b *Brain) perceive(in Input) percepts {
	var p percepts
	remembered := b.memory.Target()
	lose := b.cfg.Chase.LoseDistance
	for i := range in.Events {
		e := &in.Events[i]
		if !b.allow.has(e.Tag) {
			continue
		}
		switch e.Sense {
		case SenseSight, SenseAlert:
			if e.Sense == SenseSight && lose > 0 && in.Position.Dist(e.Position) > lose {
				continue
			}
			if remembered != "" && e.Target == remembered && (p.target == nil || e.Sense < p.target.Sense) {
				p.target = e
			}
			if p.sight == nil || nearer(in.Position, e, p.sight) {
				p.sight = e
			}
		case SenseSound:
			if b.state.engaged() || e.Tier == TierNone {
				continue
			}
			if p.sound == nil || e.Tier > p.sound.Tier || (e.Tier == p.sound.Tier && e.Target < p.sound.Target) {
				p.sound = e
			}
		}
	}
	return p
}

func nearer(from physics.Vec3, a, b *PerceptionEvent) bool {
	da, db := from.Dist(a.Position), from.Dist(b.Position)
	if da != db {
		return da < db
	}
	if a.Sense != b.Sense {
		return a.Sense < b.Sense
	}
	return a.Target < b.Target
}

// locate returns the current position of the remembered target: a fresh
// perception first, then the resolved handle. A target acquired this tick is
// only known through p.sight or p.sound.
func (b *Brain) locate(in Input, p percepts) (physics.Vec3, bool) {
	h := b.memory.Target()
	if h == "" {
		return physics.Vec3{}, false
	}
	if p.target != nil {
		return p.target.Position, true
	}
	if p.sight != nil && p.sight.Target == h {
		return p.sight.Position, true
	}
	if p.sound != nil && p.sound.Target == h {
		return p.sound.Position, true
	}
	if in.Target.Valid && in.Target.Handle == h {
		return in.Target.Position, true
	}
	return physics.Vec3{}, false
}

// decide applies the transition rules in priority order and performs at
// most one transition.
func (b *Brain) decide(now time.Time, in Input, p percepts) (Transition, bool) {
	if r := b.pending; r != nil {
		b.pending = nil
		return b.applyRequest(now, in, *r)
	}

	if b.traits.Attack && b.state != StateAttack && b.cooldown.Ready(now) {
		if h, pos, ok := b.attackCandidate(in, p); ok && in.Position.Dist(pos) <= b.cfg.Attack.Distance {
			b.memory.Confirm(now, h, pos)
			return b.enter(now, in, StateAttack, ReasonInReach), true
		}
	}

	if b.traits.Chase && b.state.acquires() {
		if e := p.sight; e != nil {
			b.memory.Confirm(now, e.Target, e.Position)
			reason := ReasonSighted
			if e.Sense == SenseAlert {
				reason = ReasonAlerted
			}
			return b.enter(now, in, StateChase, reason), true
		}
		if e := p.sound; e != nil {
			b.memory.Confirm(now, e.Target, e.Position)
			if e.Tier == TierAuto && b.traits.Attack {
				return b.enter(now, in, StateAttack, ReasonHeard), true
			}
			return b.enter(now, in, StateChase, ReasonHeard), true
		}
	}

	if b.state == StateChase {
		if e := p.target; e != nil {
			b.memory.Confirm(now, e.Target, e.Position)
		} else if !b.memory.Credible(now, b.cfg.Chase.Memory.Duration) {
			return b.enter(now, in, StateSearch, ReasonMemoryExpired), true
		}
	}

	if b.state == StateAttack {
		pos, ok := b.locate(in, p)
		switch {
		case b.struck:
			return b.enter(now, in, StateReturning, ReasonStruck), true
		case !ok:
			return b.enter(now, in, StateSearch, ReasonTargetLost), true
		case in.Position.Dist(pos) > b.cfg.Attack.Distance:
			return b.enter(now, in, StateChase, ReasonOutOfReach), true
		}
	}

	if to, ok := b.sched.Poll(now); ok {
		reason := ReasonResume
		if b.state == StateSearch {
			reason = ReasonSearchTimeout
		}
		return b.enter(now, in, to, reason), true
	}

	if b.state == StateReturning && in.Position.FlatDist(b.memory.LastBeen()) <= b.cfg.Return.Tolerance {
		return b.enter(now, in, b.base, ReasonArrived), true
	}

	switch b.state {
	case StatePatrol:
		wps := b.cfg.Patrol.Waypoints
		if in.Position.FlatDist(wps[b.waypoint]) <= b.cfg.Patrol.Tolerance {
			b.waypoint = (b.waypoint + 1) % len(wps)
			if b.traits.Idle {
				t := b.enter(now, in, StateIdle, ReasonPause)
				b.sched.Schedule(now, b.cfg.Patrol.Pause.Duration, StatePatrol)
				return t, true
			}
		}
	case StateRoam:
		if b.roaming && in.Position.FlatDist(b.roamGoal) <= b.cfg.Patrol.Tolerance {
			b.roaming = false
			if b.traits.Idle {
				t := b.enter(now, in, StateIdle, ReasonPause)
				b.sched.Schedule(now, b.cfg.Roam.Pause.Duration, StateRoam)
				return t, true
			}
		}
	}
	return Transition{}, false
}

func (b *Brain) attackCandidate(in Input, p percepts) (Handle, physics.Vec3, bool) {
	if b.state == StateChase {
		if pos, ok := b.locate(in, p); ok {
			return b.memory.Target(), pos, true
		}
		return "", physics.Vec3{}, false
	}
	if b.state.acquires() && p.sight != nil {
		return p.sight.Target, p.sight.Position, true
	}
	return "", physics.Vec3{}, false
}

func (b *Brain) applyRequest(now time.Time, in Input, r request) (Transition, bool) {
	if r.to == StateChase {
		b.memory.Confirm(now, r.target.Handle, r.target.Position)
	}
	if r.to == b.state {
		return Transition{}, false
	}
	return b.enter(now, in, r.to, ReasonRequest), true
}

// enter switches state. Every state change drops the pending scheduled
// transition.
func (b *Brain) enter(now time.Time, in Input, to State, reason Reason) Transition {
	from := b.state
	b.sched.Cancel()
	if from.calm() && !to.calm() {
		b.memory.RememberPosition(in.Position)
	}

	switch to {
	case StateSearch:
		b.searchSet = false
		b.sched.Schedule(now, b.cfg.Search.Timeout.Duration, StateReturning)
	case StateAttack:
		b.struck = false
	case StateReturning:
		b.memory.Forget()
	case StateRoam:
		b.roaming = false
	}

	b.state = to
	b.enteredAt = now
	return Transition{From: from, To: to, At: now, Reason: reason, Target: b.memory.Target()}
}

// act runs the movement policy of the current state.
func (b *Brain) act(now time.Time, in Input, p percepts, out *Output) {
	switch b.state {
	case StatePatrol:
		wp := b.cfg.Patrol.Waypoints[b.waypoint]
		out.Move = &wp
	case StateRoam:
		b.roam(in, out)
	case StateChase:
		dest, ok := b.locate(in, p)
		if !ok {
			dest, ok = b.memory.LastSeen()
		}
		if ok {
			out.Move = &dest
			b.face(in, dest, out)
		}
	case StateSearch:
		if !b.searchSet {
			b.searchSet = true
			if last, ok := b.memory.LastSeen(); ok {
				out.Move = &last
			}
		}
	case StateReturning:
		lb := b.memory.LastBeen()
		out.Move = &lb
	case StateAttack:
		if b.struck || !b.cooldown.Ready(now) {
			return
		}
		if pos, ok := b.locate(in, p); ok && in.Position.Dist(pos) <= b.cfg.Attack.Distance {
			b.strike(now, in, out)
		}
	}
}

func (b *Brain) strike(now time.Time, in Input, out *Output) {
	b.cooldown.Start(now, b.cfg.Attack.Speed.Duration)
	b.struck = true
	h := b.memory.Target()
	out.Effects = append(out.Effects,
		Effect{Kind: EffectAggravate, Source: b.id, Target: h, Origin: in.Position},
		Effect{Kind: EffectStrike, Source: b.id, Target: h, Origin: in.Position, Damage: b.cfg.Attack.Damage},
	)
}

// face turns the yaw toward dest along the shortest arc.
func (b *Brain) face(in Input, dest physics.Vec3, out *Output) {
	dir := dest.Sub(in.Position).Flat()
	if !dir.IsZero() {
		b.yaw = physics.LerpAngle(b.yaw, dir.Yaw(), b.cfg.Facing.Rate)
	}
	yaw := b.yaw
	out.Facing = &yaw
}
