package npc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/internal/core/systems/physics"
)

var _ Alertable = (*Agent)(nil)

// Ports are the collaborators an agent consumes. Navigator is required.
type Ports struct {
	Navigator Navigator
	Raycaster Raycaster
	Resolver  TargetResolver
	Sampler   Sampler
	Logger    log.Log
}

// Snapshot is the presentation view of an agent.
type Snapshot struct {
	ID       Handle             `json:"id"`
	Tag      string             `json:"tag,omitempty"`
	Faction  string             `json:"faction,omitempty"`
	State    State              `json:"state"`
	Since    time.Duration      `json:"since"`
	Target   Handle             `json:"target,omitempty"`
	Position physics.Vec3       `json:"position"`
	Facing   float64            `json:"facing"`
	Pending  *PendingTransition `json:"pending,omitempty"`
}

// Agent binds a Brain to its sensors and ports. Tick, ReceiveAlert,
// Request and the hearing callbacks may be called from different
// goroutines.
type Agent struct {
	mu sync.Mutex

	id       Handle
	cfg      Config
	brain    *Brain
	nav      *DedupNavigator
	vision   *VisionCaster
	hearing  *SoundDetector
	resolver TargetResolver
	log      log.Log

	inbox    []Handle
	lastTick time.Time
}

// NewAgent builds an agent from cfg. Misconfigured traits are disabled and
// logged; the returned error is non-nil only when the agent cannot exist.
func NewAgent(cfg Config, ports Ports) (*Agent, error) {
	if ports.Navigator == nil {
		return nil, &ConfigError{Trait: "navigation", Reason: "no navigator"}
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	logger := ports.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	id := Handle(cfg.ID)
	logger = logger.With(log.String("agent", cfg.ID))

	brain, errs := NewBrain(id, cfg, ports.Navigator.Position(), ports.Sampler)
	for _, err := range errs {
		var ce *ConfigError
		if errors.As(err, &ce) {
			logger.Warn("trait disabled", log.String("trait", string(ce.Trait)), log.String("reason", ce.Reason))
		}
	}
	cfg = brain.Config()

	a := &Agent{
		id:       id,
		cfg:      cfg,
		brain:    brain,
		nav:      NewDedupNavigator(ports.Navigator),
		hearing:  NewSoundDetector(cfg.Hearing, cfg.Chase.AllowList),
		resolver: ports.Resolver,
		log:      logger,
	}
	if brain.Traits().Vision {
		if ports.Raycaster == nil {
			logger.Warn("trait disabled", log.String("trait", string(TraitVision)), log.String("reason", "no raycaster"))
		} else {
			a.vision = NewVisionCaster(cfg.Vision, cfg.Chase.AllowList, ports.Raycaster)
		}
	}
	logger.Debug("agent created", log.Stringer("state", brain.State()))
	return a, nil
}

func (a *Agent) ID() Handle      { return a.id }
func (a *Agent) Tag() string     { return a.cfg.Tag }
func (a *Agent) Faction() string { return a.cfg.Faction }
func (a *Agent) Config() Config  { return a.cfg }

func (a *Agent) Position() physics.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nav.Position()
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.brain.State()
}

// ReceiveAlert queues an alert about target. It is consumed on the next tick.
func (a *Agent) ReceiveAlert(target Handle) {
	a.mu.Lock()
	a.inbox = append(a.inbox, target)
	a.mu.Unlock()
}

// Request forces a state change on the next tick. See Brain.Request.
func (a *Agent) Request(to State, target Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var status TargetStatus
	if to == StateChase {
		status = a.resolve(target)
	}
	if err := a.brain.Request(to, status); err != nil {
		a.log.Warn("request rejected", log.Stringer("state", a.brain.State()), log.Stringer("requested", to), log.Error(err))
		return fmt.Errorf("agent %s: %w", a.id, err)
	}
	return nil
}

func (a *Agent) HearEnter(zone Tier, b Body) {
	a.mu.Lock()
	a.hearing.OnEnter(zone, b)
	a.mu.Unlock()
}

func (a *Agent) HearStay(zone Tier, b Body) {
	a.mu.Lock()
	a.hearing.OnStay(zone, b)
	a.mu.Unlock()
}

func (a *Agent) HearExit(zone Tier, h Handle) {
	a.mu.Lock()
	a.hearing.OnExit(zone, h)
	a.mu.Unlock()
}

// Tick gathers perception, advances the brain and forwards its movement
// command to the navigator.
func (a *Agent) Tick(now time.Time) Output {
	a.mu.Lock()
	defer a.mu.Unlock()

	pos := a.nav.Position()
	fwd := a.nav.Forward()
	dest, hasDest := a.nav.Destination()
	in := Input{
		Position:       pos,
		Forward:        fwd,
		Destination:    dest,
		HasDestination: hasDest,
	}

	for _, h := range a.inbox {
		st := a.resolve(h)
		if !st.Valid {
			a.log.Debug("alert dropped", log.String("target", string(h)), log.Error(ErrStaleReference))
			continue
		}
		in.Events = append(in.Events, PerceptionEvent{Target: h, Tag: st.Tag, Position: st.Position, Sense: SenseAlert, At: now})
	}
	a.inbox = a.inbox[:0]

	if a.vision != nil {
		if e, ok := a.vision.Look(now, pos, fwd); ok {
			in.Events = append(in.Events, e)
		}
	}
	if a.brain.Traits().Hearing {
		if e, ok := a.hearing.Poll(now); ok {
			in.Events = append(in.Events, e)
		}
	}
	if h := a.brain.Target(); h != "" {
		in.Target = a.resolve(h)
	}

	held := a.brain.Since(now)
	out := a.brain.Advance(now, in)
	if out.Move != nil {
		a.nav.SetDestination(*out.Move)
	}
	if t := out.Transition; t != nil && a.log.Enabled(log.LevelDebug) {
		a.log.Debug("state changed",
			log.Stringer("from", t.From),
			log.Stringer("to", t.To),
			log.String("reason", string(t.Reason)),
			log.String("target", string(t.Target)),
			log.Duration("held", held),
			log.Time("at", t.At),
		)
	}
	a.lastTick = now
	return out
}

func (a *Agent) resolve(h Handle) TargetStatus {
	if a.resolver == nil || h == "" {
		return TargetStatus{Handle: h}
	}
	st, ok := a.resolver.Resolve(h)
	if !ok {
		return TargetStatus{Handle: h}
	}
	st.Handle = h
	st.Valid = true
	return st
}

// Scan returns the current vision fan for debugging. It is empty when
// vision is disabled.
func (a *Agent) Scan() []RaySample {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.vision == nil {
		return nil
	}
	return a.vision.Scan(a.nav.Position(), a.nav.Forward())
}

// Snapshot describes the agent as of its last tick.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{
		ID:       a.id,
		Tag:      a.cfg.Tag,
		Faction:  a.cfg.Faction,
		State:    a.brain.State(),
		Since:    a.brain.Since(a.lastTick),
		Target:   a.brain.Target(),
		Position: a.nav.Position(),
		Facing:   a.brain.Yaw(),
	}
	if p, ok := a.brain.Pending(); ok {
		s.Pending = &p
	}
	return s
}

// NavigationRequests counts destination changes sent to the navigator.
func (a *Agent) NavigationRequests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nav.Issued()
}
