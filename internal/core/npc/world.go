package npc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zeusync/sentry/internal/core/events/bus"
	"github.com/zeusync/sentry/internal/core/observability/log"
	"github.com/zeusync/sentry/pkg/concurrent"
)

// Bus event types published by World.
const (
	EventStateChanged = "npc.state.changed"
	EventAggravate    = "npc.aggravate"
	EventStrike       = "npc.strike"
	EventAlert        = "npc.alert"
)

// ErrDuplicateAgent is returned by World.Add for an ID already present.
var ErrDuplicateAgent = errors.New("npc: duplicate agent id")

// Alert is the payload of EventAlert.
type Alert struct {
	Recipient Handle `json:"recipient"`
	Target    Handle `json:"target"`
	Source    Handle `json:"source"`
}

// WorldOptions configures a World. Zero values are usable.
type WorldOptions struct {
	Bus     bus.EventBus
	Strikes StrikeHandler
	Logger  log.Log
	// Workers bounds parallel agent ticks. Zero means one goroutine per agent.
	Workers int
}

// StepResult summarizes one World.Step.
type StepResult struct {
	Outputs     map[Handle]Output
	Transitions []Transition
	Effects     []Effect
	Alerts      []Alert
}

// World ticks a population of agents. Agents advance in parallel; their
// side effects are applied afterwards in agent ID order.
type World struct {
	mu      sync.RWMutex
	agents  map[Handle]*Agent
	bus     bus.EventBus
	strikes StrikeHandler
	log     log.Log
	workers int
}

func NewWorld(opts WorldOptions) *World {
	l := opts.Logger
	if l == nil {
		l = log.NewNop()
	}
	return &World{
		agents:  make(map[Handle]*Agent),
		bus:     opts.Bus,
		strikes: opts.Strikes,
		log:     l,
		workers: opts.Workers,
	}
}

func (w *World) Add(a *Agent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.agents[a.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID())
	}
	w.agents[a.ID()] = a
	return nil
}

// Remove despawns an agent. Handles held by other agents become stale.
func (w *World) Remove(id Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.agents[id]
	delete(w.agents, id)
	return ok
}

func (w *World) Agent(id Handle) (*Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.agents[id]
	return a, ok
}

// Agents returns every agent sorted by ID.
func (w *World) Agents() []*Agent {
	w.mu.RLock()
	out := make([]*Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Snapshots returns the presentation view of every agent sorted by ID.
func (w *World) Snapshots() []Snapshot {
	return concurrent.ParallelMap(w.Agents(), w.workers, (*Agent).Snapshot)
}

// Step advances every agent to now. Alerts raised during the step are
// queued on their recipients and consumed on the next step; they never
// propagate further.
func (w *World) Step(ctx context.Context, now time.Time) (StepResult, error) {
	agents := w.Agents()
	outs := make([]Output, len(agents))
	errs := make([]error, len(agents))

	err := concurrent.ForEach(ctx, agents, w.workers, func(_ context.Context, i int, a *Agent) error {
		outs[i], errs[i] = safeTick(a, now)
		return nil
	})
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{Outputs: make(map[Handle]Output, len(agents))}
	var changed []bus.Event
	for i, a := range agents {
		if errs[i] != nil {
			w.log.Error("agent tick failed", log.String("agent", string(a.ID())), log.Error(errs[i]))
			continue
		}
		res.Outputs[a.ID()] = outs[i]
		if t := outs[i].Transition; t != nil {
			res.Transitions = append(res.Transitions, *t)
			changed = append(changed, bus.NewEvent(EventStateChanged, string(a.ID()), now, *t, nil))
		}
		res.Effects = append(res.Effects, outs[i].Effects...)
	}
	if w.bus != nil && len(changed) > 0 {
		if err := w.bus.PublishBatch(changed...); err != nil {
			w.log.Warn("event handler failed", log.String("event", EventStateChanged), log.Error(err))
		}
	}

	d := newDispatch(w, agents, now)
	for _, e := range res.Effects {
		d.apply(e)
	}
	res.Alerts = d.alerts
	return res, nil
}

func safeTick(a *Agent, now time.Time) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", a.ID(), r)
		}
	}()
	return a.Tick(now), nil
}

func (w *World) publish(typ string, src Handle, now time.Time, data any) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(bus.NewEvent(typ, string(src), now, data, nil)); err != nil {
		w.log.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}

type alertKey struct {
	recipient, target Handle
}

// dispatch applies one step's effects and drops repeated alerts.
type dispatch struct {
	w      *World
	agents []*Agent
	byID   map[Handle]*Agent
	now    time.Time
	sent   map[alertKey]struct{}
	alerts []Alert
}

func newDispatch(w *World, agents []*Agent, now time.Time) *dispatch {
	byID := make(map[Handle]*Agent, len(agents))
	for _, a := range agents {
		byID[a.ID()] = a
	}
	return &dispatch{w: w, agents: agents, byID: byID, now: now, sent: make(map[alertKey]struct{})}
}

func (d *dispatch) apply(e Effect) {
	switch e.Kind {
	case EffectAggravate:
		d.w.publish(EventAggravate, e.Source, d.now, e)
		src, ok := d.byID[e.Source]
		if !ok {
			return
		}
		radius := src.Config().Attack.AlertRadius
		if radius <= 0 {
			return
		}
		for _, a := range d.agents {
			if a.ID() == e.Source || a.ID() == e.Target || a.Faction() != src.Faction() {
				continue
			}
			if a.Position().Dist(e.Origin) <= radius {
				d.alert(a, e.Target, e.Source)
			}
		}
	case EffectStrike:
		d.w.publish(EventStrike, e.Source, d.now, e)
		if d.w.strikes != nil {
			d.w.strikes.Strike(e.Source, e.Target, e.Damage)
		}
		if victim, ok := d.byID[e.Target]; ok {
			d.alert(victim, e.Source, e.Source)
		}
	}
}

func (d *dispatch) alert(to *Agent, target, source Handle) {
	k := alertKey{recipient: to.ID(), target: target}
	if _, dup := d.sent[k]; dup {
		return
	}
	d.sent[k] = struct{}{}
	to.ReceiveAlert(target)
	a := Alert{Recipient: to.ID(), Target: target, Source: source}
	d.alerts = append(d.alerts, a)
	d.w.publish(EventAlert, source, d.now, a)
}
