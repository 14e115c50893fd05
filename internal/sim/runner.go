package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/sentry/internal/core/events/bus"
	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/observability/log"
)

// Frame is everything that happened in one simulation step.
type Frame struct {
	Tick        int              `json:"tick"`
	At          time.Time        `json:"at"`
	Agents      []npc.Snapshot   `json:"agents"`
	Bodies      []BodyView       `json:"bodies,omitempty"`
	Transitions []npc.Transition `json:"transitions,omitempty"`
	Effects     []npc.Effect     `json:"effects,omitempty"`
	Alerts      []npc.Alert      `json:"alerts,omitempty"`
}

// Observer consumes frames. Observers run on the runner goroutine.
type Observer interface {
	Observe(f Frame) error
}

type ObserverFunc func(f Frame) error

func (fn ObserverFunc) Observe(f Frame) error { return fn(f) }

// Options configures a Runner. Zero values are usable.
type Options struct {
	Logger log.Log
	Bus    bus.EventBus
	// Workers bounds parallel agent ticks.
	Workers int
}

// Stats summarizes a run.
type Stats struct {
	Ticks       int               `json:"ticks"`
	Simulated   time.Duration     `json:"simulated"`
	Wall        time.Duration     `json:"wall"`
	Transitions int               `json:"transitions"`
	Entered     map[npc.State]int `json:"entered"`
	Aggravates  int               `json:"aggravates"`
	Alerts      int               `json:"alerts"`
	Arena       ArenaStats        `json:"arena"`
	// Events counts bus traffic while the runner is attached.
	Events bus.EventBusMetrics `json:"events"`
	// SlowestEvent is the longest delivery of one event to its handlers.
	SlowestEvent time.Duration `json:"slowest_event"`
}

// Runner drives a scenario on a fixed step.
type Runner struct {
	scenario *Scenario
	arena    *Arena
	world    *npc.World
	bus      bus.EventBus
	log      log.Log
	subs     []bus.Subscription
	watch    *busWatch

	mu        sync.Mutex
	observers []Observer
	tick      int
	now       time.Time
	stats     Stats
}

// NewRunner builds the arena and one agent per scenario entry.
func NewRunner(sc *Scenario, opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	eb := opts.Bus
	if eb == nil {
		eb = bus.New()
	}

	arena := NewArena(sc.Bounds)
	for _, b := range sc.Bodies {
		arena.AddBody(b)
	}
	for _, o := range sc.Obstacles {
		arena.AddObstacle(o)
	}

	r := &Runner{
		scenario: sc,
		arena:    arena,
		world:    npc.NewWorld(npc.WorldOptions{Bus: eb, Strikes: arena, Logger: logger, Workers: opts.Workers}),
		bus:      eb,
		log:      logger.With(log.String("scenario", sc.Name)),
		now:      sc.Start,
		stats:    Stats{Entered: make(map[npc.State]int)},
	}

	for _, spec := range sc.Agents {
		mover := NewMover(spec.Spawn, spec.Speed, sc.Bounds)
		arena.AddGuard(spec, mover)
		agent, err := npc.NewAgent(spec.Config, npc.Ports{
			Navigator: mover,
			Raycaster: arena,
			Resolver:  arena,
			Sampler:   arena,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", spec.ID, err)
		}
		if err := r.world.Add(agent); err != nil {
			return nil, err
		}
		arena.Listen(agent.ID(), agent)
	}

	if err := r.subscribe(); err != nil {
		return nil, err
	}
	r.watch = &busWatch{}
	eb.AddObserver(r.watch)
	return r, nil
}

// busWatch turns on bus metrics and tracks the slowest delivery.
type busWatch struct {
	mu      sync.Mutex
	slowest time.Duration
}

func (w *busWatch) OnPublish(string, bus.Event) {}

func (w *busWatch) OnDelivered(_ string, _ int, _ error, d time.Duration) {
	w.mu.Lock()
	w.slowest = max(w.slowest, d)
	w.mu.Unlock()
}

func (w *busWatch) Slowest() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slowest
}

func (r *Runner) subscribe() error {
	count := func(field *int) bus.EventHandler {
		return func(bus.Event) error {
			r.mu.Lock()
			*field++
			r.mu.Unlock()
			return nil
		}
	}
	onState := func(e bus.Event) error {
		t, ok := e.Data().(npc.Transition)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", e.Type(), e.Data())
		}
		r.mu.Lock()
		r.stats.Transitions++
		r.stats.Entered[t.To]++
		r.mu.Unlock()
		r.log.Info("state changed",
			log.String("agent", e.Source()),
			log.Stringer("from", t.From),
			log.Stringer("to", t.To),
			log.String("reason", string(t.Reason)),
		)
		return nil
	}

	handlers := []struct {
		typ string
		fn  bus.EventHandler
	}{
		{npc.EventStateChanged, onState},
		{npc.EventAggravate, count(&r.stats.Aggravates)},
		{npc.EventAlert, count(&r.stats.Alerts)},
	}
	for _, h := range handlers {
		sub, err := r.bus.Subscribe(h.typ, h.fn)
		if err != nil {
			return err
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

// Observe registers an observer for every following frame.
func (r *Runner) Observe(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

func (r *Runner) World() *npc.World { return r.world }
func (r *Runner) Arena() *Arena     { return r.arena }

// Request forwards a forced state change to one agent.
func (r *Runner) Request(id npc.Handle, to npc.State, target npc.Handle) error {
	a, ok := r.world.Agent(id)
	if !ok {
		return fmt.Errorf("%w: agent %q", npc.ErrStaleReference, id)
	}
	return a.Request(to, target)
}

// Step advances the arena by one tick, runs every agent and notifies the
// observers.
func (r *Runner) Step(ctx context.Context) (Frame, error) {
	dt := r.scenario.Tick.Duration
	r.arena.Advance(dt.Seconds())

	r.mu.Lock()
	r.now = r.now.Add(dt)
	r.tick++
	now, tick := r.now, r.tick
	r.mu.Unlock()

	res, err := r.world.Step(ctx, now)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{
		Tick:        tick,
		At:          now,
		Agents:      r.world.Snapshots(),
		Bodies:      r.arena.Bodies(),
		Transitions: res.Transitions,
		Effects:     res.Effects,
		Alerts:      res.Alerts,
	}

	r.mu.Lock()
	r.stats.Ticks = tick
	r.stats.Simulated = now.Sub(r.scenario.Start)
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	var errs []error
	for _, o := range observers {
		if err := o.Observe(f); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.log.Warn("observer failed", log.Int("tick", tick), log.Error(err))
	}
	return f, nil
}

// Run steps through the whole scenario. With realtime set, steps are paced
// by the wall clock at the scenario tick rate. Cancelling ctx stops the run
// early and is not an error.
func (r *Runner) Run(ctx context.Context, realtime bool) (Stats, error) {
	started := time.Now()
	steps := r.scenario.Steps()
	r.log.Info("run started", log.Int("agents", len(r.scenario.Agents)), log.Int("steps", steps), log.Bool("realtime", realtime))

	var pace <-chan time.Time
	if realtime {
		t := time.NewTicker(r.scenario.Tick.Duration)
		defer t.Stop()
		pace = t.C
	}

	for i := 0; i < steps; i++ {
		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
		if ctx.Err() != nil {
			r.log.Info("run interrupted", log.Int("tick", i))
			break
		}
		if _, err := r.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return r.Stats(), err
		}
	}

	r.mu.Lock()
	r.stats.Wall = time.Since(started)
	r.mu.Unlock()
	return r.Stats(), nil
}

// Stats returns a copy of the counters so far.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Entered = make(map[npc.State]int, len(r.stats.Entered))
	for k, v := range r.stats.Entered {
		s.Entered[k] = v
	}
	s.Arena = r.arena.Stats()
	s.Events = r.bus.GetMetrics()
	if r.watch != nil {
		s.SlowestEvent = r.watch.Slowest()
	}
	return s
}

// Close detaches the runner from the bus.
func (r *Runner) Close() error {
	var errs []error
	for _, s := range r.subs {
		errs = append(errs, r.bus.Unsubscribe(s))
	}
	r.subs = nil
	if r.watch != nil {
		r.bus.RemoveObserver(r.watch)
	}
	return errors.Join(errs...)
}
