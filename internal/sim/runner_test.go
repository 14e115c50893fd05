package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/sentry/internal/core/events/bus"
	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// standoff is one stationary guard and one stationary player.
func standoff(player physics.Vec3, vision bool) *Scenario {
	sc := Scenario{
		Tick:     npc.Duration{Duration: 100 * time.Millisecond},
		Duration: npc.Duration{Duration: 3 * time.Second},
		Bounds:   testBounds,
		Agents: []AgentSpec{{
			Config: npc.Config{
				ID:      "g",
				Tag:     "guard",
				Chase:   npc.ChaseConfig{Enabled: true, AllowList: []string{"player"}},
				Vision:  npc.VisionConfig{Enabled: vision, Distance: 15},
				Hearing: npc.HearingConfig{Enabled: true},
			},
		}},
		Bodies: []BodySpec{{ID: "player", Tag: "player", Path: []physics.Vec3{player}}},
	}.WithDefaults()
	return &sc
}

func TestRunnerStrikeFromAutoZone(t *testing.T) {
	r, err := NewRunner(standoff(physics.V3(0, 0, 1.5), false), Options{})
	require.NoError(t, err)
	defer r.Close()

	var frames []Frame
	r.Observe(ObserverFunc(func(f Frame) error {
		frames = append(frames, f)
		return nil
	}))

	f, err := r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Tick)
	assert.Equal(t, Epoch.Add(100*time.Millisecond), f.At)
	require.Len(t, f.Transitions, 1)
	assert.Equal(t, npc.StateAttack, f.Transitions[0].To)
	require.Len(t, f.Effects, 2)
	require.Len(t, f.Agents, 1)
	assert.Equal(t, npc.StateAttack, f.Agents[0].State)
	require.Len(t, f.Bodies, 1)
	assert.Equal(t, DefaultBodyHealth-npc.DefaultAttackDamage, f.Bodies[0].Health)
	assert.Len(t, frames, 1)

	s := r.Stats()
	assert.Equal(t, 1, s.Ticks)
	assert.Equal(t, 1, s.Transitions)
	assert.Equal(t, 1, s.Entered[npc.StateAttack])
	assert.Equal(t, 1, s.Aggravates)
	assert.Equal(t, ArenaStats{Struck: 1, Damage: npc.DefaultAttackDamage}, s.Arena)
	assert.Equal(t, bus.EventBusMetrics{Published: 3, DeliveredHandlers: 2, SubscribersActive: 3}, s.Events,
		"state change, aggravate and strike; the runner listens to the first two")

	require.NoError(t, r.Close())
	_, err = r.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.Stats().Events.Published, "a closed runner stops collecting")
}

func TestRunnerChasesWhatItSees(t *testing.T) {
	r, err := NewRunner(standoff(physics.V3(0, 0, 10), true), Options{Workers: 1})
	require.NoError(t, err)
	defer r.Close()

	f, err := r.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, f.Transitions, 1)
	assert.Equal(t, npc.StateChase, f.Transitions[0].To)
	assert.Equal(t, npc.ReasonSighted, f.Transitions[0].Reason)
	assert.Equal(t, npc.Handle("player"), f.Agents[0].Target)

	stats, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 31, stats.Ticks, "one manual step plus the full run")
	assert.GreaterOrEqual(t, stats.Entered[npc.StateAttack], 1, "the guard closes in and strikes")
	assert.GreaterOrEqual(t, stats.Arena.Struck, 1)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r, err := NewRunner(standoff(physics.V3(0, 0, 10), true), Options{})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := r.Run(ctx, true)
	require.NoError(t, err)
	assert.Zero(t, stats.Ticks)
}

func TestRunnerRequest(t *testing.T) {
	r, err := NewRunner(standoff(physics.V3(0, 0, 10), false), Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.ErrorIs(t, r.Request("nobody", npc.StateChase, "player"), npc.ErrStaleReference)
	assert.ErrorIs(t, r.Request("g", npc.StateRoam, ""), npc.ErrInvalidTransition)
	require.NoError(t, r.Request("g", npc.StateChase, "player"))

	f, err := r.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, f.Transitions, 1)
	assert.Equal(t, npc.StateChase, f.Transitions[0].To)
}

func TestRunnerRejectsDuplicateAgents(t *testing.T) {
	sc := standoff(physics.V3(0, 0, 10), false)
	sc.Agents = append(sc.Agents, sc.Agents[0])
	_, err := NewRunner(sc, Options{})
	assert.ErrorIs(t, err, npc.ErrDuplicateAgent)
}

func TestRunnerCourtyard(t *testing.T) {
	sc, err := LoadScenarioFile("testdata/courtyard.yaml")
	require.NoError(t, err)
	r, err := NewRunner(sc, Options{})
	require.NoError(t, err)
	defer r.Close()

	var buf bytes.Buffer
	trace, err := NewTraceRecorder(&buf)
	require.NoError(t, err)
	r.Observe(trace)

	stats, err := r.Run(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, trace.Close())

	assert.Equal(t, sc.Steps(), stats.Ticks)
	assert.Equal(t, 30*time.Second, stats.Simulated)

	entries, err := ReadTrace(&buf)
	require.NoError(t, err)
	assert.Len(t, entries, trace.Lines())
	transitions := 0
	for _, e := range entries {
		transitions += len(e.Transitions)
	}
	assert.Equal(t, stats.Transitions, transitions, "every transition is traced")
}
