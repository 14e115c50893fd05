package npc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

func guardConfig() Config {
	return Config{
		ID: "guard",
		Patrol: PatrolConfig{
			Enabled:   true,
			Waypoints: []physics.Vec3{physics.V3(0, 0, 0), physics.V3(20, 0, 0), physics.V3(20, 0, 20)},
		},
		Chase: ChaseConfig{Enabled: true, AllowList: []string{"player"}},
	}
}

func TestWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, DefaultTolerance, c.Patrol.Tolerance)
	assert.Equal(t, DefaultMemory, c.Chase.Memory.Duration)
	assert.Equal(t, DefaultSearchTime, c.Search.Timeout.Duration)
	assert.Equal(t, DefaultTolerance, c.Return.Tolerance)
	assert.Equal(t, DefaultAttackRange, c.Attack.Distance)
	assert.Equal(t, DefaultAttackSpeed, c.Attack.Speed.Duration)
	assert.Equal(t, DefaultAttackDamage, c.Attack.Damage)
	assert.Equal(t, DefaultEyeHeight, c.Vision.EyeHeight)
	assert.Equal(t, DefaultCrouchSpeed, c.Hearing.Crouch)
	assert.Equal(t, DefaultWalkSpeed, c.Hearing.Walk)
	assert.Equal(t, DefaultRunSpeed, c.Hearing.Run)

	custom := Config{Chase: ChaseConfig{Memory: Seconds(3)}}.WithDefaults()
	assert.Equal(t, 3*time.Second, custom.Chase.Memory.Duration)
}

func TestValidateReportsEveryBrokenTrait(t *testing.T) {
	c := Config{
		Patrol:  PatrolConfig{Enabled: true},
		Chase:   ChaseConfig{Enabled: true},
		Roam:    RoamConfig{Enabled: true},
		Vision:  VisionConfig{Enabled: true, HalfAngle: 270},
		Hearing: HearingConfig{Enabled: true, Crouch: 5, Walk: 4, Run: 8},
	}.WithDefaults()

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	var failed []Trait
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ce *ConfigError
		require.True(t, errors.As(e, &ce))
		failed = append(failed, ce.Trait)
	}
	assert.Equal(t, []Trait{TraitPatrol, TraitRoam, TraitChase, TraitVision, TraitSound}, failed)

	assert.NoError(t, guardConfig().WithDefaults().Validate())
}

func TestFacingRateOutOfRange(t *testing.T) {
	cfg := guardConfig()
	cfg.Facing.Rate = 1.5
	assert.ErrorIs(t, cfg.WithDefaults().Validate(), ErrConfiguration)

	b, errs := NewBrain("g", cfg, physics.Vec3{}, nil)
	require.Len(t, errs, 1)
	var ce *ConfigError
	require.True(t, errors.As(errs[0], &ce))
	assert.Equal(t, TraitFacing, ce.Trait)
	assert.Equal(t, StatePatrol, b.State(), "a bad facing rate disables nothing")

	cfg.Facing.Rate = -0.2
	_, errs = NewBrain("g", cfg, physics.Vec3{}, nil)
	assert.Len(t, errs, 1)
}

func TestBrokenTraitFallsBackToNextBaseState(t *testing.T) {
	cfg := guardConfig()
	cfg.Patrol.Waypoints = nil
	cfg.Roam = RoamConfig{Enabled: true, Radius: 10}

	b, errs := NewBrain("g", cfg, physics.Vec3{}, passSampler{})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrConfiguration)
	assert.Equal(t, StateRoam, b.State())
	assert.False(t, b.Traits().Patrol)

	b, errs = NewBrain("g", cfg, physics.Vec3{}, nil)
	require.Len(t, errs, 2)
	assert.Equal(t, StateIdle, b.State())
}

func TestChaseWithoutAllowListDisablesAttack(t *testing.T) {
	cfg := guardConfig()
	cfg.Chase.AllowList = nil
	b, errs := NewBrain("g", cfg, physics.Vec3{}, nil)
	require.Len(t, errs, 1)
	assert.False(t, b.Traits().Chase)
	assert.False(t, b.Traits().Attack)
	assert.Equal(t, StatePatrol, b.State())
}

const guardYAML = `
id: guard-1
tag: guard
faction: castle
patrol:
  enabled: true
  start: 1
  pause: 1.5s
  waypoints:
    - {x: 0, y: 0, z: 0}
    - {x: 10, y: 0, z: 0}
chase:
  enabled: true
  allow_list: [player]
  memory: 3
search:
  timeout: 10s
attack:
  alert_radius: 15
hearing:
  enabled: true
`

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(guardYAML))
	require.NoError(t, err)
	assert.Equal(t, "guard-1", c.ID)
	assert.Equal(t, "castle", c.Faction)
	assert.Equal(t, 1, c.Patrol.Start)
	assert.Equal(t, 1500*time.Millisecond, c.Patrol.Pause.Duration)
	assert.Equal(t, 3*time.Second, c.Chase.Memory.Duration)
	assert.Equal(t, 10*time.Second, c.Search.Timeout.Duration)
	assert.Equal(t, 15.0, c.Attack.AlertRadius)
	require.Len(t, c.Patrol.Waypoints, 2)
	assert.Equal(t, physics.V3(10, 0, 0), c.Patrol.Waypoints[1])
	assert.NoError(t, c.WithDefaults().Validate())

	_, err = LoadYAML(strings.NewReader("id: x\nunknown: 1\n"))
	assert.Error(t, err)
	_, err = LoadYAML(strings.NewReader("chase:\n  memory: soon\n"))
	assert.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	c, err := LoadJSON(strings.NewReader(`{
		"id": "g",
		"chase": {"enabled": true, "allow_list": ["player"], "memory": "2500ms"},
		"attack": {"speed": 1.5}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, c.Chase.Memory.Duration)
	assert.Equal(t, 1500*time.Millisecond, c.Attack.Speed.Duration)

	_, err = LoadJSON(strings.NewReader(`{"chase": {"memory": true}}`))
	assert.Error(t, err)
}
