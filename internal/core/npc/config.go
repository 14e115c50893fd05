package npc

import (
	"errors"
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// Config describes one agent. Zero values are replaced by WithDefaults.
type Config struct {
	ID      string `json:"id" yaml:"id"`
	Tag     string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Faction string `json:"faction,omitempty" yaml:"faction,omitempty"`
	// Seed perturbs the roam sampler. Agents with equal IDs and seeds roam identically.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Idle    IdleConfig    `json:"idle" yaml:"idle"`
	Patrol  PatrolConfig  `json:"patrol" yaml:"patrol"`
	Roam    RoamConfig    `json:"roam" yaml:"roam"`
	Chase   ChaseConfig   `json:"chase" yaml:"chase"`
	Search  SearchConfig  `json:"search" yaml:"search"`
	Return  ReturnConfig  `json:"return" yaml:"return"`
	Attack  AttackConfig  `json:"attack" yaml:"attack"`
	Vision  VisionConfig  `json:"vision" yaml:"vision"`
	Hearing HearingConfig `json:"hearing" yaml:"hearing"`
	Facing  FacingConfig  `json:"facing" yaml:"facing"`
}

// IdleConfig enables pauses at patrol waypoints and roam samples.
type IdleConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type PatrolConfig struct {
	Enabled   bool           `json:"enabled" yaml:"enabled"`
	Waypoints []physics.Vec3 `json:"waypoints" yaml:"waypoints"`
	Start     int            `json:"start,omitempty" yaml:"start,omitempty"`
	Tolerance float64        `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	// Pause is how long the agent idles at each waypoint when the idle trait is on.
	Pause Duration `json:"pause,omitempty" yaml:"pause,omitempty"`
}

type RoamConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Home defaults to the spawn position.
	Home   *physics.Vec3 `json:"home,omitempty" yaml:"home,omitempty"`
	Radius float64       `json:"radius" yaml:"radius"`
	Pause  Duration      `json:"pause,omitempty" yaml:"pause,omitempty"`
}

type ChaseConfig struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	AllowList []string `json:"allow_list" yaml:"allow_list"`
	// Memory is how long a target stays credible after the last sighting.
	Memory Duration `json:"memory,omitempty" yaml:"memory,omitempty"`
	// LoseDistance, when positive, drops sightings farther than this.
	LoseDistance float64 `json:"lose_distance,omitempty" yaml:"lose_distance,omitempty"`
}

type SearchConfig struct {
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type ReturnConfig struct {
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
}

type AttackConfig struct {
	Distance float64  `json:"distance,omitempty" yaml:"distance,omitempty"`
	Speed    Duration `json:"speed,omitempty" yaml:"speed,omitempty"`
	Damage   float64  `json:"damage,omitempty" yaml:"damage,omitempty"`
	// AlertRadius is how far a strike alerts same-faction allies. Zero disables it.
	AlertRadius float64 `json:"alert_radius,omitempty" yaml:"alert_radius,omitempty"`
}

type VisionConfig struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
	// HalfAngle is in degrees.
	HalfAngle float64 `json:"half_angle,omitempty" yaml:"half_angle,omitempty"`
	Steps     int     `json:"steps,omitempty" yaml:"steps,omitempty"`
	Falloff   float64 `json:"falloff,omitempty" yaml:"falloff,omitempty"`
	MinRange  float64 `json:"min_range,omitempty" yaml:"min_range,omitempty"`
	EyeHeight float64 `json:"eye_height,omitempty" yaml:"eye_height,omitempty"`
}

// HearingConfig holds the speed floors of the crouch, walk and run zones.
type HearingConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	Crouch  float64 `json:"crouch,omitempty" yaml:"crouch,omitempty"`
	Walk    float64 `json:"walk,omitempty" yaml:"walk,omitempty"`
	Run     float64 `json:"run,omitempty" yaml:"run,omitempty"`
}

type FacingConfig struct {
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
}

const (
	DefaultTolerance    = 5.0
	DefaultMemory       = 2 * time.Second
	DefaultSearchTime   = 7 * time.Second
	DefaultAttackRange  = 3.0
	DefaultAttackSpeed  = 2500 * time.Millisecond
	DefaultAttackDamage = 5.0
	DefaultPause        = 2 * time.Second
	DefaultEyeHeight    = 1.5
	DefaultFacingRate   = 0.5

	DefaultCrouchSpeed = 2.0
	DefaultWalkSpeed   = 4.0
	DefaultRunSpeed    = 8.0
)

// WithDefaults returns a copy of c with unset values filled in.
func (c Config) WithDefaults() Config {
	if c.Patrol.Tolerance == 0 {
		c.Patrol.Tolerance = DefaultTolerance
	}
	if c.Patrol.Pause.Duration == 0 {
		c.Patrol.Pause.Duration = DefaultPause
	}
	if c.Roam.Pause.Duration == 0 {
		c.Roam.Pause.Duration = DefaultPause
	}
	if c.Chase.Memory.Duration == 0 {
		c.Chase.Memory.Duration = DefaultMemory
	}
	if c.Search.Timeout.Duration == 0 {
		c.Search.Timeout.Duration = DefaultSearchTime
	}
	if c.Return.Tolerance == 0 {
		c.Return.Tolerance = DefaultTolerance
	}
	if c.Attack.Distance == 0 {
		c.Attack.Distance = DefaultAttackRange
	}
	if c.Attack.Speed.Duration == 0 {
		c.Attack.Speed.Duration = DefaultAttackSpeed
	}
	if c.Attack.Damage == 0 {
		c.Attack.Damage = DefaultAttackDamage
	}
	if c.Vision.Distance == 0 {
		c.Vision.Distance = 20
	}
	if c.Vision.HalfAngle == 0 {
		c.Vision.HalfAngle = 45
	}
	if c.Vision.Steps == 0 {
		c.Vision.Steps = 5
	}
	if c.Vision.Falloff == 0 {
		c.Vision.Falloff = 0.5
	}
	if c.Vision.MinRange == 0 {
		c.Vision.MinRange = 0.25
	}
	if c.Vision.EyeHeight == 0 {
		c.Vision.EyeHeight = DefaultEyeHeight
	}
	if c.Hearing.Crouch == 0 {
		c.Hearing.Crouch = DefaultCrouchSpeed
	}
	if c.Hearing.Walk == 0 {
		c.Hearing.Walk = DefaultWalkSpeed
	}
	if c.Hearing.Run == 0 {
		c.Hearing.Run = DefaultRunSpeed
	}
	if c.Facing.Rate == 0 {
		c.Facing.Rate = DefaultFacingRate
	}
	return c
}

// Validate reports every enabled trait whose data is unusable. The returned
// error joins one *ConfigError per failing trait.
func (c Config) Validate() error {
	_, errs := c.resolveTraits()
	return errors.Join(errs...)
}

var traitOrder = []Trait{TraitIdle, TraitPatrol, TraitRoam, TraitChase, TraitAttack, TraitVision, TraitSound, TraitFacing}

func (c Config) traitErrors() map[Trait]error {
	out := make(map[Trait]error)
	if c.Idle.Enabled && c.Patrol.Pause.Duration <= 0 && c.Roam.Pause.Duration <= 0 {
		out[TraitIdle] = configErr(TraitIdle, "pause must be positive")
	}
	if c.Patrol.Enabled {
		switch {
		case len(c.Patrol.Waypoints) == 0:
			out[TraitPatrol] = configErr(TraitPatrol, "no waypoints")
		case c.Patrol.Start < 0:
			out[TraitPatrol] = configErr(TraitPatrol, "negative start index %d", c.Patrol.Start)
		case c.Patrol.Tolerance <= 0:
			out[TraitPatrol] = configErr(TraitPatrol, "tolerance must be positive")
		}
	}
	if c.Roam.Enabled && c.Roam.Radius <= 0 {
		out[TraitRoam] = configErr(TraitRoam, "radius must be positive")
	}
	if c.Chase.Enabled {
		switch {
		case len(c.Chase.AllowList) == 0:
			out[TraitChase] = configErr(TraitChase, "empty allow list")
		case c.Chase.Memory.Duration <= 0:
			out[TraitChase] = configErr(TraitChase, "memory must be positive")
		case c.Search.Timeout.Duration <= 0:
			out[TraitChase] = configErr(TraitChase, "search timeout must be positive")
		case c.Return.Tolerance <= 0:
			out[TraitChase] = configErr(TraitChase, "return tolerance must be positive")
		}
	}
	if c.Chase.Enabled && (c.Attack.Distance <= 0 || c.Attack.Speed.Duration <= 0 || c.Attack.Damage < 0) {
		out[TraitAttack] = configErr(TraitAttack, "distance and speed must be positive")
	}
	if c.Vision.Enabled {
		v := c.Vision
		switch {
		case v.Distance <= 0:
			out[TraitVision] = configErr(TraitVision, "distance must be positive")
		case v.HalfAngle <= 0 || v.HalfAngle > 180:
			out[TraitVision] = configErr(TraitVision, "half angle %v out of (0, 180]", v.HalfAngle)
		case v.Steps < 0:
			out[TraitVision] = configErr(TraitVision, "negative step count")
		case v.Falloff < 0 || v.Falloff > 1 || v.MinRange < 0 || v.MinRange > 1:
			out[TraitVision] = configErr(TraitVision, "falloff and min range must be within [0, 1]")
		}
	}
	if c.Hearing.Enabled {
		h := c.Hearing
		if h.Crouch < 0 || h.Walk < h.Crouch || h.Run < h.Walk {
			out[TraitSound] = configErr(TraitSound, "speed floors must satisfy 0 <= crouch <= walk <= run")
		}
	}
	if c.Facing.Rate < 0 || c.Facing.Rate > 1 {
		out[TraitFacing] = configErr(TraitFacing, "rate %v out of (0, 1]", c.Facing.Rate)
	}
	return out
}

// Traits is the set of behaviors that survived validation.
type Traits struct {
	Idle, Patrol, Roam, Chase, Attack, Vision, Hearing bool
}

func (t Traits) Has(tr Trait) bool {
	switch tr {
	case TraitIdle:
		return t.Idle
	case TraitPatrol:
		return t.Patrol
	case TraitRoam:
		return t.Roam
	case TraitChase:
		return t.Chase
	case TraitAttack:
		return t.Attack
	case TraitVision:
		return t.Vision
	case TraitSound:
		return t.Hearing
	}
	return false
}

// resolveTraits returns the enabled traits minus those that failed
// validation, along with the failures.
func (c Config) resolveTraits() (Traits, []error) {
	bad := c.traitErrors()
	var errs []error
	for _, t := range traitOrder {
		if err := bad[t]; err != nil {
			errs = append(errs, err)
		}
	}
	ok := func(t Trait) bool { return bad[t] == nil }
	tr := Traits{
		Idle:    c.Idle.Enabled && ok(TraitIdle),
		Patrol:  c.Patrol.Enabled && ok(TraitPatrol),
		Roam:    c.Roam.Enabled && ok(TraitRoam),
		Chase:   c.Chase.Enabled && ok(TraitChase),
		Vision:  c.Vision.Enabled && ok(TraitVision),
		Hearing: c.Hearing.Enabled && ok(TraitSound),
	}
	tr.Attack = tr.Chase && ok(TraitAttack)
	return tr, errs
}

// BaseState picks the resting behavior: patrol, then roam, then idle.
func (t Traits) BaseState() State {
	switch {
	case t.Patrol:
		return StatePatrol
	case t.Roam:
		return StateRoam
	}
	return StateIdle
}
