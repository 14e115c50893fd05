package sim

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/sentry/internal/core/npc"
	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// ErrInvalidScenario wraps every scenario loading failure.
var ErrInvalidScenario = errors.New("sim: invalid scenario")

//go:embed scenario.schema.json
var scenarioSchema []byte

const schemaURL = "scenario.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(scenarioSchema)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Epoch is the simulated start time when a scenario does not set one.
var Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Scenario is a self-contained arena: guards, the bodies they react to and
// the obstacles that block their sight.
type Scenario struct {
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Tick      npc.Duration   `json:"tick,omitempty" yaml:"tick,omitempty"`
	Duration  npc.Duration   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Start     time.Time      `json:"start,omitempty" yaml:"start,omitempty"`
	Bounds    Bounds         `json:"bounds" yaml:"bounds"`
	Agents    []AgentSpec    `json:"agents" yaml:"agents"`
	Bodies    []BodySpec     `json:"bodies,omitempty" yaml:"bodies,omitempty"`
	Obstacles []ObstacleSpec `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`
}

// Bounds is the walkable rectangle on the XZ plane.
type Bounds struct {
	Min physics.Vec3 `json:"min" yaml:"min"`
	Max physics.Vec3 `json:"max" yaml:"max"`
}

func (b Bounds) Contains(p physics.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Bounds) Clamp(p physics.Vec3) physics.Vec3 {
	return physics.Vec3{
		X: min(max(p.X, b.Min.X), b.Max.X),
		Y: p.Y,
		Z: min(max(p.Z, b.Min.Z), b.Max.Z),
	}
}

// AgentSpec is an agent config plus its body in the arena.
type AgentSpec struct {
	npc.Config `yaml:",inline"`

	Spawn  physics.Vec3 `json:"spawn" yaml:"spawn"`
	Speed  float64      `json:"speed,omitempty" yaml:"speed,omitempty"`
	Radius float64      `json:"radius,omitempty" yaml:"radius,omitempty"`
	Rings  Rings        `json:"rings,omitempty" yaml:"rings,omitempty"`
}

// Rings are the radii of the hearing trigger zones around an agent.
type Rings struct {
	Auto   float64 `json:"auto,omitempty" yaml:"auto,omitempty"`
	Crouch float64 `json:"crouch,omitempty" yaml:"crouch,omitempty"`
	Walk   float64 `json:"walk,omitempty" yaml:"walk,omitempty"`
	Run    float64 `json:"run,omitempty" yaml:"run,omitempty"`
}

// Radius returns the ring radius of zone.
func (r Rings) Radius(zone npc.Tier) float64 {
	switch zone {
	case npc.TierAuto:
		return r.Auto
	case npc.TierCrouch:
		return r.Crouch
	case npc.TierWalk:
		return r.Walk
	case npc.TierRun:
		return r.Run
	}
	return 0
}

// BodySpec is a tagged mover looping over a path.
type BodySpec struct {
	ID     string         `json:"id" yaml:"id"`
	Tag    string         `json:"tag" yaml:"tag"`
	Path   []physics.Vec3 `json:"path" yaml:"path"`
	Speed  float64        `json:"speed,omitempty" yaml:"speed,omitempty"`
	Radius float64        `json:"radius,omitempty" yaml:"radius,omitempty"`
	Health float64        `json:"health,omitempty" yaml:"health,omitempty"`
}

// ObstacleSpec is a static cylinder that blocks line of sight.
type ObstacleSpec struct {
	ID     string       `json:"id,omitempty" yaml:"id,omitempty"`
	Tag    string       `json:"tag,omitempty" yaml:"tag,omitempty"`
	Center physics.Vec3 `json:"center" yaml:"center"`
	Radius float64      `json:"radius" yaml:"radius"`
}

// Scenario defaults.
const (
	DefaultTick         = 100 * time.Millisecond
	DefaultDuration     = time.Minute
	DefaultAgentSpeed   = 3.5
	DefaultEntityRadius = 0.5
	DefaultBodyHealth   = 20.0
	DefaultObstacleTag  = "wall"
)

var DefaultRings = Rings{Auto: 2, Crouch: 5, Walk: 9, Run: 14}

// LoadScenarioFile reads and validates a YAML scenario from disk.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScenario(f)
}

// LoadScenario validates a YAML document against the scenario schema, decodes
// it strictly and applies defaults.
func LoadScenario(r io.Reader) (*Scenario, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	sc = sc.WithDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return &sc, nil
}

// validateDocument round-trips YAML through JSON so the schema sees plain
// JSON values.
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	return schema.Validate(v)
}

func (s Scenario) WithDefaults() Scenario {
	if s.Tick.Duration == 0 {
		s.Tick.Duration = DefaultTick
	}
	if s.Duration.Duration == 0 {
		s.Duration.Duration = DefaultDuration
	}
	if s.Start.IsZero() {
		s.Start = Epoch
	}
	if s.Bounds == (Bounds{}) {
		s.Bounds = Bounds{Min: physics.V3(-50, 0, -50), Max: physics.V3(50, 0, 50)}
	}

	agents := make([]AgentSpec, len(s.Agents))
	for i, a := range s.Agents {
		if a.Speed == 0 {
			a.Speed = DefaultAgentSpeed
		}
		if a.Radius == 0 {
			a.Radius = DefaultEntityRadius
		}
		if a.Rings == (Rings{}) {
			a.Rings = DefaultRings
		}
		agents[i] = a
	}
	s.Agents = agents

	bodies := make([]BodySpec, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.Radius == 0 {
			b.Radius = DefaultEntityRadius
		}
		if b.Health == 0 {
			b.Health = DefaultBodyHealth
		}
		bodies[i] = b
	}
	s.Bodies = bodies

	obstacles := make([]ObstacleSpec, len(s.Obstacles))
	for i, o := range s.Obstacles {
		if o.Tag == "" {
			o.Tag = DefaultObstacleTag
		}
		if o.ID == "" {
			o.ID = fmt.Sprintf("%s-%d", o.Tag, i)
		}
		obstacles[i] = o
	}
	s.Obstacles = obstacles
	return s
}

// Validate checks what the schema cannot: unique handles and sane bounds.
func (s Scenario) Validate() error {
	var errs []error
	if s.Tick.Duration <= 0 {
		errs = append(errs, errors.New("tick must be positive"))
	}
	if s.Bounds.Min.X >= s.Bounds.Max.X || s.Bounds.Min.Z >= s.Bounds.Max.Z {
		errs = append(errs, errors.New("bounds min must be below max"))
	}
	seen := make(map[string]struct{})
	claim := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s without id", kind))
			return
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
	}
	for _, a := range s.Agents {
		claim("agent", a.ID)
		if !s.Bounds.Contains(a.Spawn) {
			errs = append(errs, fmt.Errorf("agent %q spawns outside bounds", a.ID))
		}
	}
	for _, b := range s.Bodies {
		claim("body", b.ID)
		if len(b.Path) == 0 {
			errs = append(errs, fmt.Errorf("body %q has no path", b.ID))
		}
	}
	for _, o := range s.Obstacles {
		claim("obstacle", o.ID)
	}
	return errors.Join(errs...)
}

// Steps is the number of ticks the scenario runs for.
func (s Scenario) Steps() int {
	return int(s.Duration.Duration / s.Tick.Duration)
}
