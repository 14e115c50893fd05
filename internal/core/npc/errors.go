package npc

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a trait whose data is missing or invalid. The
	// trait is disabled and the agent keeps running.
	ErrConfiguration = errors.New("npc: invalid configuration")
	// ErrInvalidTransition is returned for requests into a disabled trait or
	// an unreachable state.
	ErrInvalidTransition = errors.New("npc: invalid transition")
	// ErrStaleReference means a target handle no longer resolves.
	ErrStaleReference = errors.New("npc: stale target reference")
)

// Trait names a configurable behavior.
type Trait string

const (
	TraitIdle   Trait = "idle"
	TraitPatrol Trait = "patrol"
	TraitRoam   Trait = "roam"
	TraitChase  Trait = "chase"
	TraitAttack Trait = "attack"
	TraitVision Trait = "vision"
	TraitSound  Trait = "hearing"
	TraitFacing Trait = "facing"
)

// ConfigError describes why a trait was disabled.
type ConfigError struct {
	Trait  Trait
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Trait, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErr(t Trait, format string, args ...any) error {
	return &ConfigError{Trait: t, Reason: fmt.Sprintf(format, args...)}
}
