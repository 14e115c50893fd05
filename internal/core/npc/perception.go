package npc

import (
	"fmt"
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// Sense is the channel a perception arrived on.
type Sense uint8

const (
	SenseSight Sense = iota + 1
	SenseSound
	SenseAlert
)

func (s Sense) String() string {
	switch s {
	case SenseSight:
		return "sight"
	case SenseSound:
		return "sound"
	case SenseAlert:
		return "alert"
	}
	return fmt.Sprintf("sense(%d)", uint8(s))
}

// Tier is the confidence of a sound. Higher values are more certain.
// Sight and alerts carry TierNone.
type Tier uint8

const (
	TierNone Tier = iota
	TierRun
	TierWalk
	TierCrouch
	TierAuto
)

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierRun:
		return "run"
	case TierWalk:
		return "walk"
	case TierCrouch:
		return "crouch"
	case TierAuto:
		return "auto"
	}
	return fmt.Sprintf("tier(%d)", uint8(t))
}

// PerceptionEvent is one stimulus observed during a tick.
type PerceptionEvent struct {
	Target   Handle       `json:"target"`
	Tag      string       `json:"tag"`
	Position physics.Vec3 `json:"position"`
	Sense    Sense        `json:"sense"`
	Tier     Tier         `json:"tier,omitempty"`
	At       time.Time    `json:"at"`
}

type tagSet map[string]struct{}

func newTagSet(tags []string) tagSet {
	s := make(tagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s tagSet) has(tag string) bool {
	_, ok := s[tag]
	return ok
}
