package npc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// State is the behavior an agent is currently running.
type State uint8

const (
	StateIdle State = iota
	StatePatrol
	StateRoam
	StateChase
	StateSearch
	StateAttack
	StateReturning
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StatePatrol:    "patrol",
	StateRoam:      "roam",
	StateChase:     "chase",
	StateSearch:    "search",
	StateAttack:    "attack",
	StateReturning: "returning",
}

// States lists every state in declaration order.
func States() []State {
	return []State{StateIdle, StatePatrol, StateRoam, StateChase, StateSearch, StateAttack, StateReturning}
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func (s State) Valid() bool { return int(s) < len(stateNames) }

// ParseState maps a state name to its value. Unknown names fail.
func ParseState(name string) (State, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range stateNames {
		if s == n {
			return State(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown state %q", name)
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s *State) UnmarshalYAML(node *yaml.Node) error {
	return s.UnmarshalText([]byte(node.Value))
}

// engaged reports whether the agent is busy with a target; sound is ignored
// while engaged.
func (s State) engaged() bool { return s == StateChase || s == StateAttack }

// acquires reports whether perception may start a chase from s.
func (s State) acquires() bool {
	switch s {
	case StatePatrol, StateIdle, StateRoam, StateSearch, StateReturning:
		return true
	}
	return false
}

// calm states are the ones an agent leaves to start a chase; leaving them
// records the position to come back to.
func (s State) calm() bool {
	return s == StatePatrol || s == StateIdle || s == StateRoam
}
