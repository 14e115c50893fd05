package npc

import (
	"sort"
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// Body is something moving through a sound zone.
type Body struct {
	Handle   Handle
	Tag      string
	Position physics.Vec3
	Velocity physics.Vec3
}

// pollOrder is the order zones are evaluated in; earlier zones win.
var pollOrder = [...]Tier{TierAuto, TierCrouch, TierWalk, TierRun}

// SoundDetector tracks bodies inside the tiered trigger zones around an
// agent. Zones are fed by the trigger collaborator through OnEnter, OnStay
// and OnExit; Poll turns the current occupancy into at most one event.
type SoundDetector struct {
	floors map[Tier]float64
	allow  tagSet
	zones  map[Tier]map[Handle]Body

	detected bool
	object   Handle
}

// NewSoundDetector builds a detector that only tracks allow-listed tags.
func NewSoundDetector(cfg HearingConfig, allow []string) *SoundDetector {
	d := &SoundDetector{
		floors: map[Tier]float64{
			TierAuto:   0,
			TierCrouch: cfg.Crouch,
			TierWalk:   cfg.Walk,
			TierRun:    cfg.Run,
		},
		allow: newTagSet(allow),
		zones: make(map[Tier]map[Handle]Body, len(pollOrder)),
	}
	for _, z := range pollOrder {
		d.zones[z] = make(map[Handle]Body)
	}
	return d
}

func (d *SoundDetector) OnEnter(zone Tier, b Body) {
	if !d.allow.has(b.Tag) {
		return
	}
	if m, ok := d.zones[zone]; ok {
		m[b.Handle] = b
	}
}

// OnStay refreshes a body's position and velocity. Unknown bodies are added.
func (d *SoundDetector) OnStay(zone Tier, b Body) { d.OnEnter(zone, b) }

func (d *SoundDetector) OnExit(zone Tier, h Handle) {
	if m, ok := d.zones[zone]; ok {
		delete(m, h)
	}
}

// Occupied reports whether any body is inside zone.
func (d *SoundDetector) Occupied(zone Tier) bool { return len(d.zones[zone]) > 0 }

// Poll evaluates zones from the most to the least certain. A zone whose
// bodies are all below its speed floor does not stop lower zones from being
// checked.
func (d *SoundDetector) Poll(now time.Time) (PerceptionEvent, bool) {
	d.detected, d.object = false, ""
	for _, z := range pollOrder {
		bodies := d.zones[z]
		if len(bodies) == 0 {
			continue
		}
		handles := make([]Handle, 0, len(bodies))
		for h := range bodies {
			handles = append(handles, h)
		}
		sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
		for _, h := range handles {
			b := bodies[h]
			if b.Velocity.Len() < d.floors[z] {
				continue
			}
			d.detected, d.object = true, h
			return PerceptionEvent{
				Target:   h,
				Tag:      b.Tag,
				Position: b.Position,
				Sense:    SenseSound,
				Tier:     z,
				At:       now,
			}, true
		}
	}
	return PerceptionEvent{}, false
}

// ObjectDetected reports the result of the last Poll.
func (d *SoundDetector) ObjectDetected() bool { return d.detected }

// DetectedObject is the body found by the last Poll, or "".
func (d *SoundDetector) DetectedObject() Handle { return d.object }

// ClassifySpeed returns the loudest velocity tier that speed satisfies.
func (d *SoundDetector) ClassifySpeed(speed float64) Tier {
	switch {
	case speed >= d.floors[TierRun]:
		return TierRun
	case speed >= d.floors[TierWalk]:
		return TierWalk
	case speed >= d.floors[TierCrouch]:
		return TierCrouch
	}
	return TierNone
}

// Zones lists the zone tiers in poll order.
func Zones() []Tier { return append([]Tier(nil), pollOrder[:]...) }
