package npc

import (
	"math"
	"time"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

// RaySample is one ray of a vision fan and what it hit.
type RaySample struct {
	Origin    physics.Vec3 `json:"origin"`
	Direction physics.Vec3 `json:"direction"`
	Range     float64      `json:"range"`
	Hit       *Hit         `json:"hit,omitempty"`
	// Sees is true when the hit is an allow-listed target.
	Sees bool `json:"sees"`
}

// VisionCaster casts a fixed fan of rays in front of an agent. Rays are
// laid out from their index alone, so the fan never drifts between ticks.
type VisionCaster struct {
	cfg   VisionConfig
	allow tagSet
	rc    Raycaster
}

func NewVisionCaster(cfg VisionConfig, allow []string, rc Raycaster) *VisionCaster {
	return &VisionCaster{cfg: cfg, allow: newTagSet(allow), rc: rc}
}

type fanRay struct {
	angle float64
	rng   float64
}

// fan returns the forward ray followed by a left and right ray per step.
func (v *VisionCaster) fan() []fanRay {
	steps := v.cfg.Steps
	half := v.cfg.HalfAngle * math.Pi / 180
	floor := v.cfg.Distance * v.cfg.MinRange
	rays := make([]fanRay, 0, 1+2*steps)
	rays = append(rays, fanRay{angle: 0, rng: v.cfg.Distance})
	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)
		r := math.Max(v.cfg.Distance*(1-v.cfg.Falloff*frac), floor)
		a := half * frac
		rays = append(rays, fanRay{angle: -a, rng: r}, fanRay{angle: a, rng: r})
	}
	return rays
}

// Scan casts every ray from the eye above pos and reports each result.
func (v *VisionCaster) Scan(pos, forward physics.Vec3) []RaySample {
	eye := pos.Add(physics.Up.Scale(v.cfg.EyeHeight))
	fwd := forward.Flat().Normalize()
	if fwd.IsZero() {
		fwd = physics.V3(0, 0, 1)
	}
	rays := v.fan()
	out := make([]RaySample, len(rays))
	for i, r := range rays {
		dir := fwd.RotateYaw(r.angle)
		s := RaySample{Origin: eye, Direction: dir, Range: r.rng}
		if v.rc != nil {
			if hit, ok := v.rc.CastRay(eye, dir, r.rng); ok {
				h := hit
				s.Hit = &h
				s.Sees = v.allow.has(hit.Tag)
			}
		}
		out[i] = s
	}
	return out
}

// Look returns the nearest allow-listed target in view. Ties go to the
// earlier ray, so the forward ray wins.
func (v *VisionCaster) Look(now time.Time, pos, forward physics.Vec3) (PerceptionEvent, bool) {
	var best *Hit
	for _, s := range v.Scan(pos, forward) {
		if !s.Sees {
			continue
		}
		if best == nil || s.Hit.Distance < best.Distance {
			best = s.Hit
		}
	}
	if best == nil {
		return PerceptionEvent{}, false
	}
	return PerceptionEvent{
		Target:   best.Handle,
		Tag:      best.Tag,
		Position: best.Position,
		Sense:    SenseSight,
		At:       now,
	}, true
}
