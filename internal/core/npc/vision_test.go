package npc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/sentry/internal/core/systems/physics"
)

func visionConfig() VisionConfig {
	return VisionConfig{Enabled: true, Distance: 10, HalfAngle: 40, Steps: 4, Falloff: 0.5, MinRange: 0.6, EyeHeight: 1.5}
}

func atEye(x, z float64) physics.Sphere {
	return physics.Sphere{Center: physics.V3(x, 1.5, z), Radius: 0.5}
}

func TestVisionFanLayout(t *testing.T) {
	v := NewVisionCaster(visionConfig(), []string{"player"}, &fakeRaycaster{})
	rays := v.Scan(physics.V3(0, 0, 0), physics.V3(0, 0, 1))
	require.Len(t, rays, 9)

	assert.Equal(t, physics.V3(0, 1.5, 0), rays[0].Origin)
	assert.InDelta(t, 0, rays[0].Direction.Yaw(), 1e-9)
	assert.Equal(t, 10.0, rays[0].Range)

	wantRange := []float64{8.75, 7.5, 6.25, 6}
	for i := 1; i <= 4; i++ {
		angle := float64(i) * 10 * math.Pi / 180
		left, right := rays[2*i-1], rays[2*i]
		assert.InDelta(t, -angle, left.Direction.Yaw(), 1e-9, "step %d", i)
		assert.InDelta(t, angle, right.Direction.Yaw(), 1e-9, "step %d", i)
		assert.InDelta(t, wantRange[i-1], left.Range, 1e-9)
		assert.Equal(t, left.Range, right.Range)
		assert.Nil(t, left.Hit)
	}
}

func TestVisionFanDoesNotDrift(t *testing.T) {
	v := NewVisionCaster(visionConfig(), []string{"player"}, &fakeRaycaster{})
	first := v.Scan(physics.V3(3, 0, 4), physics.V3(1, 0, 1))
	for i := 0; i < 1000; i++ {
		v.Scan(physics.V3(3, 0, 4), physics.V3(1, 0, 1))
	}
	assert.Equal(t, first, v.Scan(physics.V3(3, 0, 4), physics.V3(1, 0, 1)))
}

func TestVisionNearestAllowListedHit(t *testing.T) {
	side := physics.FromYaw(20 * math.Pi / 180).Scale(4)
	rc := &fakeRaycaster{props: []prop{
		{handle: "far", tag: "player", sphere: atEye(0, 9)},
		{handle: "near", tag: "player", sphere: atEye(side.X, side.Z)},
	}}
	v := NewVisionCaster(visionConfig(), []string{"player"}, rc)

	e, ok := v.Look(t0, physics.Vec3{}, physics.V3(0, 0, 1))
	require.True(t, ok)
	assert.Equal(t, Handle("near"), e.Target)
	assert.Equal(t, SenseSight, e.Sense)
	assert.Equal(t, t0, e.At)
}

func TestVisionOccludedAndOutOfRange(t *testing.T) {
	rc := &fakeRaycaster{props: []prop{
		{handle: "wall", tag: "wall", sphere: atEye(0, 3)},
		{handle: "p", tag: "player", sphere: atEye(0, 8)},
	}}
	v := NewVisionCaster(visionConfig(), []string{"player"}, rc)
	_, ok := v.Look(t0, physics.Vec3{}, physics.V3(0, 0, 1))
	assert.False(t, ok, "blocked by the wall")

	rays := v.Scan(physics.Vec3{}, physics.V3(0, 0, 1))
	require.NotNil(t, rays[0].Hit)
	assert.Equal(t, Handle("wall"), rays[0].Hit.Handle)
	assert.False(t, rays[0].Sees)

	rc.props = []prop{{handle: "p", tag: "player", sphere: atEye(0, 12)}}
	_, ok = v.Look(t0, physics.Vec3{}, physics.V3(0, 0, 1))
	assert.False(t, ok, "beyond the forward range")
}

func TestVisionFollowsForward(t *testing.T) {
	rc := &fakeRaycaster{props: []prop{{handle: "p", tag: "player", sphere: atEye(6, 0)}}}
	v := NewVisionCaster(visionConfig(), []string{"player"}, rc)

	_, ok := v.Look(t0, physics.Vec3{}, physics.V3(0, 0, 1))
	assert.False(t, ok)
	_, ok = v.Look(t0, physics.Vec3{}, physics.V3(1, 0, 0))
	assert.True(t, ok)
}

func TestDedupNavigator(t *testing.T) {
	inner := newFakeNav(physics.Vec3{})
	d := NewDedupNavigator(inner)

	p := physics.V3(1, 0, 2)
	for i := 0; i < 5; i++ {
		d.SetDestination(p)
	}
	assert.Len(t, inner.requests(), 1)
	assert.Equal(t, 1, d.Issued())

	d.SetDestination(physics.V3(3, 0, 3))
	d.SetDestination(p)
	assert.Equal(t, []physics.Vec3{p, physics.V3(3, 0, 3), p}, inner.requests())

	got, ok := d.Destination()
	assert.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, inner.Position(), d.Position())
	assert.Equal(t, inner.Forward(), d.Forward())
}
