package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3Basics(t *testing.T) {
	a := V3(1, 2, 3)
	b := V3(4, 6, 3)

	assert.Equal(t, V3(5, 8, 6), a.Add(b))
	assert.Equal(t, V3(3, 4, 0), b.Sub(a))
	assert.InDelta(t, 5, a.Dist(b), 1e-9)
	assert.InDelta(t, 3, a.FlatDist(b.Add(V3(0, 100, 0))), 1e-9, "height is ignored")
	assert.InDelta(t, 5, a.FlatDist(V3(4, -50, 7)), 1e-9)
	assert.Equal(t, Vec3{}, Vec3{}.Normalize())
	assert.InDelta(t, 1, b.Normalize().Len(), 1e-9)
}

func TestYaw(t *testing.T) {
	assert.InDelta(t, 0, V3(0, 0, 1).Yaw(), 1e-9)
	assert.InDelta(t, math.Pi/2, V3(1, 0, 0).Yaw(), 1e-9)

	f := FromYaw(math.Pi / 2)
	assert.InDelta(t, 1, f.X, 1e-9)
	assert.InDelta(t, 0, f.Z, 1e-9)

	r := V3(0, 0, 1).RotateYaw(math.Pi / 2)
	assert.InDelta(t, 1, r.X, 1e-9)
	assert.InDelta(t, 0, r.Z, 1e-9)
}

func TestLerpAngleShortestArc(t *testing.T) {
	from := math.Pi - 0.1
	to := -math.Pi + 0.1

	mid := LerpAngle(from, to, 0.5)
	assert.InDelta(t, math.Pi, math.Abs(mid), 1e-9)

	assert.InDelta(t, to, LerpAngle(from, to, 1), 1e-9)
	assert.InDelta(t, from, LerpAngle(from, to, 0), 1e-9)
}

func TestIntersectSphere(t *testing.T) {
	s := Sphere{Center: V3(0, 0, 10), Radius: 1}

	d, ok := Ray{Origin: Vec3{}, Dir: V3(0, 0, 1)}.IntersectSphere(s)
	assert.True(t, ok)
	assert.InDelta(t, 9, d, 1e-9)

	_, ok = Ray{Origin: Vec3{}, Dir: V3(0, 0, -1)}.IntersectSphere(s)
	assert.False(t, ok)

	_, ok = Ray{Origin: Vec3{}, Dir: V3(1, 0, 0)}.IntersectSphere(s)
	assert.False(t, ok)

	d, ok = Ray{Origin: V3(0, 0, 10.5), Dir: V3(1, 0, 0)}.IntersectSphere(s)
	assert.True(t, ok)
	assert.Equal(t, 0.0, d)
}
