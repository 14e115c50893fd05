package physics

import "math"

// Vec3 is a point or direction in world space. Y is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Up is the world up axis.
var Up = Vec3{Y: 1}

func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3         { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3         { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3    { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64      { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64            { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Dist(o Vec3) float64     { return o.Sub(v).Len() }
func (v Vec3) IsZero() bool            { return v.X == 0 && v.Y == 0 && v.Z == 0 }
func (v Vec3) Flat() Vec3              { return Vec3{X: v.X, Z: v.Z} }
func (v Vec3) FlatDist(o Vec3) float64 { return math.Hypot(o.X-v.X, o.Z-v.Z) }

// Normalize returns the unit vector in v's direction, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Yaw is the heading of v on the horizontal plane in radians. Zero faces +Z,
// positive values turn toward +X.
func (v Vec3) Yaw() float64 { return math.Atan2(v.X, v.Z) }

// FromYaw returns the horizontal unit vector for a heading.
func FromYaw(yaw float64) Vec3 { return Vec3{X: math.Sin(yaw), Z: math.Cos(yaw)} }

// RotateYaw turns v about the up axis by angle radians.
func (v Vec3) RotateYaw(angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{X: v.X*c + v.Z*s, Y: v.Y, Z: v.Z*c - v.X*s}
}

// WrapAngle maps a to (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// LerpAngle moves from a toward b by t along the shortest arc.
func LerpAngle(a, b, t float64) float64 {
	return WrapAngle(a + WrapAngle(b-a)*t)
}

// Sphere is a bounding volume used by ray tests.
type Sphere struct {
	Center Vec3
	Radius float64
}

// Ray is an origin and a unit direction.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// IntersectSphere returns the distance along r to the first surface hit of s.
// A ray starting inside the sphere reports distance 0.
func (r Ray) IntersectSphere(s Sphere) (float64, bool) {
	oc := r.Origin.Sub(s.Center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	if c <= 0 {
		return 0, true
	}
	if b > 0 {
		return 0, false
	}
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	return -b - math.Sqrt(disc), true
}
