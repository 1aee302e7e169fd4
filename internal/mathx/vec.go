// Package mathx holds the small set of float32 vector, quaternion and matrix
// types the engine core needs for transforms and serialization.
package mathx

import "github.com/chewxy/math32"

const Pi = math32.Pi

type Vec2 struct{ X, Y float32 }

type Vec3 struct{ X, Y, Z float32 }

type Vec4 struct{ X, Y, Z, W float32 }

type BVec2 struct{ X, Y bool }

type BVec3 struct{ X, Y, Z bool }

type BVec4 struct{ X, Y, Z, W bool }

func V3(x, y, z float32) Vec3 { return Vec3{x, y, z} }

func Right() Vec3   { return Vec3{1, 0, 0} }
func Forward() Vec3 { return Vec3{0, 1, 0} }
func Up() Vec3      { return Vec3{0, 0, 1} }

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float32   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Length() float32      { return math32.Sqrt(v.Dot(v)) }
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// ApproxEqual compares component-wise within eps.
func (v Vec3) ApproxEqual(o Vec3, eps float32) bool {
	return math32.Abs(v.X-o.X) <= eps && math32.Abs(v.Y-o.Y) <= eps && math32.Abs(v.Z-o.Z) <= eps
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Rotate2D rotates v counterclockwise by angle radians about +Z.
func (v Vec2) Rotate2D(angle float32) Vec2 {
	s, c := math32.Sincos(angle)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}
