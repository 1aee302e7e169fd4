package mathx

import "github.com/chewxy/math32"

// Quat is a rotation quaternion with W as the scalar part.
type Quat struct{ X, Y, Z, W float32 }

func QuatIdentity() Quat { return Quat{0, 0, 0, 1} }

// AngleAxis returns the rotation of angle radians about axis.
func AngleAxis(angle float32, axis Vec3) Quat {
	axis = axis.Normalize()
	s, c := math32.Sincos(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, c}
}

// Mul composes rotations: q.Mul(r) applies r first, then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

func (q Quat) Normalize() Quat {
	l := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Inverse assumes a unit quaternion.
func (q Quat) Inverse() Quat { return q.Conjugate() }

func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

func (q Quat) ApproxEqual(o Quat, eps float32) bool {
	// q and -q are the same rotation
	d := q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
	return 1-math32.Abs(d) <= eps
}
