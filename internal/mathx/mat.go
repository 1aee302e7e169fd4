package mathx

// Matrices are column-major: Cols[c] is column c.

type Mat2 struct{ Cols [2]Vec2 }

type Mat3 struct{ Cols [3]Vec3 }

type Mat4 struct{ Cols [4]Vec4 }

func Mat4Identity() Mat4 {
	return Mat4{Cols: [4]Vec4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}}
}

// Mat3FromQuat returns the rotation matrix of a unit quaternion.
func Mat3FromQuat(q Quat) Mat3 {
	x2, y2, z2 := q.X+q.X, q.Y+q.Y, q.Z+q.Z
	xx, yy, zz := q.X*x2, q.Y*y2, q.Z*z2
	xy, xz, yz := q.X*y2, q.X*z2, q.Y*z2
	wx, wy, wz := q.W*x2, q.W*y2, q.W*z2
	return Mat3{Cols: [3]Vec3{
		{1 - (yy + zz), xy + wz, xz - wy},
		{xy - wz, 1 - (xx + zz), yz + wx},
		{xz + wy, yz - wx, 1 - (xx + yy)},
	}}
}

// TRS builds a model matrix from translation, rotation and uniform scale.
func TRS(pos Vec3, rot Quat, scale float32) Mat4 {
	r := Mat3FromQuat(rot)
	m := Mat4{}
	for i, c := range r.Cols {
		c = c.Scale(scale)
		m.Cols[i] = Vec4{c.X, c.Y, c.Z, 0}
	}
	m.Cols[3] = Vec4{pos.X, pos.Y, pos.Z, 1}
	return m
}

func (m Mat4) MulPoint(p Vec3) Vec3 {
	c := m.Cols
	return Vec3{
		c[0].X*p.X + c[1].X*p.Y + c[2].X*p.Z + c[3].X,
		c[0].Y*p.X + c[1].Y*p.Y + c[2].Y*p.Z + c[3].Y,
		c[0].Z*p.X + c[1].Z*p.Y + c[2].Z*p.Z + c[3].Z,
	}
}
