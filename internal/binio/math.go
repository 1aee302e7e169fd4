package binio

import (
	"fmt"
	"io"

	"github.com/risengine/ris/internal/mathx"
)

func writeF32s(w io.Writer, values ...float32) error {
	for _, v := range values {
		if err := WriteF32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readF32s(r io.Reader, dst ...*float32) error {
	for _, d := range dst {
		v, err := ReadF32(r)
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

func WriteVec2(w io.Writer, v mathx.Vec2) error { return writeF32s(w, v.X, v.Y) }
func WriteVec3(w io.Writer, v mathx.Vec3) error { return writeF32s(w, v.X, v.Y, v.Z) }
func WriteVec4(w io.Writer, v mathx.Vec4) error { return writeF32s(w, v.X, v.Y, v.Z, v.W) }
func WriteQuat(w io.Writer, q mathx.Quat) error { return writeF32s(w, q.X, q.Y, q.Z, q.W) }

func ReadVec2(r io.Reader) (v mathx.Vec2, err error) {
	err = readF32s(r, &v.X, &v.Y)
	return v, err
}

func ReadVec3(r io.Reader) (v mathx.Vec3, err error) {
	err = readF32s(r, &v.X, &v.Y, &v.Z)
	return v, err
}

func ReadVec4(r io.Reader) (v mathx.Vec4, err error) {
	err = readF32s(r, &v.X, &v.Y, &v.Z, &v.W)
	return v, err
}

func ReadQuat(r io.Reader) (q mathx.Quat, err error) {
	err = readF32s(r, &q.X, &q.Y, &q.Z, &q.W)
	return q, err
}

func WriteMat2(w io.Writer, m mathx.Mat2) error {
	for _, c := range m.Cols {
		if err := WriteVec2(w, c); err != nil {
			return err
		}
	}
	return nil
}

func ReadMat2(r io.Reader) (m mathx.Mat2, err error) {
	for i := range m.Cols {
		if m.Cols[i], err = ReadVec2(r); err != nil {
			return m, err
		}
	}
	return m, nil
}

func WriteMat3(w io.Writer, m mathx.Mat3) error {
	for _, c := range m.Cols {
		if err := WriteVec3(w, c); err != nil {
			return err
		}
	}
	return nil
}

func ReadMat3(r io.Reader) (m mathx.Mat3, err error) {
	for i := range m.Cols {
		if m.Cols[i], err = ReadVec3(r); err != nil {
			return m, err
		}
	}
	return m, nil
}

func WriteMat4(w io.Writer, m mathx.Mat4) error {
	for _, c := range m.Cols {
		if err := WriteVec4(w, c); err != nil {
			return err
		}
	}
	return nil
}

func ReadMat4(r io.Reader) (m mathx.Mat4, err error) {
	for i := range m.Cols {
		if m.Cols[i], err = ReadVec4(r); err != nil {
			return m, err
		}
	}
	return m, nil
}

// bvecs pack into the low bits of a single byte, x first.

func packBools(values ...bool) byte {
	var b byte
	for i, v := range values {
		if v {
			b |= 1 << i
		}
	}
	return b
}

func unpackBools(r io.Reader, n int) ([]bool, error) {
	b, err := ReadU8(r)
	if err != nil {
		return nil, err
	}
	if b>>n != 0 {
		return nil, fmt.Errorf("read bvec%d: unexpected high bits in 0x%02X", n, b)
	}
	values := make([]bool, n)
	for i := range values {
		values[i] = b&(1<<i) != 0
	}
	return values, nil
}

func WriteBVec2(w io.Writer, v mathx.BVec2) error { return WriteU8(w, packBools(v.X, v.Y)) }
func WriteBVec3(w io.Writer, v mathx.BVec3) error { return WriteU8(w, packBools(v.X, v.Y, v.Z)) }
func WriteBVec4(w io.Writer, v mathx.BVec4) error {
	return WriteU8(w, packBools(v.X, v.Y, v.Z, v.W))
}

func ReadBVec2(r io.Reader) (mathx.BVec2, error) {
	b, err := unpackBools(r, 2)
	if err != nil {
		return mathx.BVec2{}, err
	}
	return mathx.BVec2{X: b[0], Y: b[1]}, nil
}

func ReadBVec3(r io.Reader) (mathx.BVec3, error) {
	b, err := unpackBools(r, 3)
	if err != nil {
		return mathx.BVec3{}, err
	}
	return mathx.BVec3{X: b[0], Y: b[1], Z: b[2]}, nil
}

func ReadBVec4(r io.Reader) (mathx.BVec4, error) {
	b, err := unpackBools(r, 4)
	if err != nil {
		return mathx.BVec4{}, err
	}
	return mathx.BVec4{X: b[0], Y: b[1], Z: b[2], W: b[3]}, nil
}
