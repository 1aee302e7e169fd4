// Package binio is the engine's deterministic binary stream protocol. All
// numbers are little-endian, "uint" is a u32, strings are length-prefixed
// unless stated otherwise.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrShortRead   = errors.New("short read")
	ErrInvalidBool = errors.New("invalid bool")
)

func write(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return fmt.Errorf("write %d bytes: %w", len(b), err)
	}
	if n != len(b) {
		return fmt.Errorf("write %d bytes: wrote %d: %w", len(b), n, io.ErrShortWrite)
	}
	return nil
}

func read(r io.Reader, b []byte) error {
	if n, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("read %d bytes: got %d: %w", len(b), n, ErrShortRead)
		}
		return fmt.Errorf("read %d bytes: %w", len(b), err)
	}
	return nil
}

// WriteBytes writes b verbatim.
func WriteBytes(w io.Writer, b []byte) error {
	return write(w, b)
}

// ReadBytes reads exactly n bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := read(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func WriteU8(w io.Writer, v uint8) error {
	return write(w, []byte{v})
}

func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if err := read(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return write(w, b[:])
}

func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if err := read(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func WriteU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return write(w, b[:])
}

func ReadU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := read(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return write(w, b[:])
}

func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if err := read(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func WriteI32(w io.Writer, v int32) error {
	return WriteU32(w, uint32(v))
}

func ReadI32(r io.Reader) (int32, error) {
	v, err := ReadU32(r)
	return int32(v), err
}

func WriteF32(w io.Writer, v float32) error {
	return WriteU32(w, math.Float32bits(v))
}

func ReadF32(r io.Reader) (float32, error) {
	v, err := ReadU32(r)
	return math.Float32frombits(v), err
}

func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteU8(w, 1)
	}
	return WriteU8(w, 0)
}

func ReadBool(r io.Reader) (bool, error) {
	v, err := ReadU8(r)
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02X", ErrInvalidBool, v)
	}
}

// WriteUint writes a non-negative int as u32.
func WriteUint(w io.Writer, v int) error {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return fmt.Errorf("write uint: %d does not fit into u32", v)
	}
	return WriteU32(w, uint32(v))
}

func ReadUint(r io.Reader) (int, error) {
	v, err := ReadU32(r)
	return int(v), err
}

// WriteString writes a u32 byte length followed by the UTF-8 bytes.
func WriteString(w io.Writer, s string) error {
	if err := WriteUint(w, len(s)); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return write(w, []byte(s))
}

func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint(r)
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	b, err := ReadBytes(r, n)
	if err != nil {
		return "", fmt.Errorf("read string: %w", err)
	}
	return string(b), nil
}

// Pos returns the current offset of s.
func Pos(s io.Seeker) (uint64, error) {
	pos, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("get stream position: %w", err)
	}
	return uint64(pos), nil
}

// SeekTo moves s to the absolute offset addr.
func SeekTo(s io.Seeker, addr uint64) error {
	if addr > math.MaxInt64 {
		return fmt.Errorf("seek to %d: out of range", addr)
	}
	if _, err := s.Seek(int64(addr), io.SeekStart); err != nil {
		return fmt.Errorf("seek to %d: %w", addr, err)
	}
	return nil
}

// Size returns the length of s and restores its position.
func Size(s io.Seeker) (uint64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("get stream size: %w", err)
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("get stream size: %w", err)
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, fmt.Errorf("get stream size: %w", err)
	}
	return uint64(end), nil
}
