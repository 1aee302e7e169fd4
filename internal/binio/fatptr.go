package binio

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidFatPtr = errors.New("invalid fat pointer")

// FatPtr addresses an unsized region inside a stream.
type FatPtr struct {
	Addr uint64
	Len  uint64
}

// BeginEnd builds the pointer spanning [begin, end).
func BeginEnd(begin, end uint64) (FatPtr, error) {
	if begin > end {
		return FatPtr{}, fmt.Errorf("%w: begin %d is after end %d", ErrInvalidFatPtr, begin, end)
	}
	return FatPtr{Addr: begin, Len: end - begin}, nil
}

func (p FatPtr) End() uint64 {
	return p.Addr + p.Len
}

func (p FatPtr) IsNull() bool {
	return p.Len == 0
}

func (p FatPtr) String() string {
	return fmt.Sprintf("FatPtr{addr: %d, len: %d}", p.Addr, p.Len)
}

func WriteFatPtr(w io.Writer, p FatPtr) error {
	if err := WriteU64(w, p.Addr); err != nil {
		return fmt.Errorf("write fat ptr addr: %w", err)
	}
	if err := WriteU64(w, p.Len); err != nil {
		return fmt.Errorf("write fat ptr len: %w", err)
	}
	return nil
}

func ReadFatPtr(r io.Reader) (FatPtr, error) {
	addr, err := ReadU64(r)
	if err != nil {
		return FatPtr{}, fmt.Errorf("read fat ptr addr: %w", err)
	}
	n, err := ReadU64(r)
	if err != nil {
		return FatPtr{}, fmt.Errorf("read fat ptr len: %w", err)
	}
	return FatPtr{Addr: addr, Len: n}, nil
}

// WriteUnsized writes b at the current position and returns where it landed.
func WriteUnsized(w io.WriteSeeker, b []byte) (FatPtr, error) {
	begin, err := Pos(w)
	if err != nil {
		return FatPtr{}, err
	}
	if err := write(w, b); err != nil {
		return FatPtr{}, err
	}
	return FatPtr{Addr: begin, Len: uint64(len(b))}, nil
}

// ReadUnsized seeks to p.Addr and reads p.Len bytes. A region reaching past
// the end of r is rejected before anything is allocated.
func ReadUnsized(r io.ReadSeeker, p FatPtr) ([]byte, error) {
	size, err := Size(r)
	if err != nil {
		return nil, err
	}
	if p.Addr > size || p.Len > size-p.Addr {
		return nil, fmt.Errorf("%w: %s exceeds the stream of %d bytes", ErrInvalidFatPtr, p, size)
	}
	if err := SeekTo(r, p.Addr); err != nil {
		return nil, err
	}
	b, err := ReadBytes(r, int(p.Len))
	if err != nil {
		return nil, fmt.Errorf("read unsized %s: %w", p, err)
	}
	return b, nil
}

// WriteStrings writes the strings nul-separated without a trailing nul. An
// empty slice produces a zero-length region.
func WriteStrings(w io.WriteSeeker, values []string) (FatPtr, error) {
	return WriteUnsized(w, []byte(strings.Join(values, "\x00")))
}

// ReadStrings is the inverse of WriteStrings. A zero-length region yields no strings.
func ReadStrings(r io.ReadSeeker, p FatPtr) ([]string, error) {
	b, err := ReadUnsized(r, p)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return []string{}, nil
	}
	return strings.Split(string(b), "\x00"), nil
}
