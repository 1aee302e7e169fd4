package binio

import (
	"errors"
	"fmt"
	"io"
)

// Buffer is an in-memory io.ReadWriteSeeker. Writes overwrite at the current
// offset and grow the buffer as needed, which is what placeholder patching
// relies on.
type Buffer struct {
	buf []byte
	off int
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{buf: data}
}

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.off + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, max(2*cap(b.buf), end, 64))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.off:], p)
	b.off = end
	return len(p), nil
}

func (b *Buffer) Read(p []byte) (int, error) {
	if b.off >= len(b.buf) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.off)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, errors.New("binio: invalid whence")
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("binio: negative position %d", pos)
	}
	b.off = int(pos)
	return pos, nil
}

// Bytes returns the whole buffer regardless of the current offset.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

func (b *Buffer) Len() int {
	return len(b.buf)
}
