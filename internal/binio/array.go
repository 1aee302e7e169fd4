package binio

import (
	"bytes"
	"fmt"
	"io"
)

// maxArrayBytes caps how much a single array read may allocate.
const maxArrayBytes = 1 << 30

// WriteArray writes a u32 count followed by each element.
func WriteArray[T any](w io.Writer, items []T, encode func(io.Writer, T) error) error {
	if err := WriteUint(w, len(items)); err != nil {
		return fmt.Errorf("write array count: %w", err)
	}
	for i, item := range items {
		if err := encode(w, item); err != nil {
			return fmt.Errorf("write array element %d: %w", i, err)
		}
	}
	return nil
}

// ReadArray reads a u32 count followed by count elements of exactly elemSize
// bytes each. An element decoder that consumes more or less than elemSize is
// an error.
func ReadArray[T any](r io.Reader, elemSize int, decode func(io.Reader) (T, error)) ([]T, error) {
	count, err := ReadUint(r)
	if err != nil {
		return nil, fmt.Errorf("read array count: %w", err)
	}
	if elemSize <= 0 || count*elemSize > maxArrayBytes {
		return nil, fmt.Errorf("read array: %d elements of %d bytes is out of range", count, elemSize)
	}
	raw, err := ReadBytes(r, count*elemSize)
	if err != nil {
		return nil, fmt.Errorf("read array data: %w", err)
	}

	items := make([]T, count)
	for i := range items {
		chunk := bytes.NewReader(raw[i*elemSize : (i+1)*elemSize])
		item, err := decode(chunk)
		if err != nil {
			return nil, fmt.Errorf("read array element %d: %w", i, err)
		}
		if chunk.Len() != 0 {
			return nil, fmt.Errorf("read array element %d: %d bytes left over", i, chunk.Len())
		}
		items[i] = item
	}
	return items, nil
}
