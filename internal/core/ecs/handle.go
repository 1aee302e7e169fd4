package ecs

import (
	"fmt"
	"math"
	"reflect"
)

// Append as a child index inserts at the end of the children list.
const Append = math.MaxInt

type ChunkKind uint8

const (
	ChunkDynamic ChunkKind = iota
	ChunkStatic
)

func (k ChunkKind) String() string {
	if k == ChunkDynamic {
		return "dynamic"
	}
	return "static"
}

// Handle addresses one slot of a scene arena. The generation of a slot is
// bumped every time it is allocated and starts at 1, so the zero Handle
// never resolves and doubles as "none".
type Handle struct {
	Kind       ChunkKind
	Chunk      uint16
	Index      uint32
	Generation uint64
}

func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	if h.IsZero() {
		return "Handle(none)"
	}
	return fmt.Sprintf("Handle(%s:%d:%d gen %d)", h.Kind, h.Chunk, h.Index, h.Generation)
}

func (h Handle) sameChunk(other Handle) bool {
	return h.Kind == other.Kind && h.Chunk == other.Chunk
}

// GameObjectHandle is a Handle into a chunk's game object array.
type GameObjectHandle struct {
	Handle
}

// DynComponentHandle is a component handle whose concrete type is only
// known at runtime.
type DynComponentHandle struct {
	Handle
	Type reflect.Type
}

// ComponentHandle is a typed component handle.
type ComponentHandle[T Component] struct {
	Handle
}

func (h ComponentHandle[T]) Dyn() DynComponentHandle {
	return DynComponentHandle{Handle: h.Handle, Type: reflect.TypeFor[T]()}
}

// ComponentHandleFrom narrows dyn to T.
func ComponentHandleFrom[T Component](dyn DynComponentHandle) (ComponentHandle[T], error) {
	if want := reflect.TypeFor[T](); dyn.Type != want {
		return ComponentHandle[T]{}, fmt.Errorf("%w: %s is a %v, not a %v", ErrInvalidCast, dyn.Handle, dyn.Type, want)
	}
	return ComponentHandle[T]{Handle: dyn.Handle}, nil
}
