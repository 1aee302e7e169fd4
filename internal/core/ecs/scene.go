// Package ecs implements the scene: fixed-capacity chunks of game objects and
// components addressed by generational handles, with runtime borrow checking
// on every slot.
package ecs

import (
	"fmt"
	"reflect"

	"github.com/risengine/ris/internal/ptr"
	"go.uber.org/zap"
)

type slot[T any] struct {
	handle Handle
	alive  bool
	value  T
}

func (s *slot[T]) matches(h Handle) bool {
	return s.alive && s.handle == h
}

type cell[T any] = ptr.ArefCell[slot[T]]

type chunk struct {
	kind        ChunkKind
	index       uint16
	gameObjects []*cell[*gameObject]
	components  map[reflect.Type][]*cell[Component]
}

func newChunk(kind ChunkKind, index int, capacity int, registry *Registry) *chunk {
	c := &chunk{
		kind:        kind,
		index:       uint16(index),
		gameObjects: newCells[*gameObject](kind, index, capacity),
		components:  make(map[reflect.Type][]*cell[Component], len(registry.components)),
	}
	for _, f := range registry.components {
		c.components[f.typ] = newCells[Component](kind, index, capacity)
	}
	return c
}

func newCells[T any](kind ChunkKind, chunk, capacity int) []*cell[T] {
	cells := make([]*cell[T], capacity)
	for i := range cells {
		cells[i] = ptr.NewArefCell(slot[T]{handle: Handle{Kind: kind, Chunk: uint16(chunk), Index: uint32(i)}})
	}
	return cells
}

// alloc claims the first dead slot of cells, bumps its generation and stores
// value. The returned handle addresses the claimed slot. Borrowed slots are in
// use and skipped, so allocating while a sibling is borrowed is fine.
func alloc[T any](cells []*cell[T], value T) (Handle, error) {
	for _, c := range cells {
		b, ok := c.TryBorrowMut()
		if !ok {
			continue
		}
		s := b.Get()
		if s.alive {
			b.Release()
			continue
		}
		s.handle.Generation++
		s.alive = true
		s.value = value
		h := s.handle
		b.Release()
		return h, nil
	}
	return Handle{}, fmt.Errorf("%w: all %d slots are in use", ErrOutOfCapacity, len(cells))
}

// take marks the slot of h dead and hands out its value.
func take[T any](cells []*cell[T], h Handle) (T, error) {
	var zero T
	c, err := lookup(cells, h)
	if err != nil {
		return zero, err
	}
	b := c.BorrowMut()
	defer b.Release()
	s := b.Get()
	if !s.matches(h) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	v := s.value
	s.alive = false
	s.value = zero
	return v, nil
}

func lookup[T any](cells []*cell[T], h Handle) (*cell[T], error) {
	if int(h.Index) >= len(cells) {
		return nil, fmt.Errorf("%w: %s is out of range", ErrInvalidHandle, h)
	}
	return cells[h.Index], nil
}

func with[T any](cells []*cell[T], h Handle, fn func(T) error) error {
	c, err := lookup(cells, h)
	if err != nil {
		return err
	}
	b := c.Borrow()
	defer b.Release()
	s := b.Get()
	if !s.matches(h) {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return fn(s.value)
}

func withMut[T any](cells []*cell[T], h Handle, fn func(T) error) error {
	c, err := lookup(cells, h)
	if err != nil {
		return err
	}
	b := c.BorrowMut()
	defer b.Release()
	s := b.Get()
	if !s.matches(h) {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return fn(s.value)
}

func alive[T any](cells []*cell[T], h Handle) bool {
	c, err := lookup(cells, h)
	if err != nil {
		return false
	}
	b := c.Borrow()
	defer b.Release()
	return b.Get().matches(h)
}

type SceneCreateInfo struct {
	DynamicCapacity int
	StaticChunks    int
	StaticCapacity  int
}

// Scene owns one dynamic chunk and a fixed number of static chunks.
type Scene struct {
	registry *Registry
	log      *zap.Logger
	dynamic  *chunk
	static   []*chunk
	freed    bool
}

func NewScene(info SceneCreateInfo, registry *Registry, log *zap.Logger) (*Scene, error) {
	if info.DynamicCapacity <= 0 {
		return nil, fmt.Errorf("%w: dynamic capacity must be positive, got %d", ErrInvalidOperation, info.DynamicCapacity)
	}
	if info.StaticChunks < 0 || info.StaticChunks > 1<<16 || info.StaticChunks > 0 && info.StaticCapacity <= 0 {
		return nil, fmt.Errorf("%w: invalid static chunk layout %d x %d", ErrInvalidOperation, info.StaticChunks, info.StaticCapacity)
	}
	s := &Scene{
		registry: registry,
		log:      log,
		dynamic:  newChunk(ChunkDynamic, 0, info.DynamicCapacity, registry),
		static:   make([]*chunk, info.StaticChunks),
	}
	for i := range s.static {
		s.static[i] = newChunk(ChunkStatic, i, info.StaticCapacity, registry)
	}
	log.Debug("scene created",
		zap.Int("dynamic_capacity", info.DynamicCapacity),
		zap.Int("static_chunks", info.StaticChunks),
		zap.Int("static_capacity", info.StaticCapacity),
		zap.Int("component_types", len(registry.components)))
	return s, nil
}

func (s *Scene) Registry() *Registry { return s.registry }
func (s *Scene) StaticChunks() int   { return len(s.static) }

func (s *Scene) chunks() []*chunk {
	return append([]*chunk{s.dynamic}, s.static...)
}

func (s *Scene) chunk(h Handle) (*chunk, error) {
	switch h.Kind {
	case ChunkDynamic:
		if h.Chunk == 0 {
			return s.dynamic, nil
		}
	case ChunkStatic:
		if int(h.Chunk) < len(s.static) {
			return s.static[h.Chunk], nil
		}
	}
	return nil, fmt.Errorf("%w: %s addresses no chunk", ErrInvalidHandle, h)
}

func (s *Scene) componentCells(h Handle, typ reflect.Type) ([]*cell[Component], error) {
	c, err := s.chunk(h)
	if err != nil {
		return nil, err
	}
	cells, ok := c.components[typ]
	if !ok {
		return nil, fmt.Errorf("%w: component type %v is not registered", ErrInvalidOperation, typ)
	}
	return cells, nil
}

// Free destroys every game object, so scripts receive End, and retires all
// slots. Any later access through a handle panics in checked builds. Free
// is idempotent.
func (s *Scene) Free() {
	if s.freed {
		return
	}
	s.freed = true
	for _, c := range s.chunks() {
		for _, root := range s.roots(c) {
			root.Destroy(s)
		}
		for _, gc := range c.gameObjects {
			gc.Retire()
		}
		for _, cells := range c.components {
			for _, cc := range cells {
				cc.Retire()
			}
		}
	}
	s.log.Debug("scene freed")
}

// roots lists the live game objects of c without a parent, in slot order.
func (s *Scene) roots(c *chunk) []GameObjectHandle {
	var roots []GameObjectHandle
	for _, gc := range c.gameObjects {
		b := gc.Borrow()
		sl := b.Get()
		if sl.alive && !alive(c.gameObjects, sl.value.parent.Handle) {
			roots = append(roots, GameObjectHandle{sl.handle})
		}
		b.Release()
	}
	return roots
}
