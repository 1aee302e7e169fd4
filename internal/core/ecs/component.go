package ecs

import (
	"fmt"
	"reflect"
)

// Component is data attached to a game object. Each concrete component type
// lives in its own fixed-capacity array per chunk.
type Component interface {
	// Create is called once the component is attached to owner.
	Create(owner GameObjectHandle)
	// Destroy is called after the component was detached; the slot is
	// already free at that point.
	Destroy(s *Scene)
	GameObject() GameObjectHandle
	Serialize(w *SceneWriter) error
	Deserialize(r *SceneReader) error
}

// BaseComponent implements the bookkeeping part of Component. Embed it and
// override what the component needs.
type BaseComponent struct {
	owner GameObjectHandle
}

func (c *BaseComponent) Create(owner GameObjectHandle)  { c.owner = owner }
func (c *BaseComponent) Destroy(*Scene)                 {}
func (c *BaseComponent) GameObject() GameObjectHandle   { return c.owner }
func (c *BaseComponent) Serialize(*SceneWriter) error   { return nil }
func (c *BaseComponent) Deserialize(*SceneReader) error { return nil }

// AddComponent creates a T in owner's chunk and attaches it to owner.
func AddComponent[T Component](s *Scene, owner GameObjectHandle) (ComponentHandle[T], error) {
	dyn, err := s.addComponent(owner, reflect.TypeFor[T]())
	if err != nil {
		return ComponentHandle[T]{}, err
	}
	return ComponentHandle[T]{dyn.Handle}, nil
}

func (s *Scene) addComponent(owner GameObjectHandle, typ reflect.Type) (DynComponentHandle, error) {
	index, ok := s.registry.componentIndex(typ)
	if !ok {
		return DynComponentHandle{}, fmt.Errorf("add component: %w: %v is not registered", ErrInvalidOperation, typ)
	}
	if !owner.IsAlive(s) {
		return DynComponentHandle{}, fmt.Errorf("add component: %w: owner %s", ErrInvalidHandle, owner.Handle)
	}
	cells, err := s.componentCells(owner.Handle, typ)
	if err != nil {
		return DynComponentHandle{}, fmt.Errorf("add component: %w", err)
	}

	value := s.registry.components[index].make()
	value.Create(owner)
	h, err := alloc(cells, value)
	if err != nil {
		return DynComponentHandle{}, fmt.Errorf("add component %v: %w", typ, err)
	}
	dyn := DynComponentHandle{Handle: h, Type: typ}
	if err := owner.withMut(s, func(g *gameObject) error {
		g.components = append(g.components, dyn)
		return nil
	}); err != nil {
		_, _ = take(cells, h)
		return DynComponentHandle{}, fmt.Errorf("add component: %w", err)
	}
	return dyn, nil
}

func (h DynComponentHandle) IsAlive(s *Scene) bool {
	cells, err := s.componentCells(h.Handle, h.Type)
	if err != nil {
		return false
	}
	return alive(cells, h.Handle)
}

// With borrows the component shared for the duration of fn.
func (h DynComponentHandle) With(s *Scene, fn func(Component) error) error {
	cells, err := s.componentCells(h.Handle, h.Type)
	if err != nil {
		return err
	}
	return with(cells, h.Handle, fn)
}

// WithMut borrows the component exclusively for the duration of fn.
func (h DynComponentHandle) WithMut(s *Scene, fn func(Component) error) error {
	cells, err := s.componentCells(h.Handle, h.Type)
	if err != nil {
		return err
	}
	return withMut(cells, h.Handle, fn)
}

func (h DynComponentHandle) GameObject(s *Scene) (GameObjectHandle, error) {
	var owner GameObjectHandle
	err := h.With(s, func(c Component) error {
		owner = c.GameObject()
		return nil
	})
	return owner, err
}

// Destroy detaches the component from its game object and frees its slot.
func (h DynComponentHandle) Destroy(s *Scene) error {
	return h.destroy(s, true)
}

func (h DynComponentHandle) destroy(s *Scene, detach bool) error {
	cells, err := s.componentCells(h.Handle, h.Type)
	if err != nil {
		return err
	}
	c, err := take(cells, h.Handle)
	if err != nil {
		return err
	}
	if owner := c.GameObject(); detach && !owner.IsZero() {
		_ = owner.withMut(s, func(g *gameObject) error {
			g.components = removeHandle(g.components, h)
			return nil
		})
	}
	c.Destroy(s)
	return nil
}

func (h ComponentHandle[T]) IsAlive(s *Scene) bool {
	return h.Dyn().IsAlive(s)
}

// Get returns the component value. T is usually a pointer type, so the
// returned value aliases the stored component; prefer With and WithMut,
// which hold a borrow while the value is in use.
func (h ComponentHandle[T]) Get(s *Scene) (T, error) {
	var v T
	err := h.With(s, func(c T) error {
		v = c
		return nil
	})
	return v, err
}

func (h ComponentHandle[T]) With(s *Scene, fn func(T) error) error {
	return h.Dyn().With(s, func(c Component) error {
		v, ok := c.(T)
		if !ok {
			return fmt.Errorf("%w: %s holds %T", ErrInvalidCast, h.Handle, c)
		}
		return fn(v)
	})
}

func (h ComponentHandle[T]) WithMut(s *Scene, fn func(T) error) error {
	return h.Dyn().WithMut(s, func(c Component) error {
		v, ok := c.(T)
		if !ok {
			return fmt.Errorf("%w: %s holds %T", ErrInvalidCast, h.Handle, c)
		}
		return fn(v)
	})
}

func (h ComponentHandle[T]) GameObject(s *Scene) (GameObjectHandle, error) {
	return h.Dyn().GameObject(s)
}

func (h ComponentHandle[T]) Destroy(s *Scene) error {
	return h.Dyn().Destroy(s)
}

// GetComponents collects every T on the game objects selected by from, in
// hierarchy order.
func GetComponents[T Component](s *Scene, h GameObjectHandle, from GetFrom) ([]ComponentHandle[T], error) {
	typ := reflect.TypeFor[T]()
	var out []ComponentHandle[T]
	err := h.walk(s, from, func(g GameObjectHandle) error {
		components, err := g.Components(s)
		if err != nil {
			return err
		}
		for _, c := range components {
			if c.Type == typ {
				out = append(out, ComponentHandle[T]{c.Handle})
			}
		}
		return nil
	})
	return out, err
}

// GetComponent returns the first T selected by from.
func GetComponent[T Component](s *Scene, h GameObjectHandle, from GetFrom) (ComponentHandle[T], bool, error) {
	list, err := GetComponents[T](s, h, from)
	if err != nil || len(list) == 0 {
		return ComponentHandle[T]{}, false, err
	}
	return list[0], true, nil
}
