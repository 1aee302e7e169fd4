package ecs

import "fmt"

// Parent returns the parent of h, or the zero handle for a root. A parent
// that has been destroyed is cleared on the way.
func (h GameObjectHandle) Parent(s *Scene) (GameObjectHandle, error) {
	var parent GameObjectHandle
	if err := h.with(s, func(g *gameObject) error {
		parent = g.parent
		return nil
	}); err != nil {
		return GameObjectHandle{}, err
	}
	if parent.IsZero() || parent.IsAlive(s) {
		return parent, nil
	}
	err := h.withMut(s, func(g *gameObject) error {
		g.parent = GameObjectHandle{}
		return nil
	})
	return GameObjectHandle{}, err
}

// Children returns the live children of h in order. Destroyed children are
// dropped from the list on the way.
func (h GameObjectHandle) Children(s *Scene) ([]GameObjectHandle, error) {
	var children []GameObjectHandle
	if err := h.with(s, func(g *gameObject) error {
		children = append(children, g.children...)
		return nil
	}); err != nil {
		return nil, err
	}
	live := children[:0:0]
	for _, c := range children {
		if c.IsAlive(s) {
			live = append(live, c)
		}
	}
	if len(live) == len(children) {
		return children, nil
	}
	err := h.withMut(s, func(g *gameObject) error {
		g.children = append(g.children[:0], live...)
		return nil
	})
	return live, err
}

func (h GameObjectHandle) ChildLen(s *Scene) (int, error) {
	children, err := h.Children(s)
	return len(children), err
}

func (h GameObjectHandle) Child(s *Scene, index int) (GameObjectHandle, error) {
	children, err := h.Children(s)
	if err != nil {
		return GameObjectHandle{}, err
	}
	if index < 0 || index >= len(children) {
		return GameObjectHandle{}, fmt.Errorf("%w: child %d of %d", ErrInvalidOperation, index, len(children))
	}
	return children[index], nil
}

// SetParent moves h below parent at position index, clamped to the number of
// children; Append adds it last. The zero parent makes h a root. With
// keepWorldTransform the local transform is recomputed so that h does not
// move in world space.
func (h GameObjectHandle) SetParent(s *Scene, parent GameObjectHandle, index int, keepWorldTransform bool) error {
	if !h.IsAlive(s) {
		return fmt.Errorf("set parent: %w: %s", ErrInvalidHandle, h.Handle)
	}
	if !parent.IsZero() {
		if !parent.IsAlive(s) {
			return fmt.Errorf("set parent: %w: parent %s", ErrInvalidHandle, parent.Handle)
		}
		if !h.sameChunk(parent.Handle) {
			return fmt.Errorf("set parent: %w: %s and %s live in different chunks", ErrInvalidOperation, h.Handle, parent.Handle)
		}
		for cur := parent; !cur.IsZero(); {
			if cur == h {
				return fmt.Errorf("set parent: %w: %s is an ancestor of %s", ErrInvalidOperation, h.Handle, parent.Handle)
			}
			next, err := cur.Parent(s)
			if err != nil {
				return fmt.Errorf("set parent: %w", err)
			}
			cur = next
		}
	}

	var world Transform
	if keepWorldTransform {
		var err error
		if world, err = h.WorldTransform(s); err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
	}

	old, err := h.Parent(s)
	if err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	if !old.IsZero() {
		if err := old.withMut(s, func(p *gameObject) error {
			p.children = removeHandle(p.children, h)
			return nil
		}); err != nil {
			return fmt.Errorf("set parent: detach from %s: %w", old.Handle, err)
		}
	}
	if !parent.IsZero() {
		if _, err := parent.Children(s); err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
		if err := parent.withMut(s, func(p *gameObject) error {
			i := min(max(index, 0), len(p.children))
			p.children = append(p.children, GameObjectHandle{})
			copy(p.children[i+1:], p.children[i:])
			p.children[i] = h
			return nil
		}); err != nil {
			return fmt.Errorf("set parent: attach to %s: %w", parent.Handle, err)
		}
	}
	if err := h.withMut(s, func(g *gameObject) error {
		g.parent = parent
		return nil
	}); err != nil {
		return fmt.Errorf("set parent: %w", err)
	}

	if keepWorldTransform {
		pw, err := h.parentWorld(s)
		if err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
		if err := h.setLocalTransform(s, pw.Relative(world)); err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
	}
	return nil
}

// SiblingIndex is the position of h in its parent's children, or 0 for a
// root.
func (h GameObjectHandle) SiblingIndex(s *Scene) (int, error) {
	parent, err := h.Parent(s)
	if err != nil || parent.IsZero() {
		return 0, err
	}
	children, err := parent.Children(s)
	if err != nil {
		return 0, err
	}
	for i, c := range children {
		if c == h {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s missing from its parent's children", ErrInvalidOperation, h.Handle)
}

// GetFrom selects which game objects a component query visits.
type GetFrom uint8

const (
	GetFromThis GetFrom = 1 << iota
	GetFromChildren
	GetFromParents

	GetFromThisAndChildren = GetFromThis | GetFromChildren
	GetFromThisAndParents  = GetFromThis | GetFromParents
	// GetFromAll visits every game object of the scene.
	GetFromAll = GetFromThis | GetFromChildren | GetFromParents
)

// walk visits the game objects selected by from, in hierarchy order: h,
// then its descendants depth first, then its ancestors nearest first.
func (h GameObjectHandle) walk(s *Scene, from GetFrom, visit func(GameObjectHandle) error) error {
	if from == GetFromAll {
		for _, c := range s.chunks() {
			for _, root := range s.roots(c) {
				if err := root.walk(s, GetFromThisAndChildren, visit); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if !h.IsAlive(s) {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h.Handle)
	}
	if from&GetFromThis != 0 {
		if err := visit(h); err != nil {
			return err
		}
	}
	if from&GetFromChildren != 0 {
		children, err := h.Children(s)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := c.walk(s, GetFromThisAndChildren, visit); err != nil {
				return err
			}
		}
	}
	if from&GetFromParents != 0 {
		for cur := h; ; {
			parent, err := cur.Parent(s)
			if err != nil {
				return err
			}
			if parent.IsZero() {
				break
			}
			if err := visit(parent); err != nil {
				return err
			}
			cur = parent
		}
	}
	return nil
}
