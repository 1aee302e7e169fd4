package ecs

import (
	"fmt"

	"github.com/risengine/ris/internal/mathx"
	"go.uber.org/zap"
)

type gameObject struct {
	name       string
	active     bool
	position   mathx.Vec3
	rotation   mathx.Quat
	scale      float32
	parent     GameObjectHandle
	children   []GameObjectHandle
	components []DynComponentHandle
}

func newGameObject() *gameObject {
	return &gameObject{
		name:     "game object",
		active:   true,
		rotation: mathx.QuatIdentity(),
		scale:    1,
	}
}

// NewDynamic creates a game object in the scene's dynamic chunk.
func NewDynamic(s *Scene) (GameObjectHandle, error) {
	h, err := alloc(s.dynamic.gameObjects, newGameObject())
	if err != nil {
		return GameObjectHandle{}, fmt.Errorf("new dynamic game object: %w", err)
	}
	return GameObjectHandle{h}, nil
}

// NewStatic creates a game object in static chunk index.
func NewStatic(s *Scene, index int) (GameObjectHandle, error) {
	if index < 0 || index >= len(s.static) {
		return GameObjectHandle{}, fmt.Errorf("%w: static chunk %d does not exist", ErrInvalidOperation, index)
	}
	h, err := alloc(s.static[index].gameObjects, newGameObject())
	if err != nil {
		return GameObjectHandle{}, fmt.Errorf("new static game object in chunk %d: %w", index, err)
	}
	return GameObjectHandle{h}, nil
}

func (h GameObjectHandle) cells(s *Scene) ([]*cell[*gameObject], error) {
	c, err := s.chunk(h.Handle)
	if err != nil {
		return nil, err
	}
	return c.gameObjects, nil
}

func (h GameObjectHandle) with(s *Scene, fn func(*gameObject) error) error {
	cells, err := h.cells(s)
	if err != nil {
		return err
	}
	return with(cells, h.Handle, fn)
}

func (h GameObjectHandle) withMut(s *Scene, fn func(*gameObject) error) error {
	cells, err := h.cells(s)
	if err != nil {
		return err
	}
	return withMut(cells, h.Handle, fn)
}

func (h GameObjectHandle) IsAlive(s *Scene) bool {
	cells, err := h.cells(s)
	if err != nil {
		return false
	}
	return alive(cells, h.Handle)
}

// Destroy tears down h, its children and its components. Destroying a dead
// game object is a no-op.
func (h GameObjectHandle) Destroy(s *Scene) {
	var children []GameObjectHandle
	var components []DynComponentHandle
	var parent GameObjectHandle
	err := h.with(s, func(g *gameObject) error {
		children = append(children, g.children...)
		components = append(components, g.components...)
		parent = g.parent
		return nil
	})
	if err != nil {
		return
	}

	for _, child := range children {
		child.Destroy(s)
	}
	for _, c := range components {
		if err := c.destroy(s, false); err != nil {
			s.log.Warn("destroy component", zap.Stringer("component", c.Handle), zap.Error(err))
		}
	}
	if !parent.IsZero() {
		_ = parent.withMut(s, func(p *gameObject) error {
			p.children = removeHandle(p.children, h)
			return nil
		})
	}

	cells, _ := h.cells(s)
	if _, err := take(cells, h.Handle); err != nil {
		s.log.Warn("destroy game object", zap.Stringer("handle", h.Handle), zap.Error(err))
	}
}

func removeHandle[T comparable](list []T, h T) []T {
	for i, v := range list {
		if v == h {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (h GameObjectHandle) Name(s *Scene) (string, error) {
	var name string
	err := h.with(s, func(g *gameObject) error {
		name = g.name
		return nil
	})
	return name, err
}

func (h GameObjectHandle) SetName(s *Scene, name string) error {
	return h.withMut(s, func(g *gameObject) error {
		g.name = name
		return nil
	})
}

func (h GameObjectHandle) IsActive(s *Scene) (bool, error) {
	var active bool
	err := h.with(s, func(g *gameObject) error {
		active = g.active
		return nil
	})
	return active, err
}

func (h GameObjectHandle) SetActive(s *Scene, active bool) error {
	return h.withMut(s, func(g *gameObject) error {
		g.active = active
		return nil
	})
}

// IsActiveInHierarchy reports whether h and all of its ancestors are active.
func (h GameObjectHandle) IsActiveInHierarchy(s *Scene) (bool, error) {
	for cur := h; !cur.IsZero(); {
		var active bool
		var parent GameObjectHandle
		err := cur.with(s, func(g *gameObject) error {
			active, parent = g.active, g.parent
			return nil
		})
		if err != nil {
			if cur == h {
				return false, err
			}
			// a dead ancestor ends the chain
			return true, nil
		}
		if !active {
			return false, nil
		}
		cur = parent
	}
	return true, nil
}

func (h GameObjectHandle) LocalPosition(s *Scene) (mathx.Vec3, error) {
	var v mathx.Vec3
	err := h.with(s, func(g *gameObject) error {
		v = g.position
		return nil
	})
	return v, err
}

func (h GameObjectHandle) SetLocalPosition(s *Scene, v mathx.Vec3) error {
	return h.withMut(s, func(g *gameObject) error {
		g.position = v
		return nil
	})
}

func (h GameObjectHandle) LocalRotation(s *Scene) (mathx.Quat, error) {
	var q mathx.Quat
	err := h.with(s, func(g *gameObject) error {
		q = g.rotation
		return nil
	})
	return q, err
}

func (h GameObjectHandle) SetLocalRotation(s *Scene, q mathx.Quat) error {
	return h.withMut(s, func(g *gameObject) error {
		g.rotation = q.Normalize()
		return nil
	})
}

func (h GameObjectHandle) LocalScale(s *Scene) (float32, error) {
	var v float32
	err := h.with(s, func(g *gameObject) error {
		v = g.scale
		return nil
	})
	return v, err
}

func (h GameObjectHandle) SetLocalScale(s *Scene, scale float32) error {
	return h.withMut(s, func(g *gameObject) error {
		g.scale = scale
		return nil
	})
}

// Transform is a position, rotation and uniform scale.
type Transform struct {
	Position mathx.Vec3
	Rotation mathx.Quat
	Scale    float32
}

// Compose returns local expressed in the space t is expressed in.
func (t Transform) Compose(local Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(local.Position.Scale(t.Scale))),
		Rotation: t.Rotation.Mul(local.Rotation).Normalize(),
		Scale:    t.Scale * local.Scale,
	}
}

// Relative is the inverse of Compose: the local transform that, composed
// with t, yields world.
func (t Transform) Relative(world Transform) Transform {
	inv := t.Rotation.Inverse()
	local := Transform{
		Position: inv.Rotate(world.Position.Sub(t.Position)),
		Rotation: inv.Mul(world.Rotation).Normalize(),
		Scale:    world.Scale,
	}
	if t.Scale != 0 {
		local.Position = local.Position.Scale(1 / t.Scale)
		local.Scale = world.Scale / t.Scale
	}
	return local
}

func identityTransform() Transform {
	return Transform{Rotation: mathx.QuatIdentity(), Scale: 1}
}

func (h GameObjectHandle) LocalTransform(s *Scene) (Transform, error) {
	var t Transform
	err := h.with(s, func(g *gameObject) error {
		t = Transform{Position: g.position, Rotation: g.rotation, Scale: g.scale}
		return nil
	})
	return t, err
}

func (h GameObjectHandle) setLocalTransform(s *Scene, t Transform) error {
	return h.withMut(s, func(g *gameObject) error {
		g.position, g.rotation, g.scale = t.Position, t.Rotation, t.Scale
		return nil
	})
}

// WorldTransform composes the local transforms from the root down to h.
func (h GameObjectHandle) WorldTransform(s *Scene) (Transform, error) {
	local, err := h.LocalTransform(s)
	if err != nil {
		return Transform{}, err
	}
	parent, err := h.Parent(s)
	if err != nil {
		return Transform{}, err
	}
	if parent.IsZero() {
		return local, nil
	}
	pw, err := parent.WorldTransform(s)
	if err != nil {
		return Transform{}, err
	}
	return pw.Compose(local), nil
}

func (h GameObjectHandle) parentWorld(s *Scene) (Transform, error) {
	parent, err := h.Parent(s)
	if err != nil {
		return Transform{}, err
	}
	if parent.IsZero() {
		return identityTransform(), nil
	}
	return parent.WorldTransform(s)
}

func (h GameObjectHandle) WorldPosition(s *Scene) (mathx.Vec3, error) {
	t, err := h.WorldTransform(s)
	return t.Position, err
}

func (h GameObjectHandle) WorldRotation(s *Scene) (mathx.Quat, error) {
	t, err := h.WorldTransform(s)
	return t.Rotation, err
}

func (h GameObjectHandle) WorldScale(s *Scene) (float32, error) {
	t, err := h.WorldTransform(s)
	return t.Scale, err
}

func (h GameObjectHandle) SetWorldPosition(s *Scene, v mathx.Vec3) error {
	pw, err := h.parentWorld(s)
	if err != nil {
		return err
	}
	world, err := h.WorldTransform(s)
	if err != nil {
		return err
	}
	world.Position = v
	return h.setLocalTransform(s, pw.Relative(world))
}

func (h GameObjectHandle) SetWorldRotation(s *Scene, q mathx.Quat) error {
	pw, err := h.parentWorld(s)
	if err != nil {
		return err
	}
	world, err := h.WorldTransform(s)
	if err != nil {
		return err
	}
	world.Rotation = q.Normalize()
	return h.setLocalTransform(s, pw.Relative(world))
}

// Components lists the components attached to h in attach order.
func (h GameObjectHandle) Components(s *Scene) ([]DynComponentHandle, error) {
	var list []DynComponentHandle
	err := h.with(s, func(g *gameObject) error {
		list = append(list, g.components...)
		return nil
	})
	return list, err
}
