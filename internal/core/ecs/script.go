package ecs

import (
	"fmt"
	"reflect"
	"time"

	"github.com/risengine/ris/internal/binio"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FrameData is what scripts see of the current frame.
type FrameData struct {
	Number uint64
	Delta  time.Duration
	// State carries engine state the scripts may read, such as input.
	State any
}

type ScriptContext struct {
	Scene      *Scene
	GameObject GameObjectHandle
	Frame      FrameData
}

// Inspector receives the editable fields of a script.
type Inspector interface {
	Field(label string, value any)
}

// Script is user behaviour attached to a game object. Scripts are stored
// type-erased in DynScriptComponents and recovered by their Sid.
type Script interface {
	Start(ctx ScriptContext) error
	Update(ctx ScriptContext) error
	// End runs before the script's memory is reused. Its error is logged
	// and never stops a teardown.
	End(ctx ScriptContext) error
	Serialize(w *SceneWriter) error
	Deserialize(r *SceneReader) error
	Inspect(ins Inspector) error
}

// BaseScript gives every Script hook a no-op default.
type BaseScript struct{}

func (BaseScript) Start(ScriptContext) error      { return nil }
func (BaseScript) Update(ScriptContext) error     { return nil }
func (BaseScript) End(ScriptContext) error        { return nil }
func (BaseScript) Serialize(*SceneWriter) error   { return nil }
func (BaseScript) Deserialize(*SceneReader) error { return nil }
func (BaseScript) Inspect(Inspector) error        { return nil }

// DynScriptComponent holds one script and the Sid of its concrete type.
type DynScriptComponent struct {
	BaseComponent
	script Script
	sid    Sid
}

func (c *DynScriptComponent) Script() Script { return c.script }
func (c *DynScriptComponent) Sid() Sid       { return c.sid }

func (c *DynScriptComponent) Destroy(s *Scene) {
	if c.script == nil {
		return
	}
	if err := c.script.End(ScriptContext{Scene: s, GameObject: c.GameObject()}); err != nil {
		s.log.Error("script end failed", zap.Stringer("sid", c.sid), zap.Error(err))
	}
	c.script = nil
}

func (c *DynScriptComponent) Serialize(w *SceneWriter) error {
	if c.script == nil {
		return fmt.Errorf("%w: serialize empty script component", ErrInvalidOperation)
	}
	if err := binio.WriteU32(w, c.sid.Hash); err != nil {
		return err
	}
	return c.script.Serialize(w)
}

// Deserialize recreates the script from its Sid. LoadChunk starts it once
// the hierarchy is in place.
func (c *DynScriptComponent) Deserialize(r *SceneReader) error {
	hash, err := binio.ReadU32(r)
	if err != nil {
		return err
	}
	f, err := r.Scene.registry.scriptFactory(hash)
	if err != nil {
		return err
	}
	script := f.make()
	if err := script.Deserialize(r); err != nil {
		return fmt.Errorf("deserialize script %s: %w", f.sid, err)
	}
	c.script, c.sid = script, f.sid
	return nil
}

// startScript runs Start on the script held by h outside of any borrow, so the
// script may access its own component.
func (s *Scene) startScript(h DynComponentHandle) error {
	var script Script
	var sid Sid
	var owner GameObjectHandle
	if err := h.With(s, func(c Component) error {
		dc := c.(*DynScriptComponent)
		script, sid, owner = dc.script, dc.sid, dc.GameObject()
		return nil
	}); err != nil {
		return err
	}
	if script == nil {
		return nil
	}
	if err := script.Start(ScriptContext{Scene: s, GameObject: owner}); err != nil {
		return fmt.Errorf("start script %s: %w", sid, err)
	}
	return nil
}

// ScriptComponentHandle is a handle to a DynScriptComponent whose script is
// known to be a T.
type ScriptComponentHandle[T Script] struct {
	Handle
}

func (h ScriptComponentHandle[T]) Dyn() DynComponentHandle {
	return DynComponentHandle{Handle: h.Handle, Type: dynScriptType}
}

func (h ScriptComponentHandle[T]) IsAlive(s *Scene) bool {
	return h.Dyn().IsAlive(s)
}

func (h ScriptComponentHandle[T]) Destroy(s *Scene) error {
	return h.Dyn().Destroy(s)
}

// AddScript creates a T, attaches it to owner and starts it. A script whose
// Start fails is destroyed again.
func AddScript[T Script](s *Scene, owner GameObjectHandle) (ScriptComponentHandle[T], error) {
	sid, ok := ScriptSid[T](s.registry)
	if !ok {
		return ScriptComponentHandle[T]{}, fmt.Errorf("add script: %w: %v is not registered", ErrInvalidOperation, reflect.TypeFor[T]())
	}
	f, err := s.registry.scriptFactory(sid.Hash)
	if err != nil {
		return ScriptComponentHandle[T]{}, err
	}
	dyn, err := s.addComponent(owner, dynScriptType)
	if err != nil {
		return ScriptComponentHandle[T]{}, fmt.Errorf("add script %s: %w", sid, err)
	}

	if err := dyn.WithMut(s, func(c Component) error {
		dc := c.(*DynScriptComponent)
		dc.script, dc.sid = f.make(), sid
		return nil
	}); err != nil {
		return ScriptComponentHandle[T]{}, err
	}
	if err := s.startScript(dyn); err != nil {
		_ = dyn.Destroy(s)
		return ScriptComponentHandle[T]{}, err
	}
	return ScriptComponentHandle[T]{dyn.Handle}, nil
}

// ScriptFrom narrows a component handle to a script of type T. Anything but
// a script component holding a T yields ErrInvalidCast.
func ScriptFrom[T Script](s *Scene, dyn DynComponentHandle) (ScriptComponentHandle[T], error) {
	if dyn.Type != dynScriptType {
		return ScriptComponentHandle[T]{}, fmt.Errorf("%w: %v is not a script component", ErrInvalidCast, dyn.Type)
	}
	h := ScriptComponentHandle[T]{dyn.Handle}
	if err := h.With(s, func(T) error { return nil }); err != nil {
		return ScriptComponentHandle[T]{}, err
	}
	return h, nil
}

func (h ScriptComponentHandle[T]) cast(s *Scene, c Component) (T, error) {
	var zero T
	dc := c.(*DynScriptComponent)
	want, ok := ScriptSid[T](s.registry)
	if !ok || !dc.sid.Equal(want) {
		return zero, fmt.Errorf("%w: script is %s, not %v", ErrInvalidCast, dc.sid, reflect.TypeFor[T]())
	}
	v, ok := dc.script.(T)
	if !ok {
		return zero, fmt.Errorf("%w: script %s holds %T", ErrInvalidCast, dc.sid, dc.script)
	}
	return v, nil
}

// With borrows the script shared for the duration of fn.
func (h ScriptComponentHandle[T]) With(s *Scene, fn func(T) error) error {
	return h.Dyn().With(s, func(c Component) error {
		v, err := h.cast(s, c)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// WithMut borrows the script exclusively for the duration of fn.
func (h ScriptComponentHandle[T]) WithMut(s *Scene, fn func(T) error) error {
	return h.Dyn().WithMut(s, func(c Component) error {
		v, err := h.cast(s, c)
		if err != nil {
			return err
		}
		return fn(v)
	})
}

// GetScripts collects every script of type T selected by from.
func GetScripts[T Script](s *Scene, h GameObjectHandle, from GetFrom) ([]ScriptComponentHandle[T], error) {
	want, ok := ScriptSid[T](s.registry)
	if !ok {
		return nil, fmt.Errorf("%w: %v is not registered", ErrInvalidOperation, reflect.TypeFor[T]())
	}
	all, err := GetComponents[*DynScriptComponent](s, h, from)
	if err != nil {
		return nil, err
	}
	var out []ScriptComponentHandle[T]
	for _, c := range all {
		err := c.With(s, func(dc *DynScriptComponent) error {
			if dc.sid.Equal(want) {
				out = append(out, ScriptComponentHandle[T]{c.Handle})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateScripts runs Update on every script whose game object is active in
// the hierarchy. Scripts are visited chunk by chunk in slot order; failures
// are collected and do not stop the remaining scripts. The slot of a script is
// exclusively borrowed while its Update runs, so reaching that script again
// through its own handle from inside Update is a borrow violation.
func (s *Scene) UpdateScripts(frame FrameData) error {
	var errs error
	for _, c := range s.chunks() {
		for _, sc := range c.components[dynScriptType] {
			b := sc.Borrow()
			sl := b.Get()
			if !sl.alive {
				b.Release()
				continue
			}
			dc := sl.value.(*DynScriptComponent)
			h, script, sid, owner := sl.handle, dc.script, dc.sid, dc.GameObject()
			b.Release()
			if script == nil {
				continue
			}
			active, err := owner.IsActiveInHierarchy(s)
			if err != nil || !active {
				continue
			}
			if err := s.updateScript(sc, h, script, owner, frame); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("update script %s on %s: %w", sid, owner.Handle, err))
			}
		}
	}
	return errs
}

func (s *Scene) updateScript(sc *cell[Component], h Handle, script Script, owner GameObjectHandle, frame FrameData) error {
	b := sc.BorrowMut()
	defer b.Release()
	if !b.Get().matches(h) {
		return nil
	}
	return script.Update(ScriptContext{Scene: s, GameObject: owner, Frame: frame})
}

// InspectScript hands the script of h to ins.
func InspectScript(s *Scene, h DynComponentHandle, ins Inspector) error {
	if h.Type != dynScriptType {
		return fmt.Errorf("%w: %v is not a script component", ErrInvalidCast, h.Type)
	}
	return h.WithMut(s, func(c Component) error {
		dc := c.(*DynScriptComponent)
		if dc.script == nil {
			return nil
		}
		return dc.script.Inspect(ins)
	})
}
