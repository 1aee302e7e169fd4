package ecs

import (
	"fmt"
	"reflect"
)

type componentFactory struct {
	name string
	typ  reflect.Type
	make func() Component
}

type scriptFactory struct {
	sid  Sid
	typ  reflect.Type
	make func() Script
}

// Registry maps component and script types to their factories. The index of
// a component factory is what scene files store, so registration order is
// part of the file format. A registry must be complete before a scene is
// built from it.
type Registry struct {
	components  []componentFactory
	byType      map[reflect.Type]int
	scripts     map[uint32]scriptFactory
	scriptTypes map[reflect.Type]Sid
}

var dynScriptType = reflect.TypeFor[*DynScriptComponent]()

func NewRegistry() *Registry {
	r := &Registry{
		byType:      make(map[reflect.Type]int, 16),
		scripts:     make(map[uint32]scriptFactory, 16),
		scriptTypes: make(map[reflect.Type]Sid, 16),
	}
	// scripts live in a component array like everything else
	if err := RegisterComponent(r, "script", func() *DynScriptComponent { return &DynScriptComponent{} }); err != nil {
		panic(err)
	}
	return r
}

// RegisterComponent adds T with the constructor make.
func RegisterComponent[T Component](r *Registry, name string, make func() T) error {
	typ := reflect.TypeFor[T]()
	if _, ok := r.byType[typ]; ok {
		return fmt.Errorf("%w: component %v registered twice", ErrInvalidOperation, typ)
	}
	for _, f := range r.components {
		if f.name == name {
			return fmt.Errorf("%w: component name %q already used by %v", ErrInvalidOperation, name, f.typ)
		}
	}
	r.byType[typ] = len(r.components)
	r.components = append(r.components, componentFactory{
		name: name,
		typ:  typ,
		make: func() Component { return make() },
	})
	return nil
}

// RegisterScript adds the script T under the Sid of name. Two names that
// hash to the same Sid are rejected.
func RegisterScript[T Script](r *Registry, name string, make func() T) error {
	typ := reflect.TypeFor[T]()
	if _, ok := r.scriptTypes[typ]; ok {
		return fmt.Errorf("%w: script %v registered twice", ErrInvalidOperation, typ)
	}
	sid := NewSid(name)
	if prev, ok := r.scripts[sid.Hash]; ok {
		return fmt.Errorf("%w: script %q collides with %q (%v)", ErrInvalidOperation, name, prev.sid.Name, sid)
	}
	r.scripts[sid.Hash] = scriptFactory{sid: sid, typ: typ, make: func() Script { return make() }}
	r.scriptTypes[typ] = sid
	return nil
}

// ScriptSid returns the Sid T was registered under.
func ScriptSid[T Script](r *Registry) (Sid, bool) {
	sid, ok := r.scriptTypes[reflect.TypeFor[T]()]
	return sid, ok
}

func (r *Registry) componentIndex(typ reflect.Type) (int, bool) {
	i, ok := r.byType[typ]
	return i, ok
}

func (r *Registry) componentFactory(index int) (componentFactory, error) {
	if index < 0 || index >= len(r.components) {
		return componentFactory{}, fmt.Errorf("%w: no component factory %d, %d registered", ErrInvalidOperation, index, len(r.components))
	}
	return r.components[index], nil
}

func (r *Registry) scriptFactory(hash uint32) (scriptFactory, error) {
	f, ok := r.scripts[hash]
	if !ok {
		return scriptFactory{}, fmt.Errorf("%w: no script registered with sid 0x%08x", ErrInvalidOperation, hash)
	}
	return f, nil
}
