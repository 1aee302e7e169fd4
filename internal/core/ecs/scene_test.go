package ecs

import (
	"reflect"
	"testing"

	"github.com/risengine/ris/internal/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSceneRejectsLayout(t *testing.T) {
	r := NewRegistry()
	tests := []SceneCreateInfo{
		{DynamicCapacity: 0},
		{DynamicCapacity: 4, StaticChunks: -1},
		{DynamicCapacity: 4, StaticChunks: 2, StaticCapacity: 0},
	}
	for _, info := range tests {
		_, err := NewScene(info, r, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidOperation, "%+v", info)
	}
}

func TestOutOfCapacityAndStaleHandles(t *testing.T) {
	s, _ := newTestScene(t, SceneCreateInfo{DynamicCapacity: 2})

	a, err := NewDynamic(s)
	require.NoError(t, err)
	_, err = NewDynamic(s)
	require.NoError(t, err)
	_, err = NewDynamic(s)
	assert.ErrorIs(t, err, ErrOutOfCapacity)

	a.Destroy(s)
	assert.False(t, a.IsAlive(s))

	c, err := NewDynamic(s)
	require.NoError(t, err)
	assert.Equal(t, a.Index, c.Index, "dead slot is reused")
	assert.Greater(t, c.Generation, a.Generation)

	assert.False(t, a.IsAlive(s))
	assert.ErrorIs(t, a.SetName(s, "stale"), ErrInvalidHandle)
	_, err = a.Name(s)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	// destroying a stale handle leaves the new occupant alone
	a.Destroy(s)
	assert.True(t, c.IsAlive(s))
}

func TestZeroHandleNeverResolves(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	_, err := NewDynamic(s)
	require.NoError(t, err)

	var none GameObjectHandle
	assert.True(t, none.IsZero())
	assert.False(t, none.IsAlive(s))
	assert.Equal(t, "Handle(none)", none.String())
}

func TestNewStaticUnknownChunk(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())

	_, err := NewStatic(s, 2)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	h, err := NewStatic(s, 1)
	require.NoError(t, err)
	assert.Equal(t, ChunkStatic, h.Kind)
	assert.EqualValues(t, 1, h.Chunk)
}

func TestGameObjectDefaults(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)

	name, err := h.Name(s)
	require.NoError(t, err)
	assert.Equal(t, "game object", name)

	active, err := h.IsActive(s)
	require.NoError(t, err)
	assert.True(t, active)

	scale, err := h.LocalScale(s)
	require.NoError(t, err)
	assert.Equal(t, float32(1), scale)

	require.NoError(t, h.SetName(s, "player"))
	name, err = h.Name(s)
	require.NoError(t, err)
	assert.Equal(t, "player", name)
}

func TestComponentsLifecycle(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)

	c, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)
	require.NoError(t, c.WithMut(s, func(l *labelComponent) error {
		l.Label = "hello"
		return nil
	}))
	got, err := c.Get(s)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Label)

	owner, err := c.GameObject(s)
	require.NoError(t, err)
	assert.Equal(t, h, owner)

	list, err := h.Components(s)
	require.NoError(t, err)
	assert.Equal(t, []DynComponentHandle{c.Dyn()}, list)

	require.NoError(t, c.Destroy(s))
	assert.Equal(t, 1, w.destroyed)
	assert.False(t, c.IsAlive(s))
	list, err = h.Components(s)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, c.Destroy(s), ErrInvalidHandle)
}

func TestDestroyGameObjectDestroysComponents(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)
	c1, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)
	c2, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)

	h.Destroy(s)
	assert.Equal(t, 2, w.destroyed)
	assert.False(t, c1.IsAlive(s))
	assert.False(t, c2.IsAlive(s))
}

func TestUnregisteredComponent(t *testing.T) {
	s, err := NewScene(defaultSceneInfo(), NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	defer s.Free()
	h, err := NewDynamic(s)
	require.NoError(t, err)

	_, err = AddComponent[*labelComponent](s, h)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestComponentHandleFromRejectsOtherType(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)
	c, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)

	_, err = ComponentHandleFrom[*DynScriptComponent](c.Dyn())
	assert.ErrorIs(t, err, ErrInvalidCast)

	back, err := ComponentHandleFrom[*labelComponent](c.Dyn())
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestComponentBorrowRules(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)
	c, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)

	// nested shared borrows are fine
	require.NoError(t, c.With(s, func(*labelComponent) error {
		return c.With(s, func(*labelComponent) error { return nil })
	}))
	assert.Panics(t, func() {
		_ = c.With(s, func(*labelComponent) error {
			return c.WithMut(s, func(*labelComponent) error { return nil })
		})
	})
}

func TestFreeEndsScriptsAndIsIdempotent(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	h, err := NewStatic(s, 0)
	require.NoError(t, err)
	_, err = AddScript[*testScriptISize](s, h)
	require.NoError(t, err)

	s.Free()
	s.Free()
	assert.Equal(t, []string{"start isize", "end isize"}, w.rec.events)
	assert.Panics(t, func() { h.IsAlive(s) })
}

func TestAllocSkipsBorrowedSlots(t *testing.T) {
	if !ptr.Checked {
		t.Skip("borrow checks are compiled out")
	}
	s, _ := newTestScene(t, defaultSceneInfo())
	a, err := NewDynamic(s)
	require.NoError(t, err)
	b, err := NewDynamic(s)
	require.NoError(t, err)
	ca, err := AddComponent[*labelComponent](s, a)
	require.NoError(t, err)

	var cb, cc ComponentHandle[*labelComponent]
	require.NotPanics(t, func() {
		require.NoError(t, ca.With(s, func(*labelComponent) error {
			cb, err = AddComponent[*labelComponent](s, b)
			return err
		}))
		require.NoError(t, ca.WithMut(s, func(*labelComponent) error {
			cc, err = AddComponent[*labelComponent](s, b)
			return err
		}))
	})
	assert.True(t, cb.IsAlive(s))
	assert.True(t, cc.IsAlive(s))
	assert.NotEqual(t, cb, cc)

	var d GameObjectHandle
	require.NotPanics(t, func() {
		require.NoError(t, a.withMut(s, func(*gameObject) error {
			d, err = NewDynamic(s)
			return err
		}))
	})
	assert.True(t, d.IsAlive(s))
	assert.Equal(t, 3, liveGameObjects(s.dynamic))

	// a dead slot that is momentarily borrowed is left alone too
	require.NoError(t, cc.Destroy(s))
	cells := s.dynamic.components[reflect.TypeFor[*labelComponent]()]
	held := cells[cc.Index].Borrow()
	ce, err := AddComponent[*labelComponent](s, b)
	held.Release()
	require.NoError(t, err)
	assert.NotEqual(t, cc.Index, ce.Index)
}
