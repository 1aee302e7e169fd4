package ecs

import (
	"testing"
	"time"

	"github.com/risengine/ris/internal/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptDowncastMismatch(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)

	sc, err := AddScript[*testScriptISize](s, h)
	require.NoError(t, err)

	_, err = ScriptFrom[*testScriptString](s, sc.Dyn())
	assert.ErrorIs(t, err, ErrInvalidCast)

	same, err := ScriptFrom[*testScriptISize](s, sc.Dyn())
	require.NoError(t, err)
	assert.Equal(t, sc, same)

	wrong := ScriptComponentHandle[*testScriptString]{sc.Handle}
	err = wrong.With(s, func(*testScriptString) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidCast)

	label, err := AddComponent[*labelComponent](s, h)
	require.NoError(t, err)
	_, err = ScriptFrom[*testScriptISize](s, label.Dyn())
	assert.ErrorIs(t, err, ErrInvalidCast)
}

func TestScriptLifecycle(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	h, err := NewDynamic(s)
	require.NoError(t, err)

	sc, err := AddScript[*testScriptISize](s, h)
	require.NoError(t, err)
	assert.Equal(t, []string{"start isize"}, w.rec.events)

	frame := FrameData{Number: 1, Delta: 16 * time.Millisecond}
	require.NoError(t, s.UpdateScripts(frame))
	require.NoError(t, s.UpdateScripts(frame))

	value := func() int32 {
		var v int32
		require.NoError(t, sc.With(s, func(script *testScriptISize) error {
			v = script.Value
			return nil
		}))
		return v
	}
	assert.EqualValues(t, 2, value())

	require.NoError(t, h.SetActive(s, false))
	require.NoError(t, s.UpdateScripts(frame))
	assert.EqualValues(t, 2, value(), "inactive game objects are skipped")

	require.NoError(t, sc.Destroy(s))
	assert.Equal(t, []string{"start isize", "end isize"}, w.rec.events)
	assert.False(t, sc.IsAlive(s))
}

func TestScriptEndsWithGameObject(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	parent, err := NewDynamic(s)
	require.NoError(t, err)
	child, err := NewDynamic(s)
	require.NoError(t, err)
	require.NoError(t, child.SetParent(s, parent, Append, false))

	_, err = AddScript[*testScriptISize](s, child)
	require.NoError(t, err)
	parent.Destroy(s)
	assert.Equal(t, []string{"start isize", "end isize"}, w.rec.events)
}

func TestScriptStartFailureDetaches(t *testing.T) {
	w := &testWorld{rec: &recorder{}, failStart: true}
	w.registry = newTestRegistry(t, w)
	s, err := NewScene(defaultSceneInfo(), w.registry, nopLogger())
	require.NoError(t, err)
	defer s.Free()

	h, err := NewDynamic(s)
	require.NoError(t, err)
	_, err = AddScript[*failingScript](s, h)
	assert.ErrorIs(t, err, errScript)

	list, err := h.Components(s)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateScriptsCollectsErrors(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	a, err := NewDynamic(s)
	require.NoError(t, err)
	b, err := NewStatic(s, 0)
	require.NoError(t, err)

	_, err = AddScript[*failingScript](s, a)
	require.NoError(t, err)
	_, err = AddScript[*failingScript](s, b)
	require.NoError(t, err)
	ok, err := AddScript[*testScriptISize](s, b)
	require.NoError(t, err)

	err = s.UpdateScripts(FrameData{Number: 7})
	assert.ErrorIs(t, err, errScript)
	assert.Len(t, multierrErrors(err), 2)

	require.NoError(t, ok.With(s, func(script *testScriptISize) error {
		assert.EqualValues(t, 1, script.Value, "one failure does not stop the others")
		return nil
	}))
}

func TestGetScriptsFiltersBySid(t *testing.T) {
	s, _ := newTestScene(t, defaultSceneInfo())
	root, err := NewDynamic(s)
	require.NoError(t, err)
	child, err := NewDynamic(s)
	require.NoError(t, err)
	require.NoError(t, child.SetParent(s, root, Append, false))

	first, err := AddScript[*testScriptISize](s, root)
	require.NoError(t, err)
	_, err = AddScript[*testScriptString](s, root)
	require.NoError(t, err)
	second, err := AddScript[*testScriptISize](s, child)
	require.NoError(t, err)

	list, err := GetScripts[*testScriptISize](s, root, GetFromThisAndChildren)
	require.NoError(t, err)
	assert.Equal(t, []ScriptComponentHandle[*testScriptISize]{first, second}, list)

	list, err = GetScripts[*testScriptISize](s, root, GetFromThis)
	require.NoError(t, err)
	assert.Equal(t, []ScriptComponentHandle[*testScriptISize]{first}, list)
}

func TestRegisterScriptRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterScript(r, "a", func() *testScriptISize { return &testScriptISize{} }))

	err := RegisterScript(r, "b", func() *testScriptISize { return &testScriptISize{} })
	assert.ErrorIs(t, err, ErrInvalidOperation, "same type twice")

	err = RegisterScript(r, "a", func() *testScriptString { return &testScriptString{} })
	assert.ErrorIs(t, err, ErrInvalidOperation, "same sid twice")

	sid, ok := ScriptSid[*testScriptISize](r)
	require.True(t, ok)
	assert.Equal(t, NewSid("a"), sid)
	_, ok = ScriptSid[*testScriptString](r)
	assert.False(t, ok)
}

func TestRegisterComponentRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	err := RegisterComponent(r, "script", func() *labelComponent { return &labelComponent{} })
	assert.ErrorIs(t, err, ErrInvalidOperation)
	require.NoError(t, RegisterComponent(r, "label", func() *labelComponent { return &labelComponent{} }))
	err = RegisterComponent(r, "label2", func() *labelComponent { return &labelComponent{} })
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestSid(t *testing.T) {
	// FNV-1a of the empty string is the offset basis
	assert.Equal(t, uint32(0x811c9dc5), NewSid("").Hash)
	assert.Equal(t, uint32(0xe40c292c), NewSid("a").Hash)
	assert.True(t, NewSid("x").Equal(Sid{Hash: NewSid("x").Hash}))
}

type recordingInspector struct {
	fields map[string]any
}

func (i *recordingInspector) Field(label string, value any) {
	i.fields[label] = value
}

type inspectedScript struct {
	BaseScript
	Speed float32
}

func (s *inspectedScript) Inspect(ins Inspector) error {
	ins.Field("speed", s.Speed)
	return nil
}

func TestInspectScript(t *testing.T) {
	s, w := newTestScene(t, defaultSceneInfo())
	require.NoError(t, RegisterScript(w.registry, "inspected", func() *inspectedScript {
		return &inspectedScript{Speed: 3}
	}))
	h, err := NewDynamic(s)
	require.NoError(t, err)
	sc, err := AddScript[*inspectedScript](s, h)
	require.NoError(t, err)

	ins := &recordingInspector{fields: map[string]any{}}
	require.NoError(t, InspectScript(s, sc.Dyn(), ins))
	assert.Equal(t, map[string]any{"speed": float32(3)}, ins.fields)
}

type reachingScript struct {
	BaseScript
	reach func(ScriptContext)
}

func (s *reachingScript) Update(ctx ScriptContext) error {
	if s.reach != nil {
		s.reach(ctx)
	}
	return nil
}

func TestUpdateHoldsScriptExclusively(t *testing.T) {
	if !ptr.Checked {
		t.Skip("borrow checks are compiled out")
	}
	s, w := newTestScene(t, defaultSceneInfo())
	require.NoError(t, RegisterScript(w.registry, "reaching_script", func() *reachingScript { return &reachingScript{} }))
	h, err := NewDynamic(s)
	require.NoError(t, err)
	sc, err := AddScript[*reachingScript](s, h)
	require.NoError(t, err)
	other, err := AddScript[*testScriptISize](s, h)
	require.NoError(t, err)

	calls := 0
	require.NoError(t, sc.WithMut(s, func(script *reachingScript) error {
		script.reach = func(ctx ScriptContext) {
			calls++
			assert.Panics(t, func() { _ = sc.With(ctx.Scene, func(*reachingScript) error { return nil }) })
			assert.Panics(t, func() { _ = sc.Destroy(ctx.Scene) })
			assert.NoError(t, other.With(ctx.Scene, func(*testScriptISize) error { return nil }),
				"sibling scripts stay reachable")
			assert.NoError(t, ctx.GameObject.SetLocalScale(ctx.Scene, 2))
		}
		return nil
	}))

	require.NoError(t, s.UpdateScripts(FrameData{Number: 1}))
	assert.Equal(t, 1, calls)
	assert.True(t, sc.IsAlive(s))
	assert.NotPanics(t, func() { require.NoError(t, sc.With(s, func(*reachingScript) error { return nil })) },
		"the borrow ends with Update")
}
