package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/cache"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/core/system"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/jobs"
	"github.com/risengine/ris/internal/mathx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func initJobs(t *testing.T) *jobs.Worker {
	t.Helper()
	sys, w, err := jobs.Init(jobs.Config{Workers: 2, BufferCapacity: 64}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(sys.Close)
	return w
}

func writeMesh(t *testing.T, dir, name string, vertices int) {
	t.Helper()
	p := &asset.MeshPrototype{}
	for i := range vertices {
		p.Vertices = append(p.Vertices, mathx.Vec3{X: float32(i)})
		p.Normals = append(p.Normals, mathx.Up())
		p.UVs = append(p.UVs, mathx.Vec2{Y: 1})
		p.Indices = append(p.Indices, uint32(i))
	}
	cpu, err := p.ToCpuMesh()
	require.NoError(t, err)
	b, err := asset.SerializeMesh(cpu)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func newTestScene(t *testing.T) *ecs.Scene {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	s, err := ecs.NewScene(ecs.SceneCreateInfo{DynamicCapacity: 8, StaticChunks: 1, StaticCapacity: 8}, r, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Free)
	return s
}

func keymapped(t *testing.T) *input.State {
	t.Helper()
	in := input.NewState(time.Second, time.Second)
	require.NoError(t, input.DefaultKeymap().Apply(in))
	return in
}

func TestCommandQueue(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{CommandCapacity: 2})
	q := g.Commands

	var applied []int
	require.NoError(t, q.Push(func(*GodState) error {
		applied = append(applied, 1)
		// pushed while draining, applied next frame
		return q.Push(func(*GodState) error {
			applied = append(applied, 3)
			return nil
		})
	}))
	require.NoError(t, q.Push(func(*GodState) error {
		applied = append(applied, 2)
		return errors.New("second failed")
	}))
	assert.ErrorIs(t, q.Push(func(*GodState) error { return nil }), ErrCommandQueueFull)
	assert.Error(t, q.Push(nil))

	n, err := q.Drain(g)
	assert.Equal(t, 2, n)
	assert.EqualError(t, err, "second failed")
	assert.Equal(t, []int{1, 2}, applied)
	assert.Equal(t, 1, q.Len())

	n, err = q.Drain(g)
	assert.Equal(t, 1, n)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, applied)
}

func TestCommandQueueCombinesErrors(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{})
	for range 3 {
		require.NoError(t, g.Commands.Push(func(*GodState) error { return errors.New("boom") }))
	}
	_, err := g.Commands.Drain(g)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestGodStateResetEvents(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{})
	b := g.Settings.BorrowMut()
	b.Get().RequestSave()
	b.Release()
	g.RequestReload()
	g.reloadShaders = true

	prev := g.ResetEvents()
	assert.True(t, prev.SaveRequested(), "the previous frame's flags are handed out")
	assert.False(t, g.CurrentSettings().SaveRequested())
	assert.False(t, g.ReloadRequested())
	assert.False(t, g.ReloadShaders())
	_, _, resized := g.WindowResized()
	assert.False(t, resized)
}

func TestInputFrameAppliesEvents(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{Input: keymapped(t)})
	q := event.NewQueue()
	f := NewInputFrame(g, event.NewBus(), q, zap.NewNop())

	event.Push(q, event.Key{Key: input.KeyW, Pressed: true})
	event.Push(q, event.MouseMotion{X: 10, Y: 20, XRel: 3, YRel: -2})
	event.Push(q, event.WindowResized{Width: 640, Height: 480})
	state, err := f.Run(system.Frame{Number: 1})
	require.NoError(t, err)
	assert.Equal(t, system.Continue, state)

	in := g.Input.Borrow()
	assert.True(t, in.Get().General.Buttons.IsDown(input.ActionMoveUp))
	assert.Equal(t, int32(3), in.Get().Mouse.XRel)
	in.Release()
	w, h, ok := g.WindowResized()
	require.True(t, ok)
	assert.Equal(t, [2]uint32{640, 480}, [2]uint32{w, h})
	assert.Equal(t, uint32(640), g.CurrentSettings().Window.Width)
	assert.False(t, g.ReloadRequested())

	// the key stays held without new events
	_, err = f.Run(system.Frame{Number: 2})
	require.NoError(t, err)
	in = g.Input.Borrow()
	assert.True(t, in.Get().General.Buttons.IsHold(input.ActionMoveUp))
	assert.False(t, in.Get().General.Buttons.IsDown(input.ActionMoveUp))
	assert.Zero(t, in.Get().Mouse.XRel)
	in.Release()

	event.Push(q, event.Key{Key: ReloadKey, Pressed: true})
	_, err = f.Run(system.Frame{Number: 3})
	require.NoError(t, err)
	assert.True(t, g.ReloadRequested())

	event.Push(q, event.Quit{})
	state, err = f.Run(system.Frame{Number: 4})
	require.NoError(t, err)
	assert.Equal(t, system.WantsToQuit, state)
}

func TestInputFrameManualTimers(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{Input: keymapped(t)})
	q := event.NewQueue()
	f := NewInputFrame(g, event.NewBus(), q, zap.NewNop())
	now := time.Unix(100, 0)
	f.now = func() time.Time { return now }

	event.Push(q, event.Key{Key: input.KeyF4, Pressed: true})
	state, err := f.Run(system.Frame{})
	require.NoError(t, err)
	assert.Equal(t, system.Continue, state)

	now = now.Add(time.Second)
	state, err = f.Run(system.Frame{})
	require.NoError(t, err)
	assert.Equal(t, system.WantsToRestart, state)

	event.Push(q, event.Key{Key: input.KeyF4, Pressed: false})
	event.Push(q, event.Key{Key: input.KeyF1, Pressed: true})
	_, err = f.Run(system.Frame{})
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = f.Run(system.Frame{})
	assert.ErrorIs(t, err, ErrManualCrash)
}

func TestInputFrameSourceChangedRequestsReload(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{})
	q := event.NewQueue()
	f := NewInputFrame(g, event.NewBus(), q, zap.NewNop())
	event.Push(q, event.SourceChanged{Path: "in/cube.glb"})
	_, err := f.Run(system.Frame{})
	require.NoError(t, err)
	assert.True(t, g.ReloadRequested())
}

func TestLogicFrameMovesCamera(t *testing.T) {
	g := NewGodState(GodStateCreateInfo{})
	f := NewLogicFrame(g, zap.NewNop())
	frame := system.Frame{Number: 1, Prev: time.Second / 2, Avg: time.Second / 2}

	in := g.Input.BorrowMut()
	in.Get().General.Buttons.Set(input.ActionMoveUp, 0)
	in.Release()
	_, err := f.Run(frame)
	require.NoError(t, err)
	camera := g.CurrentCamera()
	assert.True(t, camera.Position.ApproxEqual(mathx.Vec3{}, 1e-5), "moved one unit forward: %v", camera.Position)
	assert.True(t, camera.Rotation.ApproxEqual(mathx.QuatIdentity(), 1e-6))

	in = g.Input.BorrowMut()
	in.Get().General.Buttons.Set(input.ActionCameraLeft, input.ActionMoveUp)
	in.Release()
	_, err = f.Run(frame)
	require.NoError(t, err)
	camera = g.CurrentCamera()
	want := mathx.AngleAxis(1, mathx.Up())
	assert.True(t, camera.Rotation.ApproxEqual(want, 1e-5), "turned left by one radian: %v", camera.Rotation)

	in = g.Input.BorrowMut()
	in.Get().General.Buttons.Set(input.ActionOK, 0)
	in.Release()
	_, err = f.Run(frame)
	require.NoError(t, err)
	camera = g.CurrentCamera()
	assert.Equal(t, DefaultCamera(), camera, "OK resets the camera")
}

type countScript struct {
	ecs.BaseScript
	updates *int
}

func (s *countScript) Update(ecs.ScriptContext) error {
	*s.updates++
	return nil
}

func TestLogicFrameUpdatesScriptsThenDrainsCommands(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, ecs.RegisterScript(r, "count", func() *countScript { return &countScript{} }))
	scene, err := ecs.NewScene(ecs.SceneCreateInfo{DynamicCapacity: 4}, r, zap.NewNop())
	require.NoError(t, err)
	defer scene.Free()

	updates := 0
	h, err := ecs.NewDynamic(scene)
	require.NoError(t, err)
	sh, err := ecs.AddScript[*countScript](scene, h)
	require.NoError(t, err)
	require.NoError(t, sh.WithMut(scene, func(s *countScript) error {
		s.updates = &updates
		return nil
	}))

	g := NewGodState(GodStateCreateInfo{Scene: scene})
	var seen int
	require.NoError(t, g.Commands.Push(func(*GodState) error {
		seen = updates
		return nil
	}))
	_, err = NewLogicFrame(g, zap.NewNop()).Run(system.Frame{Number: 1, Avg: time.Second / 60})
	require.NoError(t, err)
	assert.Equal(t, 1, updates)
	assert.Equal(t, 1, seen, "commands run after the scripts")
	assert.Zero(t, g.Commands.Len())
}

type countReloader struct{ calls int }

func (r *countReloader) Reload(context.Context) error {
	r.calls++
	return errors.New("one source failed")
}

func runOutput(t *testing.T, f *OutputFrame, g *GodState, number uint64) {
	t.Helper()
	g.ResetEvents()
	_, err := f.Run(system.Frame{Number: number, Avg: time.Second / 60})
	require.NoError(t, err)
}

func TestOutputFrameDrawsAndSweeps(t *testing.T) {
	w := initJobs(t)
	dir := t.TempDir()
	writeMesh(t, dir, "tri.ris_mesh", 3)
	d := gpu.NewMemoryDevice()
	loader := asset.NewDirectoryLoader(dir)
	scene := newTestScene(t)

	obj, err := ecs.NewDynamic(scene)
	require.NoError(t, err)
	mc, err := ecs.AddComponent[*MeshComponent](scene, obj)
	require.NoError(t, err)
	require.NoError(t, mc.WithMut(scene, func(c *MeshComponent) error {
		c.SetMesh(asset.PathID("tri.ris_mesh"))
		return nil
	}))

	g := NewGodState(GodStateCreateInfo{Scene: scene})
	meshes := cache.NewMeshLookup(loader, zap.NewNop())
	ring, err := cache.NewTerrainMeshRingBuffer(2, 2, zap.NewNop())
	require.NoError(t, err)
	sceneRenderer := NewSceneRenderer(meshes, cache.NewTextureLookup(loader, zap.NewNop()), zap.NewNop())
	terrainRenderer := NewTerrainRenderer(ring, zap.NewNop())
	reloader := &countReloader{}
	f, err := NewOutputFrame(context.Background(), g, OutputFrameCreateInfo{
		Device:          d,
		Worker:          w,
		FramesInFlight:  2,
		FreeUnusedEvery: 1,
		Width:           320,
		Height:          200,
		Meshes:          meshes,
		Renderers:       []Renderer{sceneRenderer, terrainRenderer},
		Reloader:        reloader,
	}, zap.NewNop())
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	var number uint64
	for {
		number++
		runOutput(t, f, g, number)
		drawn, _ := sceneRenderer.Drawn()
		if drawn == 1 && terrainRenderer.Vertices() > 0 {
			break
		}
		require.True(t, time.Now().Before(deadline), "timed out")
		w.RunPendingJob()
	}
	_, vertices := sceneRenderer.Drawn()
	assert.Equal(t, uint32(3), vertices)
	assert.Equal(t, uint32(9), terrainRenderer.Vertices(), "a 2x2 grid has 3x3 vertices")
	assert.Equal(t, 1, sceneRenderer.Pipeline())
	assert.Equal(t, int(number), d.Stats().Submits)

	number++
	g.ResetEvents()
	g.RequestReload()
	_, err = f.Run(system.Frame{Number: number, Avg: time.Second / 60})
	require.NoError(t, err)
	assert.Equal(t, 1, reloader.calls, "a failing reimport does not stop the frame")
	assert.True(t, g.ReloadShaders())
	assert.Equal(t, 2, sceneRenderer.Pipeline())
	number++
	runOutput(t, f, g, number)
	assert.False(t, g.ReloadShaders(), "reload_shaders lasts one frame")
	assert.Equal(t, 2, sceneRenderer.Pipeline())

	obj.Destroy(scene)
	deadline = time.Now().Add(5 * time.Second)
	for {
		number++
		runOutput(t, f, g, number)
		if meshes.Loaded() == 0 {
			break
		}
		require.True(t, time.Now().Before(deadline), "timed out")
		w.RunPendingJob()
	}
	drawn, _ := sceneRenderer.Drawn()
	assert.Zero(t, drawn)

	require.NoError(t, f.Free())
	stats := d.Stats()
	assert.Zero(t, stats.Buffers)
	assert.Zero(t, stats.Framebuffers)
	assert.Zero(t, stats.Fences)
	assert.Zero(t, stats.CommandPools)
}

func TestOutputFrameRebuildsOnResize(t *testing.T) {
	w := initJobs(t)
	d := gpu.NewMemoryDevice()
	g := NewGodState(GodStateCreateInfo{})
	meshes := cache.NewMeshLookup(asset.NewDirectoryLoader(t.TempDir()), zap.NewNop())
	f, err := NewOutputFrame(context.Background(), g, OutputFrameCreateInfo{
		Device:         d,
		Worker:         w,
		FramesInFlight: 2,
		Width:          320,
		Height:         200,
		Meshes:         meshes,
		Renderers:      []Renderer{NewSceneRenderer(meshes, nil, zap.NewNop())},
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() { assert.NoError(t, f.Free()) }()

	runOutput(t, f, g, 1)
	runOutput(t, f, g, 2)
	assert.Equal(t, 2, d.Stats().Framebuffers, "one per frame in flight")

	g.ResetEvents()
	g.windowResized = &[2]uint32{640, 480}
	_, err = f.Run(system.Frame{Number: 3})
	require.NoError(t, err)
	assert.Equal(t, uint32(640), f.size.Width)
	assert.Equal(t, 1, d.Stats().Framebuffers, "old framebuffers are gone")
	assert.Equal(t, 1, d.Stats().WaitIdles)
}
