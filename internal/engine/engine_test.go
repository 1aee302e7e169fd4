package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/config"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/importer"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Jobs.Workers = 2
	cfg.Jobs.BufferCapacity = 64
	cfg.Scene = config.SceneConfig{DynamicCapacity: 16, StaticChunks: 1, StaticCapacity: 16}
	cfg.Assets.Directory = filepath.Join(dir, "out")
	cfg.Assets.Source = filepath.Join(dir, "in")
	cfg.Assets.GodAsset = ""
	cfg.Renderer.TerrainRingSize = 2
	cfg.Renderer.TerrainWidth = 2
	cfg.Renderer.FreeUnusedEvery = 1
	cfg.Paths.PrefDir = filepath.Join(dir, "pref")
	cfg.Loop.MaxFrames = 10
	return cfg
}

func withTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunStopsAfterMaxFrames(t *testing.T) {
	cfg := testConfig(t)
	writeMesh(t, cfg.Assets.Directory, "tri.ris_mesh", 3)
	d := gpu.NewMemoryDevice()
	setups := 0

	err := Run(withTimeout(t), Deps{
		Config: cfg,
		Log:    zap.NewNop(),
		Device: d,
		Setup: func(g *GodState) error {
			setups++
			h, err := ecs.NewDynamic(g.Scene)
			if err != nil {
				return err
			}
			mc, err := ecs.AddComponent[*MeshComponent](g.Scene, h)
			if err != nil {
				return err
			}
			return mc.WithMut(g.Scene, func(c *MeshComponent) error {
				c.SetMesh(asset.PathID("tri.ris_mesh"))
				return nil
			})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, setups)

	stats := d.Stats()
	assert.Equal(t, 10, stats.Submits)
	assert.Zero(t, stats.Buffers, "meshes are freed on shutdown")
	assert.Zero(t, stats.Framebuffers)
	assert.Zero(t, stats.Fences)
	assert.Zero(t, stats.CommandPools)
}

func TestRunQuitEvent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.MaxFrames = 0
	d := gpu.NewMemoryDevice()
	q := event.NewQueue()
	event.Push(q, event.Quit{})

	require.NoError(t, Run(withTimeout(t), Deps{Config: cfg, Device: d, Events: q}))
	assert.Equal(t, 1, d.Stats().Submits, "the quitting frame still renders")
}

func TestRunCancelledContext(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := gpu.NewMemoryDevice()
	require.NoError(t, Run(ctx, Deps{Config: cfg, Device: d}))
	assert.Zero(t, d.Stats().Submits)
}

type keySource struct {
	key  input.Key
	sent bool
}

func (s *keySource) Poll(b *event.Bus) {
	if !s.sent {
		s.sent = true
		event.Emit(b, event.Key{Key: s.key, Pressed: true})
	}
}

func TestRunManualCrash(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.MaxFrames = 0
	cfg.Input.CrashHold = 0

	err := Run(withTimeout(t), Deps{Config: cfg, Source: &keySource{key: input.KeyF1}})
	assert.ErrorIs(t, err, ErrManualCrash)
}

func TestRunManualRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.RestartHold = 0
	setups := 0
	source := &keySource{key: input.KeyF4}

	// the source only sends once, so the second run plays out its frames
	require.NoError(t, Run(withTimeout(t), Deps{
		Config: cfg,
		Source: source,
		Setup:  func(*GodState) error { setups++; return nil },
	}))
	assert.Equal(t, 2, setups)
}

func TestRunRestartsWhenJobSettingsChange(t *testing.T) {
	cfg := testConfig(t)
	setups := 0

	err := Run(withTimeout(t), Deps{
		Config: cfg,
		Setup: func(g *GodState) error {
			setups++
			if setups > 1 {
				return nil
			}
			return g.Commands.Push(func(g *GodState) error {
				b := g.Settings.BorrowMut()
				defer b.Release()
				workers := 3
				b.Get().SetWorkers(&workers)
				b.Get().RequestSave()
				return nil
			})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, setups)

	saved, ok := settings.NewSerializer(cfg.Paths.PrefDir).Deserialize()
	require.True(t, ok, "settings saved before the restart")
	require.NotNil(t, saved.Job.Workers)
	assert.Equal(t, 3, *saved.Job.Workers)
}

func TestRunFailsOnBadKeymap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Keymap = filepath.Join(t.TempDir(), "missing.yaml")
	assert.Error(t, Run(withTimeout(t), Deps{Config: cfg}))

	// the job system was released again
	cfg.Input.Keymap = ""
	assert.NoError(t, Run(withTimeout(t), Deps{Config: cfg}))
}

func TestHotReloaderReimportsAndWatches(t *testing.T) {
	dir := t.TempDir()
	src, dst := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("copied"), 0o644))

	h := NewHotReloader(src, dst, importer.Options{CacheFile: ".import_cache.yaml"}, zap.NewNop())
	defer func() { assert.NoError(t, h.Close()) }()
	require.NoError(t, h.Reload(context.Background()))
	b, err := os.ReadFile(filepath.Join(dst, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "copied", string(b))

	q := event.NewQueue()
	require.NoError(t, h.Watch(q))
	require.NoError(t, h.Watch(q), "watching twice is a no-op")
	require.NoError(t, os.WriteFile(filepath.Join(src, "more.txt"), []byte("x"), 0o644))

	bus := event.NewBus()
	var changed []string
	event.Subscribe(bus, func(e event.SourceChanged) { changed = append(changed, e.Path) })
	deadline := time.Now().Add(5 * time.Second)
	for len(changed) == 0 {
		require.True(t, time.Now().Before(deadline), "no change reported")
		q.Poll(bus)
		bus.SwapBuffers()
		bus.DispatchAll()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, filepath.Join(src, "more.txt"), changed[0])
}

func TestMeshComponentSceneRoundTrip(t *testing.T) {
	scene := newTestScene(t)
	h, err := ecs.NewStatic(scene, 0)
	require.NoError(t, err)
	mc, err := ecs.AddComponent[*MeshComponent](scene, h)
	require.NoError(t, err)
	require.NoError(t, mc.WithMut(scene, func(c *MeshComponent) error {
		c.SetMesh(asset.PathID("meshes/cube.ris_mesh"))
		return nil
	}))
	b, err := ecs.SerializeChunk(scene, 0)
	require.NoError(t, err)

	other := newTestScene(t)
	require.NoError(t, ecs.LoadChunk(other, 0, b))
	list, err := ecs.GetComponents[*MeshComponent](other, ecs.GameObjectHandle{}, ecs.GetFromAll)
	require.NoError(t, err)
	require.Len(t, list, 1)
	c, err := list[0].Get(other)
	require.NoError(t, err)
	assert.True(t, c.Mesh.Equal(asset.PathID("meshes/cube.ris_mesh")), "got %s", c.Mesh)
}
