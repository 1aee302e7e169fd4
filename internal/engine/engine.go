package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/cache"
	"github.com/risengine/ris/internal/config"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/core/event"
	"github.com/risengine/ris/internal/core/system"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/importer"
	"github.com/risengine/ris/internal/input"
	"github.com/risengine/ris/internal/jobs"
	"github.com/risengine/ris/internal/settings"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Deps is what Run needs from the binary.
type Deps struct {
	Config *config.Config
	Log    *zap.Logger
	// Device is the GPU backend. Nil runs headless on a MemoryDevice.
	Device gpu.Device
	// Source delivers window events. It may be nil.
	Source event.Source
	// Events takes events from other goroutines, such as a signal handler.
	Events *event.Queue
	// Register adds the game's components and scripts to the registry.
	Register func(r *ecs.Registry) error
	// Setup populates the scene after every start and restart.
	Setup func(g *GodState) error
}

// Run runs the game loop until it quits, rebuilding everything on a
// restart. Cancelling ctx quits after the current frame.
func Run(ctx context.Context, deps Deps) error {
	if deps.Config == nil {
		return fmt.Errorf("run engine: no config")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = event.NewQueue()
	}
	for restarts := 0; ; restarts++ {
		state, err := runOnce(ctx, deps)
		if err != nil {
			return err
		}
		if state != system.WantsToRestart {
			deps.Log.Info("engine stopped", zap.Int("restarts", restarts))
			return nil
		}
		deps.Log.Info("restarting engine")
	}
}

func runOnce(ctx context.Context, deps Deps) (system.State, error) {
	inst, err := start(ctx, deps)
	if err != nil {
		if cerr := inst.close(); cerr != nil {
			deps.Log.Warn("close after failed start", zap.Error(cerr))
		}
		return system.WantsToQuit, err
	}
	state, err := inst.loop(ctx)
	return state, multierr.Append(err, inst.close())
}

// instance is one run of the engine between two restarts.
type instance struct {
	log        *zap.Logger
	cfg        *config.Config
	sys        *jobs.System
	worker     *jobs.Worker
	serializer *settings.Serializer
	compiled   *asset.CompiledLoader
	scene      *ecs.Scene
	god        *GodState
	runner     *system.Runner
	output     *OutputFrame
	reloader   *HotReloader
}

func importOptions(cfg *config.Config) importer.Options {
	return importer.Options{
		Compiler:    importer.Glslc{Path: cfg.Importer.Glslc},
		Parallelism: cfg.Importer.Parallelism,
		CacheFile:   cfg.Importer.CacheFile,
	}
}

// start builds an instance. On error the partly built instance is returned
// so the caller can close it.
func start(ctx context.Context, deps Deps) (*instance, error) {
	cfg, log := deps.Config, deps.Log
	inst := &instance{log: log, cfg: cfg}

	prefDir, err := settings.PrefDir(cfg.Paths.PrefDir)
	if err != nil {
		return inst, err
	}
	inst.serializer = settings.NewSerializer(prefDir)
	s, ok := inst.serializer.Deserialize()
	if !ok {
		log.Info("no usable settings, using defaults", zap.String("dir", prefDir))
		s = settings.Default()
	}

	workers := cfg.Jobs.Workers
	if s.Job.Workers != nil {
		workers = *s.Job.Workers
	}
	inst.sys, inst.worker, err = jobs.Init(jobs.Config{Workers: workers, BufferCapacity: cfg.Jobs.BufferCapacity}, log)
	if err != nil {
		return inst, fmt.Errorf("init job system: %w", err)
	}

	in := input.NewState(cfg.Input.RestartHold, cfg.Input.CrashHold)
	keymap := input.DefaultKeymap()
	keymapPath := cfg.Input.Keymap
	if s.Keymap != "" {
		keymapPath = s.Keymap
	}
	if keymapPath != "" {
		if keymap, err = input.LoadKeymap(keymapPath); err != nil {
			return inst, err
		}
	}
	if err := keymap.Apply(in); err != nil {
		return inst, fmt.Errorf("apply keymap: %w", err)
	}

	if cfg.Assets.ImportOnStart {
		stats, err := importer.Import(ctx, cfg.Assets.Source, cfg.Assets.Directory, importOptions(cfg), log)
		if err != nil {
			log.Warn("import on start", zap.Error(err))
		}
		log.Info("assets imported", zap.Int("imported", stats.Imported), zap.Int("skipped", stats.Skipped))
	}

	var loader asset.Loader
	if cfg.Assets.UseCompiled {
		if inst.compiled, err = asset.OpenCompiled(cfg.Assets.Compiled); err != nil {
			return inst, err
		}
		loader = inst.compiled
	} else {
		loader = asset.NewDirectoryLoader(cfg.Assets.Directory)
		inst.reloader = NewHotReloader(cfg.Assets.Source, cfg.Assets.Directory, importOptions(cfg), log)
	}

	var godAsset *asset.GodAsset
	if cfg.Assets.GodAsset != "" {
		if godAsset, err = asset.LoadGodAsset(loader, asset.ParseAssetID(cfg.Assets.GodAsset)); err != nil {
			log.Warn("running without god asset", zap.Error(err))
			godAsset = nil
		}
	}

	registry, err := NewRegistry()
	if err != nil {
		return inst, err
	}
	if deps.Register != nil {
		if err := deps.Register(registry); err != nil {
			return inst, fmt.Errorf("register game types: %w", err)
		}
	}
	inst.scene, err = ecs.NewScene(ecs.SceneCreateInfo{
		DynamicCapacity: cfg.Scene.DynamicCapacity,
		StaticChunks:    cfg.Scene.StaticChunks,
		StaticCapacity:  cfg.Scene.StaticCapacity,
	}, registry, log)
	if err != nil {
		return inst, fmt.Errorf("new scene: %w", err)
	}

	inst.god = NewGodState(GodStateCreateInfo{
		Input:    in,
		Settings: s,
		Scene:    inst.scene,
		GodAsset: godAsset,
	})

	device := deps.Device
	if device == nil {
		device = gpu.NewMemoryDevice()
	}
	meshes := cache.NewMeshLookup(loader, log)
	textures := cache.NewTextureLookup(loader, log)
	renderers := []Renderer{NewSceneRenderer(meshes, textures, log)}
	if cfg.Renderer.TerrainRingSize > 0 {
		ring, err := cache.NewTerrainMeshRingBuffer(cfg.Renderer.TerrainRingSize, cfg.Renderer.TerrainWidth, log)
		if err != nil {
			return inst, err
		}
		renderers = append(renderers, NewTerrainRenderer(ring, log))
	}
	info := OutputFrameCreateInfo{
		Device:          device,
		Worker:          inst.worker,
		FramesInFlight:  cfg.Renderer.FramesInFlight,
		FreeUnusedEvery: cfg.Renderer.FreeUnusedEvery,
		Width:           s.Window.Width,
		Height:          s.Window.Height,
		Meshes:          meshes,
		Textures:        textures,
		Renderers:       renderers,
	}
	if inst.reloader != nil {
		info.Reloader = inst.reloader
	}
	if inst.output, err = NewOutputFrame(ctx, inst.god, info, log); err != nil {
		return inst, err
	}

	if cfg.Assets.WatchSource && inst.reloader != nil {
		if err := inst.reloader.Watch(deps.Events); err != nil {
			log.Warn("hot reload on source changes disabled", zap.Error(err))
		}
	}

	var sources event.Sources
	if deps.Source != nil {
		sources = append(sources, deps.Source)
	}
	sources = append(sources, deps.Events)
	inst.runner = system.NewRunner()
	inst.runner.Register(inst.output)
	inst.runner.Register(NewLogicFrame(inst.god, log))
	inst.runner.Register(NewInputFrame(inst.god, event.NewBus(), sources, log))

	if deps.Setup != nil {
		if err := deps.Setup(inst.god); err != nil {
			return inst, fmt.Errorf("set up scene: %w", err)
		}
	}
	log.Info("engine started",
		zap.Int("workers", inst.sys.Workers()),
		zap.Bool("compiled_assets", cfg.Assets.UseCompiled),
		zap.Bool("god_asset", godAsset != nil))
	return inst, nil
}

func (e *instance) loop(ctx context.Context) (system.State, error) {
	calc := system.NewFrameCalculator()
	for {
		if ctx.Err() != nil {
			return system.WantsToQuit, nil
		}
		began := time.Now()
		frame := calc.Next()

		prev := e.god.ResetEvents()
		save := jobs.Submit(e.worker, func(*jobs.Worker) error {
			return e.saveSettings(prev)
		})

		state, err := e.runner.Tick(frame)
		saveErr := save.Wait(e.worker)
		if err != nil {
			return system.WantsToQuit, err
		}
		if saveErr != nil {
			e.log.Error("save settings", zap.Error(saveErr))
		}

		if e.god.CurrentSettings().JobChanged() {
			e.log.Info("job settings changed, restarting")
			state = state.Merge(system.WantsToRestart)
		}
		if limit := e.cfg.Loop.MaxFrames; limit > 0 && frame.Number >= limit {
			state = state.Merge(system.WantsToQuit)
		}
		if state != system.Continue {
			e.log.Debug("leaving game loop", zap.Stringer("state", state), zap.Uint64("frame", frame.Number))
			return state, nil
		}

		if budget := e.cfg.Loop.FrameBudget; budget > 0 {
			if rest := budget - time.Since(began); rest > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(rest):
				}
			}
		}
	}
}

func (e *instance) saveSettings(s *settings.Settings) error {
	if !s.SaveRequested() {
		return nil
	}
	return e.serializer.Serialize(s)
}

// close tears down whatever start built, in reverse order. Settings asked
// to be saved during the last frame are saved here.
func (e *instance) close() error {
	var errs error
	if e.reloader != nil {
		errs = multierr.Append(errs, e.reloader.Close())
	}
	if e.god != nil {
		errs = multierr.Append(errs, e.saveSettings(e.god.CurrentSettings()))
	}
	if e.output != nil {
		errs = multierr.Append(errs, e.output.Free())
	}
	if e.scene != nil {
		e.scene.Free()
	}
	if e.compiled != nil {
		errs = multierr.Append(errs, e.compiled.Close())
	}
	if e.sys != nil {
		e.sys.Close()
	}
	return errs
}
