package engine

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/risengine/ris/internal/cache"
	"github.com/risengine/ris/internal/core/system"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"go.uber.org/zap"
)

// DrawContext is what a renderer gets to record one frame.
type DrawContext struct {
	Worker   *jobs.Worker
	Device   gpu.Device
	Frame    system.Frame
	InFlight *gpu.FrameInFlight
	ID       gpu.RendererID
	God      *GodState
	Camera   Camera
	Size     gputypes.Extent3D
	// ReloadShaders asks the renderer to rebuild its pipelines.
	ReloadShaders bool
}

// Framebuffer returns the renderer's framebuffer of the current frame.
func (c DrawContext) Framebuffer() (gpu.FramebufferID, error) {
	return c.InFlight.AllocFramebuffer(c.ID, c.Device, gpu.FramebufferInfo{Size: c.Size})
}

// Renderer records its part of every frame.
type Renderer interface {
	Name() string
	SecondaryCommandBuffers() int
	Draw(ctx DrawContext) error
	Free(w *jobs.Worker, d gpu.Device)
}

// Reloader re-imports the asset sources on a hot reload.
type Reloader interface {
	Reload(ctx context.Context) error
}

type OutputFrameCreateInfo struct {
	Device          gpu.Device
	Worker          *jobs.Worker
	FramesInFlight  int
	FreeUnusedEvery int
	Width, Height   uint32
	Meshes          *cache.MeshLookup
	Textures        *cache.TextureLookup
	Renderers       []Renderer
	// Reloader may be nil; a hot reload then only reloads the caches.
	Reloader Reloader
}

// OutputFrame records and submits one frame in flight per game loop frame.
type OutputFrame struct {
	ctx             context.Context
	log             *zap.Logger
	god             *GodState
	device          gpu.Device
	worker          *jobs.Worker
	meshes          *cache.MeshLookup
	textures        *cache.TextureLookup
	renderers       []Renderer
	ids             []gpu.RendererID
	info            gpu.FrameInFlightCreateInfo
	count           int
	frames          *gpu.FramesInFlight
	size            gputypes.Extent3D
	freeUnusedEvery uint64
	reloader        Reloader
}

func NewOutputFrame(ctx context.Context, god *GodState, info OutputFrameCreateInfo, log *zap.Logger) (*OutputFrame, error) {
	f := &OutputFrame{
		ctx:       ctx,
		log:       log,
		god:       god,
		device:    info.Device,
		worker:    info.Worker,
		meshes:    info.Meshes,
		textures:  info.Textures,
		renderers: info.Renderers,
		count:     info.FramesInFlight,
		size:      gputypes.NewExtent2D(info.Width, info.Height),
		reloader:  info.Reloader,
	}
	if info.FreeUnusedEvery > 0 {
		f.freeUnusedEvery = uint64(info.FreeUnusedEvery)
	}

	reg := gpu.RendererRegisterer{Info: &f.info}
	for _, r := range f.renderers {
		id, err := reg.Register(r.SecondaryCommandBuffers())
		if err != nil {
			return nil, fmt.Errorf("register renderer %s: %w", r.Name(), err)
		}
		f.ids = append(f.ids, id)
	}
	frames, err := gpu.NewFramesInFlight(f.device, f.count, f.info)
	if err != nil {
		return nil, fmt.Errorf("new output frame: %w", err)
	}
	f.frames = frames
	log.Debug("output frame created",
		zap.Int("renderers", f.info.RendererCount),
		zap.Int("secondary_command_buffers", f.info.SecondaryCommandBufferCount),
		zap.Int("frames_in_flight", f.count))
	return f, nil
}

func (f *OutputFrame) Phase() system.Phase { return system.PhaseOutput }

func (f *OutputFrame) Run(frame system.Frame) (system.State, error) {
	if f.god.ReloadRequested() {
		f.reload()
	}
	if w, h, ok := f.god.WindowResized(); ok {
		if err := f.rebuild(w, h); err != nil {
			return system.Continue, err
		}
	}

	inFlight, err := f.frames.AcquireNextFrame(f.device)
	if err != nil {
		return system.Continue, err
	}
	ctx := DrawContext{
		Worker:        f.worker,
		Device:        f.device,
		Frame:         frame,
		InFlight:      inFlight,
		God:           f.god,
		Camera:        f.god.CurrentCamera(),
		Size:          f.size,
		ReloadShaders: f.god.ReloadShaders(),
	}
	for i, r := range f.renderers {
		ctx.ID = f.ids[i]
		if err := r.Draw(ctx); err != nil {
			return system.Continue, fmt.Errorf("draw %s: %w", r.Name(), err)
		}
	}
	if err := inFlight.Submit(f.device); err != nil {
		return system.Continue, fmt.Errorf("submit frame %d: %w", inFlight.Index, err)
	}

	if f.freeUnusedEvery > 0 && frame.Number%f.freeUnusedEvery == 0 {
		if err := f.freeUnused(); err != nil {
			return system.Continue, err
		}
	}
	return system.Continue, nil
}

// reload runs the importer and reloads everything the caches hold. The
// shaders are reloaded by the renderers during this frame.
func (f *OutputFrame) reload() {
	f.log.Info("hot reload")
	if f.reloader != nil {
		if err := f.reloader.Reload(f.ctx); err != nil {
			// keep running on the assets that did import
			f.log.Warn("reimport failed", zap.Error(err))
		}
	}
	if f.meshes != nil {
		f.meshes.ReimportEverything(f.worker, f.device)
	}
	if f.textures != nil {
		f.textures.ReimportEverything(f.worker, f.device)
	}
	f.god.reloadShaders = true
}

// rebuild recreates the frames in flight for a new drawable size. The
// renderers keep their ids.
func (f *OutputFrame) rebuild(width, height uint32) error {
	if err := f.device.WaitIdle(); err != nil {
		return fmt.Errorf("rebuild renderers: %w", err)
	}
	for i, r := range f.renderers {
		reg := gpu.RendererRegisterer{Info: &f.info, Existing: &f.ids[i]}
		if _, err := reg.Register(r.SecondaryCommandBuffers()); err != nil {
			return fmt.Errorf("rebuild renderer %s: %w", r.Name(), err)
		}
	}
	f.frames.Free(f.device)
	frames, err := gpu.NewFramesInFlight(f.device, f.count, f.info)
	if err != nil {
		return fmt.Errorf("rebuild renderers: %w", err)
	}
	f.frames = frames
	f.size = gputypes.NewExtent2D(width, height)
	f.log.Debug("renderers rebuilt", zap.Uint32("width", width), zap.Uint32("height", height))
	return nil
}

func (f *OutputFrame) freeUnused() error {
	if f.meshes != nil {
		n, err := f.meshes.FreeUnusedMeshes(f.worker, f.device)
		if err != nil {
			return fmt.Errorf("free unused meshes: %w", err)
		}
		if n > 0 {
			f.log.Debug("freed unused meshes", zap.Int("count", n))
		}
	}
	if f.textures != nil {
		n, err := f.textures.FreeUnusedTextures(f.worker, f.device)
		if err != nil {
			return fmt.Errorf("free unused textures: %w", err)
		}
		if n > 0 {
			f.log.Debug("freed unused textures", zap.Int("count", n))
		}
	}
	return nil
}

// Free waits for the device and releases the renderers, the caches and the
// frames in flight.
func (f *OutputFrame) Free() error {
	err := f.device.WaitIdle()
	for _, r := range f.renderers {
		r.Free(f.worker, f.device)
	}
	if f.meshes != nil {
		f.meshes.Free(f.worker, f.device)
	}
	if f.textures != nil {
		f.textures.Free(f.worker, f.device)
	}
	f.frames.Free(f.device)
	return err
}
