package engine

import (
	"errors"
	"fmt"

	"github.com/risengine/ris/internal/cache"
	"github.com/risengine/ris/internal/core/ecs"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"go.uber.org/zap"
)

// SceneRenderer draws every active MeshComponent of the scene with the god
// asset's texture.
type SceneRenderer struct {
	log      *zap.Logger
	meshes   *cache.MeshLookup
	textures *cache.TextureLookup

	texture  *cache.LookupID
	pipeline int // bumped whenever the shaders are (re)built

	// last frame
	drawn    int
	vertices uint32
}

func NewSceneRenderer(meshes *cache.MeshLookup, textures *cache.TextureLookup, log *zap.Logger) *SceneRenderer {
	return &SceneRenderer{log: log, meshes: meshes, textures: textures}
}

func (r *SceneRenderer) Name() string                 { return "scene" }
func (r *SceneRenderer) SecondaryCommandBuffers() int { return 1 }

// Drawn reports the meshes and vertices drawn by the last frame.
func (r *SceneRenderer) Drawn() (int, uint32) { return r.drawn, r.vertices }

// Pipeline counts the shader builds.
func (r *SceneRenderer) Pipeline() int { return r.pipeline }

func (r *SceneRenderer) Draw(ctx DrawContext) error {
	if r.pipeline == 0 || ctx.ReloadShaders {
		r.pipeline++
		r.log.Debug("scene shaders built", zap.Int("pipeline", r.pipeline))
	}
	if _, err := ctx.Framebuffer(); err != nil {
		return err
	}
	if r.texture == nil && ctx.God.GodAsset != nil && r.textures != nil {
		r.texture = r.textures.Alloc(ctx.Worker, ctx.Device, ctx.God.GodAsset.Texture)
	}

	r.drawn, r.vertices = 0, 0
	scene := ctx.God.Scene
	if scene == nil {
		return nil
	}
	components, err := ecs.GetComponents[*MeshComponent](scene, ecs.GameObjectHandle{}, ecs.GetFromAll)
	if err != nil {
		return fmt.Errorf("collect meshes: %w", err)
	}
	for _, h := range components {
		owner, err := h.GameObject(scene)
		if err != nil {
			continue
		}
		if active, err := owner.IsActiveInHierarchy(scene); err != nil || !active {
			continue
		}
		err = h.WithMut(scene, func(c *MeshComponent) error {
			if c.lookupID == nil {
				c.lookupID = r.meshes.Alloc(ctx.Worker, ctx.Device, c.Mesh)
			}
			if m, ok := r.meshes.Get(c.lookupID); ok {
				r.drawn++
				r.vertices += m.VertexCount
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("draw mesh: %w", err)
		}
	}
	return nil
}

func (r *SceneRenderer) Free(*jobs.Worker, gpu.Device) {
	if r.texture != nil {
		r.texture.Release()
		r.texture = nil
	}
}

// TerrainRenderer streams terrain through a ring buffer. A new terrain mesh
// is stamped on the first frame and on every shader reload; the renderer
// switches to it once it finished loading.
type TerrainRenderer struct {
	log     *zap.Logger
	ring    *cache.TerrainMeshRingBuffer
	current *cache.LookupID
	pending bool

	vertices uint32
}

func NewTerrainRenderer(ring *cache.TerrainMeshRingBuffer, log *zap.Logger) *TerrainRenderer {
	return &TerrainRenderer{log: log, ring: ring}
}

func (r *TerrainRenderer) Name() string                 { return "terrain" }
func (r *TerrainRenderer) SecondaryCommandBuffers() int { return 0 }

// Vertices reports the vertices drawn by the last frame.
func (r *TerrainRenderer) Vertices() uint32 { return r.vertices }

func (r *TerrainRenderer) Draw(ctx DrawContext) error {
	if (r.current == nil && !r.pending) || ctx.ReloadShaders {
		err := r.ring.Alloc(ctx.Worker, ctx.Device)
		switch {
		case errors.Is(err, cache.ErrRingBufferBusy):
			r.log.Debug("terrain ring buffer busy")
		case err != nil:
			return fmt.Errorf("alloc terrain: %w", err)
		default:
			r.pending = true
		}
	}

	if r.pending {
		if latest := r.ring.GetLatestID(); latest != nil {
			if r.current == nil || *latest.Get() != *r.current.Get() {
				if r.current != nil {
					r.current.Release()
				}
				r.current = latest
				r.pending = false
			} else {
				latest.Release()
			}
		}
	}

	if _, err := ctx.Framebuffer(); err != nil {
		return err
	}
	r.vertices = 0
	if r.current == nil {
		return nil
	}
	m, err := r.ring.Get(r.current)
	if err != nil {
		return fmt.Errorf("get terrain: %w", err)
	}
	r.vertices = m.VertexCount
	return nil
}

func (r *TerrainRenderer) Free(w *jobs.Worker, d gpu.Device) {
	if r.current != nil {
		r.current.Release()
		r.current = nil
	}
	r.ring.Free(w, d)
}
