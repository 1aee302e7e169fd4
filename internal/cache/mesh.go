package cache

import (
	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"go.uber.org/zap"
)

// MeshLookup caches GPU meshes by asset id.
type MeshLookup struct {
	lookup[*gpu.Mesh]
}

func NewMeshLookup(loader asset.Loader, log *zap.Logger) *MeshLookup {
	return &MeshLookup{lookup[*gpu.Mesh]{
		kind: "mesh",
		log:  log,
		load: func(w *jobs.Worker, d gpu.Device, id asset.AssetID) *jobs.OneshotReceiver[asset.Result[*gpu.Mesh]] {
			return asset.LoadAsync(w, loader, id, func(b []byte) (*gpu.Mesh, error) {
				m, err := asset.DeserializeMesh(b)
				if err != nil {
					return nil, err
				}
				return gpu.UploadMesh(d, m)
			})
		},
		free: func(d gpu.Device, m *gpu.Mesh) { m.Free(d) },
	}}
}

// Alloc returns the id of the mesh for id, starting to load it if needed.
func (l *MeshLookup) Alloc(w *jobs.Worker, d gpu.Device, id asset.AssetID) *LookupID {
	return l.alloc(w, d, id)
}

// Get returns the mesh once it finished loading. id must come from this
// lookup and must outlive every command buffer that binds the mesh.
func (l *MeshLookup) Get(id *LookupID) (*gpu.Mesh, bool) {
	return l.get(id)
}

// FreeUnusedMeshes frees the meshes nobody holds an id for anymore.
func (l *MeshLookup) FreeUnusedMeshes(w *jobs.Worker, d gpu.Device) (int, error) {
	return l.freeUnused(w, d)
}

// ReimportEverything reloads every mesh, for example after a hot reload.
func (l *MeshLookup) ReimportEverything(w *jobs.Worker, d gpu.Device) {
	l.reimport(w, d)
}

func (l *MeshLookup) Free(w *jobs.Worker, d gpu.Device) {
	l.freeAll(w, d)
}

// Loaded counts the meshes resident on the GPU.
func (l *MeshLookup) Loaded() int {
	return l.loaded()
}
