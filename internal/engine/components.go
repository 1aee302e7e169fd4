package engine

import (
	"fmt"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/cache"
	"github.com/risengine/ris/internal/core/ecs"
)

// MeshComponent draws a mesh asset at its game object's world transform.
type MeshComponent struct {
	ecs.BaseComponent
	Mesh asset.AssetID

	// held while the component is alive, so the cache keeps the mesh
	lookupID *cache.LookupID
}

// SetMesh points the component at id. The previous mesh may be evicted by
// the next sweep.
func (c *MeshComponent) SetMesh(id asset.AssetID) {
	if c.Mesh.Equal(id) {
		return
	}
	c.Mesh = id
	c.releaseLookup()
}

func (c *MeshComponent) releaseLookup() {
	if c.lookupID != nil {
		c.lookupID.Release()
		c.lookupID = nil
	}
}

func (c *MeshComponent) Destroy(*ecs.Scene) {
	c.releaseLookup()
}

func (c *MeshComponent) Serialize(w *ecs.SceneWriter) error {
	return w.WriteAssetRef(c.Mesh)
}

func (c *MeshComponent) Deserialize(r *ecs.SceneReader) error {
	id, err := r.ReadAssetRef()
	if err != nil {
		return fmt.Errorf("read mesh reference: %w", err)
	}
	c.SetMesh(id)
	return nil
}

// NewRegistry returns a registry with the engine's own components. Games
// register theirs on top before the scene is built.
func NewRegistry() (*ecs.Registry, error) {
	r := ecs.NewRegistry()
	if err := ecs.RegisterComponent(r, "mesh", func() *MeshComponent { return &MeshComponent{} }); err != nil {
		return nil, fmt.Errorf("register engine components: %w", err)
	}
	return r, nil
}
