package cache

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"github.com/risengine/ris/internal/mathx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func initJobs(t *testing.T) *jobs.Worker {
	t.Helper()
	sys, w, err := jobs.Init(jobs.Config{Workers: 2, BufferCapacity: 16}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(sys.Close)
	return w
}

// runUntil runs pending jobs on w until done reports true.
func runUntil(t *testing.T, w *jobs.Worker, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		require.True(t, time.Now().Before(deadline), "timed out")
		w.RunPendingJob()
	}
}

func writeMesh(t *testing.T, dir, name string, vertices int) {
	t.Helper()
	p := &asset.MeshPrototype{}
	for i := range vertices {
		p.Vertices = append(p.Vertices, mathx.Vec3{X: float32(i)})
		p.Normals = append(p.Normals, mathx.Up())
		p.UVs = append(p.UVs, mathx.Vec2{X: 1})
		p.Indices = append(p.Indices, uint32(i))
	}
	cpu, err := p.ToCpuMesh()
	require.NoError(t, err)
	b, err := asset.SerializeMesh(cpu)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func TestMeshLookupLifecycle(t *testing.T) {
	w := initJobs(t)
	dir := t.TempDir()
	writeMesh(t, dir, "tri.ris_mesh", 3)
	d := gpu.NewMemoryDevice()
	l := NewMeshLookup(asset.NewDirectoryLoader(dir), zap.NewNop())

	id := l.Alloc(w, d, asset.PathID("tri.ris_mesh"))
	again := l.Alloc(w, d, asset.PathID("tri.ris_mesh"))
	assert.Equal(t, *id.Get(), *again.Get(), "same asset shares an entry")

	var mesh *gpu.Mesh
	runUntil(t, w, func() bool {
		var ok bool
		mesh, ok = l.Get(id)
		return ok
	})
	assert.Equal(t, uint32(3), mesh.VertexCount)
	assert.Equal(t, 4, d.Stats().Buffers)
	assert.Equal(t, 1, l.Loaded())

	freed, err := l.FreeUnusedMeshes(w, d)
	require.NoError(t, err)
	assert.Zero(t, freed, "ids are still held")
	assert.Zero(t, d.Stats().WaitIdles)

	id.Release()
	again.Release()
	freed, err = l.FreeUnusedMeshes(w, d)
	require.NoError(t, err)
	assert.Equal(t, 1, freed)
	assert.Zero(t, d.Stats().Buffers)
	assert.Equal(t, 1, d.Stats().WaitIdles)

	id = l.Alloc(w, d, asset.PathID("tri.ris_mesh"))
	runUntil(t, w, func() bool {
		_, ok := l.Get(id)
		return ok
	})
	id.Release()

	l.Free(w, d)
	assert.Zero(t, d.Stats().Buffers)
}

func TestMeshLookupReusesUnreferencedEntry(t *testing.T) {
	w := initJobs(t)
	dir := t.TempDir()
	writeMesh(t, dir, "a.ris_mesh", 3)
	writeMesh(t, dir, "b.ris_mesh", 6)
	d := gpu.NewMemoryDevice()
	l := NewMeshLookup(asset.NewDirectoryLoader(dir), zap.NewNop())
	defer l.Free(w, d)

	a := l.Alloc(w, d, asset.PathID("a.ris_mesh"))
	runUntil(t, w, func() bool {
		_, ok := l.Get(a)
		return ok
	})
	index := *a.Get()
	a.Release()

	b := l.Alloc(w, d, asset.PathID("b.ris_mesh"))
	defer b.Release()
	assert.Equal(t, index, *b.Get())
	var mesh *gpu.Mesh
	runUntil(t, w, func() bool {
		var ok bool
		mesh, ok = l.Get(b)
		return ok
	})
	assert.Equal(t, uint32(6), mesh.VertexCount)
	assert.Equal(t, 4, d.Stats().Buffers, "the previous mesh was freed")
}

func TestMeshLookupFailedLoadResets(t *testing.T) {
	w := initJobs(t)
	d := gpu.NewMemoryDevice()
	l := NewMeshLookup(asset.NewDirectoryLoader(t.TempDir()), zap.NewNop())
	defer l.Free(w, d)

	id := l.Alloc(w, d, asset.PathID("missing.ris_mesh"))
	defer id.Release()
	e := l.entries[*id.Get()]
	runUntil(t, w, func() bool {
		l.Get(id)
		return e.state != stateLoading
	})
	assert.Equal(t, stateNone, e.state)
	_, ok := l.Get(id)
	assert.False(t, ok)
}

func TestMeshLookupReimport(t *testing.T) {
	w := initJobs(t)
	dir := t.TempDir()
	writeMesh(t, dir, "m.ris_mesh", 3)
	d := gpu.NewMemoryDevice()
	l := NewMeshLookup(asset.NewDirectoryLoader(dir), zap.NewNop())
	defer l.Free(w, d)

	id := l.Alloc(w, d, asset.PathID("m.ris_mesh"))
	defer id.Release()
	runUntil(t, w, func() bool {
		_, ok := l.Get(id)
		return ok
	})

	writeMesh(t, dir, "m.ris_mesh", 9)
	l.ReimportEverything(w, d)
	var mesh *gpu.Mesh
	runUntil(t, w, func() bool {
		var ok bool
		mesh, ok = l.Get(id)
		return ok
	})
	assert.Equal(t, uint32(9), mesh.VertexCount)
	assert.Equal(t, 4, d.Stats().Buffers)
}

func TestTextureLookup(t *testing.T) {
	w := initJobs(t)
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.Set(1, 2, color.NRGBA{R: 255, A: 255})
	b, err := asset.EncodeQOI(img)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.qoi"), b, 0o644))

	d := gpu.NewMemoryDevice()
	l := NewTextureLookup(asset.NewDirectoryLoader(dir), zap.NewNop())

	id := l.Alloc(w, d, asset.PathID("t.qoi"))
	var tex *gpu.Texture
	runUntil(t, w, func() bool {
		var ok bool
		tex, ok = l.Get(id)
		return ok
	})
	assert.Equal(t, uint32(2), tex.Size.Width)
	assert.Equal(t, uint32(3), tex.Size.Height)
	assert.Equal(t, 1, d.Stats().Textures)

	id.Release()
	freed, err := l.FreeUnusedTextures(w, d)
	require.NoError(t, err)
	assert.Equal(t, 1, freed)
	assert.Zero(t, d.Stats().Textures)
	l.Free(w, d)
}

func TestTerrainRingBuffer(t *testing.T) {
	w := initJobs(t)
	d := gpu.NewMemoryDevice()
	b, err := NewTerrainMeshRingBuffer(2, 2, zap.NewNop())
	require.NoError(t, err)
	defer b.Free(w, d)

	assert.Nil(t, b.GetLatestID())

	require.NoError(t, b.Alloc(w, d))
	assert.InDelta(t, 0, b.Offset().X, 1e-5)
	assert.InDelta(t, 2, b.Offset().Y, 1e-5)
	var first *LookupID
	runUntil(t, w, func() bool {
		first = b.GetLatestID()
		return first != nil
	})
	defer first.Release()
	assert.Equal(t, 0, *first.Get())
	mesh, err := b.Get(first)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), mesh.VertexCount)

	require.NoError(t, b.Alloc(w, d))
	assert.InDelta(t, -2, b.Offset().X, 1e-5)
	var second *LookupID
	runUntil(t, w, func() bool {
		if second != nil {
			second.Release()
		}
		second = b.GetLatestID()
		return second != nil && *second.Get() == 1
	})
	defer second.Release()

	assert.ErrorIs(t, b.Alloc(w, d), ErrRingBufferBusy)

	first.Release()
	require.NoError(t, b.Alloc(w, d))
	slot0 := slotID(t, b, 0)
	runUntil(t, w, func() bool {
		_, err := b.Get(slot0)
		return err == nil
	})
	assert.Equal(t, 8, d.Stats().Buffers, "slot 0 reused its buffers")
}

func slotID(t *testing.T, b *TerrainMeshRingBuffer, slot int) *LookupID {
	t.Helper()
	id := b.entries[slot].lookupID.Clone()
	t.Cleanup(id.Release)
	return id
}

func TestTerrainRingBufferGetUnloaded(t *testing.T) {
	b, err := NewTerrainMeshRingBuffer(1, 2, zap.NewNop())
	require.NoError(t, err)
	_, err = b.Get(slotID(t, b, 0))
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = NewTerrainMeshRingBuffer(0, 2, zap.NewNop())
	assert.Error(t, err)
	_, err = NewTerrainMeshRingBuffer(1, 0, zap.NewNop())
	assert.Error(t, err)
}
