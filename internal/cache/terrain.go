package cache

import (
	"fmt"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/gpu"
	"github.com/risengine/ris/internal/jobs"
	"github.com/risengine/ris/internal/mathx"
	"github.com/risengine/ris/internal/ptr"
	"go.uber.org/zap"
)

const terrainKind = "terrain mesh"

// TerrainMeshRingBuffer streams terrain meshes generated from one grid. Every
// Alloc stamps the grid at the next offset into the next ring slot, reusing
// the slot's GPU buffers when nothing references them anymore.
type TerrainMeshRingBuffer struct {
	log       *zap.Logger
	prototype *asset.TerrainPrototype
	entries   []*entry[*gpu.Mesh]
	head      int
	offset    mathx.Vec2
}

func NewTerrainMeshRingBuffer(size, width int, log *zap.Logger) (*TerrainMeshRingBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("terrain ring buffer size must be positive, got %d", size)
	}
	prototype, err := asset.NewTerrainGrid(width)
	if err != nil {
		return nil, fmt.Errorf("new terrain ring buffer: %w", err)
	}
	b := &TerrainMeshRingBuffer{
		log:       log,
		prototype: prototype,
		entries:   make([]*entry[*gpu.Mesh], size),
		head:      size - 1,
		offset:    mathx.Vec2{X: float32(width)},
	}
	for i := range b.entries {
		b.entries[i] = &entry[*gpu.Mesh]{lookupID: ptr.NewStrongPtr(i)}
	}
	return b, nil
}

// Offset is the offset the most recent Alloc stamped into its mesh.
func (b *TerrainMeshRingBuffer) Offset() mathx.Vec2 {
	return b.offset
}

// Alloc generates the next terrain mesh on the job system. It fails with
// ErrRingBufferBusy while the next slot is still referenced.
func (b *TerrainMeshRingBuffer) Alloc(w *jobs.Worker, d gpu.Device) error {
	next := (b.head + 1) % len(b.entries)
	e := b.entries[next]
	if !e.lookupID.IsUnique() {
		return ErrRingBufferBusy
	}
	if w == nil {
		return fmt.Errorf("alloc %s: no job worker", terrainKind)
	}

	prev, _ := e.take(w, b.log, terrainKind)
	b.offset = b.offset.Rotate2D(mathx.Pi / 2)
	offset, prototype := b.offset, b.prototype

	tx, rx := jobs.NewOneshot[asset.Result[*gpu.Mesh]]()
	jobs.Submit(w, func(*jobs.Worker) struct{} {
		m, err := stampTerrain(d, prototype, offset, prev)
		tx.Send(asset.Result[*gpu.Mesh]{Value: m, Err: err})
		return struct{}{}
	})
	e.receiver, e.state = rx, stateLoading
	b.head = next
	return nil
}

func stampTerrain(d gpu.Device, p *asset.TerrainPrototype, offset mathx.Vec2, prev *gpu.Mesh) (*gpu.Mesh, error) {
	cpu, err := p.ToMesh(offset).ToCpuMesh()
	if err != nil {
		if prev != nil {
			prev.Free(d)
		}
		return nil, err
	}
	if prev == nil {
		return gpu.UploadMesh(d, cpu)
	}
	if err := prev.Overwrite(d, cpu); err != nil {
		prev.Free(d)
		return nil, err
	}
	return prev, nil
}

// GetLatestID returns a new id for the most recently allocated slot that
// finished loading, or nil when none has.
func (b *TerrainMeshRingBuffer) GetLatestID() *LookupID {
	n := len(b.entries)
	for i := range n {
		e := b.entries[(b.head-i+n)%n]
		e.poll(b.log, terrainKind)
		if e.state == stateLoaded {
			return e.lookupID.Clone()
		}
	}
	return nil
}

func (b *TerrainMeshRingBuffer) Get(id *LookupID) (*gpu.Mesh, error) {
	index := *id.Get()
	if index < 0 || index >= len(b.entries) {
		return nil, fmt.Errorf("%s lookup id %d out of range", terrainKind, index)
	}
	e := b.entries[index]
	e.poll(b.log, terrainKind)
	if e.state != stateLoaded {
		return nil, fmt.Errorf("%s %d: %w", terrainKind, index, ErrNotLoaded)
	}
	return e.value, nil
}

func (b *TerrainMeshRingBuffer) Free(w *jobs.Worker, d gpu.Device) {
	for _, e := range b.entries {
		if m, ok := e.take(w, b.log, terrainKind); ok {
			m.Free(d)
		}
		e.lookupID.Release()
	}
	b.entries = nil
}
