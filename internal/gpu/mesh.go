package gpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/binio"
	"github.com/risengine/ris/internal/mathx"
)

// IndexFormat maps a mesh file index type to the backend's index format.
// 8 bit indices are widened to 16 bit on upload; meshes without indices
// draw non-indexed and map to IndexFormatUndefined.
func IndexFormat(t asset.IndexType) gputypes.IndexFormat {
	switch t {
	case asset.IndexUint8, asset.IndexUint16:
		return gputypes.IndexFormatUint16
	case asset.IndexUint32:
		return gputypes.IndexFormatUint32
	default:
		return gputypes.IndexFormatUndefined
	}
}

// Mesh is a mesh resident in GPU buffers. Vertices, normals and uvs live in
// separate vertex buffers.
type Mesh struct {
	Vertices    BufferID
	Normals     BufferID
	UVs         BufferID
	Indices     BufferID
	VertexCount uint32
	IndexCount  uint32
	IndexFormat gputypes.IndexFormat
}

// UploadMesh creates the buffers of m and fills them.
func UploadMesh(d Device, m *asset.CpuMesh) (*Mesh, error) {
	gm := &Mesh{}
	if err := gm.write(d, m); err != nil {
		gm.Free(d)
		return nil, err
	}
	return gm, nil
}

func UploadMeshPrototype(d Device, p *asset.MeshPrototype) (*Mesh, error) {
	m, err := p.ToCpuMesh()
	if err != nil {
		return nil, err
	}
	return UploadMesh(d, m)
}

// Overwrite replaces the contents of gm with m. Buffers are reused when the
// vertex and index counts match and recreated otherwise.
func (gm *Mesh) Overwrite(d Device, m *asset.CpuMesh) error {
	if uint32(len(m.Vertices)) != gm.VertexCount || uint32(m.IndexCount()) != gm.IndexCount || IndexFormat(m.IndexType) != gm.IndexFormat {
		gm.Free(d)
	}
	if err := gm.write(d, m); err != nil {
		gm.Free(d)
		return err
	}
	return nil
}

func (gm *Mesh) write(d Device, m *asset.CpuMesh) error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("upload mesh: %w: no vertices", asset.ErrInvalidMesh)
	}
	vertices, err := encodeVec3s(m.Vertices)
	if err != nil {
		return err
	}
	normals, err := encodeVec3s(m.Normals)
	if err != nil {
		return err
	}
	uvs, err := encodeVec2s(m.UVs)
	if err != nil {
		return err
	}

	if gm.Vertices, err = fill(d, gm.Vertices, "mesh vertices", gputypes.BufferUsageVertex, vertices); err != nil {
		return err
	}
	if gm.Normals, err = fill(d, gm.Normals, "mesh normals", gputypes.BufferUsageVertex, normals); err != nil {
		return err
	}
	if gm.UVs, err = fill(d, gm.UVs, "mesh uvs", gputypes.BufferUsageVertex, uvs); err != nil {
		return err
	}
	gm.VertexCount = uint32(len(m.Vertices))
	gm.IndexCount = uint32(m.IndexCount())
	gm.IndexFormat = IndexFormat(m.IndexType)

	if m.IndexType == asset.IndexNone || gm.IndexCount == 0 {
		return nil
	}
	indices := m.Indices
	if m.IndexType == asset.IndexUint8 {
		indices = make([]byte, 2*len(m.Indices))
		for i, v := range m.Indices {
			binary.LittleEndian.PutUint16(indices[2*i:], uint16(v))
		}
	}
	gm.Indices, err = fill(d, gm.Indices, "mesh indices", gputypes.BufferUsageIndex, indices)
	return err
}

// fill writes data into id, creating the buffer when id is zero.
func fill(d Device, id BufferID, label string, usage gputypes.BufferUsage, data []byte) (BufferID, error) {
	if id == 0 {
		var err error
		id, err = d.CreateBuffer(gputypes.BufferDescriptor{
			Label: label,
			Size:  uint64(len(data)),
			Usage: usage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", label, err)
		}
	}
	if err := d.WriteBuffer(id, 0, data); err != nil {
		return id, fmt.Errorf("write %s: %w", label, err)
	}
	return id, nil
}

func encodeVec3s(values []mathx.Vec3) ([]byte, error) {
	b := binio.NewBuffer(make([]byte, 0, 12*len(values)))
	for _, v := range values {
		if err := binio.WriteVec3(b, v); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func encodeVec2s(values []mathx.Vec2) ([]byte, error) {
	b := binio.NewBuffer(make([]byte, 0, 8*len(values)))
	for _, v := range values {
		if err := binio.WriteVec2(b, v); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// Free destroys the buffers of gm. Freeing twice is harmless.
func (gm *Mesh) Free(d Device) {
	for _, id := range []*BufferID{&gm.Vertices, &gm.Normals, &gm.UVs, &gm.Indices} {
		if *id != 0 {
			d.DestroyBuffer(*id)
			*id = 0
		}
	}
	gm.VertexCount, gm.IndexCount = 0, 0
}
