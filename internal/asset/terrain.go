package asset

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/risengine/ris/internal/binio"
	"github.com/risengine/ris/internal/mathx"
)

var TerrainMagic = Magic("ris_terrain")

// TerrainVertex is a grid coordinate.
type TerrainVertex struct {
	X int32
	Y int32
}

type TerrainPrototype struct {
	Vertices []TerrainVertex
	Indices  []uint32
}

// NewTerrainGrid builds a flat width×width grid of quads, two triangles each,
// centred on the origin.
func NewTerrainGrid(width int) (*TerrainPrototype, error) {
	if width <= 0 {
		return nil, fmt.Errorf("terrain width must be positive, got %d", width)
	}
	side := width + 1
	p := &TerrainPrototype{
		Vertices: make([]TerrainVertex, 0, side*side),
		Indices:  make([]uint32, 0, 6*width*width),
	}
	half := int32(width / 2)
	for y := range side {
		for x := range side {
			p.Vertices = append(p.Vertices, TerrainVertex{X: int32(x) - half, Y: int32(y) - half})
		}
	}
	for y := range width {
		for x := range width {
			i := uint32(y*side + x)
			s := uint32(side)
			p.Indices = append(p.Indices, i, i+1, i+s, i+1, i+s+1, i+s)
		}
	}
	return p, nil
}

// ToMesh lifts the grid into a mesh lying in the XY plane, shifted by offset.
func (p *TerrainPrototype) ToMesh(offset mathx.Vec2) *MeshPrototype {
	m := &MeshPrototype{
		Vertices: make([]mathx.Vec3, len(p.Vertices)),
		Normals:  make([]mathx.Vec3, len(p.Vertices)),
		UVs:      make([]mathx.Vec2, len(p.Vertices)),
		Indices:  p.Indices,
	}
	for i, v := range p.Vertices {
		m.Vertices[i] = mathx.Vec3{X: float32(v.X) + offset.X, Y: float32(v.Y) + offset.Y}
		m.Normals[i] = mathx.Up()
		m.UVs[i] = mathx.Vec2{X: 1, Y: 1}
	}
	return m
}

// SerializeTerrain encodes p as a ris_terrain file with the compressed body
//
//	FatPtr  p_vertices
//	FatPtr  p_indices
//	u32     index type
//	[]u8    data
func SerializeTerrain(p *TerrainPrototype) ([]byte, error) {
	n := len(p.Vertices)
	for i, index := range p.Indices {
		if int(index) >= n {
			return nil, fmt.Errorf("%w: terrain index %d at %d out of range, terrain has %d vertices", ErrInvalidMesh, index, i, n)
		}
	}

	s := binio.NewBuffer(nil)
	if err := binio.WriteBytes(s, make([]byte, 2*16)); err != nil {
		return nil, err
	}
	indexType := IndexUint32
	if len(p.Indices) == 0 {
		indexType = IndexNone
	} else if n <= 1<<16 {
		indexType = IndexUint16
	}
	if err := binio.WriteU32(s, uint32(indexType)); err != nil {
		return nil, err
	}

	pVertices, err := writeRegion(s, func(w io.Writer) error {
		for _, v := range p.Vertices {
			if err := binio.WriteI32(w, v.X); err != nil {
				return err
			}
			if err := binio.WriteI32(w, v.Y); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("serialize terrain vertices: %w", err)
	}
	indices := make([]byte, indexType.Size()*len(p.Indices))
	for i, index := range p.Indices {
		if indexType == IndexUint16 {
			binary.LittleEndian.PutUint16(indices[2*i:], uint16(index))
		} else {
			binary.LittleEndian.PutUint32(indices[4*i:], index)
		}
	}
	pIndices, err := binio.WriteUnsized(s, indices)
	if err != nil {
		return nil, fmt.Errorf("serialize terrain indices: %w", err)
	}
	if err := patchFatPtrs(s, 0, pVertices, pIndices); err != nil {
		return nil, err
	}

	body, err := Compress(s.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serialize terrain: %w", err)
	}
	h := &Header{Magic: TerrainMagic}
	return h.Serialize(body)
}

func DeserializeTerrain(b []byte) (*TerrainPrototype, error) {
	h, content, err := DeserializeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("deserialize terrain: %w", err)
	}
	if err := h.AssertMagic(TerrainMagic); err != nil {
		return nil, fmt.Errorf("deserialize terrain: %w", err)
	}
	body, err := Decompress(content)
	if err != nil {
		return nil, fmt.Errorf("deserialize terrain: %w", err)
	}

	s := binio.NewBuffer(body)
	ptrs, err := readFatPtrs(s, 2)
	if err != nil {
		return nil, fmt.Errorf("deserialize terrain: %w", err)
	}
	rawType, err := binio.ReadU32(s)
	if err != nil {
		return nil, fmt.Errorf("deserialize terrain index type: %w", err)
	}
	indexType, err := parseIndexType(rawType)
	if err != nil {
		return nil, err
	}

	if ptrs[0].Len%8 != 0 {
		return nil, fmt.Errorf("%w: terrain vertex region of %d bytes", ErrInvalidMesh, ptrs[0].Len)
	}
	if err := binio.SeekTo(s, ptrs[0].Addr); err != nil {
		return nil, err
	}
	p := &TerrainPrototype{Vertices: make([]TerrainVertex, ptrs[0].Len/8)}
	for i := range p.Vertices {
		if p.Vertices[i].X, err = binio.ReadI32(s); err != nil {
			return nil, fmt.Errorf("deserialize terrain vertex %d: %w", i, err)
		}
		if p.Vertices[i].Y, err = binio.ReadI32(s); err != nil {
			return nil, fmt.Errorf("deserialize terrain vertex %d: %w", i, err)
		}
	}

	raw, err := binio.ReadUnsized(s, ptrs[1])
	if err != nil {
		return nil, fmt.Errorf("deserialize terrain indices: %w", err)
	}
	packed := &CpuMesh{Indices: raw, IndexType: indexType}
	size := indexType.Size()
	if size == 0 && len(raw) != 0 || size != 0 && len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d terrain index bytes for index type %s", ErrInvalidMesh, len(raw), indexType)
	}
	p.Indices = make([]uint32, packed.IndexCount())
	for i := range p.Indices {
		index := packed.Index(i)
		if int(index) >= len(p.Vertices) {
			return nil, fmt.Errorf("%w: terrain index %d at %d out of range", ErrInvalidMesh, index, i)
		}
		p.Indices[i] = index
	}
	return p, nil
}
