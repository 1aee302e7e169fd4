package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/risengine/ris/internal/binio"
	"github.com/risengine/ris/internal/mathx"
)

var (
	MeshMagic = Magic("ris_mesh")

	ErrInvalidMesh = errors.New("invalid mesh")
)

// IndexType mirrors the GPU index type enum.
type IndexType uint32

const (
	IndexUint16 IndexType = 0
	IndexUint32 IndexType = 1
	IndexNone   IndexType = 1000165000
	IndexUint8  IndexType = 1000265000
)

func (t IndexType) Size() int {
	switch t {
	case IndexUint8:
		return 1
	case IndexUint16:
		return 2
	case IndexUint32:
		return 4
	default:
		return 0
	}
}

func (t IndexType) String() string {
	switch t {
	case IndexUint8:
		return "uint8"
	case IndexUint16:
		return "uint16"
	case IndexUint32:
		return "uint32"
	case IndexNone:
		return "none"
	default:
		return fmt.Sprintf("IndexType(%d)", uint32(t))
	}
}

func parseIndexType(v uint32) (IndexType, error) {
	switch t := IndexType(v); t {
	case IndexUint8, IndexUint16, IndexUint32, IndexNone:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: unknown index type %d", ErrInvalidMesh, v)
	}
}

// MeshPrototype is the editable form of a mesh, indices widened to u32.
type MeshPrototype struct {
	Vertices []mathx.Vec3
	Normals  []mathx.Vec3
	UVs      []mathx.Vec2
	Indices  []uint32
}

// CpuMesh is the upload-ready form of a mesh: indices packed to the
// narrowest type that can address every vertex.
type CpuMesh struct {
	Vertices  []mathx.Vec3
	Normals   []mathx.Vec3
	UVs       []mathx.Vec2
	Indices   []byte
	IndexType IndexType
}

func (m *CpuMesh) IndexCount() int {
	if size := m.IndexType.Size(); size > 0 {
		return len(m.Indices) / size
	}
	return 0
}

func (m *CpuMesh) Index(i int) uint32 {
	switch m.IndexType {
	case IndexUint8:
		return uint32(m.Indices[i])
	case IndexUint16:
		return uint32(binary.LittleEndian.Uint16(m.Indices[2*i:]))
	case IndexUint32:
		return binary.LittleEndian.Uint32(m.Indices[4*i:])
	default:
		panic(fmt.Sprintf("mesh has no indices of type %s", m.IndexType))
	}
}

// ToCpuMesh validates p and packs its indices. Every index must address an
// existing vertex.
func (p *MeshPrototype) ToCpuMesh() (*CpuMesh, error) {
	n := len(p.Vertices)
	if len(p.Normals) != n || len(p.UVs) != n {
		return nil, fmt.Errorf("%w: %d vertices, %d normals, %d uvs", ErrInvalidMesh, n, len(p.Normals), len(p.UVs))
	}
	for i, index := range p.Indices {
		if int(index) >= n {
			return nil, fmt.Errorf("%w: index %d at %d out of range, mesh has %d vertices", ErrInvalidMesh, index, i, n)
		}
	}

	m := &CpuMesh{Vertices: p.Vertices, Normals: p.Normals, UVs: p.UVs}
	switch {
	case len(p.Indices) == 0:
		m.IndexType = IndexNone
	case n <= 1<<16:
		m.IndexType = IndexUint16
		m.Indices = make([]byte, 2*len(p.Indices))
		for i, index := range p.Indices {
			binary.LittleEndian.PutUint16(m.Indices[2*i:], uint16(index))
		}
	default:
		m.IndexType = IndexUint32
		m.Indices = make([]byte, 4*len(p.Indices))
		for i, index := range p.Indices {
			binary.LittleEndian.PutUint32(m.Indices[4*i:], index)
		}
	}
	return m, nil
}

// MeshPrototypeFromCpu widens the indices of m.
func MeshPrototypeFromCpu(m *CpuMesh) *MeshPrototype {
	p := &MeshPrototype{Vertices: m.Vertices, Normals: m.Normals, UVs: m.UVs}
	count := m.IndexCount()
	p.Indices = make([]uint32, count)
	for i := range count {
		p.Indices[i] = m.Index(i)
	}
	return p
}

// SerializeMesh encodes m as a ris_mesh file. The body is compressed:
//
//	FatPtr  p_vertices
//	FatPtr  p_normals
//	FatPtr  p_uvs
//	FatPtr  p_indices
//	u32     index type
//	[]u8    data
func SerializeMesh(m *CpuMesh) ([]byte, error) {
	if err := validateCpuMesh(m); err != nil {
		return nil, err
	}

	s := binio.NewBuffer(nil)
	if err := binio.WriteBytes(s, make([]byte, 4*16)); err != nil {
		return nil, err
	}
	if err := binio.WriteU32(s, uint32(m.IndexType)); err != nil {
		return nil, err
	}
	pVertices, err := writeRegion(s, func(w io.Writer) error { return writeVec3s(w, m.Vertices) })
	if err != nil {
		return nil, fmt.Errorf("serialize mesh vertices: %w", err)
	}
	pNormals, err := writeRegion(s, func(w io.Writer) error { return writeVec3s(w, m.Normals) })
	if err != nil {
		return nil, fmt.Errorf("serialize mesh normals: %w", err)
	}
	pUVs, err := writeRegion(s, func(w io.Writer) error {
		for _, uv := range m.UVs {
			if err := binio.WriteVec2(w, uv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("serialize mesh uvs: %w", err)
	}
	pIndices, err := binio.WriteUnsized(s, m.Indices)
	if err != nil {
		return nil, fmt.Errorf("serialize mesh indices: %w", err)
	}
	if err := patchFatPtrs(s, 0, pVertices, pNormals, pUVs, pIndices); err != nil {
		return nil, err
	}

	body, err := Compress(s.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serialize mesh: %w", err)
	}
	h := &Header{Magic: MeshMagic}
	return h.Serialize(body)
}

func DeserializeMesh(b []byte) (*CpuMesh, error) {
	h, content, err := DeserializeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("deserialize mesh: %w", err)
	}
	if err := h.AssertMagic(MeshMagic); err != nil {
		return nil, fmt.Errorf("deserialize mesh: %w", err)
	}
	body, err := Decompress(content)
	if err != nil {
		return nil, fmt.Errorf("deserialize mesh: %w", err)
	}

	s := binio.NewBuffer(body)
	ptrs, err := readFatPtrs(s, 4)
	if err != nil {
		return nil, fmt.Errorf("deserialize mesh: %w", err)
	}
	rawType, err := binio.ReadU32(s)
	if err != nil {
		return nil, fmt.Errorf("deserialize mesh index type: %w", err)
	}
	indexType, err := parseIndexType(rawType)
	if err != nil {
		return nil, err
	}

	m := &CpuMesh{IndexType: indexType}
	if m.Vertices, err = readVec3s(s, ptrs[0]); err != nil {
		return nil, fmt.Errorf("deserialize mesh vertices: %w", err)
	}
	if m.Normals, err = readVec3s(s, ptrs[1]); err != nil {
		return nil, fmt.Errorf("deserialize mesh normals: %w", err)
	}
	if m.UVs, err = readVec2s(s, ptrs[2]); err != nil {
		return nil, fmt.Errorf("deserialize mesh uvs: %w", err)
	}
	if m.Indices, err = binio.ReadUnsized(s, ptrs[3]); err != nil {
		return nil, fmt.Errorf("deserialize mesh indices: %w", err)
	}
	if err := validateCpuMesh(m); err != nil {
		return nil, err
	}
	return m, nil
}

func validateCpuMesh(m *CpuMesh) error {
	n := len(m.Vertices)
	if len(m.Normals) != n || len(m.UVs) != n {
		return fmt.Errorf("%w: %d vertices, %d normals, %d uvs", ErrInvalidMesh, n, len(m.Normals), len(m.UVs))
	}
	size := m.IndexType.Size()
	if size == 0 {
		if len(m.Indices) != 0 {
			return fmt.Errorf("%w: %d index bytes but index type is %s", ErrInvalidMesh, len(m.Indices), m.IndexType)
		}
		return nil
	}
	if len(m.Indices)%size != 0 {
		return fmt.Errorf("%w: %d index bytes is not a multiple of %d", ErrInvalidMesh, len(m.Indices), size)
	}
	for i := range m.IndexCount() {
		if index := m.Index(i); int(index) >= n {
			return fmt.Errorf("%w: index %d at %d out of range, mesh has %d vertices", ErrInvalidMesh, index, i, n)
		}
	}
	return nil
}

// writeRegion runs write at the end of s and returns the region it covered.
func writeRegion(s *binio.Buffer, write func(io.Writer) error) (binio.FatPtr, error) {
	begin, err := binio.Pos(s)
	if err != nil {
		return binio.FatPtr{}, err
	}
	if err := write(s); err != nil {
		return binio.FatPtr{}, err
	}
	end, err := binio.Pos(s)
	if err != nil {
		return binio.FatPtr{}, err
	}
	return binio.BeginEnd(begin, end)
}

// patchFatPtrs overwrites the placeholders at addr and seeks back to the end.
func patchFatPtrs(s *binio.Buffer, addr uint64, ptrs ...binio.FatPtr) error {
	end, err := binio.Pos(s)
	if err != nil {
		return err
	}
	if err := binio.SeekTo(s, addr); err != nil {
		return err
	}
	for _, p := range ptrs {
		if err := binio.WriteFatPtr(s, p); err != nil {
			return err
		}
	}
	return binio.SeekTo(s, end)
}

func readFatPtrs(s *binio.Buffer, n int) ([]binio.FatPtr, error) {
	ptrs := make([]binio.FatPtr, n)
	for i := range ptrs {
		p, err := binio.ReadFatPtr(s)
		if err != nil {
			return nil, err
		}
		if p.End() < p.Addr || p.End() > uint64(s.Len()) {
			return nil, fmt.Errorf("%w: %s exceeds the %d byte body", binio.ErrInvalidFatPtr, p, s.Len())
		}
		ptrs[i] = p
	}
	return ptrs, nil
}

func writeVec3s(w io.Writer, values []mathx.Vec3) error {
	for _, v := range values {
		if err := binio.WriteVec3(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readVec3s(s *binio.Buffer, p binio.FatPtr) ([]mathx.Vec3, error) {
	if p.Len%12 != 0 {
		return nil, fmt.Errorf("%w: region of %d bytes does not hold vec3s", ErrInvalidMesh, p.Len)
	}
	if err := binio.SeekTo(s, p.Addr); err != nil {
		return nil, err
	}
	values := make([]mathx.Vec3, p.Len/12)
	for i := range values {
		v, err := binio.ReadVec3(s)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func readVec2s(s *binio.Buffer, p binio.FatPtr) ([]mathx.Vec2, error) {
	if p.Len%8 != 0 {
		return nil, fmt.Errorf("%w: region of %d bytes does not hold vec2s", ErrInvalidMesh, p.Len)
	}
	if err := binio.SeekTo(s, p.Addr); err != nil {
		return nil, err
	}
	values := make([]mathx.Vec2, p.Len/8)
	for i := range values {
		v, err := binio.ReadVec2(s)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
