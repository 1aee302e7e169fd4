package importer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/mathx"
)

var ErrInvalidGLB = errors.New("invalid glb")

const (
	glbMagic     = 0x46546C67
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A
	glbChunkBIN  = 0x004E4942
)

// ParseGLB splits a binary glTF container into its JSON and BIN chunks.
// Unknown chunk types are skipped.
func ParseGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if len(data) < 12 {
		return nil, nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrInvalidGLB, len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:])
	version := binary.LittleEndian.Uint32(data[4:])
	length := binary.LittleEndian.Uint32(data[8:])
	if magic != glbMagic {
		return nil, nil, fmt.Errorf("%w: magic 0x%08X", ErrInvalidGLB, magic)
	}
	if version != glbVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidGLB, version)
	}
	if int(length) != len(data) {
		return nil, nil, fmt.Errorf("%w: header length %d but file has %d bytes", ErrInvalidGLB, length, len(data))
	}

	chunks := 0
	for p := 12; p < len(data); {
		if p%4 != 0 || len(data)-p < 8 {
			return nil, nil, fmt.Errorf("%w: misaligned or truncated chunk at %d", ErrInvalidGLB, p)
		}
		chunkLen := int(binary.LittleEndian.Uint32(data[p:]))
		chunkType := binary.LittleEndian.Uint32(data[p+4:])
		begin := p + 8
		if chunkLen%4 != 0 || chunkLen > len(data)-begin {
			return nil, nil, fmt.Errorf("%w: chunk at %d has invalid length %d", ErrInvalidGLB, p, chunkLen)
		}
		chunk := data[begin : begin+chunkLen]
		switch chunkType {
		case glbChunkJSON:
			jsonChunk = chunk
			chunks++
		case glbChunkBIN:
			binChunk = chunk
			chunks++
		}
		p = begin + chunkLen
	}
	if chunks != 2 || jsonChunk == nil || binChunk == nil {
		return nil, nil, fmt.Errorf("%w: expected one JSON and one BIN chunk", ErrInvalidGLB)
	}
	return jsonChunk, binChunk, nil
}

// GLBMesh is one primitive of one mesh in a GLB file.
type GLBMesh struct {
	MeshName  string
	Mesh      int
	Primitive int
	Prototype *asset.MeshPrototype
}

// ReadGLBMeshes decodes every primitive of data. Positions and normals are
// rotated from glTF's Y-up into the engine's Z-up space.
func ReadGLBMeshes(data []byte) ([]GLBMesh, error) {
	jsonChunk, bin, err := ParseGLB(data)
	if err != nil {
		return nil, err
	}
	var doc gltfDocument
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse json: %w", ErrInvalidGLB, err)
	}
	if len(doc.Buffers) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one buffer, got %d", ErrInvalidGLB, len(doc.Buffers))
	}
	if doc.Buffers[0].URI != nil {
		return nil, fmt.Errorf("%w: external buffer %q is not supported", ErrInvalidGLB, *doc.Buffers[0].URI)
	}

	yUpToZUp := mathx.AngleAxis(mathx.Pi/2, mathx.Right())
	var meshes []GLBMesh
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			where := fmt.Sprintf("mesh %d primitive %d", mi, pi)
			if prim.Mode != nil && *prim.Mode != gltfModeTriangles {
				return nil, fmt.Errorf("%w: %s: mode %d is not TRIANGLES", ErrInvalidGLB, where, *prim.Mode)
			}
			positions, err := readAccessor(&doc, bin, prim.Attributes, "POSITION", "VEC3", gltfFloat)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			normals, err := readAccessor(&doc, bin, prim.Attributes, "NORMAL", "VEC3", gltfFloat)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			uvs, err := readAccessor(&doc, bin, prim.Attributes, "TEXCOORD_0", "VEC2", gltfFloat)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			if prim.Indices == nil {
				return nil, fmt.Errorf("%w: %s has no indices", ErrInvalidGLB, where)
			}
			indices, err := readAccessor(&doc, bin, map[string]int{"indices": *prim.Indices}, "indices", "SCALAR", gltfUnsignedShort)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", where, err)
			}
			if len(positions)/12 != len(normals)/12 || len(positions)/12 != len(uvs)/8 {
				return nil, fmt.Errorf("%w: %s: attribute counts differ", ErrInvalidGLB, where)
			}

			n := len(positions) / 12
			p := &asset.MeshPrototype{
				Vertices: make([]mathx.Vec3, n),
				Normals:  make([]mathx.Vec3, n),
				UVs:      make([]mathx.Vec2, n),
				Indices:  make([]uint32, len(indices)/2),
			}
			for i := range n {
				p.Vertices[i] = yUpToZUp.Rotate(vec3At(positions, i))
				p.Normals[i] = yUpToZUp.Rotate(vec3At(normals, i))
				p.UVs[i] = mathx.Vec2{X: f32At(uvs, 2*i), Y: f32At(uvs, 2*i+1)}
			}
			for i := range p.Indices {
				p.Indices[i] = uint32(binary.LittleEndian.Uint16(indices[2*i:]))
			}
			meshes = append(meshes, GLBMesh{MeshName: m.Name, Mesh: mi, Primitive: pi, Prototype: p})
		}
	}
	return meshes, nil
}

var elementSize = map[string]int{"SCALAR": 1, "VEC2": 2, "VEC3": 3, "VEC4": 4}
var componentSize = map[int]int{gltfUnsignedShort: 2, gltfFloat: 4}

func readAccessor(doc *gltfDocument, bin []byte, attrs map[string]int, name, typ string, component int) ([]byte, error) {
	index, ok := attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidGLB, name)
	}
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: %s accessor %d does not exist", ErrInvalidGLB, name, index)
	}
	acc := doc.Accessors[index]
	if acc.Type != typ || acc.ComponentType != component {
		return nil, fmt.Errorf("%w: %s must be %s of component %d, got %s of %d", ErrInvalidGLB, name, typ, component, acc.Type, acc.ComponentType)
	}
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(doc.BufferViews) {
		return nil, fmt.Errorf("%w: %s has no valid buffer view", ErrInvalidGLB, name)
	}
	view := doc.BufferViews[*acc.BufferView]
	if view.Buffer != 0 {
		return nil, fmt.Errorf("%w: %s references buffer %d", ErrInvalidGLB, name, view.Buffer)
	}
	if view.ByteStride != nil {
		return nil, fmt.Errorf("%w: %s uses a strided buffer view", ErrInvalidGLB, name)
	}
	if acc.Count < 0 || acc.ByteOffset < 0 || view.ByteOffset < 0 || view.ByteLength < 0 {
		return nil, fmt.Errorf("%w: %s has negative offsets or count", ErrInvalidGLB, name)
	}
	if view.ByteOffset > len(bin) || view.ByteLength > len(bin)-view.ByteOffset || acc.ByteOffset > view.ByteLength {
		return nil, fmt.Errorf("%w: %s buffer view exceeds the BIN chunk", ErrInvalidGLB, name)
	}

	// count is bounded before it is multiplied so a huge count cannot wrap
	stride := elementSize[typ] * componentSize[component]
	if acc.Count > (view.ByteLength-acc.ByteOffset)/stride {
		return nil, fmt.Errorf("%w: %s count %d exceeds its buffer view", ErrInvalidGLB, name, acc.Count)
	}
	start := acc.ByteOffset + view.ByteOffset
	length := acc.Count * stride
	return bin[start : start+length], nil
}

func f32At(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
}

func vec3At(b []byte, i int) mathx.Vec3 {
	return mathx.Vec3{X: f32At(b, 3*i), Y: f32At(b, 3*i+1), Z: f32At(b, 3*i+2)}
}

// GLBOutputName names the mesh file of one primitive.
func GLBOutputName(stem string, m GLBMesh) string {
	name := m.MeshName
	if name == "" {
		name = "none"
	}
	return fmt.Sprintf("%s-%s-%03d-%03d.ris_mesh", stem, asset.Sanitize(name), m.Mesh, m.Primitive)
}

// ImportGLB converts src into one ris_mesh file per primitive under dstDir
// and returns the written paths.
func ImportGLB(src, dstDir string) ([]string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read glb %s: %w", src, err)
	}
	meshes, err := ReadGLBMeshes(data)
	if err != nil {
		return nil, fmt.Errorf("import glb %s: %w", src, err)
	}
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	outputs := make([]string, 0, len(meshes))
	for _, m := range meshes {
		cpu, err := m.Prototype.ToCpuMesh()
		if err != nil {
			return nil, fmt.Errorf("import glb %s: mesh %d primitive %d: %w", src, m.Mesh, m.Primitive, err)
		}
		b, err := asset.SerializeMesh(cpu)
		if err != nil {
			return nil, fmt.Errorf("import glb %s: %w", src, err)
		}
		out := filepath.Join(dstDir, GLBOutputName(stem, m))
		if err := writeOutput(out, b); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
