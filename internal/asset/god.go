package asset

import (
	"fmt"
	"os"

	"github.com/risengine/ris/internal/binio"
	"gopkg.in/yaml.v3"
)

var GodAssetMagic = Magic("ris_god_asset")

// GodAsset names the assets the engine cannot run without.
type GodAsset struct {
	DefaultVertSpv      AssetID
	DefaultFragSpv      AssetID
	ImguiVertSpv        AssetID
	ImguiFragSpv        AssetID
	GizmoSegmentVertSpv AssetID
	GizmoSegmentGeomSpv AssetID
	GizmoSegmentFragSpv AssetID
	GizmoTextVertSpv    AssetID
	GizmoTextGeomSpv    AssetID
	GizmoTextFragSpv    AssetID
	DebugFontTexture    AssetID
	Texture             AssetID
	Terrain             AssetID
}

type godField struct {
	name string
	ref  func(*GodAsset) *AssetID
}

var godFields = []godField{
	{"default_vert_spv", func(g *GodAsset) *AssetID { return &g.DefaultVertSpv }},
	{"default_frag_spv", func(g *GodAsset) *AssetID { return &g.DefaultFragSpv }},
	{"imgui_vert_spv", func(g *GodAsset) *AssetID { return &g.ImguiVertSpv }},
	{"imgui_frag_spv", func(g *GodAsset) *AssetID { return &g.ImguiFragSpv }},
	{"gizmo_segment_vert_spv", func(g *GodAsset) *AssetID { return &g.GizmoSegmentVertSpv }},
	{"gizmo_segment_geom_spv", func(g *GodAsset) *AssetID { return &g.GizmoSegmentGeomSpv }},
	{"gizmo_segment_frag_spv", func(g *GodAsset) *AssetID { return &g.GizmoSegmentFragSpv }},
	{"gizmo_text_vert_spv", func(g *GodAsset) *AssetID { return &g.GizmoTextVertSpv }},
	{"gizmo_text_geom_spv", func(g *GodAsset) *AssetID { return &g.GizmoTextGeomSpv }},
	{"gizmo_text_frag_spv", func(g *GodAsset) *AssetID { return &g.GizmoTextFragSpv }},
	{"debug_font_texture", func(g *GodAsset) *AssetID { return &g.DebugFontTexture }},
	{"texture", func(g *GodAsset) *AssetID { return &g.Texture }},
	{"terrain", func(g *GodAsset) *AssetID { return &g.Terrain }},
}

// GodAssetFields lists the field names in file order.
func GodAssetFields() []string {
	names := make([]string, len(godFields))
	for i, f := range godFields {
		names[i] = f.name
	}
	return names
}

func lookupGodField(name string) (godField, error) {
	for _, f := range godFields {
		if f.name == name {
			return f, nil
		}
	}
	return godField{}, fmt.Errorf("god asset has no field %q", name)
}

func (g *GodAsset) Field(name string) (AssetID, error) {
	f, err := lookupGodField(name)
	if err != nil {
		return AssetID{}, err
	}
	return *f.ref(g), nil
}

func (g *GodAsset) SetField(name string, id AssetID) error {
	f, err := lookupGodField(name)
	if err != nil {
		return err
	}
	*f.ref(g) = id
	return nil
}

// Fields returns the ids in file order.
func (g *GodAsset) Fields() []AssetID {
	ids := make([]AssetID, len(godFields))
	for i, f := range godFields {
		ids[i] = *f.ref(g)
	}
	return ids
}

// Serialize writes the ids as header references and a content record of
// length-prefixed field names, each followed by its u32 reference slot.
func (g *GodAsset) Serialize() ([]byte, error) {
	s := binio.NewBuffer(nil)
	if err := binio.WriteUint(s, len(godFields)); err != nil {
		return nil, err
	}
	for i, f := range godFields {
		if err := binio.WriteString(s, f.name); err != nil {
			return nil, fmt.Errorf("serialize god asset field %s: %w", f.name, err)
		}
		if err := binio.WriteUint(s, i); err != nil {
			return nil, fmt.Errorf("serialize god asset field %s: %w", f.name, err)
		}
	}
	h := &Header{Magic: GodAssetMagic, References: g.Fields()}
	b, err := h.Serialize(s.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serialize god asset: %w", err)
	}
	return b, nil
}

func DeserializeGodAsset(b []byte) (*GodAsset, error) {
	h, content, err := DeserializeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("deserialize god asset: %w", err)
	}
	if err := h.AssertMagic(GodAssetMagic); err != nil {
		return nil, fmt.Errorf("deserialize god asset: %w", err)
	}

	s := binio.NewBuffer(content)
	count, err := binio.ReadUint(s)
	if err != nil {
		return nil, fmt.Errorf("deserialize god asset: %w", err)
	}
	g := &GodAsset{}
	seen := make(map[string]bool, count)
	for range count {
		name, err := binio.ReadString(s)
		if err != nil {
			return nil, fmt.Errorf("deserialize god asset field name: %w", err)
		}
		slot, err := binio.ReadUint(s)
		if err != nil {
			return nil, fmt.Errorf("deserialize god asset field %s: %w", name, err)
		}
		if slot >= len(h.References) {
			return nil, fmt.Errorf("deserialize god asset: field %s points at reference %d of %d", name, slot, len(h.References))
		}
		if err := g.SetField(name, h.References[slot]); err != nil {
			return nil, fmt.Errorf("deserialize god asset: %w", err)
		}
		seen[name] = true
	}
	for _, f := range godFields {
		if !seen[f.name] {
			return nil, fmt.Errorf("deserialize god asset: field %s is missing", f.name)
		}
	}
	return g, nil
}

// LoadGodAsset reads the god asset through l.
func LoadGodAsset(l Loader, id AssetID) (*GodAsset, error) {
	b, err := l.Load(id)
	if err != nil {
		return nil, fmt.Errorf("load god asset %s: %w", id, err)
	}
	return DeserializeGodAsset(b)
}

// ReadGodAssetFile reads a god asset straight from disk, as the CLI does.
func ReadGodAssetFile(path string) (*GodAsset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read god asset %s: %w", path, err)
	}
	return DeserializeGodAsset(b)
}

// MarshalYAML prints the fields as an ordered mapping.
func (g *GodAsset) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range godFields {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.ref(g).String()},
		)
	}
	return node, nil
}
