package ecs

import (
	"fmt"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/binio"
	"github.com/risengine/ris/internal/mathx"
	"go.uber.org/zap"
)

var SceneMagic = asset.Magic("ris_scene")

// SceneWriter is the stream components serialize into. Asset references
// go through WriteAssetRef so they end up in the file header.
type SceneWriter struct {
	*binio.Buffer
	Scene *Scene
	refs  []asset.AssetID
}

// WriteAssetRef records id in the header and writes its slot.
func (w *SceneWriter) WriteAssetRef(id asset.AssetID) error {
	slot := -1
	for i, ref := range w.refs {
		if ref.Equal(id) {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = len(w.refs)
		w.refs = append(w.refs, id)
	}
	return binio.WriteU32(w, uint32(slot))
}

// SceneReader is the stream components deserialize from.
type SceneReader struct {
	*binio.Buffer
	Scene *Scene
	refs  []asset.AssetID
}

// ReadAssetRef reads a slot written by WriteAssetRef and resolves it through
// the file header. Compiled archives have already rewritten the header to
// index ids.
func (r *SceneReader) ReadAssetRef() (asset.AssetID, error) {
	slot, err := binio.ReadU32(r)
	if err != nil {
		return asset.AssetID{}, err
	}
	if int(slot) >= len(r.refs) {
		return asset.AssetID{}, fmt.Errorf("asset reference %d out of range, header has %d", slot, len(r.refs))
	}
	return r.refs[slot], nil
}

type gameObjectRecord struct {
	name       string
	active     bool
	position   mathx.Vec3
	rotation   mathx.Quat
	scale      float32
	children   []GameObjectHandle
	components []DynComponentHandle
}

// SerializeChunk writes static chunk index as a scene file. Game objects get
// scene-local ids in depth-first order starting at the roots.
func SerializeChunk(s *Scene, index int) ([]byte, error) {
	if index < 0 || index >= len(s.static) {
		return nil, fmt.Errorf("%w: static chunk %d does not exist", ErrInvalidOperation, index)
	}
	c := s.static[index]

	var order []GameObjectHandle
	ids := make(map[Handle]int)
	var visit func(GameObjectHandle) error
	visit = func(h GameObjectHandle) error {
		ids[h.Handle] = len(order)
		order = append(order, h)
		children, err := h.Children(s)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := visit(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range s.roots(c) {
		if err := visit(root); err != nil {
			return nil, fmt.Errorf("serialize chunk %d: %w", index, err)
		}
	}

	w := &SceneWriter{Buffer: binio.NewBuffer(nil), Scene: s}
	if err := binio.WriteUint(w, len(order)); err != nil {
		return nil, err
	}
	for _, h := range order {
		if err := serializeGameObject(w, h, ids); err != nil {
			return nil, fmt.Errorf("serialize chunk %d: %w", index, err)
		}
	}

	body, err := asset.Compress(w.Bytes())
	if err != nil {
		return nil, fmt.Errorf("serialize chunk %d: %w", index, err)
	}
	header := asset.Header{Magic: SceneMagic, References: w.refs}
	out, err := header.Serialize(body)
	if err != nil {
		return nil, fmt.Errorf("serialize chunk %d: %w", index, err)
	}
	s.log.Debug("chunk serialized",
		zap.Int("chunk", index),
		zap.Int("game_objects", len(order)),
		zap.Int("references", len(w.refs)),
		zap.Int("bytes", len(out)))
	return out, nil
}

func serializeGameObject(w *SceneWriter, h GameObjectHandle, ids map[Handle]int) error {
	var rec gameObjectRecord
	if err := h.with(w.Scene, func(g *gameObject) error {
		rec = gameObjectRecord{
			name:       g.name,
			active:     g.active,
			position:   g.position,
			rotation:   g.rotation,
			scale:      g.scale,
			children:   append([]GameObjectHandle(nil), g.children...),
			components: append([]DynComponentHandle(nil), g.components...),
		}
		return nil
	}); err != nil {
		return err
	}

	if err := binio.WriteString(w, rec.name); err != nil {
		return err
	}
	if err := binio.WriteBool(w, rec.active); err != nil {
		return err
	}
	if err := binio.WriteVec3(w, rec.position); err != nil {
		return err
	}
	if err := binio.WriteQuat(w, rec.rotation); err != nil {
		return err
	}
	if err := binio.WriteF32(w, rec.scale); err != nil {
		return err
	}

	if err := binio.WriteUint(w, len(rec.components)); err != nil {
		return err
	}
	for _, dyn := range rec.components {
		if err := serializeComponent(w, dyn); err != nil {
			return fmt.Errorf("component %v of %q: %w", dyn.Type, rec.name, err)
		}
	}

	var children []int
	for _, child := range rec.children {
		if id, ok := ids[child.Handle]; ok {
			children = append(children, id)
		}
	}
	if err := binio.WriteUint(w, len(children)); err != nil {
		return err
	}
	for _, id := range children {
		if err := binio.WriteUint(w, id); err != nil {
			return err
		}
	}
	return nil
}

// serializeComponent writes a placeholder fat pointer, the factory index and
// the component bytes, then patches the placeholder to span the latter two.
func serializeComponent(w *SceneWriter, dyn DynComponentHandle) error {
	index, ok := w.Scene.registry.componentIndex(dyn.Type)
	if !ok {
		return fmt.Errorf("%w: %v is not registered", ErrInvalidOperation, dyn.Type)
	}
	placeholder, err := binio.Pos(w)
	if err != nil {
		return err
	}
	if err := binio.WriteFatPtr(w, binio.FatPtr{}); err != nil {
		return err
	}
	begin, err := binio.Pos(w)
	if err != nil {
		return err
	}
	if err := binio.WriteUint(w, index); err != nil {
		return err
	}
	if err := dyn.With(w.Scene, func(c Component) error {
		return c.Serialize(w)
	}); err != nil {
		return err
	}
	end, err := binio.Pos(w)
	if err != nil {
		return err
	}

	p, err := binio.BeginEnd(begin, end)
	if err != nil {
		return err
	}
	if err := binio.SeekTo(w, placeholder); err != nil {
		return err
	}
	if err := binio.WriteFatPtr(w, p); err != nil {
		return err
	}
	return binio.SeekTo(w, end)
}

// LoadChunk creates the game objects of a scene file in static chunk index.
// Parenting is restored after every object exists, then scripts are started.
// On failure everything created so far is destroyed again.
func LoadChunk(s *Scene, index int, data []byte) (err error) {
	if index < 0 || index >= len(s.static) {
		return fmt.Errorf("%w: static chunk %d does not exist", ErrInvalidOperation, index)
	}
	header, content, err := asset.DeserializeHeader(data)
	if err != nil {
		return fmt.Errorf("load chunk %d: %w", index, err)
	}
	if err := header.AssertMagic(SceneMagic); err != nil {
		return fmt.Errorf("load chunk %d: %w", index, err)
	}
	body, err := asset.Decompress(content)
	if err != nil {
		return fmt.Errorf("load chunk %d: %w", index, err)
	}
	r := &SceneReader{Buffer: binio.NewBuffer(body), Scene: s, refs: header.References}

	count, err := binio.ReadUint(r)
	if err != nil {
		return fmt.Errorf("load chunk %d: %w", index, err)
	}
	if capacity := len(s.static[index].gameObjects); count > capacity {
		return fmt.Errorf("load chunk %d: %w: %d game objects, capacity %d", index, ErrOutOfCapacity, count, capacity)
	}

	created := make([]GameObjectHandle, 0, count)
	defer func() {
		if err == nil {
			return
		}
		for _, h := range created {
			h.Destroy(s)
		}
	}()

	children := make([][]int, count)
	for i := range count {
		h, kids, err := loadGameObject(r, index, count)
		if h.IsAlive(s) {
			created = append(created, h)
		}
		if err != nil {
			return fmt.Errorf("load chunk %d: game object %d: %w", index, i, err)
		}
		children[i] = kids
	}

	for i, kids := range children {
		for _, k := range kids {
			if k == i {
				return fmt.Errorf("load chunk %d: %w: game object %d is its own child", index, ErrInvalidOperation, i)
			}
			if err := created[k].SetParent(s, created[i], Append, false); err != nil {
				return fmt.Errorf("load chunk %d: parent %d to %d: %w", index, k, i, err)
			}
		}
	}

	for _, h := range created {
		scripts, err := GetComponents[*DynScriptComponent](s, h, GetFromThis)
		if err != nil {
			return fmt.Errorf("load chunk %d: %w", index, err)
		}
		for _, sc := range scripts {
			if err := s.startScript(sc.Dyn()); err != nil {
				return fmt.Errorf("load chunk %d: %w", index, err)
			}
		}
	}

	s.log.Debug("chunk loaded",
		zap.Int("chunk", index),
		zap.Int("game_objects", count),
		zap.Int("references", len(header.References)))
	return nil
}

func loadGameObject(r *SceneReader, index, count int) (GameObjectHandle, []int, error) {
	s := r.Scene
	var rec gameObjectRecord
	var err error
	if rec.name, err = binio.ReadString(r); err != nil {
		return GameObjectHandle{}, nil, err
	}
	if rec.active, err = binio.ReadBool(r); err != nil {
		return GameObjectHandle{}, nil, err
	}
	if rec.position, err = binio.ReadVec3(r); err != nil {
		return GameObjectHandle{}, nil, err
	}
	if rec.rotation, err = binio.ReadQuat(r); err != nil {
		return GameObjectHandle{}, nil, err
	}
	if rec.scale, err = binio.ReadF32(r); err != nil {
		return GameObjectHandle{}, nil, err
	}

	h, err := NewStatic(s, index)
	if err != nil {
		return GameObjectHandle{}, nil, err
	}
	if err := h.withMut(s, func(g *gameObject) error {
		g.name = rec.name
		g.active = rec.active
		g.position = rec.position
		g.rotation = rec.rotation
		g.scale = rec.scale
		return nil
	}); err != nil {
		return h, nil, err
	}

	components, err := binio.ReadUint(r)
	if err != nil {
		return h, nil, err
	}
	for range components {
		if err := loadComponent(r, h); err != nil {
			return h, nil, err
		}
	}

	n, err := binio.ReadUint(r)
	if err != nil {
		return h, nil, err
	}
	if n > count {
		return h, nil, fmt.Errorf("%d children in a chunk of %d game objects", n, count)
	}
	kids := make([]int, 0, n)
	for range n {
		id, err := binio.ReadUint(r)
		if err != nil {
			return h, nil, err
		}
		if id >= count {
			return h, nil, fmt.Errorf("child id %d out of range, chunk has %d game objects", id, count)
		}
		kids = append(kids, id)
	}
	return h, kids, nil
}

// loadComponent reads one component blob. The stream always continues after
// the blob's fat pointer, whatever the component consumed.
func loadComponent(r *SceneReader, owner GameObjectHandle) error {
	p, err := binio.ReadFatPtr(r)
	if err != nil {
		return err
	}
	index, err := binio.ReadUint(r)
	if err != nil {
		return err
	}
	f, err := r.Scene.registry.componentFactory(index)
	if err != nil {
		return err
	}
	dyn, err := r.Scene.addComponent(owner, f.typ)
	if err != nil {
		return err
	}
	if err := dyn.WithMut(r.Scene, func(c Component) error {
		return c.Deserialize(r)
	}); err != nil {
		return fmt.Errorf("deserialize %s: %w", f.name, err)
	}
	return binio.SeekTo(r, p.End())
}
