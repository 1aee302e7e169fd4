package ecs

import (
	"errors"
	"testing"

	"github.com/risengine/ris/internal/asset"
	"github.com/risengine/ris/internal/binio"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type labelComponent struct {
	BaseComponent
	Label     string
	Mesh      asset.AssetID
	destroyed *int
}

func (c *labelComponent) Destroy(*Scene) {
	if c.destroyed != nil {
		*c.destroyed++
	}
}

func (c *labelComponent) Serialize(w *SceneWriter) error {
	if err := binio.WriteString(w, c.Label); err != nil {
		return err
	}
	return w.WriteAssetRef(c.Mesh)
}

func (c *labelComponent) Deserialize(r *SceneReader) error {
	var err error
	if c.Label, err = binio.ReadString(r); err != nil {
		return err
	}
	c.Mesh, err = r.ReadAssetRef()
	return err
}

type recorder struct {
	events []string
}

func (r *recorder) add(e string) {
	if r != nil {
		r.events = append(r.events, e)
	}
}

type testScriptISize struct {
	BaseScript
	Value int32
	rec   *recorder
}

func (s *testScriptISize) Start(ScriptContext) error {
	s.rec.add("start isize")
	return nil
}

func (s *testScriptISize) Update(ScriptContext) error {
	s.Value++
	return nil
}

func (s *testScriptISize) End(ScriptContext) error {
	s.rec.add("end isize")
	return nil
}

func (s *testScriptISize) Serialize(w *SceneWriter) error {
	return binio.WriteI32(w, s.Value)
}

func (s *testScriptISize) Deserialize(r *SceneReader) error {
	var err error
	s.Value, err = binio.ReadI32(r)
	return err
}

type testScriptString struct {
	BaseScript
	Value string
}

func (s *testScriptString) Serialize(w *SceneWriter) error {
	return binio.WriteString(w, s.Value)
}

func (s *testScriptString) Deserialize(r *SceneReader) error {
	var err error
	s.Value, err = binio.ReadString(r)
	return err
}

var errScript = errors.New("script failed")

type failingScript struct {
	BaseScript
	failStart  bool
	failUpdate bool
}

func (s *failingScript) Start(ScriptContext) error {
	if s.failStart {
		return errScript
	}
	return nil
}

func (s *failingScript) Update(ScriptContext) error {
	if s.failUpdate {
		return errScript
	}
	return nil
}

type testWorld struct {
	registry  *Registry
	rec       *recorder
	destroyed int
	failStart bool
}

func newTestRegistry(t *testing.T, w *testWorld) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterComponent(r, "label", func() *labelComponent {
		return &labelComponent{destroyed: &w.destroyed}
	}))
	require.NoError(t, RegisterScript(r, "test_script_isize", func() *testScriptISize {
		return &testScriptISize{rec: w.rec}
	}))
	require.NoError(t, RegisterScript(r, "test_script_string", func() *testScriptString {
		return &testScriptString{}
	}))
	require.NoError(t, RegisterScript(r, "failing_script", func() *failingScript {
		return &failingScript{failStart: w.failStart, failUpdate: true}
	}))
	return r
}

func newTestScene(t *testing.T, info SceneCreateInfo) (*Scene, *testWorld) {
	t.Helper()
	w := &testWorld{rec: &recorder{}}
	w.registry = newTestRegistry(t, w)
	s, err := NewScene(info, w.registry, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Free)
	return s, w
}

func defaultSceneInfo() SceneCreateInfo {
	return SceneCreateInfo{DynamicCapacity: 16, StaticChunks: 2, StaticCapacity: 16}
}

func liveGameObjects(c *chunk) int {
	n := 0
	for _, gc := range c.gameObjects {
		b := gc.Borrow()
		if b.Get().alive {
			n++
		}
		b.Release()
	}
	return n
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}

func multierrErrors(err error) []error {
	return multierr.Errors(err)
}
