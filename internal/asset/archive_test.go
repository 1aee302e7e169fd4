package asset

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
}

var sampleTree = map[string][]byte{
	"a.txt":   []byte("un"),
	"d/b.bin": {1, 2, 3, 4},
	"d/e/c":   {},
}

func TestCompileDecompileRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, sampleTree)
	archive := filepath.Join(t.TempDir(), "out.ris_assets")

	require.NoError(t, Compile(src, archive, CompileOptions{IncludePaths: true}, zap.NewNop()))

	raw, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, []byte("ris_assets\x00\x00\x00\x00\x00\x00"), raw[:16])
	trailer := binary.LittleEndian.Uint64(raw[16:])
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(raw[24:]))
	lookup := []uint64{
		binary.LittleEndian.Uint64(raw[32:]),
		binary.LittleEndian.Uint64(raw[40:]),
		binary.LittleEndian.Uint64(raw[48:]),
	}
	assert.Equal(t, uint64(56), lookup[0])
	assert.Equal(t, []byte("un"), raw[lookup[0]:lookup[1]])
	assert.Equal(t, []byte{1, 2, 3, 4}, raw[lookup[1]:lookup[2]])
	assert.Equal(t, lookup[2], trailer, "empty last asset ends where the trailer begins")
	assert.Equal(t, "a.txt\x00d/b.bin\x00d/e/c", string(raw[trailer:]))

	dst := t.TempDir()
	require.NoError(t, Decompile(archive, dst, zap.NewNop()))
	for name, want := range sampleTree {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestDecompileWithoutTrailer(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, sampleTree)
	archive := filepath.Join(t.TempDir(), "out.ris_assets")
	require.NoError(t, Compile(src, archive, CompileOptions{}, zap.NewNop()))

	dst := t.TempDir()
	require.NoError(t, Decompile(archive, dst, zap.NewNop()))

	for i, want := range [][]byte{[]byte("un"), {1, 2, 3, 4}, {}} {
		got, err := os.ReadFile(filepath.Join(dst, []string{"000.bin", "001.bin", "002.bin"}[i]))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDiscoverIsSorted(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{
		"z.txt":   nil,
		"b/y.txt": nil,
		"a.txt":   nil,
		"b/x.txt": nil,
	})
	files, err := Discover(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/x.txt", "b/y.txt", "z.txt"}, files)
}

func TestCompileRewritesPathReferences(t *testing.T) {
	src := t.TempDir()
	h := &Header{Magic: Magic("ris_test"), References: []AssetID{PathID("tex/b.qoi"), PathID("a.bin")}}
	blob, err := h.Serialize([]byte("payload"))
	require.NoError(t, err)
	writeTree(t, src, map[string][]byte{
		"a.bin":     {9},
		"ref.ris":   blob,
		"tex/b.qoi": {8},
	})
	archive := filepath.Join(t.TempDir(), "out.ris_assets")
	require.NoError(t, Compile(src, archive, CompileOptions{IncludePaths: true}, zap.NewNop()))

	l, err := OpenCompiled(archive)
	require.NoError(t, err)
	defer l.Close()

	b, err := l.Load(PathID("ref.ris"))
	require.NoError(t, err)
	got, content, err := DeserializeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, []AssetID{IndexID(2), IndexID(0)}, got.References)
	assert.Equal(t, []byte("payload"), content)
}

func TestCompileRejectsUnknownReference(t *testing.T) {
	src := t.TempDir()
	h := &Header{Magic: Magic("ris_test"), References: []AssetID{PathID("missing.bin")}}
	blob, err := h.Serialize(nil)
	require.NoError(t, err)
	writeTree(t, src, map[string][]byte{"ref.ris": blob})

	err = Compile(src, filepath.Join(t.TempDir(), "out.ris_assets"), CompileOptions{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.bin")
	assert.Contains(t, err.Error(), "ref.ris")
}

func TestDecompileRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ris_assets")
	require.NoError(t, os.WriteFile(path, make([]byte, 64), 0o644))
	err := Decompile(path, t.TempDir(), zap.NewNop())
	assert.ErrorIs(t, err, ErrBadMagic)
}
