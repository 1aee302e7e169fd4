package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/risengine/ris/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func compiledSample(t *testing.T, paths bool) *CompiledLoader {
	t.Helper()
	src := t.TempDir()
	writeTree(t, src, sampleTree)
	archive := filepath.Join(t.TempDir(), "out.ris_assets")
	require.NoError(t, Compile(src, archive, CompileOptions{IncludePaths: paths}, zap.NewNop()))
	l, err := OpenCompiled(archive)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestCompiledLoader(t *testing.T) {
	l := compiledSample(t, true)
	assert.Equal(t, 3, l.Len())

	b, err := l.Load(IndexID(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	b, err = l.Load(PathID("d/e/c"))
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = l.Load(IndexID(3))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Load(PathID("nope"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompiledLoaderWithoutPaths(t *testing.T) {
	l := compiledSample(t, false)
	b, err := l.Load(IndexID(2))
	require.NoError(t, err, "last asset runs to the end of the file")
	assert.Empty(t, b)

	_, err = l.Load(PathID("a.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryLoader(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, sampleTree)
	l := NewDirectoryLoader(root)

	b, err := l.Load(PathID("./d/b.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)

	_, err = l.Load(PathID("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Load(IndexID(0))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSwappableLoader(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(first, "x"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(second, "x"), []byte("2"), 0o644))

	l := NewSwappableLoader(NewDirectoryLoader(first))
	b, err := l.Load(PathID("x"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(b))

	l.Swap(NewDirectoryLoader(second))
	b, err = l.Load(PathID("x"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(b))
}

func TestLoadAsync(t *testing.T) {
	sys, w, err := jobs.Init(jobs.Config{Workers: 4, BufferCapacity: 16}, zap.NewNop())
	require.NoError(t, err)
	defer sys.Close()

	l := compiledSample(t, true)
	rx := LoadAsync(w, l, PathID("a.txt"), func(b []byte) (string, error) {
		return string(b) + "!", nil
	})
	res, err := rx.Wait(w)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "un!", res.Value)

	rx = LoadAsync(w, l, IndexID(99), func(b []byte) (string, error) { return "", nil })
	res, err = rx.Wait(w)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrNotFound)
}

func TestLoadAsyncWithoutWorker(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sys, _, err := jobs.Init(jobs.Config{Workers: 1, BufferCapacity: 4}, zap.New(core))
	require.NoError(t, err)
	defer sys.Close()

	rx := LoadAsync(nil, NewDirectoryLoader(t.TempDir()), PathID("x"), func(b []byte) ([]byte, error) { return b, nil })
	_, err = rx.Wait(nil)
	assert.ErrorIs(t, err, jobs.ErrSenderDropped)

	entries := logs.FilterMessage("asset load requested outside the job system").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "path:x", entries[0].ContextMap()["id"])
}
