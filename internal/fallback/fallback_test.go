package fallback

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestOverwriteDoesNotTouchDiskUntilWritten(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "settings")
	o := NewOverwrite(dir, ".yaml", 10)
	assert.NoDirExists(t, dir)
	assert.Empty(t, o.AvailablePaths())
	_, ok := o.GetByIndex(0)
	assert.False(t, ok)
}

func TestOverwriteWritesStampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	o := NewOverwrite(dir, ".test", 10)
	require.NoError(t, o.OverwriteCurrent([]byte("hello world")))
	assert.DirExists(t, filepath.Join(dir, "old"))

	raw, err := os.ReadFile(filepath.Join(dir, "current.test"))
	require.NoError(t, err)
	lines := strings.Split(string(raw), "\n")
	require.Len(t, lines, 3)
	stamp, err := time.Parse(time.RFC3339Nano, lines[0])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stamp, time.Minute)
	assert.Empty(t, lines[1])
	assert.Equal(t, "hello world", lines[2])

	b, ok := o.GetByIndex(0)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(b))
}

func TestOverwriteRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	o := NewOverwrite(dir, ".test", 3)
	o.now = steppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	for i := range 6 {
		require.NoError(t, o.OverwriteCurrent([]byte{byte('a' + i)}))
	}
	paths := o.AvailablePaths()
	require.Len(t, paths, 4, "current plus three old copies")
	assert.Equal(t, filepath.Join(dir, "current.test"), paths[0])
	for _, p := range paths[1:] {
		assert.NotContains(t, filepath.Base(p), ":", "stamps are sanitised")
	}

	var got []string
	for i := range paths {
		b, ok := o.GetByIndex(i)
		require.True(t, ok)
		got = append(got, string(b))
	}
	assert.Equal(t, []string{"f", "e", "d", "c"}, got)
}

func TestGetByPathKeepsUnstampedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a date\n\nbody"), 0o644))
	o := NewOverwrite(dir, ".txt", 1)
	b, ok := o.GetByPath(path)
	require.True(t, ok)
	assert.Equal(t, "not a date\n\nbody", string(b))
}

func TestAppendRotatesOnOpen(t *testing.T) {
	dir := t.TempDir()
	first, err := NewAppend(dir, ".log", 2)
	require.NoError(t, err)
	_, err = first.WriteString("first run\n")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewAppend(dir, ".log", 2)
	require.NoError(t, err)
	_, err = second.WriteString("second run\n")
	require.NoError(t, err)
	require.NoError(t, second.Sync())
	require.NoError(t, second.Close())

	old, err := sortedEntries(filepath.Join(dir, "old"))
	require.NoError(t, err)
	require.Len(t, old, 1)
	b, err := os.ReadFile(old[0])
	require.NoError(t, err)
	assert.Equal(t, "first run\n", string(stripStamp(b)))

	b, err = os.ReadFile(filepath.Join(dir, "current.log"))
	require.NoError(t, err)
	assert.Equal(t, "second run\n", string(stripStamp(b)))
}
