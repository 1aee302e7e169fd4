package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[jobs]
workers = 3

[assets]
use_compiled = true
compiled = "game.ris_assets"

[input]
restart_hold = "2s"

[logging]
format = "json"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Jobs.Workers)
	assert.Equal(t, 1024, cfg.Jobs.BufferCapacity, "unset keys keep their default")
	assert.True(t, cfg.Assets.UseCompiled)
	assert.Equal(t, "game.ris_assets", cfg.Assets.Compiled)
	assert.Equal(t, 2*time.Second, cfg.Input.RestartHold)
	assert.Equal(t, 5*time.Second, cfg.Input.CrashHold)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2, cfg.Renderer.FramesInFlight)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[jobs\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[renderer]\nframes_in_flight = 0\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "frames_in_flight")
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("RIS_CONFIG", "")
	assert.Equal(t, DefaultPath, Path())
	t.Setenv("RIS_CONFIG", "/etc/ris.toml")
	assert.Equal(t, "/etc/ris.toml", Path())
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
