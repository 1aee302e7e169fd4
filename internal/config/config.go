package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is read when RIS_CONFIG is not set.
const DefaultPath = "config/engine.toml"

type Config struct {
	Jobs     JobsConfig     `toml:"jobs"`
	Scene    SceneConfig    `toml:"scene"`
	Assets   AssetsConfig   `toml:"assets"`
	Renderer RendererConfig `toml:"renderer"`
	Input    InputConfig    `toml:"input"`
	Importer ImporterConfig `toml:"importer"`
	Logging  LoggingConfig  `toml:"logging"`
	Paths    PathsConfig    `toml:"paths"`
	Loop     LoopConfig     `toml:"loop"`
}

type JobsConfig struct {
	Workers        int `toml:"workers"` // 0 = one per CPU
	BufferCapacity int `toml:"buffer_capacity"`
}

type SceneConfig struct {
	DynamicCapacity int `toml:"dynamic_capacity"`
	StaticChunks    int `toml:"static_chunks"`
	StaticCapacity  int `toml:"static_capacity"`
}

type AssetsConfig struct {
	Compiled      string `toml:"compiled"`  // archive produced by `ris-cli asset compile`
	Directory     string `toml:"directory"` // imported assets, used when use_compiled is off
	Source        string `toml:"source"`    // raw sources the importer reads
	UseCompiled   bool   `toml:"use_compiled"`
	ImportOnStart bool   `toml:"import_on_start"`
	WatchSource   bool   `toml:"watch_source"`
	GodAsset      string `toml:"god_asset"` // path id of the god asset
}

type RendererConfig struct {
	FramesInFlight  int `toml:"frames_in_flight"`
	TerrainRingSize int `toml:"terrain_ring_size"`
	TerrainWidth    int `toml:"terrain_width"`
	FreeUnusedEvery int `toml:"free_unused_every"` // frames between cache sweeps
}

type InputConfig struct {
	RestartHold time.Duration `toml:"restart_hold"`
	CrashHold   time.Duration `toml:"crash_hold"`
	Keymap      string        `toml:"keymap"` // empty = built-in bindings
}

type ImporterConfig struct {
	Glslc       string `toml:"glslc"`
	Parallelism int    `toml:"parallelism"`
	CacheFile   string `toml:"cache_file"`
}

type LoggingConfig struct {
	Level        string `toml:"level"`
	Format       string `toml:"format"` // "json" or "console"
	File         bool   `toml:"file"`
	OldFileCount int    `toml:"old_file_count"`
}

type PathsConfig struct {
	PrefDir string `toml:"pref_dir"` // empty = ~/.ris
}

type LoopConfig struct {
	MaxFrames   uint64        `toml:"max_frames"`   // 0 = run until quit
	FrameBudget time.Duration `toml:"frame_budget"` // minimum frame duration, 0 = uncapped
}

// Path returns the config path from RIS_CONFIG or DefaultPath.
func Path() string {
	if p := os.Getenv("RIS_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads path over the defaults. A missing file at DefaultPath yields the
// defaults; any other path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Jobs.Workers < 0:
		return fmt.Errorf("jobs.workers must not be negative, got %d", c.Jobs.Workers)
	case c.Jobs.BufferCapacity <= 0:
		return fmt.Errorf("jobs.buffer_capacity must be positive, got %d", c.Jobs.BufferCapacity)
	case c.Scene.DynamicCapacity < 0 || c.Scene.StaticChunks < 0 || c.Scene.StaticCapacity < 0:
		return errors.New("scene capacities must not be negative")
	case c.Renderer.FramesInFlight <= 0:
		return fmt.Errorf("renderer.frames_in_flight must be positive, got %d", c.Renderer.FramesInFlight)
	case c.Renderer.TerrainRingSize < 0:
		return fmt.Errorf("renderer.terrain_ring_size must not be negative, got %d", c.Renderer.TerrainRingSize)
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Jobs: JobsConfig{
			BufferCapacity: 1024,
		},
		Scene: SceneConfig{
			DynamicCapacity: 1024,
			StaticChunks:    4,
			StaticCapacity:  1024,
		},
		Assets: AssetsConfig{
			Compiled:  "ris_assets.ris_assets",
			Directory: "assets/out",
			Source:    "assets/in",
			GodAsset:  "god_asset.ris_god_asset",
		},
		Renderer: RendererConfig{
			FramesInFlight:  2,
			TerrainRingSize: 3,
			TerrainWidth:    64,
			FreeUnusedEvery: 60,
		},
		Input: InputConfig{
			RestartHold: 5 * time.Second,
			CrashHold:   5 * time.Second,
		},
		Importer: ImporterConfig{
			Glslc:     "glslc",
			CacheFile: ".import_cache.yaml",
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			OldFileCount: 10,
		},
	}
}
