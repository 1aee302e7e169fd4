// Package settings holds the per-user settings persisted under the
// preference directory.
package settings

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/risengine/ris/internal/fallback"
	"gopkg.in/yaml.v3"
)

const (
	DirectoryName = "settings"
	Extension     = ".ris_settings"
	oldFileCount  = 10
)

type JobSettings struct {
	// Workers overrides the configured worker count; nil uses the config.
	Workers *int `yaml:"workers"`
}

type WindowSettings struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

type Settings struct {
	Job    JobSettings    `yaml:"job"`
	Window WindowSettings `yaml:"window"`
	Keymap string         `yaml:"keymap,omitempty"`

	changed       bool
	jobChanged    bool
	saveRequested bool
}

func Default() *Settings {
	return &Settings{Window: WindowSettings{Width: 1280, Height: 720}}
}

// Changed reports whether anything changed this frame.
func (s *Settings) Changed() bool { return s.changed || s.jobChanged }

// JobChanged reports whether the job settings changed this frame. The job
// system only picks them up on restart.
func (s *Settings) JobChanged() bool { return s.jobChanged }

func (s *Settings) SaveRequested() bool { return s.saveRequested }

func (s *Settings) RequestSave() {
	s.changed = true
	s.saveRequested = true
}

func (s *Settings) SetWorkers(workers *int) {
	s.Job.Workers = workers
	s.jobChanged = true
}

func (s *Settings) SetWindow(w WindowSettings) {
	s.Window = w
	s.changed = true
}

// Reset clears the per-frame flags.
func (s *Settings) Reset() {
	s.changed = false
	s.jobChanged = false
	s.saveRequested = false
}

func (s *Settings) Clone() *Settings {
	c := *s
	if s.Job.Workers != nil {
		w := *s.Job.Workers
		c.Job.Workers = &w
	}
	return &c
}

func (s *Settings) validate() error {
	if s.Job.Workers != nil && *s.Job.Workers < 0 {
		return fmt.Errorf("job.workers must not be negative, got %d", *s.Job.Workers)
	}
	return nil
}

// PrefDir resolves the preference directory: override with ~ expanded, or
// ~/.ris.
func PrefDir(override string) (string, error) {
	if override != "" {
		dir, err := homedir.Expand(override)
		if err != nil {
			return "", fmt.Errorf("expand pref dir %q: %w", override, err)
		}
		return dir, nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ris"), nil
}

// Serializer persists settings as YAML through a fallback file, so a
// corrupt save falls back to the previous one.
type Serializer struct {
	file *fallback.Overwrite
}

func NewSerializer(prefDir string) *Serializer {
	return &Serializer{file: fallback.NewOverwrite(filepath.Join(prefDir, DirectoryName), Extension, oldFileCount)}
}

func (s *Serializer) Serialize(settings *Settings) error {
	b, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.file.OverwriteCurrent(b); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Deserialize returns the newest settings that parse, or false when there
// are none.
func (s *Serializer) Deserialize() (*Settings, bool) {
	for _, path := range s.file.AvailablePaths() {
		b, ok := s.file.GetByPath(path)
		if !ok {
			continue
		}
		if settings, err := parse(b); err == nil {
			return settings, true
		}
	}
	return nil, false
}

var errEmpty = errors.New("empty settings file")

func parse(b []byte) (*Settings, error) {
	if len(b) == 0 {
		return nil, errEmpty
	}
	settings := Default()
	if err := yaml.Unmarshal(b, settings); err != nil {
		return nil, err
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return settings, nil
}
