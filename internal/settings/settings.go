// Package settings stores user preferences that are changed from inside the
// application rather than by editing the config file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgnsrekt/readaloud/tts"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file inside the data directory.
const FileName = "settings.yml"

// Themes accepted by Settings.Theme.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Settings are user preferences. Zero values mean "not set".
type Settings struct {
	DefaultVoice string  `yaml:"default_voice,omitempty" json:"defaultVoice"`
	Engine       string  `yaml:"engine,omitempty" json:"engine"`
	Rate         float64 `yaml:"rate,omitempty" json:"rate"`
	Theme        string  `yaml:"theme,omitempty" json:"theme"`
}

// Default returns the settings used when no file exists.
func Default() Settings {
	return Settings{Theme: ThemeAuto}
}

// Validate checks the settings for errors.
func (s Settings) Validate() error {
	if s.Rate != 0 && (s.Rate < 0.5 || s.Rate > 2.0) {
		return fmt.Errorf("%w: rate must be between 0.5 and 2.0, got %g", tts.ErrInvalidConfig, s.Rate)
	}
	switch s.Theme {
	case "", ThemeAuto, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: unknown theme %q", tts.ErrInvalidConfig, s.Theme)
	}
	if s.Engine != "" && !tts.KnownEngine(s.Engine) {
		return fmt.Errorf("%w: %q", tts.ErrUnknownEngine, s.Engine)
	}
	return nil
}

// Defaults maps the settings onto config keys. Values the user set in the
// config file or on the command line take precedence over these.
func (s Settings) Defaults() map[string]any {
	defaults := make(map[string]any)
	if s.DefaultVoice != "" {
		defaults["tts.voice"] = s.DefaultVoice
	}
	if s.Engine != "" {
		defaults["tts.engine"] = s.Engine
	}
	if s.Rate != 0 {
		defaults["tts.rate"] = s.Rate
	}
	return defaults
}

// Store reads and writes the settings file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the settings file in dir.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields the defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings: %w", err)
	}

	settings := Default()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Default(), fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return settings, nil
}

// Save validates and writes the settings. The file is replaced atomically.
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("write settings: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
