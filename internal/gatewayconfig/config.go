// Package gatewayconfig loads the gateway's own settings: cache
// locations, refresh cadence, and the container runtime to shell out to.
// Persistence follows the reference profile store's split between a
// YAML settings file and a separate sources manifest.
package gatewayconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the gateway's top-level configuration.
type Settings struct {
	CacheDir        string        `yaml:"cache_dir"`
	SourcesDir      string        `yaml:"sources_dir"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	ContainerBinary string        `yaml:"container_binary"`
	LogLevel        string        `yaml:"log_level"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings(appDir string) Settings {
	return Settings{
		CacheDir:        filepath.Join(appDir, "cache"),
		SourcesDir:      filepath.Join(appDir, "sources"),
		RefreshInterval: 24 * time.Hour,
		ContainerBinary: "docker",
		LogLevel:        "info",
	}
}

// Store loads and saves the gateway's settings file.
type Store struct {
	settingsPath string
}

// NewStore creates a settings store rooted at settingsPath.
func NewStore(settingsPath string) *Store {
	return &Store{settingsPath: settingsPath}
}

// Load reads settings.yaml, falling back to defaults rooted at appDir
// when the file does not exist.
func (s *Store) Load(appDir string) (Settings, error) {
	defaults := DefaultSettings(appDir)

	data, err := os.ReadFile(s.settingsPath)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	settings := defaults
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	return settings, nil
}

// Save writes settings to the settings file.
func (s *Store) Save(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.settingsPath), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	return os.WriteFile(s.settingsPath, data, 0644)
}
