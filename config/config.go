package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// OutputConfig selects where notes go
type OutputConfig struct {
	PortName  string `json:"portName,omitempty"`
	Launchpad bool   `json:"launchpad,omitempty"`
}

// PlaybackConfig tunes the scheduler
type PlaybackConfig struct {
	SpinThresholdMs int     `json:"spinThresholdMs,omitempty"`
	StartTempo      float64 `json:"startTempo,omitempty"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	// Palette is a GIMP .gpl file; empty uses the built-in one
	Palette string `json:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Output   OutputConfig   `json:"output,omitempty"`
	Playback PlaybackConfig `json:"playback,omitempty"`
	UI       UIConfig       `json:"ui,omitempty"`
	Debug    bool           `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Playback: PlaybackConfig{
			SpinThresholdMs: 10,
			StartTempo:      120,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midiplay"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Fields missing from the file keep
// their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the player cannot use
func (c *Config) Validate() error {
	if c.Playback.SpinThresholdMs < 0 {
		return fmt.Errorf("playback.spinThresholdMs must not be negative, got %d", c.Playback.SpinThresholdMs)
	}
	if c.Playback.StartTempo < 0 {
		return fmt.Errorf("playback.startTempo must not be negative, got %g", c.Playback.StartTempo)
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory
func (c *Config) SaveTo(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
