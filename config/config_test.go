package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFromKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output":{"portName":"FluidSynth"},"debug":true}`), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "FluidSynth", cfg.Output.PortName)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 10, cfg.Playback.SpinThresholdMs)
	assert.Equal(t, 120.0, cfg.Playback.StartTempo)
}

func TestLoadFromInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"output":`), 0644))
	_, err := LoadFrom(bad)
	assert.ErrorContains(t, err, "parse")

	negative := filepath.Join(dir, "negative.json")
	require.NoError(t, os.WriteFile(negative, []byte(`{"playback":{"spinThresholdMs":-1}}`), 0644))
	_, err = LoadFrom(negative)
	assert.ErrorContains(t, err, "spinThresholdMs")
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Output.Launchpad = true
	cfg.UI.Palette = "plasma.gpl"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
