package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRunDefaults(t *testing.T) {
	cfg, err := ParseRun(nil)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.MIDIPortIndex)
	require.Equal(t, -1, cfg.InputDevice)
	require.Equal(t, -1, cfg.OutputDevice)
	require.False(t, cfg.Debug)
	require.False(t, cfg.NoOS2L)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:8008", cfg.DebugHTTPAddr)
}

func TestParseRunMIDIPortIndex(t *testing.T) {
	cfg, err := ParseRun([]string{"3"})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.MIDIPortIndex)
}

func TestParseRunInvalidMIDIPortIndex(t *testing.T) {
	_, err := ParseRun([]string{"not-a-number"})
	require.Error(t, err)
}

func TestParseRunFlags(t *testing.T) {
	cfg, err := ParseRun([]string{
		"--debug",
		"--no-os2l",
		"--input-device", "2",
		"--debug-auth-token", "secret",
		"--data-dir", "/tmp/lightshow-data",
		"2",
	})
	require.NoError(t, err)
	require.True(t, cfg.Debug)
	require.True(t, cfg.NoOS2L)
	require.Equal(t, 2, cfg.InputDevice)
	require.Equal(t, "secret", cfg.DebugAuthToken)
	require.Equal(t, "/tmp/lightshow-data", cfg.DataDir)
	require.Equal(t, 2, cfg.MIDIPortIndex)
}
