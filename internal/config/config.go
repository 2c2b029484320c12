package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// RunConfig holds the flags accepted by `cmd/lightshow run`.
type RunConfig struct {
	MIDIPortIndex int
	InputDevice   int
	OutputDevice  int
	Debug         bool
	Visualizer    bool
	NoOS2L        bool

	DataDir        string
	LogLevel       string
	DebugAuthToken string
	DebugHTTPAddr  string
}

// ParseRun parses the flags for the `run` subcommand. args excludes the
// program name and the "run" verb itself.
func ParseRun(args []string) (*RunConfig, error) {
	cfg := &RunConfig{}
	fs := flag.NewFlagSet("run", flag.ContinueOnError)

	fs.IntVar(&cfg.InputDevice, "input-device", -1, "audio input device index (default: system default)")
	fs.IntVar(&cfg.OutputDevice, "output-device", -1, "audio output device index (default: system default)")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable the local debug/status HTTP surface")
	fs.BoolVar(&cfg.Visualizer, "visualizer", false, "enable the out-of-scope visualizer hook")
	fs.BoolVar(&cfg.NoOS2L, "no-os2l", false, "disable the OS2L sender/discovery")
	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir(), "data directory for SQLite state")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.DebugAuthToken, "debug-auth-token", "", "bearer token required on the debug HTTP surface (default: disabled)")
	fs.StringVar(&cfg.DebugHTTPAddr, "debug-addr", "127.0.0.1:8008", "listen address for the debug HTTP surface")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		var err error
		cfg.MIDIPortIndex, err = parseMIDIPortIndex(rest[0])
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func parseMIDIPortIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid midi_port_index %q: %w", s, err)
	}
	return n, nil
}

func defaultDataDir() string {
	if dir := os.Getenv("LIGHTSHOW_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lightshow"
	}
	return home + "/.lightshow"
}
