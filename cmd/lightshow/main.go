// Command lightshow runs the real-time lighting director, or lists the
// audio/MIDI endpoints it can be pointed at.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cartomix/lightshow/internal/audiodev"
	"github.com/cartomix/lightshow/internal/auth"
	"github.com/cartomix/lightshow/internal/config"
	"github.com/cartomix/lightshow/internal/dmx"
	"github.com/cartomix/lightshow/internal/effects"
	"github.com/cartomix/lightshow/internal/embedding"
	"github.com/cartomix/lightshow/internal/engine"
	"github.com/cartomix/lightshow/internal/httpapi"
	lightshowmidi "github.com/cartomix/lightshow/internal/midi"
	"github.com/cartomix/lightshow/internal/os2l"
	"github.com/cartomix/lightshow/internal/storage"
	"github.com/cartomix/lightshow/internal/trackanalysis"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList()
	case "run":
		runRun(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lightshow list | lightshow run <midi_port_index> [flags]")
}

// runList prints the audio capture devices and MIDI output ports a `run`
// invocation can address. Real audio capture is out of scope (spec
// §1/§4.11), so only the fixture enumerator's devices are shown here.
func runList() {
	devices, err := audiodev.NewFixtureEnumerator(nil, nil).Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list audio devices: %v\n", err)
	}
	fmt.Println("audio input devices:")
	for _, d := range devices {
		fmt.Printf("  [%d] %s (%d Hz)\n", d.Index, d.Name, d.SampleRate)
	}

	fmt.Println("midi output ports:")
	for i, p := range midi.OutPorts() {
		fmt.Printf("  [%d] %s\n", i, p.String())
	}
}

func runRun(args []string) {
	cfg, err := config.ParseRun(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	audioDevice, sampleRate, err := openAudioDevice(cfg)
	if err != nil {
		logger.Error("failed to open audio device", "error", err)
		os.Exit(1)
	}

	dispatcher, err := openMIDI(cfg, logger)
	if err != nil {
		logger.Error("failed to open midi port", "error", err)
		os.Exit(1)
	}

	fetcher, err := buildFetcher(db, logger)
	if err != nil {
		logger.Warn("track-analysis fetcher unavailable, running without one", "error", err)
	}

	overlays, bindings, err := loadOverlays(db)
	if err != nil {
		logger.Error("failed to load overlay registry", "error", err)
		os.Exit(1)
	}

	var dmxClient *dmx.Client
	if len(overlays) > 0 {
		dmxClient, err = dmx.New("127.0.0.1", 9050, logger)
		if err != nil {
			logger.Warn("dmx client unavailable, overlays disabled", "error", err)
		} else if err := dmxClient.Start(overlays); err != nil {
			logger.Warn("dmx start failed, overlays disabled", "error", err)
			dmxClient = nil
		}
	}

	var sender *os2l.Sender
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(engine.Config{
		SampleRate:  sampleRate,
		HopSize:     1024,
		AudioDevice: audioDevice,
		MIDI:        dispatcher,
		DMX:         dmxClient,
		Overlays:    bindings,
		EffectPools: defaultPools(overlays),
		Fetcher:     fetcher,
		DB:          db,
		Logger:      logger,
	}, embedding.NewDeterministicStub())

	if !cfg.NoOS2L {
		sender = os2l.New(eng, logger, nil)
		host, port, derr := os2l.Discover()
		if derr != nil {
			logger.Warn("os2l discovery failed, running without it", "error", derr)
			sender = nil
		} else {
			eng.SetOS2L(sender)
			go func() {
				if rerr := sender.Run(host, port); rerr != nil {
					logger.Warn("os2l sender stopped", "error", rerr)
				}
			}()
		}
	}

	if cfg.Debug {
		server := httpapi.NewServer(eng, auth.Config{Token: cfg.DebugAuthToken}, logger)
		go func() {
			if serr := http.ListenAndServe(cfg.DebugHTTPAddr, server.Handler()); serr != nil {
				logger.Warn("debug http server stopped", "error", serr)
			}
		}()
		logger.Info("debug http surface listening", "addr", cfg.DebugHTTPAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		cancel()
	}()

	logger.Info("lightshow run starting", "midi_port_index", cfg.MIDIPortIndex, "data_dir", cfg.DataDir)

	if err := eng.Run(ctx); err != nil {
		logger.Error("engine stopped with error", "error", err)
		os.Exit(1)
	}
	os.Exit(0)
}

// openAudioDevice opens the configured input device. Real capture
// hardware is out of scope (spec §1/§4.11); a production build would
// satisfy audiodev.Enumerator from a CGO backend registered here.
func openAudioDevice(cfg *config.RunConfig) (audiodev.Device, int, error) {
	enumerator := audiodev.NewFixtureEnumerator(nil, nil)
	dev, err := enumerator.Open(cfg.InputDevice, 1024)
	if err != nil {
		return nil, 0, err
	}
	return dev, 44100, nil
}

// openMIDI opens the selected output port. Port/driver enumeration is
// out of scope (spec §4.11); no CGO MIDI backend is linked in, so this
// resolves against whatever driver the process was built with.
func openMIDI(cfg *config.RunConfig, logger *slog.Logger) (*lightshowmidi.Dispatcher, error) {
	out, err := midi.OutPort(cfg.MIDIPortIndex)
	if err != nil {
		return nil, fmt.Errorf("open midi out port %d: %w", cfg.MIDIPortIndex, err)
	}
	dispatcher, err := lightshowmidi.New(out, logger, nil)
	if err != nil {
		return nil, err
	}
	if err := dispatcher.Start(); err != nil {
		return nil, err
	}
	return dispatcher, nil
}

func buildFetcher(db *storage.DB, logger *slog.Logger) (trackanalysis.Fetcher, error) {
	creds, err := db.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("no stored streaming-service credentials")
	}
	return trackanalysis.NewHTTPFetcher(trackanalysis.HTTPFetcherConfig{
		TokenURL:     creds.TokenURL,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		BaseURL:      creds.BaseURL,
	}, logger), nil
}

// loadOverlays turns the persisted overlay registry into the dmx.Overlay
// map Client.Start expects and the engine.OverlayBinding map Engine uses
// to route effects. Every overlay lives on universe 0; the persisted
// record carries no per-overlay universe (spec §4.9 describes a single
// lighting host target).
func loadOverlays(db *storage.DB) (map[int]dmx.Overlay, map[int]engine.OverlayBinding, error) {
	records, err := db.LoadOverlayEffects()
	if err != nil {
		return nil, nil, err
	}
	overlays := make(map[int]dmx.Overlay, len(records))
	bindings := make(map[int]engine.OverlayBinding, len(records))
	for _, r := range records {
		overlays[r.ID] = dmx.Overlay{Start: uint16(r.StartOffset), Length: uint16(r.OriginalLength), OriginalLength: uint16(r.OriginalLength)}
		bindings[r.ID] = engine.OverlayBinding{Universe: 0}
	}
	return overlays, bindings, nil
}

// defaultPools builds the fixed effect configuration named in spec §4.6:
// channel assignments are opaque to the Effect Controller, so any fixed
// vocabulary that doesn't collide with the MIDI Dispatcher's dedicated
// channels (link/bpm-tap/play-pause/intensity CCs) is valid here.
func defaultPools(overlays map[int]dmx.Overlay) effects.Pools {
	autoloop := func(channels ...int) []effects.Effect {
		out := make([]effects.Effect, len(channels))
		for i, c := range channels {
			out[i] = effects.Effect{Kind: effects.Autoloop, Channel: c}
		}
		return out
	}
	special := func(channels ...int) []effects.Effect {
		out := make([]effects.Effect, len(channels))
		for i, c := range channels {
			out[i] = effects.Effect{Kind: effects.SpecialEffect, Channel: c}
		}
		return out
	}
	colors := func(channels ...int) []effects.Effect {
		out := make([]effects.Effect, len(channels))
		for i, c := range channels {
			out[i] = effects.Effect{Kind: effects.ColorOverride, Channel: c}
		}
		return out
	}

	pools := effects.Pools{
		Low:           autoloop(60, 61, 62, 63, 64, 65, 66, 67),
		Medium:        autoloop(68, 69, 70, 71, 72, 73, 74, 75),
		High:          autoloop(76, 77, 78, 79, 80, 81, 82, 83),
		HipHop:        autoloop(84, 85, 86, 87, 88, 89, 90, 91),
		Special:       special(20, 21, 22, 23, 24, 25, 26, 27, 28, 29),
		ColorOverrides: colors(50, 51, 52, 53, 54, 55, 56, 57, 58),
	}
	for id := range overlays {
		pools.High = append(pools.High, effects.Effect{Kind: effects.Overlay, Overlay: id})
	}
	return pools
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
