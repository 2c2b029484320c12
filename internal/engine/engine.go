// Package engine implements the cooperative scheduler named in spec §5:
// it owns process lifecycle, the Audio Analyser's handler contract, the
// 100ms/1s/10s periodic-callback cadence, and the track-metadata
// injection path, fanning analyser/change-detector events out to the
// OS2L, MIDI, and DMX clients.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cartomix/lightshow/internal/analyser"
	"github.com/cartomix/lightshow/internal/audiodev"
	"github.com/cartomix/lightshow/internal/changedetector"
	"github.com/cartomix/lightshow/internal/dmx"
	"github.com/cartomix/lightshow/internal/effects"
	"github.com/cartomix/lightshow/internal/httpapi"
	"github.com/cartomix/lightshow/internal/midi"
	"github.com/cartomix/lightshow/internal/os2l"
	"github.com/cartomix/lightshow/internal/storage"
	"github.com/cartomix/lightshow/internal/trackanalysis"
)

const (
	hook100ms         = 100 * time.Millisecond
	hook1s            = time.Second
	hook10s           = 10 * time.Second
	trackPollInterval = 20 * time.Second
)

// OverlayBinding names the DMX universe an effects.Effect's Overlay index
// routes to; the overlay id itself is the Effect.Overlay value.
type OverlayBinding struct {
	Universe uint8
}

// Config bundles every collaborator the Engine fans events out to. Nil
// fields disable the corresponding subsystem (-no-os2l, DMX disabled,
// credentials absent).
type Config struct {
	SampleRate int
	HopSize    int

	AudioDevice audiodev.Device
	MIDI        *midi.Dispatcher
	OS2L        *os2l.Sender
	DMX         *dmx.Client
	Overlays    map[int]OverlayBinding

	EffectPools effects.Pools
	Fetcher     trackanalysis.Fetcher
	DB          *storage.DB

	Logger *slog.Logger
	Now    func() time.Time
}

// Engine wires the Audio Analyser, Structural Change Detector, and
// Effect Controller to the outbound protocol clients, per spec §2's data
// flow diagram. It implements analyser.Handler directly.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	analyser       *analyser.Analyser
	changeDetector *changedetector.Detector
	effects        *effects.Controller

	runID string

	track           atomic.Pointer[trackanalysis.TrackAnalysis]
	activeOverlayID int
	sectionIndex    atomic.Int32

	snapshot atomic.Pointer[httpapi.Snapshot]

	last100, last1s, last10s time.Time

	running atomic.Bool
}

// New builds an Engine. model is the Structural Change Detector's
// embedding model (cmd/lightshow and the tests both pass
// embedding.DeterministicStub).
func New(cfg Config, model changeDetectorModel) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		cfg:             cfg,
		logger:          cfg.Logger,
		now:             cfg.Now,
		activeOverlayID: -1,
	}
	e.sectionIndex.Store(-1)
	e.analyser = analyser.New(cfg.SampleRate, cfg.HopSize, e, cfg.Now)
	e.changeDetector = changedetector.New(cfg.SampleRate, cfg.HopSize, model, e, cfg.Now)

	var sink effects.MIDISink = nopMIDISink{}
	if cfg.MIDI != nil {
		sink = cfg.MIDI
	}
	e.effects = effects.New(cfg.EffectPools, sink, cfg.Now)
	e.publishSnapshot()
	return e
}

// SetOS2L binds the OS2L Sender after construction, for callers that must
// build the Sender over the Engine itself (os2l.New takes the Engine as
// its BeatSource). Not safe to call once Run has started.
func (e *Engine) SetOS2L(sender *os2l.Sender) {
	e.cfg.OS2L = sender
}

// nopMIDISink lets the Effect Controller run safely when no MIDI port
// was opened (e.g. engine tests that configure no MIDI Dispatcher).
type nopMIDISink struct{}

func (nopMIDISink) SetAutoloop(int)                  {}
func (nopMIDISink) SetSpecialEffect(int, time.Duration) {}
func (nopMIDISink) SetColorOverride(int)             {}
func (nopMIDISink) ClearColorOverrides()             {}

// changeDetectorModel is a local alias of embedding.Model, so this
// package does not need to import internal/embedding solely for the
// type name.
type changeDetectorModel interface {
	Embed(audio []float64) [][]float64
}

// Run is the cooperative main loop of spec §5: read one audio buffer,
// run the Analyser and Change Detector over it, then dispatch whichever
// periodic hooks are due. It blocks until ctx is cancelled or the audio
// device returns a permanent error.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	if e.runID == "" && e.cfg.DB != nil {
		id, err := e.cfg.DB.StartRun(e.now())
		if err != nil {
			return fmt.Errorf("engine: start run: %w", err)
		}
		e.runID = id
	}

	now := e.now()
	e.last100, e.last1s, e.last10s = now, now, now

	if e.cfg.Fetcher != nil {
		go e.pollTrackAnalysis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return e.shutdown(nil)
		default:
		}

		frame, err := e.cfg.AudioDevice.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, audiodev.ErrExhausted) {
				return e.shutdown(nil)
			}
			return e.shutdown(fmt.Errorf("engine: audio read: %w", err))
		}

		e.analyser.Process(frame)

		track := e.track.Load()
		currentSec := e.analyser.State().SongCurrentTime.Sub(e.analyser.State().SongStartTime).Seconds()
		e.changeDetector.Process(frame, currentSec, track)

		e.runPeriodicHooks()
	}
}

func (e *Engine) runPeriodicHooks() {
	now := e.now()
	if now.Sub(e.last100) >= hook100ms {
		e.last100 = now
		if e.cfg.MIDI != nil {
			e.cfg.MIDI.Tick()
		}
	}
	if now.Sub(e.last1s) >= hook1s {
		e.last1s = now
		e.publishSnapshot()
	}
	if now.Sub(e.last10s) >= hook10s {
		e.last10s = now
		e.logTrackInfo()
	}
}

func (e *Engine) logTrackInfo() {
	track := e.track.Load()
	if track == nil {
		return
	}
	e.logger.Info("current track", "name", track.TrackName, "artists", track.Artists, "bpm", track.BPM)
}

func (e *Engine) pollTrackAnalysis(ctx context.Context) {
	ticker := time.NewTicker(trackPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			analysis, err := e.cfg.Fetcher.Fetch(ctx)
			if err != nil {
				e.logger.Info("track-analysis fetch failed", "error", err)
				continue
			}
			e.track.Store(analysis)
			e.analyser.Inject(analysis)
		}
	}
}

// shutdown performs the ordered teardown of spec §5: audio, OS2L, MIDI,
// overlay, analysis. permErr, if non-nil, is a permanent error that
// triggered the shutdown; it is returned after teardown completes.
func (e *Engine) shutdown(permErr error) error {
	if err := e.cfg.AudioDevice.Close(); err != nil {
		e.logger.Warn("audio device close failed", "error", err)
	}
	if e.cfg.OS2L != nil {
		e.cfg.OS2L.Stop()
	}
	if e.cfg.MIDI != nil {
		if err := e.cfg.MIDI.Stop(); err != nil {
			e.logger.Warn("midi dispatcher stop failed", "error", err)
		}
	}
	if e.cfg.DMX != nil {
		if err := e.cfg.DMX.Stop(); err != nil {
			e.logger.Warn("dmx client stop failed", "error", err)
		}
	}

	clean := permErr == nil
	if e.cfg.DB != nil && e.runID != "" {
		lastShow := ""
		if t := e.track.Load(); t != nil {
			lastShow = t.LightShowType().String()
		}
		if err := e.cfg.DB.FinishRun(e.runID, e.now(), clean, lastShow); err != nil {
			e.logger.Warn("failed to record run completion", "error", err)
		}
	}

	if clean {
		e.logger.Info("clean shutdown")
		return nil
	}
	return permErr
}

// Snapshot implements httpapi.SnapshotProvider, reading the single
// atomically-swapped cell the Engine publishes to on its 1s hook, per
// spec §5's expansion.
func (e *Engine) Snapshot() httpapi.Snapshot {
	if s := e.snapshot.Load(); s != nil {
		return *s
	}
	return httpapi.Snapshot{}
}

func (e *Engine) publishSnapshot() {
	state := e.analyser.State()
	lastEffect := ""
	if effect, ok := e.effects.LastEffect(); ok {
		lastEffect = effect.String()
	}
	lightShow := ""
	if t := e.track.Load(); t != nil {
		lightShow = t.LightShowType().String()
	}
	os2lLoggedOn := e.cfg.OS2L != nil && e.cfg.OS2L.State() == os2l.LoggedOn
	snap := httpapi.Snapshot{
		IsPlaying:           state.IsPlaying,
		BPM:                 state.LastBPM,
		BeatCount:           state.BeatCount,
		LightShowType:       lightShow,
		CurrentSectionIndex: int(e.sectionIndex.Load()),
		LastEffect:          lastEffect,
		OS2LLoggedOn:        os2lLoggedOn,
		MIDIConnected:       e.cfg.MIDI != nil,
	}
	e.snapshot.Store(&snap)
}

// CurrentBeatPosition implements os2l.BeatSource.
func (e *Engine) CurrentBeatPosition() (pos, bpm float64, timeElapsedMs int64) {
	state := e.analyser.State()
	now := e.now()
	elapsed := state.SongCurrentTime.Sub(state.SongStartTime)
	return state.BeatPosition(now), state.LastBPM, elapsed.Milliseconds()
}

// --- analyser.Handler ---

func (e *Engine) OnSoundStart() {
	if e.cfg.MIDI != nil {
		e.cfg.MIDI.OnSoundStart()
	}
	if e.cfg.OS2L != nil {
		e.cfg.OS2L.Enqueue(os2l.PlayStartMessage())
	}
}

func (e *Engine) OnSoundStop() {
	if e.cfg.MIDI != nil {
		e.cfg.MIDI.OnSoundStop()
	}
	if e.cfg.OS2L != nil {
		e.cfg.OS2L.Enqueue(os2l.PlayStopMessage())
	}
}

func (e *Engine) OnOnset(strength float64) {}

func (e *Engine) OnBeat(beatCount int, bpm float64, bpmChanged bool) {
	if e.cfg.OS2L != nil {
		e.cfg.OS2L.EmitBeat(bpmChanged, beatCount, int(bpm), 1.0)
	}
}

func (e *Engine) OnNote(midiNote int) {
	e.logger.Debug("note detected", "midi_note", midiNote)
}

func (e *Engine) OnSectionChange(currentSec float64, track *trackanalysis.TrackAnalysis) {
	e.effects.ChangeEffect(currentSec, track)
	e.sectionIndex.Store(int32(e.effects.CurrentSectionIndex()))

	effect, ok := e.effects.LastEffect()
	if !ok || effect.Kind != effects.Overlay || e.cfg.DMX == nil {
		return
	}
	binding, known := e.cfg.Overlays[effect.Overlay]
	if !known {
		e.logger.Warn("unknown overlay id from effect controller", "overlay", effect.Overlay)
		return
	}
	if e.activeOverlayID >= 0 && e.activeOverlayID != effect.Overlay {
		if err := e.cfg.DMX.Deactivate(e.activeOverlayID, binding.Universe); err != nil {
			e.logger.Warn("dmx deactivate failed", "overlay", e.activeOverlayID, "error", err)
		}
	}
	if err := e.cfg.DMX.Activate(effect.Overlay, binding.Universe); err != nil {
		e.logger.Warn("dmx activate failed", "overlay", effect.Overlay, "error", err)
		return
	}
	e.activeOverlayID = effect.Overlay
}

func (e *Engine) OnCycle() {}
