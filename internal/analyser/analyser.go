// Package analyser implements the Audio Analyser: the per-buffer
// real-time pipeline that consumes fixed-size audio frames and emits
// semantic musical events (sound start/stop, onset, beat, note) through a
// bound Handler, per spec §4.5.
package analyser

import (
	"math"
	"time"

	"github.com/cartomix/lightshow/internal/dsp"
	"github.com/cartomix/lightshow/internal/filter"
	"github.com/cartomix/lightshow/internal/trackanalysis"
)

const (
	silenceDebounce        = 300 * time.Millisecond
	maxSongDuration        = 15 * time.Minute
	noteRefractory         = 75 * time.Millisecond
	bpmChangeThreshold     = 0.05
	noteConfidenceMinimum  = 0.6
	pitchWindowSize        = 2048

	// energyRise/energyDecay track loudness with an instant attack (a real
	// level jump must never be masked) but a quick decay, just enough to
	// absorb single-frame spectral noise before it reaches the silence
	// gate in the play-state machine.
	energyRise  = 1.0
	energyDecay = 0.85
)

// Analyser runs the pipeline described in spec §4.5 over a stream of
// fixed-size AudioFrames.
type Analyser struct {
	sampleRate int
	handler    Handler
	now        func() time.Time

	spectrum     *dsp.Spectrum
	onset        *dsp.OnsetEstimator
	tempo        *dsp.TempoEstimator
	pitch        *dsp.PitchEstimator
	energyFilter *filter.Vector

	pitchWindow []float64

	state *State
}

// New builds an Analyser for the given sample rate and per-call buffer
// hop size, invoking handler for every emitted event. nowFn supplies the
// current instant and should be time.Now in production, or a fake clock
// in tests.
func New(sampleRate, hopSize int, handler Handler, nowFn func() time.Time) *Analyser {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Analyser{
		sampleRate:   sampleRate,
		handler:      handler,
		now:          nowFn,
		spectrum:     dsp.NewSpectrum(sampleRate),
		onset:        dsp.NewOnsetEstimator(0),
		tempo:        dsp.NewTempoEstimator(sampleRate, hopSize),
		pitch:        dsp.NewPitchEstimator(sampleRate),
		energyFilter: filter.NewVector(energyDecay, energyRise),
		state:        newState(nowFn()),
	}
}

// State returns the analyser's current owned state, for read-only
// inspection (e.g. the debug status endpoint).
func (a *Analyser) State() *State {
	return a.state
}

// Process consumes one AudioFrame, following spec §4.5 steps 1-6, and
// returns the (possibly click-augmented) frame. This implementation never
// mixes in a debug click; callers may discard the return value.
func (a *Analyser) Process(frame []float64) []float64 {
	now := a.now()
	s := a.state
	s.SongCurrentTime = now

	a.pitchWindow = append(a.pitchWindow, frame...)
	if len(a.pitchWindow) > pitchWindowSize {
		a.pitchWindow = a.pitchWindow[len(a.pitchWindow)-pitchWindowSize:]
	}

	// Step 1: pitch on the large-window buffer.
	pitchHz, pitchConfidence := a.pitch.Estimate(a.pitchWindow)

	// Step 2: spectrum / MFCC / mel-band energies. The mel energies feed
	// both the MFCC (raw, for timbre fidelity) and a smoothed loudness
	// reading (de-jittered, for the silence gate and for anything reading
	// EnergyHistory downstream).
	magnitude := a.spectrum.Magnitude(frame)
	melEnergies := a.spectrum.MelEnergies(magnitude)
	smoothedEnergies := a.energyFilter.Update(melEnergies)
	mfcc := dsp.MFCC(melEnergies)
	s.MFCCHistory = appendBounded(s.MFCCHistory, mfcc)
	s.EnergyHistory = appendBounded(s.EnergyHistory, smoothedEnergies)

	// Step 3: onset and beat detection. Beat tracking runs every frame,
	// independent of onset (a steady kick can be felt without a fresh
	// spectral-flux excursion); onset itself gates the play-state machine
	// below, since a frame with no onset carries no signal about whether
	// sound just started or stopped.
	isOnset, onsetStrength := a.onset.Process(magnitude)
	beatFired, bpm := a.tempo.Process(onsetStrength)

	// Step 4: silence / play state machine (§4.5.1), gated on onset so a
	// run of pure silence (which never produces an onset) can never by
	// itself cross the debounce window and fire a spurious sound start.
	// SongStartTime only moves on a full reset (stop transition or the
	// 15-minute overflow below) or on Inject, so the start check measures
	// time since the last of those, silent stretches included.
	var pendingSoundStop, pendingSoundStart bool
	if isOnset {
		silent := dsp.IsSilent(smoothedEnergies)
		if !silent {
			s.SilencePeriodStart = now
		}
		if now.Sub(s.SilencePeriodStart) > silenceDebounce && s.IsPlaying {
			pendingSoundStop = true
		}
		if !s.IsPlaying && !pendingSoundStop && now.Sub(s.SongStartTime) > silenceDebounce {
			pendingSoundStart = true
		}
	}

	var pendingBeat bool
	var beatCount int
	var bpmChanged bool
	var newLastBeatInstant time.Time
	var newTimeToLastBeat float64
	if beatFired {
		beatCount = s.BeatCount + 1
		bpmChanged = s.IsPlaying && bpm > 0 && math.Abs(bpm-s.LastBPM)/bpm > bpmChangeThreshold
		newTimeToLastBeat = s.TimeToLastBeatSec
		if !s.LastBeatInstant.IsZero() {
			newTimeToLastBeat = now.Sub(s.LastBeatInstant).Seconds()
		}
		newLastBeatInstant = now
		pendingBeat = true
	}

	// Step 5: note detection, gated on onset for the same reason as the
	// play-state machine above.
	var pendingNote bool
	var midiNote int
	if isOnset && pitchConfidence > noteConfidenceMinimum {
		candidate := dsp.HzToMIDI(pitchHz)
		if candidate != 0 && now.Sub(s.LastNoteInstant) >= noteRefractory {
			midiNote = candidate
			pendingNote = true
		}
	}

	// Step 6: 15-minute debounce reset. A reset discards this frame's
	// pending beat/note/sound-state transitions rather than firing them
	// against a state about to be wiped.
	if now.Sub(s.SongStartTime) > maxSongDuration {
		s.reset(now)
		a.handler.OnCycle()
		return frame
	}

	// Step 7: commit state and invoke callbacks.
	if pendingSoundStop {
		a.handler.OnSoundStop()
		s.reset(now)
	}
	if pendingSoundStart {
		s.IsPlaying = true
		a.handler.OnSoundStart()
	}
	if isOnset {
		a.handler.OnOnset(onsetStrength)
	}
	if pendingBeat {
		s.BeatCount = beatCount
		s.TimeToLastBeatSec = newTimeToLastBeat
		s.LastBeatInstant = newLastBeatInstant
		s.LastBPM = bpm
		a.handler.OnBeat(s.BeatCount, bpm, bpmChanged)
	}
	if pendingNote {
		s.LastNoteInstant = now
		a.handler.OnNote(midiNote)
	}
	a.handler.OnCycle()

	return frame
}

// Inject re-aligns the locally counted beats to an externally authoritative
// TrackAnalysis record, per spec §4.5.5.
func (a *Analyser) Inject(track *trackanalysis.TrackAnalysis) {
	if track == nil {
		return
	}
	now := a.now()
	a.state.BeatCount = track.CurrentBeatCount
	a.state.SongStartTime = now.Add(-time.Duration(track.ProgressMs) * time.Millisecond)
}
