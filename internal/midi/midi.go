// Package midi implements the MIDI Dispatcher: it serialises semantic
// lighting intents to MIDI note/CC messages on an already-opened output
// port, per spec §4.8. Port enumeration and driver selection are out of
// scope (spec §1, §4.11) — callers supply an opened drivers.Out.
package midi

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Semantic channel vocabulary (a slice of the enumerated ordinals 1-90
// named in spec §4.8; the remainder are opaque pool-supplied note
// numbers for autoloops, special effects, and colour overrides).
const (
	NoteLink         uint8 = 1
	NoteBPMTap       uint8 = 2
	NotePlayPause    uint8 = 3
	NoteNextAutoloop uint8 = 4

	ccAutoloopIntensity uint8 = 10
	ccScriptedTrack     uint8 = 11
	ccGroup1            uint8 = 12
	ccGroup2            uint8 = 13
	ccGroup3            uint8 = 14
	ccGroup4            uint8 = 15
)

// colorOverrideChannels enumerates the 9 colour-override note numbers
// cleared as a unit by ClearColorOverrides.
var colorOverrideChannels = [9]uint8{50, 51, 52, 53, 54, 55, 56, 57, 58}

const autoloopNoteGap = 10 * time.Millisecond

// Action is what a DelayedEffect performs when its deadline is reached.
type Action int

const (
	Deactivate Action = iota
)

// DelayedEffect is a scan-on-tick timer entry, per Design Note §9.
type DelayedEffect struct {
	Start    time.Time
	Duration time.Duration
	Channel  uint8
	Action   Action
	done     bool
}

func (d DelayedEffect) deadline() time.Time { return d.Start.Add(d.Duration) }

// Dispatcher owns the MIDI output port and the delayed-effect timer list.
type Dispatcher struct {
	send   func(msg midi.Message) error
	logger *slog.Logger
	now    func() time.Time

	paused  bool
	delayed []DelayedEffect
}

// New builds a Dispatcher over an already-opened output port.
func New(out drivers.Out, logger *slog.Logger, nowFn func() time.Time) (*Dispatcher, error) {
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, err
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{send: send, logger: logger, now: nowFn}, nil
}

// Start prepares the dispatcher for use. The port itself is opened by the
// caller (spec §4.11); Start exists so the Engine has a symmetric
// start/stop lifecycle hook to call alongside the other output clients.
func (d *Dispatcher) Start() error {
	d.logger.Info("midi dispatcher started")
	return nil
}

// Stop emits an intensity-zero sweep and a pause toggle, per spec §4.8.
func (d *Dispatcher) Stop() error {
	d.sendIntensity(ccAutoloopIntensity, 0)
	d.sendIntensity(ccGroup1, 0)
	d.sendIntensity(ccGroup2, 0)
	d.sendIntensity(ccGroup3, 0)
	d.sendIntensity(ccGroup4, 0)
	if !d.paused {
		d.togglePause()
	}
	d.logger.Info("midi dispatcher stopped")
	return nil
}

func (d *Dispatcher) togglePause() {
	d.paused = !d.paused
	d.noteOnOff(NotePlayPause)
}

// OnSoundStart sends intensity-1 on the five tracked CC channels and, if
// the dispatcher was paused, toggles play.
func (d *Dispatcher) OnSoundStart() {
	d.sendIntensity(ccAutoloopIntensity, 1)
	d.sendIntensity(ccScriptedTrack, 0)
	d.sendIntensity(ccGroup1, 1)
	d.sendIntensity(ccGroup2, 1)
	d.sendIntensity(ccGroup3, 1)
	d.sendIntensity(ccGroup4, 1)
	if d.paused {
		d.togglePause()
	}
}

// OnSoundStop sends intensity-0 on the same channels and pauses if playing.
func (d *Dispatcher) OnSoundStop() {
	d.sendIntensity(ccAutoloopIntensity, 0)
	d.sendIntensity(ccScriptedTrack, 0)
	d.sendIntensity(ccGroup1, 0)
	d.sendIntensity(ccGroup2, 0)
	d.sendIntensity(ccGroup3, 0)
	d.sendIntensity(ccGroup4, 0)
	if !d.paused {
		d.togglePause()
	}
}

// SetAutoloop emits note-on then note-off ~10ms apart on channel.
func (d *Dispatcher) SetAutoloop(channel int) {
	ch := uint8(channel)
	d.sendMsg(midi.NoteOn(0, ch, 1))
	time.Sleep(autoloopNoteGap)
	d.sendMsg(midi.NoteOff(0, ch))
}

// SetSpecialEffect emits note-on and schedules a deactivation note-off
// after duration.
func (d *Dispatcher) SetSpecialEffect(channel int, duration time.Duration) {
	ch := uint8(channel)
	d.sendMsg(midi.NoteOn(0, ch, 1))
	d.delayed = append(d.delayed, DelayedEffect{
		Start:    d.now(),
		Duration: duration,
		Channel:  ch,
		Action:   Deactivate,
	})
}

// SetColorOverride clears all 9 overrides, then note-on on channel.
func (d *Dispatcher) SetColorOverride(channel int) {
	d.ClearColorOverrides()
	d.sendMsg(midi.NoteOn(0, uint8(channel), 1))
}

// ClearColorOverrides sends note-off on each of the 9 override channels.
func (d *Dispatcher) ClearColorOverrides() {
	for _, ch := range colorOverrideChannels {
		d.sendMsg(midi.NoteOff(0, ch))
	}
}

// Tick scans the delayed-effect list, firing and compacting entries whose
// deadline has passed. It is called from the Engine's 100ms periodic hook,
// on the main loop between audio buffer reads.
func (d *Dispatcher) Tick() {
	now := d.now()
	remaining := d.delayed[:0]
	for i := range d.delayed {
		e := d.delayed[i]
		if !e.done && !e.deadline().After(now) {
			switch e.Action {
			case Deactivate:
				d.sendMsg(midi.NoteOff(0, e.Channel))
			}
			e.done = true
		}
		if !e.done {
			remaining = append(remaining, e)
		}
	}
	d.delayed = remaining
}

// PendingDelayedEffects returns a defensive copy of not-yet-fired delayed
// effects, sorted by deadline, for tests and introspection.
func (d *Dispatcher) PendingDelayedEffects() []DelayedEffect {
	out := append([]DelayedEffect(nil), d.delayed...)
	sort.Slice(out, func(i, j int) bool { return out[i].deadline().Before(out[j].deadline()) })
	return out
}

func (d *Dispatcher) noteOnOff(note uint8) {
	d.sendMsg(midi.NoteOn(0, note, 1))
	d.sendMsg(midi.NoteOff(0, note))
}

func (d *Dispatcher) sendIntensity(cc uint8, v float64) {
	d.sendMsg(midi.ControlChange(0, cc, intensityValue(v)))
}

func intensityValue(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(127 * v))
}

func (d *Dispatcher) sendMsg(msg midi.Message) {
	if err := d.send(msg); err != nil {
		d.logger.Warn("midi send failed", "error", err)
	}
}
