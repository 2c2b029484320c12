package analyser

import "time"

// State holds everything the Analyser owns exclusively, per spec §3. It
// is reset when a sound stop fires after the silence timeout, and when
// the tracked song duration exceeds the 15-minute limit.
type State struct {
	IsPlaying           bool
	SongStartTime       time.Time
	SongCurrentTime     time.Time
	SilencePeriodStart  time.Time
	BeatCount           int
	LastBeatInstant     time.Time
	TimeToLastBeatSec   float64
	LastBPM             float64
	LastNoteInstant     time.Time

	MFCCHistory   [][]float64
	EnergyHistory [][]float64
}

func newState(now time.Time) *State {
	s := &State{}
	s.reset(now)
	return s
}

func (s *State) reset(now time.Time) {
	s.IsPlaying = false
	s.SongStartTime = now
	s.SongCurrentTime = now
	s.SilencePeriodStart = now
	s.BeatCount = 0
	s.LastBeatInstant = time.Time{}
	s.TimeToLastBeatSec = 0
	s.LastBPM = 0
	s.LastNoteInstant = time.Time{}
	s.MFCCHistory = nil
	s.EnergyHistory = nil
}

const historyCapacity = 256

func appendBounded(history [][]float64, v []float64) [][]float64 {
	history = append(history, v)
	if len(history) > historyCapacity {
		history = history[len(history)-historyCapacity:]
	}
	return history
}

// BeatPosition returns the fractional beat position at time t, per
// spec §4.5.3.
func (s *State) BeatPosition(t time.Time) float64 {
	if s.TimeToLastBeatSec <= 0 {
		return float64(s.BeatCount)
	}
	frac := t.Sub(s.LastBeatInstant).Seconds() / s.TimeToLastBeatSec
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return float64(s.BeatCount) + frac
}
