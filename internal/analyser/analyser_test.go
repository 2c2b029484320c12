package analyser

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cartomix/lightshow/internal/trackanalysis"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingHandler struct {
	NopHandler
	soundStarts int
	soundStops  int
	onsets      int
	beats       []int
	bpmChanged  []bool
	notes       []int
}

func (h *recordingHandler) OnSoundStart()          { h.soundStarts++ }
func (h *recordingHandler) OnSoundStop()           { h.soundStops++ }
func (h *recordingHandler) OnOnset(strength float64) { h.onsets++ }
func (h *recordingHandler) OnBeat(beatCount int, bpm float64, bpmChanged bool) {
	h.beats = append(h.beats, beatCount)
	h.bpmChanged = append(h.bpmChanged, bpmChanged)
}
func (h *recordingHandler) OnNote(midiNote int) { h.notes = append(h.notes, midiNote) }

const sampleRate = 44100
const hopSize = 256

func silenceFrame() []float64 {
	return make([]float64, hopSize)
}

func sineFrame(freq float64, startSample int) []float64 {
	out := make([]float64, hopSize)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(startSample+i) / float64(sampleRate))
	}
	return out
}

func TestSilenceToSoundOnset(t *testing.T) {
	clock := newFakeClock()
	h := &recordingHandler{}
	a := New(sampleRate, hopSize, h, clock.now)

	// Onset-gates the play-state machine (§4.5.1), so SongStartTime never
	// moves during this silence: it still marks construction time once
	// the tone begins. 53 silent hops carry the clock past the 300ms
	// debounce window before the first real frame ever lands, so the
	// onset that fires on the silence-to-tone transition (guaranteed:
	// the onset history is all zeros up to that point) is the one that
	// crosses the threshold.
	const silentHops = 53
	for i := 0; i < silentHops; i++ {
		a.Process(silenceFrame())
		clock.advance(hopSize * time.Second / sampleRate)
	}
	for i := 0; i < 10; i++ {
		a.Process(sineFrame(220, i*hopSize))
		clock.advance(hopSize * time.Second / sampleRate)
	}

	require.Equal(t, 1, h.soundStarts)
	require.Equal(t, 0, h.soundStops)
}

func TestBeatCountMonotoneAndSongCurrentTimeNeverBeforeStart(t *testing.T) {
	clock := newFakeClock()
	h := &recordingHandler{}
	a := New(sampleRate, hopSize, h, clock.now)

	for i := 0; i < 200; i++ {
		a.Process(sineFrame(220, i*hopSize))
		require.False(t, a.State().SongCurrentTime.Before(a.State().SongStartTime))
		clock.advance(hopSize * time.Second / sampleRate)
	}

	for i := 1; i < len(h.beats); i++ {
		require.Equal(t, h.beats[i-1]+1, h.beats[i])
	}
}

func TestNoteRefractoryPeriod(t *testing.T) {
	clock := newFakeClock()
	h := &recordingHandler{}
	a := New(sampleRate, hopSize, h, clock.now)

	var lastNoteTime time.Time
	for i := 0; i < 400; i++ {
		before := len(h.notes)
		a.Process(sineFrame(440, i*hopSize))
		now := clock.now()
		if len(h.notes) > before {
			if !lastNoteTime.IsZero() {
				require.GreaterOrEqual(t, now.Sub(lastNoteTime), noteRefractory)
			}
			lastNoteTime = now
		}
		clock.advance(hopSize * time.Second / sampleRate)
	}
}

func TestFifteenMinuteResetDebounces(t *testing.T) {
	clock := newFakeClock()
	h := &recordingHandler{}
	a := New(sampleRate, hopSize, h, clock.now)

	clock.advance(16 * time.Minute)
	a.Process(sineFrame(220, 0))

	require.LessOrEqual(t, a.State().BeatCount, 2)
}

func TestInjectRealignsBeatCountAndSongStartTime(t *testing.T) {
	clock := newFakeClock()
	h := &recordingHandler{}
	a := New(sampleRate, hopSize, h, clock.now)

	track := &trackanalysis.TrackAnalysis{CurrentBeatCount: 42, ProgressMs: 5000}
	a.Inject(track)

	require.Equal(t, 42, a.State().BeatCount)
	require.Equal(t, clock.now().Add(-5*time.Second), a.State().SongStartTime)
}

func TestBeatPositionClampsToUnitInterval(t *testing.T) {
	s := newState(time.Unix(0, 0))
	s.BeatCount = 3
	s.LastBeatInstant = time.Unix(0, 0)
	s.TimeToLastBeatSec = 0.5

	require.Equal(t, 3.0, s.BeatPosition(time.Unix(0, 0)))
	require.InDelta(t, 3.5, s.BeatPosition(time.Unix(0, 0).Add(250*time.Millisecond)), 1e-9)
	require.Equal(t, 4.0, s.BeatPosition(time.Unix(0, 0).Add(time.Second)))
}
