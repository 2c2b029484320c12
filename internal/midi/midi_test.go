package midi

import (
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"github.com/stretchr/testify/require"
)

type fakeOut struct {
	open     bool
	messages [][]byte
}

func (f *fakeOut) Send(b []byte) error {
	f.messages = append(f.messages, append([]byte(nil), b...))
	return nil
}
func (f *fakeOut) Open() error                { f.open = true; return nil }
func (f *fakeOut) Close() error               { f.open = false; return nil }
func (f *fakeOut) IsOpen() bool               { return f.open }
func (f *fakeOut) String() string             { return "fake-out" }
func (f *fakeOut) Number() drivers.Number     { return 0 }
func (f *fakeOut) Underlying() interface{}    { return nil }

func newDispatcher(t *testing.T, now func() time.Time) (*Dispatcher, *fakeOut) {
	out := &fakeOut{}
	require.NoError(t, out.Open())
	d, err := New(out, nil, now)
	require.NoError(t, err)
	return d, out
}

func TestSetAutoloopSendsNoteOnThenNoteOff(t *testing.T) {
	d, out := newDispatcher(t, time.Now)
	d.SetAutoloop(7)
	require.Len(t, out.messages, 2)

	var on, off gomidi.Message = out.messages[0], out.messages[1]
	require.True(t, on.Is(gomidi.NoteOnMsg))
	require.True(t, off.Is(gomidi.NoteOffMsg))
}

func TestSetSpecialEffectSchedulesDelayedDeactivation(t *testing.T) {
	current := time.Unix(0, 0)
	d, out := newDispatcher(t, func() time.Time { return current })

	d.SetSpecialEffect(9, 30*time.Second)
	require.Len(t, out.messages, 1)
	require.Len(t, d.PendingDelayedEffects(), 1)

	current = current.Add(31 * time.Second)
	d.Tick()

	require.Len(t, out.messages, 2)
	require.Empty(t, d.PendingDelayedEffects())
}

func TestSetColorOverrideClearsThenSetsOne(t *testing.T) {
	d, out := newDispatcher(t, time.Now)
	d.SetColorOverride(55)
	require.Len(t, out.messages, len(colorOverrideChannels)+1)
}

func TestIntensityValueClampsAndScales(t *testing.T) {
	require.Equal(t, uint8(0), intensityValue(-1))
	require.Equal(t, uint8(127), intensityValue(2))
	require.Equal(t, uint8(64), intensityValue(0.5))
}

func TestOnSoundStartTogglesPauseWhenPaused(t *testing.T) {
	d, _ := newDispatcher(t, time.Now)
	d.paused = true
	d.OnSoundStart()
	require.False(t, d.paused)
}
