package effects

import (
	"testing"
	"time"

	"github.com/cartomix/lightshow/internal/trackanalysis"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	autoloops       []int
	specialEffects  []int
	colorOverrides  []int
	clearedOverrides int
}

func (f *fakeSink) SetAutoloop(channel int) { f.autoloops = append(f.autoloops, channel) }
func (f *fakeSink) SetSpecialEffect(channel int, duration time.Duration) {
	f.specialEffects = append(f.specialEffects, channel)
}
func (f *fakeSink) SetColorOverride(channel int) {
	f.colorOverrides = append(f.colorOverrides, channel)
}
func (f *fakeSink) ClearColorOverrides() { f.clearedOverrides++ }

func testPools() Pools {
	return Pools{
		Low:            []Effect{{Kind: Autoloop, Channel: 1}, {Kind: Autoloop, Channel: 2}},
		Medium:         []Effect{{Kind: Autoloop, Channel: 3}, {Kind: Autoloop, Channel: 4}},
		High:           []Effect{{Kind: Autoloop, Channel: 5}, {Kind: Autoloop, Channel: 6}},
		HipHop:         []Effect{{Kind: Autoloop, Channel: 7}},
		Special:        []Effect{{Kind: SpecialEffect, Channel: 10}, {Kind: SpecialEffect, Channel: 11}},
		ColorOverrides: []Effect{{Kind: ColorOverride, Channel: 20}, {Kind: ColorOverride, Channel: 21}},
	}
}

func trackWithSections(lightShowGenres []string, sections ...trackanalysis.Section) *trackanalysis.TrackAnalysis {
	return &trackanalysis.TrackAnalysis{
		Genres:        lightShowGenres,
		BPM:           128,
		Energy:        0.9,
		Loudness:      -3,
		Danceability:  0.9,
		AudioSections: sections,
	}
}

func TestChangeEffectNoSectionsResets(t *testing.T) {
	sink := &fakeSink{}
	c := New(testPools(), sink, func() time.Time { return time.Unix(0, 0) })
	c.ChangeEffect(10, &trackanalysis.TrackAnalysis{})
	require.Equal(t, -1, c.currentSectionIndex)
}

func TestChangeEffectLowMediumPoolAvoidsRepeat(t *testing.T) {
	sink := &fakeSink{}
	c := New(testPools(), sink, func() time.Time { return time.Unix(0, 0) })
	track := trackWithSections([]string{"pop"},
		trackanalysis.Section{StartSec: 0, Loudness: -10},
		trackanalysis.Section{StartSec: 30, Loudness: -10},
	)
	track.Genres = []string{"pop"}
	track.BPM = 110
	track.Energy = 0.5
	track.Loudness = -6
	track.Danceability = 0.6

	c.ChangeEffect(31, track)
	first := *c.lastEffect
	for i := 0; i < 20; i++ {
		c.ChangeEffect(31, track)
		require.NotEqual(t, first, *c.lastEffect)
		first = *c.lastEffect
	}
}

func TestChangeEffectHighEscalatesToSpecialOnLoudnessSpike(t *testing.T) {
	sink := &fakeSink{}
	c := New(testPools(), sink, func() time.Time { return time.Unix(0, 0) })
	track := trackWithSections([]string{"techno"},
		trackanalysis.Section{StartSec: 0, Loudness: -10},
		trackanalysis.Section{StartSec: 30, Loudness: -3},
	)
	c.ChangeEffect(1, track)
	require.NotNil(t, c.lastAudioSection)
	c.ChangeEffect(31, track)
	require.Equal(t, SpecialEffect, c.lastEffect.Kind)
	require.Len(t, sink.specialEffects, 1)
}

func TestColorOverrideCooldownSuppressesSecondOverride(t *testing.T) {
	sink := &fakeSink{}
	current := time.Unix(0, 0)
	c := New(testPools(), sink, func() time.Time { return current })
	track := trackWithSections([]string{"pop"},
		trackanalysis.Section{StartSec: 0, Loudness: -10},
		trackanalysis.Section{StartSec: 30, Loudness: -10},
	)

	c.ChangeEffect(31, track)
	require.Len(t, sink.colorOverrides, 1)

	current = current.Add(10 * time.Second)
	c.ChangeEffect(31, track)
	require.Len(t, sink.colorOverrides, 1)
	require.Equal(t, 1, sink.clearedOverrides)
}

func TestEffectString(t *testing.T) {
	require.Equal(t, "AUTOLOOP(3)", Effect{Kind: Autoloop, Channel: 3}.String())
	require.Equal(t, "OVERLAY(2)", Effect{Kind: Overlay, Overlay: 2}.String())
}
