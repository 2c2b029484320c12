package trackanalysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLightShowTypeDelegatesToClassifier(t *testing.T) {
	ta := &TrackAnalysis{
		Genres:       []string{"techno"},
		BPM:          128,
		Energy:       0.9,
		Loudness:     -3,
		Danceability: 0.9,
	}
	require.Equal(t, "HIGH", ta.LightShowType().String())
}

func TestLightShowTypeNilReceiverIsMedium(t *testing.T) {
	var ta *TrackAnalysis
	require.Equal(t, "MEDIUM", ta.LightShowType().String())
}

func TestSectionContaining(t *testing.T) {
	ta := &TrackAnalysis{
		AudioSections: []Section{
			{StartSec: 0},
			{StartSec: 30},
			{StartSec: 90},
		},
	}
	require.Equal(t, -1, ta.SectionContaining(-1))
	require.Equal(t, 0, ta.SectionContaining(0))
	require.Equal(t, 1, ta.SectionContaining(45))
	require.Equal(t, 2, ta.SectionContaining(200))
}

func TestStaticFetcherReturnsConfiguredAnalysis(t *testing.T) {
	want := &TrackAnalysis{TrackName: "fixture"}
	f := &StaticFetcher{Analysis: want}
	got, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Same(t, want, got)
}

func TestStaticFetcherErrorsWithoutAnalysis(t *testing.T) {
	f := &StaticFetcher{}
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
}

func TestPitchClassAndModeNames(t *testing.T) {
	require.Equal(t, "C", pitchClassName(0))
	require.Equal(t, "B", pitchClassName(11))
	require.Equal(t, "", pitchClassName(-1))
	require.Equal(t, "", pitchClassName(12))
	require.Equal(t, "major", modeName(1))
	require.Equal(t, "minor", modeName(0))
}
