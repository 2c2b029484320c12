package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestSpectrumMagnitudeLength(t *testing.T) {
	s := NewSpectrum(44100)
	mag := s.Magnitude(sineWave(440, 44100, 512))
	require.Len(t, mag, AnalysisWindow/2)
}

func TestSpectrumPeaksNearExpectedBin(t *testing.T) {
	s := NewSpectrum(44100)
	mag := s.Magnitude(sineWave(1000, 44100, AnalysisWindow))

	peakBin := 0
	for i, v := range mag {
		if v > mag[peakBin] {
			peakBin = i
		}
	}
	expectedBin := int(1000 * AnalysisWindow / 44100)
	require.InDelta(t, expectedBin, peakBin, 3)
}

func TestMFCCLength(t *testing.T) {
	energies := make([]float64, MelBands)
	for i := range energies {
		energies[i] = float64(i + 1)
	}
	require.Len(t, MFCC(energies), MFCCCoefficients)
}

func TestIsSilent(t *testing.T) {
	require.True(t, IsSilent([]float64{0, 1e-5, -1e-5}))
	require.False(t, IsSilent([]float64{0, 2e-4}))
}

func TestOnsetEstimatorFiresOnSharpTransient(t *testing.T) {
	o := NewOnsetEstimator(8)
	silence := make([]float64, AnalysisWindow/2)
	loud := make([]float64, AnalysisWindow/2)
	for i := range loud {
		loud[i] = 10
	}

	o.Process(silence)
	for i := 0; i < 5; i++ {
		o.Process(silence)
	}
	fired, _ := o.Process(loud)
	require.True(t, fired)
}

func TestPitchEstimatorRecoversFrequency(t *testing.T) {
	p := NewPitchEstimator(44100)
	hz, confidence := p.Estimate(sineWave(220, 44100, 2048))
	require.InDelta(t, 220, hz, 10)
	require.Greater(t, confidence, 0.5)
}

func TestHzToMIDI(t *testing.T) {
	require.Equal(t, 69, HzToMIDI(440))
}

func TestTempoEstimatorConvergesNear120BPM(t *testing.T) {
	sampleRate := 44100
	hop := 256
	te := NewTempoEstimator(sampleRate, hop)

	period := 60.0 / 120.0
	framesPerBeat := int(period * float64(sampleRate) / float64(hop))

	beats := 0
	for i := 0; i < framesPerBeat*40; i++ {
		strength := 0.0
		if i%framesPerBeat == 0 {
			strength = 1.0
		}
		fired, _ := te.Process(strength)
		if fired {
			beats++
		}
	}
	_, bpm := te.Process(0)
	require.InDelta(t, 120, bpm, 15)
	require.Greater(t, beats, 0)
}
