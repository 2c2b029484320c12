// Package dsp provides the shared spectral-analysis building blocks used
// by the Audio Analyser: a windowed FFT, a mel filterbank / MFCC stage,
// and onset/tempo/pitch/note estimators. The algorithms here are a
// streaming, per-call adaptation of the whole-track batch feature
// extractor pattern used elsewhere in the retrieval pack, generalized to
// run incrementally once per audio buffer instead of once per track.
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// AnalysisWindow is the fixed FFT size used for the phase-vocoder
// spectrum, MFCC, and mel-band energies.
const AnalysisWindow = 1024

// MelBands is the number of triangular mel filterbank channels.
const MelBands = 26

// MFCCCoefficients is the number of cepstral coefficients kept after DCT.
const MFCCCoefficients = 13

// Spectrum computes a Hann-windowed magnitude spectrum over a fixed
// AnalysisWindow, zero-padding or truncating frame as needed.
type Spectrum struct {
	fft        *fourier.FFT
	window     []float64
	sampleRate int
	melFilters [][]float64
}

// NewSpectrum builds a Spectrum analyzer for the given sample rate.
func NewSpectrum(sampleRate int) *Spectrum {
	window := make([]float64, AnalysisWindow)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(AnalysisWindow-1)))
	}
	return &Spectrum{
		fft:        fourier.NewFFT(AnalysisWindow),
		window:     window,
		sampleRate: sampleRate,
		melFilters: melFilterbank(MelBands, AnalysisWindow, sampleRate),
	}
}

// Magnitude returns the magnitude spectrum (length AnalysisWindow/2) of
// frame, which is first Hann-windowed and zero-padded/truncated to
// AnalysisWindow samples.
func (s *Spectrum) Magnitude(frame []float64) []float64 {
	windowed := make([]float64, AnalysisWindow)
	n := len(frame)
	if n > AnalysisWindow {
		n = AnalysisWindow
	}
	for i := 0; i < n; i++ {
		windowed[i] = frame[i] * s.window[i]
	}

	coeffs := s.fft.Coefficients(nil, windowed)
	mag := make([]float64, AnalysisWindow/2)
	for i := range mag {
		re, im := real(coeffs[i]), imag(coeffs[i])
		mag[i] = math.Sqrt(re*re + im*im)
	}
	return mag
}

// MelEnergies projects a magnitude spectrum onto the mel filterbank,
// returning one energy value per band (spec §4.5's "mel-band energies").
func (s *Spectrum) MelEnergies(magnitude []float64) []float64 {
	energies := make([]float64, len(s.melFilters))
	for i, filt := range s.melFilters {
		var e float64
		for j := 0; j < len(magnitude) && j < len(filt); j++ {
			e += magnitude[j] * magnitude[j] * filt[j]
		}
		energies[i] = e
	}
	return energies
}

// MFCC computes cepstral coefficients from mel-band energies via a DCT-II.
func MFCC(melEnergies []float64) []float64 {
	logEnergies := make([]float64, len(melEnergies))
	for i, e := range melEnergies {
		if e < 1e-10 {
			e = 1e-10
		}
		logEnergies[i] = math.Log(e)
	}

	mfcc := make([]float64, MFCCCoefficients)
	n := len(logEnergies)
	for i := 0; i < MFCCCoefficients; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += logEnergies[j] * math.Cos(math.Pi*float64(i)*(float64(j)+0.5)/float64(n))
		}
		mfcc[i] = sum
	}
	return mfcc
}

func melFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	hzToMel := func(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
	melToHz := func(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

	nyquist := float64(sampleRate) / 2
	lowMel := hzToMel(20)
	highMel := hzToMel(nyquist)

	melPoints := make([]float64, numFilters+2)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1)
	}

	hzPoints := make([]float64, numFilters+2)
	for i := range hzPoints {
		hzPoints[i] = melToHz(melPoints[i])
	}

	binPoints := make([]int, numFilters+2)
	for i := range binPoints {
		binPoints[i] = int(math.Floor(hzPoints[i] * float64(fftSize) / float64(sampleRate)))
	}

	filters := make([][]float64, numFilters)
	for i := 0; i < numFilters; i++ {
		filters[i] = make([]float64, fftSize/2)
		for j := binPoints[i]; j < binPoints[i+1] && j < fftSize/2; j++ {
			if binPoints[i+1] != binPoints[i] {
				filters[i][j] = float64(j-binPoints[i]) / float64(binPoints[i+1]-binPoints[i])
			}
		}
		for j := binPoints[i+1]; j < binPoints[i+2] && j < fftSize/2; j++ {
			if binPoints[i+2] != binPoints[i+1] {
				filters[i][j] = float64(binPoints[i+2]-j) / float64(binPoints[i+2]-binPoints[i+1])
			}
		}
	}
	return filters
}
