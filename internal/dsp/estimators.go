package dsp

import (
	"math"
	"sort"
)

// OnsetEstimator fires on a positive spectral-flux excursion above an
// adaptive median threshold over recent history (spec §4.5.2).
type OnsetEstimator struct {
	prevSpectrum []float64
	history      []float64
	historyCap   int
}

// NewOnsetEstimator creates an estimator with the given history length
// (number of frames) used to compute the adaptive threshold.
func NewOnsetEstimator(historyCap int) *OnsetEstimator {
	if historyCap <= 0 {
		historyCap = 43 // ~1s at a ~23ms hop
	}
	return &OnsetEstimator{historyCap: historyCap}
}

// Process folds in a new magnitude spectrum and reports whether this
// frame is an onset, plus the flux strength that drove the decision.
func (o *OnsetEstimator) Process(magnitude []float64) (isOnset bool, strength float64) {
	if o.prevSpectrum == nil {
		o.prevSpectrum = append([]float64(nil), magnitude...)
		return false, 0
	}

	var flux float64
	for i := 0; i < len(magnitude) && i < len(o.prevSpectrum); i++ {
		diff := magnitude[i] - o.prevSpectrum[i]
		if diff > 0 {
			flux += diff * diff
		}
	}
	flux = math.Sqrt(flux)

	copy(o.prevSpectrum, magnitude)

	o.history = append(o.history, flux)
	if len(o.history) > o.historyCap {
		o.history = o.history[len(o.history)-o.historyCap:]
	}

	threshold := adaptiveThreshold(o.history)
	return flux > 0 && flux > threshold, flux
}

func adaptiveThreshold(history []float64) float64 {
	if len(history) < 2 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), history...)
	sort.Float64s(sorted)
	med := sorted[len(sorted)/2]
	return med * 1.5
}

// TempoEstimator tracks onset-strength history and reports a beat
// estimate via autocorrelation (spec §4.5.3), firing once per predicted
// beat period.
type TempoEstimator struct {
	sampleRate    int
	hopSize       int
	onsetStrength []float64
	bpm           float64
	framesToBeat  float64
	frameCount    int
}

// NewTempoEstimator creates an estimator for the given sample rate and
// per-call hop size (the analyser's buffer size).
func NewTempoEstimator(sampleRate, hopSize int) *TempoEstimator {
	return &TempoEstimator{sampleRate: sampleRate, hopSize: hopSize, bpm: 120}
}

// Process folds in this frame's onset strength and reports whether a beat
// fires on this call, plus the current BPM estimate.
func (t *TempoEstimator) Process(onsetStrength float64) (beat bool, bpm float64) {
	t.onsetStrength = append(t.onsetStrength, onsetStrength)
	const maxHistory = 512
	if len(t.onsetStrength) > maxHistory {
		t.onsetStrength = t.onsetStrength[len(t.onsetStrength)-maxHistory:]
	}

	if len(t.onsetStrength) >= 32 {
		t.bpm = t.estimateBPM()
	}

	hopDuration := float64(t.hopSize) / float64(t.sampleRate)
	t.framesToBeat = 60.0 / t.bpm / hopDuration

	t.frameCount++
	if t.framesToBeat <= 0 {
		return false, t.bpm
	}
	if float64(t.frameCount) >= t.framesToBeat {
		t.frameCount = 0
		return true, t.bpm
	}
	return false, t.bpm
}

func (t *TempoEstimator) estimateBPM() float64 {
	hopDuration := float64(t.hopSize) / float64(t.sampleRate)
	minLag := int(60.0 / 200.0 / hopDuration)
	maxLag := int(60.0 / 60.0 / hopDuration)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(t.onsetStrength) {
		maxLag = len(t.onsetStrength) - 1
	}
	if maxLag < minLag {
		return t.bpm
	}

	bestLag, bestCorr := minLag, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i < len(t.onsetStrength)-lag; i++ {
			corr += t.onsetStrength[i] * t.onsetStrength[i+lag]
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	bpm := 60.0 / (float64(bestLag) * hopDuration)
	if bpm < 60 {
		bpm = 60
	}
	if bpm > 200 {
		bpm = 200
	}
	return bpm
}

// PitchEstimator estimates a monophonic fundamental frequency via
// normalized autocorrelation over the analysis window (spec §4.5 step 1).
type PitchEstimator struct {
	sampleRate int
	minHz      float64
	maxHz      float64
}

// NewPitchEstimator creates an estimator bounded to a plausible musical
// pitch range.
func NewPitchEstimator(sampleRate int) *PitchEstimator {
	return &PitchEstimator{sampleRate: sampleRate, minHz: 60, maxHz: 1500}
}

// Estimate returns the estimated pitch in Hz and a confidence in [0,1]
// (the normalized autocorrelation peak).
func (p *PitchEstimator) Estimate(frame []float64) (hz, confidence float64) {
	n := len(frame)
	if n < 2 {
		return 0, 0
	}

	minLag := int(float64(p.sampleRate) / p.maxHz)
	maxLag := int(float64(p.sampleRate) / p.minHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag <= minLag {
		return 0, 0
	}

	var energy float64
	for _, s := range frame {
		energy += s * s
	}
	if energy == 0 {
		return 0, 0
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i < n-lag; i++ {
			corr += frame[i] * frame[i+lag]
		}
		normalized := corr / energy
		if normalized > bestCorr {
			bestCorr = normalized
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	hz = float64(p.sampleRate) / float64(bestLag)
	confidence = bestCorr
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return hz, confidence
}

// HzToMIDI converts a frequency in Hz to the nearest MIDI note number.
func HzToMIDI(hz float64) int {
	if hz <= 0 {
		return 0
	}
	return int(math.Round(69 + 12*math.Log2(hz/440.0)))
}

// IsSilent reports whether every element of the mel-band energies vector
// lies in (-1e-4, 1e-4), per spec §4.5.1.
func IsSilent(melEnergies []float64) bool {
	for _, e := range melEnergies {
		if e <= -1e-4 || e >= 1e-4 {
			return false
		}
	}
	return true
}
