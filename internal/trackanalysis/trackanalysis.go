// Package trackanalysis defines the TrackAnalysis record produced by the
// external streaming-service analysis API and the narrow Fetcher contract
// the Engine uses to obtain it. Per spec §1, the fetcher's own
// OAuth/HTTP/retry logic is explicitly out of scope; only the parsed
// record is consumed.
package trackanalysis

import "github.com/cartomix/lightshow/internal/classifier"

// Section is one entry of an ordered, non-overlapping structural
// segmentation of a track.
type Section struct {
	StartSec      float64
	DurationSec   float64
	Loudness      float64
	BPM           float64
	Key           string
	Mode          string
	TimeSignature int
}

// TrackAnalysis mirrors spec §3's data model. One value exists per
// observed track change; it is shared read-only with the Engine and
// Analyser and is superseded wholesale by the next fetch.
type TrackAnalysis struct {
	TrackName  string
	AlbumName  string
	Artists    []string

	ProgressMs           int64
	DurationMs           int64
	FirstDownbeatMs      int64
	BeatsToFirstDownbeat int

	BPM           float64
	Key           string
	Mode          string
	TimeSignature int

	Acousticness     float64
	Danceability     float64
	Energy           float64
	Instrumentalness float64
	Liveness         float64
	Speechiness      float64
	Valence          float64
	Loudness         float64
	Tempo            float64

	Genres []string

	BeatStrengthsBySec []float64
	AudioSections      []Section

	// CurrentBeatCount lets an authoritative external source re-align the
	// Analyser's locally counted beats via inject(); see spec §4.5.5.
	CurrentBeatCount int
}

// LightShowType classifies the track using the current feature scores,
// per spec §3.
func (t *TrackAnalysis) LightShowType() classifier.LightShowType {
	if t == nil {
		return classifier.Medium
	}
	return classifier.Classify(t.Genres, t.BPM, t.Energy, t.Loudness, t.Danceability)
}

// SectionContaining returns the index of the last section whose StartSec
// is <= sec, or -1 if sec is before the first section.
func (t *TrackAnalysis) SectionContaining(sec float64) int {
	if t == nil {
		return -1
	}
	found := -1
	for i, s := range t.AudioSections {
		if s.StartSec <= sec {
			found = i
		} else {
			break
		}
	}
	return found
}
