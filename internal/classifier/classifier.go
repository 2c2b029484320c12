// Package classifier maps a track's genre tags and audio feature scores to
// a light-show type used to select effect pools.
package classifier

import "strings"

// LightShowType selects which effect pools the Effect Controller draws from.
type LightShowType int

const (
	Low LightShowType = iota
	Medium
	High
	HipHop
)

func (t LightShowType) String() string {
	switch t {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	case HipHop:
		return "HIP_HOP"
	default:
		return "UNKNOWN"
	}
}

var lowVocab = []string{"mellow", "soft", "golden", "trance"}
var mediumVocab = []string{"pop"}
var highVocab = []string{"dance", "hard", "techno", "house", "edm", "electro", "latin", "euro", "reggaeton"}
var hipHopVocab = []string{"hip hop"}

func matchesAny(haystack string, vocab []string) bool {
	for _, v := range vocab {
		if strings.Contains(haystack, v) {
			return true
		}
	}
	return false
}

// Classify implements the decision cascade from §4.2, in the listed order.
//
// NOTE: the source this cascade was distilled from treats an empty genre
// list as matching every genre class ("or not genres"). That would flip
// the HIGH/LOW tie-break below (isHigh && isLow both true) to MEDIUM for
// any untagged low-tempo/low-energy track, which contradicts this
// package's own bpm/energy/danceability fallback to LOW for exactly that
// case. Kept as four independent false flags for an empty list instead —
// see DESIGN.md.
func Classify(genres []string, bpm, energy, loudness, danceability float64) LightShowType {
	g := strings.ToLower(strings.Join(genres, " "))

	isLow := matchesAny(g, lowVocab)
	isMedium := matchesAny(g, mediumVocab)
	isHigh := matchesAny(g, highVocab)
	isHipHop := matchesAny(g, hipHopVocab)

	switch {
	case isHipHop && !isMedium && !isHigh:
		return HipHop
	// NOTE: preserved verbatim from the source — loudness/danceability are
	// unconditional here regardless of the HIGH genre flag. Do not "fix".
	case (isHigh && energy > 0.87) || loudness > -4.5 || danceability > 0.87:
		return High
	case isHigh && isLow:
		return Medium
	case bpm < 90 || energy < 0.4 || danceability < 0.3:
		return Low
	default:
		return Medium
	}
}
