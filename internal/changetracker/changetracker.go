// Package changetracker implements a MAD-based outlier detector over a
// rolling window of similarity scores, gated by a cooldown/"strong change"
// ladder, used by the Structural Change Detector.
package changetracker

import (
	"sort"
	"time"
)

// Verdict is the outcome of a single classification pass.
type Verdict int

const (
	NoChange Verdict = iota
	WeakChange
	StrongChange
)

const (
	similaritiesCapacity = 100
	outlierWindow        = time.Second
	similarityWindow     = 3 * time.Second
	cooldownWindow       = 10 * time.Second
	minOutliersRequired  = 4
	modifiedZThreshold   = 2.5
	lastChangeSpanWindow = 3 * time.Second
	lastChangeCapacity   = 3
)

// Tracker holds the rolling state described in spec §4.3.
type Tracker struct {
	similarities []float64

	outlierCount          int
	outlierWindowStart    time.Time
	similarityWindowStart time.Time
	bestSimilarity        float64

	cooldownStart time.Time

	lastChanges []time.Time

	now func() time.Time
}

// New creates a Tracker. nowFn lets tests inject a deterministic clock; a
// nil value uses time.Now.
func New(nowFn func() time.Time) *Tracker {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{now: nowFn}
}

// Observe folds a new similarity score into the tracker, performing the
// MAD-outlier update from §4.3 step 1-4. It does not classify — call
// Classify separately once the caller's block has been appended.
func (t *Tracker) Observe(s float64) {
	now := t.now()

	if t.outlierWindowStart.IsZero() {
		t.outlierWindowStart = now
	}
	if t.similarityWindowStart.IsZero() {
		t.similarityWindowStart = now
	}

	isOutlier := t.isOutlier(s)

	if now.Sub(t.outlierWindowStart) > outlierWindow {
		t.outlierCount = 0
		t.outlierWindowStart = now
	}
	if now.Sub(t.similarityWindowStart) > similarityWindow {
		t.bestSimilarity = 0
		t.similarityWindowStart = now
	}

	if isOutlier {
		t.outlierCount++
	}
	if s > t.bestSimilarity {
		t.bestSimilarity = s
	}

	t.similarities = append(t.similarities, s)
	if len(t.similarities) > similaritiesCapacity {
		t.similarities = t.similarities[len(t.similarities)-similaritiesCapacity:]
	}
}

// isOutlier computes the modified z-score of s against the current
// similarities window using median absolute deviation.
func (t *Tracker) isOutlier(s float64) bool {
	if len(t.similarities) == 0 {
		return false
	}
	med := median(t.similarities)
	deviations := make([]float64, len(t.similarities))
	for i, v := range t.similarities {
		deviations[i] = absf(v - med)
	}
	mad := median(deviations)
	if mad == 0 {
		return false
	}
	z := 0.6745 * (s - med) / mad
	return absf(z) > modifiedZThreshold
}

// Classify implements the NO/WEAK/STRONG ladder from §4.3.
func (t *Tracker) Classify() Verdict {
	now := t.now()

	if t.outlierCount <= minOutliersRequired {
		return NoChange
	}

	t.outlierCount = 0
	t.lastChanges = append(t.lastChanges, now)
	if len(t.lastChanges) > lastChangeCapacity {
		t.lastChanges = t.lastChanges[len(t.lastChanges)-lastChangeCapacity:]
	}

	if !t.cooldownStart.IsZero() && now.Sub(t.cooldownStart) < cooldownWindow {
		return NoChange
	}

	if len(t.lastChanges) == lastChangeCapacity {
		span := t.lastChanges[len(t.lastChanges)-1].Sub(t.lastChanges[0])
		if span < lastChangeSpanWindow {
			t.lastChanges = nil
			return StrongChange
		}
	}

	return WeakChange
}

// SetCooldown starts (or restarts) the cooldown window after an emitted
// change, per §4.4 step 6.
func (t *Tracker) SetCooldown() {
	t.cooldownStart = t.now()
}

// median is the middle value of the sorted sample, or the average of the
// two middle values for an even-length sample.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
