// Package changedetector implements the Structural Change Detector: it
// aggregates audio into ~100ms blocks, embeds each block, and detects
// statistically significant changes between embeddings over a short
// rolling window, per spec §4.4.
package changedetector

import (
	"math"
	"time"

	"github.com/cartomix/lightshow/internal/analyser"
	"github.com/cartomix/lightshow/internal/changetracker"
	"github.com/cartomix/lightshow/internal/embedding"
	"github.com/cartomix/lightshow/internal/trackanalysis"
	"gonum.org/v1/gonum/floats"
)

const (
	audioLookbackSec     = 1.0
	embeddingLookbackSec = 2.0
	sectionHintWindow    = 5 * time.Second
)

// Detector runs the per-buffer aggregation/embedding/change pipeline.
type Detector struct {
	sampleRate    int
	aggBufferSize int

	aggBuffer []float64

	audioWindow    []float64
	audioCapacity  int

	embeddingWindow   [][]float64
	embeddingCapacity int

	model   embedding.Model
	tracker *changetracker.Tracker
	handler analyser.Handler
	now     func() time.Time
}

// New builds a Detector. bufferSize is the base per-call audio buffer
// size; the aggregate buffer used for one embedding pass is bufferSize*16
// samples, per spec §4.4 step 1.
func New(sampleRate, bufferSize int, model embedding.Model, handler analyser.Handler, nowFn func() time.Time) *Detector {
	if nowFn == nil {
		nowFn = time.Now
	}
	aggSize := bufferSize * 16
	blockDuration := float64(aggSize) / float64(sampleRate)
	embeddingCapacity := int(math.Ceil(embeddingLookbackSec / blockDuration))
	if embeddingCapacity < 2 {
		embeddingCapacity = 2
	}

	return &Detector{
		sampleRate:        sampleRate,
		aggBufferSize:     aggSize,
		audioCapacity:     int(float64(sampleRate) * audioLookbackSec),
		embeddingCapacity: embeddingCapacity,
		model:             model,
		tracker:           changetracker.New(nowFn),
		handler:           handler,
		now:               nowFn,
	}
}

// Process consumes one audio buffer. currentSec is the current song
// position (for section-hint gating); track may be nil if no external
// analysis is available yet.
func (d *Detector) Process(frame []float64, currentSec float64, track *trackanalysis.TrackAnalysis) {
	d.aggBuffer = append(d.aggBuffer, frame...)
	if len(d.aggBuffer) < d.aggBufferSize {
		return
	}
	aggregated := d.aggBuffer[:d.aggBufferSize]
	d.aggBuffer = d.aggBuffer[d.aggBufferSize:]

	d.audioWindow = append(d.audioWindow, aggregated...)
	if len(d.audioWindow) > 2*d.audioCapacity {
		d.audioWindow = d.audioWindow[len(d.audioWindow)-d.audioCapacity:]
	}
	if len(d.audioWindow) < d.audioCapacity {
		return
	}
	lastSecond := d.audioWindow[len(d.audioWindow)-d.audioCapacity:]

	blockEmbedding := meanReduce(d.model.Embed(lastSecond))
	d.embeddingWindow = append(d.embeddingWindow, blockEmbedding)
	if len(d.embeddingWindow) > 2*d.embeddingCapacity {
		d.embeddingWindow = d.embeddingWindow[len(d.embeddingWindow)-d.embeddingCapacity:]
	}
	if len(d.embeddingWindow) < d.embeddingCapacity {
		return
	}

	newest := d.embeddingWindow[len(d.embeddingWindow)-1]
	minSim := math.Inf(1)
	for i := 0; i < len(d.embeddingWindow)-1; i++ {
		sim := cosineSimilarity(newest, d.embeddingWindow[i])
		if sim < minSim {
			minSim = sim
		}
	}
	d.tracker.Observe(minSim)

	switch d.tracker.Classify() {
	case changetracker.StrongChange:
		d.emit(currentSec, track)
	case changetracker.WeakChange:
		if nearSectionBoundary(currentSec, track) {
			d.emit(currentSec, track)
		}
	}
}

func (d *Detector) emit(currentSec float64, track *trackanalysis.TrackAnalysis) {
	d.tracker.SetCooldown()
	if d.handler != nil {
		d.handler.OnSectionChange(currentSec, track)
	}
}

func nearSectionBoundary(currentSec float64, track *trackanalysis.TrackAnalysis) bool {
	if track == nil {
		return false
	}
	for _, s := range track.AudioSections {
		if math.Abs(currentSec-s.StartSec) <= sectionHintWindow.Seconds() {
			return true
		}
	}
	return false
}

func meanReduce(matrix [][]float64) []float64 {
	if len(matrix) == 0 {
		return nil
	}
	out := make([]float64, len(matrix[0]))
	for _, row := range matrix {
		for i, v := range row {
			out[i] += v
		}
	}
	n := float64(len(matrix))
	for i := range out {
		out[i] /= n
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
