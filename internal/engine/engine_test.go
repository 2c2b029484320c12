package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/cartomix/lightshow/internal/audiodev"
	"github.com/cartomix/lightshow/internal/effects"
	"github.com/cartomix/lightshow/internal/embedding"
	"github.com/cartomix/lightshow/internal/storage"
	"github.com/cartomix/lightshow/internal/trackanalysis"
	"github.com/stretchr/testify/require"
)

func silenceFrame(n int) []float64 { return make([]float64, n) }

func testEngine(t *testing.T, buffers [][]float64) (*Engine, *storage.DB) {
	t.Helper()
	db, err := storage.Open(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	enumerator := audiodev.NewFixtureEnumerator(
		[]audiodev.Info{{Index: 0, Name: "fixture", SampleRate: 44100}},
		map[int][][]float64{0: buffers},
	)
	dev, err := enumerator.Open(0, 256)
	require.NoError(t, err)

	cfg := Config{
		SampleRate:  44100,
		HopSize:     256,
		AudioDevice: dev,
		EffectPools: effects.Pools{},
		DB:          db,
		Logger:      slog.Default(),
		Now:         time.Now,
	}
	return New(cfg, embedding.NewDeterministicStub()), db
}

func TestRunProcessesFramesAndRecordsCleanShutdown(t *testing.T) {
	buffers := [][]float64{silenceFrame(256), silenceFrame(256), silenceFrame(256)}
	e, db := testEngine(t, buffers)

	err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, e.runID)

	row := db.QueryRow(`SELECT clean_shutdown, stopped_at FROM runs WHERE id = ?`, e.runID)
	var clean bool
	var stoppedAt *string
	require.NoError(t, row.Scan(&clean, &stoppedAt))
	require.True(t, clean)
	require.NotNil(t, stoppedAt)
}

func TestRunHonoursContextCancellation(t *testing.T) {
	e, _ := testEngine(t, [][]float64{silenceFrame(256)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	require.NoError(t, err)
}

func TestSnapshotReflectsAnalyserAndEffectState(t *testing.T) {
	e, _ := testEngine(t, [][]float64{silenceFrame(256)})

	e.analyser.Inject(&trackanalysis.TrackAnalysis{CurrentBeatCount: 5})
	e.publishSnapshot()

	snap := e.Snapshot()
	require.Equal(t, 5, snap.BeatCount)
	require.False(t, snap.OS2LLoggedOn)
	require.False(t, snap.MIDIConnected)
}

func TestCurrentBeatPositionTracksAnalyserState(t *testing.T) {
	e, _ := testEngine(t, [][]float64{silenceFrame(256)})
	e.analyser.Inject(&trackanalysis.TrackAnalysis{CurrentBeatCount: 3})

	pos, _, _ := e.CurrentBeatPosition()
	require.Equal(t, float64(3), pos)
}
