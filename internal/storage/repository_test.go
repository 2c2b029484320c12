package storage

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadCredentialsAbsentReturnsNil(t *testing.T) {
	db := openTestDB(t)
	creds, err := db.LoadCredentials()
	require.NoError(t, err)
	require.Nil(t, creds)
}

func TestSaveAndLoadCredentialsRoundTrips(t *testing.T) {
	db := openTestDB(t)
	want := Credentials{ClientID: "id", ClientSecret: "secret", TokenURL: "https://x/token", BaseURL: "https://x"}
	require.NoError(t, db.SaveCredentials(want))

	got, err := db.LoadCredentials()
	require.NoError(t, err)
	require.Equal(t, &want, got)

	want.ClientSecret = "rotated"
	require.NoError(t, db.SaveCredentials(want))
	got, err = db.LoadCredentials()
	require.NoError(t, err)
	require.Equal(t, "rotated", got.ClientSecret)
}

func TestOverlayEffectsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveOverlayEffect(OverlayEffectRecord{ID: 1, Label: "strobe", StartOffset: 0, OriginalLength: 64}))
	require.NoError(t, db.SaveOverlayEffect(OverlayEffectRecord{ID: 2, Label: "wash", StartOffset: 64, OriginalLength: 32}))

	effects, err := db.LoadOverlayEffects()
	require.NoError(t, err)
	require.Len(t, effects, 2)
	require.Equal(t, "strobe", effects[0].Label)
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartRun(time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, db.FinishRun(id, time.Now(), true, "HIGH"))
}
