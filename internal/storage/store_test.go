package storage

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

var discard = log.New(io.Discard, "", 0)

func profile(userID string, base float64) assessment.UserCalibrationData {
	p := assessment.UserCalibrationData{
		UserID:    userID,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for i, info := range assessment.AllZoneNames {
		avg := base + float64(i)*0.5
		p.Zones = append(p.Zones, assessment.ZoneCalibration{
			Name:       info.Name,
			AvgSpeed:   avg,
			SpeedRange: assessment.CalculateSpeedRange(avg),
		})
	}
	return p
}

func assertSameProfile(t *testing.T, want, got assessment.UserCalibrationData) {
	t.Helper()
	assert.Equal(t, want.UserID, got.UserID)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", want.Timestamp, got.Timestamp)
	assert.Equal(t, want.Zones, got.Zones)
}

// runStoreContract exercises behavior every CalibrationStore shares.
func runStoreContract(t *testing.T, store CalibrationStore) {
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	first := profile("runner-1", 2.0)
	require.NoError(t, store.Save(ctx, first))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	assertSameProfile(t, first, got)

	second := profile("runner-1", 2.4)
	second.Timestamp = second.Timestamp.Add(time.Hour)
	require.NoError(t, store.Save(ctx, second))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assertSameProfile(t, second, got)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Clear(ctx), "clearing twice is harmless")

	empty := assessment.UserCalibrationData{UserID: "nobody", Timestamp: first.Timestamp}
	require.NoError(t, store.Save(ctx, empty))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Zones)
}

func TestFileStore_Contract(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "calibration.json"), discard)
	runStoreContract(t, store)
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := OpenSQL(DialectSQLite, "file::memory:", discard)
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestFileStore_KeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"theme": "dark"}`), 0o644))

	store := NewFileStore(path, discard)
	require.NoError(t, store.Save(context.Background(), profile("runner-2", 2.0)))
	require.NoError(t, store.Clear(context.Background()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme": "dark"}`, string(raw))
}

func TestFileStore_RejectsInvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store := NewFileStore(path, discard)

	require.NoError(t, os.WriteFile(path, []byte(`{"userCalibrationData": {"userId": 5, "zones": []}}`), 0o644))
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDocument)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSQLiteStore_RejectsInvalidDocument(t *testing.T) {
	store, err := OpenSQL(DialectSQLite, "file::memory:", discard)
	require.NoError(t, err)
	defer store.Close()

	doc := `{"userId": "x", "timestamp": "2026-03-01T09:00:00Z", "zones": [{"name": "Zone9", "avgSpeed": 2, "speedRange": {"min": 1, "max": 3}}]}`
	_, err = store.DB().Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)`, CalibrationKey, doc, time.Now().UTC())
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.db")
	want := profile("runner-3", 2.6)

	store, err := Open(Options{Kind: KindSQLite, Path: path}, discard)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), want))
	require.NoError(t, store.Close())

	store, err = Open(Options{Kind: KindSQLite, Path: path}, discard)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assertSameProfile(t, want, got)
}

func TestOpen(t *testing.T) {
	store, err := Open(Options{Kind: "FILE", Path: filepath.Join(t.TempDir(), "c.json")}, discard)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = Open(Options{Kind: KindPostgres}, discard)
	assert.Error(t, err)

	_, err = Open(Options{Kind: "redis"}, discard)
	assert.ErrorContains(t, err, "unknown storage kind")
}

func TestDefaultPath_UsesXDGDataHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := DefaultPath("calibration.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assessment-trainer", "calibration.json"), path)
	assert.DirExists(t, filepath.Dir(path))
}

func TestRebind(t *testing.T) {
	assert.Equal(t, selectSQL, rebind(DialectSQLite, selectSQL))
	assert.Equal(t,
		"INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)\nON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		rebind(DialectPostgres, upsertSQL))
}
