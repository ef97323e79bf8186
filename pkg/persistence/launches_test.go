package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(id string, started time.Time) *LaunchRecord {
	return &LaunchRecord{
		RunID:       id,
		Target:      "10.10.10.5",
		Mode:        "host",
		Steps:       3,
		Fingerprint: "d41d8cd98f00b204e9800998ecf8427e",
		Built:       true,
		ExitCode:    0,
		Outcome:     OutcomeSuccess,
		Runtime:     "docker",
		StartedAt:   started,
		FinishedAt:  started.Add(42 * time.Second),
	}
}

func TestRecordAndGetLaunch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := sampleRecord("run-1", started)
	require.NoError(t, store.RecordLaunch(ctx, rec))

	got, err := store.GetLaunch(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Target, got.Target)
	assert.Equal(t, rec.Fingerprint, got.Fingerprint)
	assert.True(t, got.Built)
	assert.Equal(t, OutcomeSuccess, got.Outcome)
	assert.Equal(t, "docker", got.Runtime)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 42*time.Second, got.Duration())
}

func TestRecordLaunch_ReplacesByRunID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", time.Now())
	require.NoError(t, store.RecordLaunch(ctx, rec))

	rec.ExitCode = 2
	rec.Outcome = OutcomeFailed
	rec.Error = "isolated run exited with code 2"
	require.NoError(t, store.RecordLaunch(ctx, rec))

	got, err := store.GetLaunch(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExitCode)
	assert.Equal(t, OutcomeFailed, got.Outcome)

	all, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordLaunch_RequiresRunID(t *testing.T) {
	store := openTestStore(t)
	require.Error(t, store.RecordLaunch(context.Background(), &LaunchRecord{Outcome: OutcomeSuccess}))
}

func TestRecordLaunch_RejectsUnknownOutcome(t *testing.T) {
	store := openTestStore(t)
	rec := sampleRecord("run-x", time.Now())
	rec.Outcome = "exploded"
	require.Error(t, store.RecordLaunch(context.Background(), rec))
}

func TestGetLaunch_NotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetLaunch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordLaunch(ctx, sampleRecord(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "run-4", recent[0].RunID)
	assert.Equal(t, "run-3", recent[1].RunID)
	assert.Equal(t, "run-2", recent[2].RunID)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.RecordLaunch(ctx, sampleRecord("run-1", time.Now())))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	version, err := GetSchemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	_, err = store.GetLaunch(ctx, "run-1")
	require.NoError(t, err)
}

func TestMigrateFromVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE launches (
		run_id TEXT PRIMARY KEY, target TEXT NOT NULL, mode TEXT NOT NULL, steps INTEGER NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '', built INTEGER NOT NULL DEFAULT 0, exit_code INTEGER NOT NULL,
		outcome TEXT NOT NULL, error TEXT NOT NULL DEFAULT '', started_at TEXT NOT NULL, finished_at TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = GetSchemaVersion(ctx, db)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(ctx, db, 1))
	require.NoError(t, db.Close())

	store, err := Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordLaunch(ctx, sampleRecord("run-1", time.Now())))
	got, err := store.GetLaunch(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "docker", got.Runtime)
}
