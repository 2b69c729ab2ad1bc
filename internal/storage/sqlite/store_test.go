package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sightline-data/facetrack/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "facetrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.CreateRun("synthetic", track.DefaultManagerConfig())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	// Config round-trips through the stored JSON.
	var cfgJSON string
	require.NoError(t, store.QueryRow("SELECT config_json FROM runs WHERE run_id = ?", runID).Scan(&cfgJSON))
	assert.Contains(t, cfgJSON, "greedy")

	require.NoError(t, store.FinishRun(runID, 1200))
	var frames int64
	require.NoError(t, store.QueryRow("SELECT frames FROM runs WHERE run_id = ?", runID).Scan(&frames))
	assert.Equal(t, int64(1200), frames)

	assert.Error(t, store.FinishRun("no-such-run", 1), "unknown run is an error")
}

func TestEvents(t *testing.T) {
	store := openTestStore(t)
	runID, err := store.CreateRun("replay", track.DefaultManagerConfig())
	require.NoError(t, err)

	box := track.Box{X: 10, Y: 20, W: 80, H: 80}
	require.NoError(t, store.RecordEvent(runID, 1, EventEntry, 5, box))
	require.NoError(t, store.RecordEvent(runID, 2, EventEntry, 8, box))
	require.NoError(t, store.RecordEvent(runID, 1, EventExit, 40, box))

	assert.Error(t, store.RecordEvent(runID, 1, "lurking", 1, box), "unknown kind rejected")

	events, err := store.ListEvents(runID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventEntry, events[0].Kind)
	assert.Equal(t, int64(5), events[0].Frame)
	assert.Equal(t, box, events[0].Box)
	assert.Equal(t, EventExit, events[2].Kind, "ordered by frame")

	limited, err := store.ListEvents(runID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	n, err := store.VisitorCount(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "distinct confirmed tracks")
}

func TestSummaries(t *testing.T) {
	store := openTestStore(t)
	runID, err := store.CreateRun("replay", track.DefaultManagerConfig())
	require.NoError(t, err)

	sum := Summary{
		RunID: runID, TrackID: 3,
		FirstFrame: 10, LastFrame: 90, AgeFrames: 81,
		Confirmed: true, AvgSpeedPxF: 2.5,
	}
	require.NoError(t, store.RecordSummary(sum))

	// Upsert: same track writes again with later data.
	sum.LastFrame = 120
	sum.AgeFrames = 111
	require.NoError(t, store.RecordSummary(sum))

	sums, err := store.ListSummaries(runID)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, int64(120), sums[0].LastFrame)
	assert.True(t, sums[0].Confirmed)
	assert.InDelta(t, 2.5, sums[0].AvgSpeedPxF, 1e-12)
}

func TestMigrations(t *testing.T) {
	store := openTestStore(t)
	migrationsDir := "../../../migrations"

	require.NoError(t, store.MigrateUp(migrationsDir))

	version, dirty, err := store.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Migration 1 adds the label column.
	_, err = store.Exec("UPDATE face_events SET label = 'staff' WHERE 0")
	assert.NoError(t, err)

	require.NoError(t, store.MigrateDown(migrationsDir))
	_, err = store.Exec("UPDATE face_events SET label = 'staff' WHERE 0")
	assert.Error(t, err, "label column removed")
}
