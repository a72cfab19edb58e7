package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/rescuelens/internal/behavioral"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var (
	easyTwo  = behavioral.Cell{Complexity: "EasyMap", AgentBucket: "TwoAgents"}
	sweepT0  = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run1Path = "/data/EasyMap/TwoAgents/run1.json"
	run2Path = "/data/EasyMap/TwoAgents/run2.json"
)

func sampleSweep(started time.Time) (*behavioral.SweepResult, []behavioral.AggregateRow) {
	rate := 0.5
	result := &behavioral.SweepResult{
		Root:      "/data",
		RootFound: true,
		Cells: []behavioral.CellRuns{{
			Cell: easyTwo,
			Dir:  "/data/EasyMap/TwoAgents",
			Runs: []*behavioral.RunMetrics{
				{FilePath: run1Path, TotalRescues: 2, TotalSteps: 10, CommunicationSuccessRate: &rate, AgentSteps: map[string]int{"a": 3}},
				{FilePath: run2Path, TotalRescues: 4, TotalSteps: 12},
			},
			Failures: []behavioral.FileFailure{{FilePath: "/data/EasyMap/TwoAgents/bad.json", Error: "error reading run log: token too long"}},
		}},
		Files: []behavioral.RunFile{
			{Path: run1Path, Size: 120, ModTime: started.Add(-time.Hour)},
			{Path: run2Path, Size: 80, ModTime: started.Add(-2 * time.Hour)},
			{Path: "/data/EasyMap/TwoAgents/bad.json", Size: 9000},
		},
		FilesScanned: 3,
		FilesFailed:  1,
		BytesScanned: 9200,
		StartedAt:    started,
		FinishedAt:   started.Add(1500 * time.Millisecond),
	}
	return result, behavioral.Aggregate(result.Cells, nil)
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{name: "creates database successfully", dbPath: filepath.Join(t.TempDir(), "results.db")},
		{name: "handles in-memory database", dbPath: ":memory:"},
		{name: "creates parent directories if needed", dbPath: filepath.Join(t.TempDir(), "nested", "dir", "results.db")},
		{name: "returns error for unwritable path", dbPath: "/proc/rescuelens/results.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()

			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, len(migrations), version)
			assert.Equal(t, tt.dbPath, store.Path())

			for _, table := range []string{"sweeps", "run_snapshots", "aggregate_rows", "run_failures"} {
				exists, err := store.tableExists(table)
				require.NoError(t, err)
				assert.True(t, exists, table)
			}
		})
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	first, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dbPath)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.ApplyMigrations(context.Background()))

	var count int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count))
	assert.Equal(t, len(migrations), count)

	version, err := second.GetLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestNewStore_RejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "results.db")

	first, err := NewStore(dbPath)
	require.NoError(t, err)
	_, err = first.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
		len(migrations)+1, formatTime(time.Now()))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = NewStore(dbPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestRecordSweep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	result, rows := sampleSweep(sweepT0)

	id, err := store.RecordSweep(ctx, result, rows, ReportInfo{OutputPath: "detailed_results.csv", Format: "csv"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	sweep, err := store.GetSweep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, sweep.ID)
	assert.Equal(t, "/data", sweep.Root)
	assert.True(t, sweep.RootFound)
	assert.Equal(t, "detailed_results.csv", sweep.OutputPath)
	assert.Equal(t, "csv", sweep.Format)
	assert.True(t, sweep.StartedAt.Equal(sweepT0))
	assert.Equal(t, 1500*time.Millisecond, sweep.Duration())
	assert.Equal(t, 3, sweep.FilesScanned)
	assert.Equal(t, 1, sweep.FilesFailed)
	assert.Equal(t, int64(9200), sweep.BytesScanned)
	assert.Equal(t, 2, sweep.TotalRuns)

	stored, err := store.GetAggregates(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rows[0].Complexity, stored[0].Complexity)
	assert.Equal(t, rows[0].AgentCount, stored[0].AgentCount)
	assert.Equal(t, 2, stored[0].NumRuns)
	rescues, ok := stored[0].Stat(behavioral.MetricTotalRescues)
	require.True(t, ok)
	assert.Equal(t, 3.0, rescues.Mean)
	assert.Equal(t, 1.0, rescues.StdDev)

	failures, err := store.GetFailures(ctx, id)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "token too long")

	snapshots, err := store.GetSnapshots(ctx, id)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, run1Path, snapshots[0].FilePath)
	require.NotNil(t, snapshots[0].CommunicationSuccessRate)
	assert.Equal(t, 0.5, *snapshots[0].CommunicationSuccessRate)
}

func TestRecordSweep_NilResult(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RecordSweep(context.Background(), nil, nil, ReportInfo{})
	assert.Error(t, err)
}

func TestRecordSweep_MissingRoot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.RecordSweep(ctx, &behavioral.SweepResult{Root: "/missing", StartedAt: sweepT0, FinishedAt: sweepT0}, nil, ReportInfo{})
	require.NoError(t, err)

	sweep, err := store.GetSweep(ctx, id)
	require.NoError(t, err)
	assert.False(t, sweep.RootFound)
	assert.Equal(t, 0, sweep.TotalRuns)

	rows, err := store.GetAggregates(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListSweeps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		result, rows := sampleSweep(sweepT0.Add(time.Duration(i) * time.Hour))
		id, err := store.RecordSweep(ctx, result, rows, ReportInfo{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := store.ListSweeps(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	limited, err := store.ListSweeps(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetSweep_Prefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	result, rows := sampleSweep(sweepT0)

	id, err := store.RecordSweep(ctx, result, rows, ReportInfo{})
	require.NoError(t, err)

	sweep, err := store.GetSweep(ctx, id[:8])
	require.NoError(t, err)
	assert.Equal(t, id, sweep.ID)

	_, err = store.GetSweep(ctx, "zzzzzzzz")
	assert.ErrorIs(t, err, ErrSweepNotFound)

	_, err = store.GetSweep(ctx, "")
	assert.Error(t, err)
}

func TestGetSweep_AmbiguousPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"abc-1", "abc-2"} {
		_, err := store.db.ExecContext(ctx,
			`INSERT INTO sweeps (id, root, root_found, started_at, finished_at) VALUES (?, '/data', 1, ?, ?)`,
			id, formatTime(sweepT0), formatTime(sweepT0))
		require.NoError(t, err)
	}

	_, err := store.GetSweep(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	sweep, err := store.GetSweep(ctx, "abc-2")
	require.NoError(t, err)
	assert.Equal(t, "abc-2", sweep.ID)
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 500, time.FixedZone("X", 3600))
	got, err := parseTime(formatTime(ts))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))

	assert.Less(t, formatTime(sweepT0), formatTime(sweepT0.Add(500*time.Millisecond)))

	zero, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}
