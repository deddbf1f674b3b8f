package db

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(testutil.TempDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSession(t *testing.T, db *DB, label string, startedAt time.Time) *Session {
	t.Helper()
	s, err := db.CreateSession(label, oscillation.DefaultConfig(), startedAt)
	require.NoError(t, err)
	return s
}

func TestNewDB_MigratesToLatest(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"sessions", "samples", "extrema", "estimates"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.MigrateDown(Migrations()))
	version, _, err := db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_extrema_session_t'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp(Migrations()))
	version, _, err = db.MigrateVersion(Migrations())
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestCreateSession_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	cfg := oscillation.DefaultConfig()
	cfg.PeriodGain = 0.25
	started := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

	s, err := db.CreateSession("garden swing", cfg, started)
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)

	got, err := db.Session(s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("Session() mismatch (-want +got):\n%s", diff)
	}

	_, err = db.Session("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound), "err = %v", err)
}

func TestSessions_NewestFirst(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := createTestSession(t, db, "a", base)
	b := createTestSession(t, db, "b", base.Add(time.Hour))
	c := createTestSession(t, db, "c", base.Add(2*time.Hour))

	all, err := db.Sessions(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := db.Sessions(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordResults_SamplesAndExtrema(t *testing.T) {
	db := setupTestDB(t)
	s := createTestSession(t, db, "run", time.Now())

	results := []oscillation.Result{
		{T: 0.00, Raw: 0.1, Filtered: 0.1, Predicted: 0.1},
		{T: 0.05, Raw: 0.3, Filtered: 0.2, Predicted: 0.2},
		{T: 0.10, Raw: 0.2, Filtered: 0.25, Predicted: 0.3, HasPrediction: true,
			Event: oscillation.Peak, EventSample: oscillation.Sample{T: 0.05, Value: 0.2}},
		{T: 0.15, Raw: -0.1, Filtered: 0.1, Predicted: 0.1, HasPrediction: true,
			Event: oscillation.Nadir, EventSample: oscillation.Sample{T: 0.10, Value: 0.05}},
	}
	require.NoError(t, db.RecordResults(s.ID, results[:3]))
	require.NoError(t, db.RecordResult(s.ID, results[3]))

	all, err := db.Samples(s.ID, 0)
	require.NoError(t, err)
	want := make([]oscillation.Result, len(results))
	for i, r := range results {
		r.EventSample = oscillation.Sample{}
		want[i] = r
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("Samples() mismatch (-want +got):\n%s", diff)
	}

	last2, err := db.Samples(s.ID, 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, 0.10, last2[0].T)
	assert.Equal(t, 0.15, last2[1].T)

	extrema, err := db.Extrema(s.ID)
	require.NoError(t, err)
	wantExtrema := []Extremum{
		{T: 0.05, Value: 0.2, Kind: oscillation.Peak},
		{T: 0.10, Value: 0.05, Kind: oscillation.Nadir},
	}
	if diff := cmp.Diff(wantExtrema, extrema); diff != "" {
		t.Errorf("Extrema() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordResults_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	s := createTestSession(t, db, "run", time.Now())

	// The second row repeats a timestamp and violates the primary key.
	err := db.RecordResults(s.ID, []oscillation.Result{{T: 1}, {T: 1}})
	require.Error(t, err)

	got, err := db.Samples(s.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordResult_UnknownSession(t *testing.T) {
	db := setupTestDB(t)
	err := db.RecordResult("no-such-session", oscillation.Result{T: 1})
	assert.Error(t, err, "foreign key should reject samples without a session")
}

func TestEstimates(t *testing.T) {
	db := setupTestDB(t)
	s := createTestSession(t, db, "run", time.Now())

	_, err := db.LatestEstimate(s.ID)
	assert.ErrorIs(t, err, ErrNoEstimate)

	first := oscillation.State{Period: 1.2, Amplitude: 0.4, LastPeakTime: 0.3, HasLastPeak: true, PeakCount: 1, SampleCount: 8}
	second := oscillation.State{
		Period: 1.15, Amplitude: 0.5, Bias: 0.01, LastPeakTime: 1.45, HasLastPeak: true,
		LastNadirValue: -0.48, HasLastNadir: true, PeakCount: 2, NadirCount: 1, SampleCount: 31,
	}
	require.NoError(t, db.RecordEstimate(s.ID, 0.4, first))
	require.NoError(t, db.RecordEstimate(s.ID, 1.55, second))

	latest, err := db.LatestEstimate(s.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(Estimate{T: 1.55, State: second}, latest); diff != "" {
		t.Errorf("LatestEstimate() mismatch (-want +got):\n%s", diff)
	}

	all, err := db.Estimates(s.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].State)
	assert.False(t, math.IsNaN(all[1].State.Period))
}
