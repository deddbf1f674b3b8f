package db

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/swing.report/internal/oscillation"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoEstimate      = errors.New("no estimate recorded")
)

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the sqlite database at path without touching the schema.
func OpenDB(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &DB{DB: db, path: path}, nil
}

// NewDB opens the database at path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Session is one continuous recording from a single signal source.
type Session struct {
	ID        string             `json:"session_id"`
	Label     string             `json:"label"`
	StartedAt time.Time          `json:"started_at"`
	Config    oscillation.Config `json:"config"`
}

func (db *DB) CreateSession(label string, cfg oscillation.Config, startedAt time.Time) (*Session, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tracker config: %w", err)
	}
	s := &Session{
		ID:        uuid.NewString(),
		Label:     label,
		StartedAt: startedAt.UTC(),
		Config:    cfg,
	}
	_, err = db.Exec(
		`INSERT INTO sessions (session_id, label, started_at, config_json) VALUES (?, ?, ?, ?)`,
		s.ID, s.Label, s.StartedAt.UnixNano(), string(configJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s          Session
		startedAt  int64
		configJSON string
	)
	if err := row.Scan(&s.ID, &s.Label, &startedAt, &configJSON); err != nil {
		return s, err
	}
	s.StartedAt = time.Unix(0, startedAt).UTC()
	if err := json.Unmarshal([]byte(configJSON), &s.Config); err != nil {
		return s, fmt.Errorf("session %s has invalid config: %w", s.ID, err)
	}
	return s, nil
}

// Session returns the session with the given id, or ErrSessionNotFound.
func (db *DB) Session(id string) (*Session, error) {
	row := db.QueryRow(`SELECT session_id, label, started_at, config_json FROM sessions WHERE session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Sessions lists the most recent sessions first. A limit <= 0 returns all.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT session_id, label, started_at, config_json FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordResult stores one tracker result, and the extremum it reports if
// any.
func (db *DB) RecordResult(sessionID string, r oscillation.Result) error {
	return db.RecordResults(sessionID, []oscillation.Result{r})
}

// RecordResults stores results in a single transaction.
func (db *DB) RecordResults(sessionID string, results []oscillation.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sampleStmt, err := tx.Prepare(`INSERT INTO samples
		(session_id, t, raw, filtered, predicted, has_prediction, event)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer sampleStmt.Close()

	extremumStmt, err := tx.Prepare(`INSERT INTO extrema (session_id, t, value, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer extremumStmt.Close()

	for _, r := range results {
		if _, err := sampleStmt.Exec(sessionID, r.T, r.Raw, r.Filtered, r.Predicted, r.HasPrediction, r.Event.String()); err != nil {
			return fmt.Errorf("failed to insert sample at t=%.3f: %w", r.T, err)
		}
		if r.Event == oscillation.Neither {
			continue
		}
		if _, err := extremumStmt.Exec(sessionID, r.EventSample.T, r.EventSample.Value, r.Event.String()); err != nil {
			return fmt.Errorf("failed to insert %s at t=%.3f: %w", r.Event, r.EventSample.T, err)
		}
	}
	return tx.Commit()
}

// Samples returns the last limit samples of a session in time order. A limit
// <= 0 returns every sample. EventSample is not stored and is left zero; the
// located extremum is available from Extrema.
func (db *DB) Samples(sessionID string, limit int) ([]oscillation.Result, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT t, raw, filtered, predicted, has_prediction, event FROM (
			SELECT * FROM samples WHERE session_id = ? ORDER BY t DESC LIMIT ?
		) ORDER BY t ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []oscillation.Result
	for rows.Next() {
		var (
			r     oscillation.Result
			event string
		)
		if err := rows.Scan(&r.T, &r.Raw, &r.Filtered, &r.Predicted, &r.HasPrediction, &event); err != nil {
			return nil, err
		}
		if r.Event, err = oscillation.ParseExtremum(event); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Extremum is a stored peak or nadir.
type Extremum struct {
	T     float64              `json:"t"`
	Value float64              `json:"value"`
	Kind  oscillation.Extremum `json:"kind"`
}

// Extrema returns every peak and nadir of a session in time order.
func (db *DB) Extrema(sessionID string) ([]Extremum, error) {
	rows, err := db.Query(`SELECT t, value, kind FROM extrema WHERE session_id = ? ORDER BY t ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extremum
	for rows.Next() {
		var (
			e    Extremum
			kind string
		)
		if err := rows.Scan(&e.T, &e.Value, &kind); err != nil {
			return nil, err
		}
		if e.Kind, err = oscillation.ParseExtremum(kind); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Estimate is a tracker state snapshot taken at time T.
type Estimate struct {
	T     float64           `json:"t"`
	State oscillation.State `json:"state"`
}

func (db *DB) RecordEstimate(sessionID string, t float64, s oscillation.State) error {
	_, err := db.Exec(`INSERT INTO estimates
		(session_id, t, period, amplitude, bias, last_peak_time, has_last_peak,
		 last_nadir_value, has_last_nadir, peak_count, nadir_count, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, t, s.Period, s.Amplitude, s.Bias, s.LastPeakTime, s.HasLastPeak,
		s.LastNadirValue, s.HasLastNadir, s.PeakCount, s.NadirCount, s.SampleCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	return nil
}

// LatestEstimate returns the newest snapshot of a session, or ErrNoEstimate.
func (db *DB) LatestEstimate(sessionID string) (Estimate, error) {
	var e Estimate
	s := &e.State
	err := db.QueryRow(`SELECT t, period, amplitude, bias, last_peak_time, has_last_peak,
			last_nadir_value, has_last_nadir, peak_count, nadir_count, sample_count
		FROM estimates WHERE session_id = ? ORDER BY t DESC LIMIT 1`, sessionID).Scan(
		&e.T, &s.Period, &s.Amplitude, &s.Bias, &s.LastPeakTime, &s.HasLastPeak,
		&s.LastNadirValue, &s.HasLastNadir, &s.PeakCount, &s.NadirCount, &s.SampleCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNoEstimate
	}
	return e, err
}

// Estimates returns every snapshot of a session in time order.
func (db *DB) Estimates(sessionID string) ([]Estimate, error) {
	rows, err := db.Query(`SELECT t, period, amplitude, bias, last_peak_time, has_last_peak,
			last_nadir_value, has_last_nadir, peak_count, nadir_count, sample_count
		FROM estimates WHERE session_id = ? ORDER BY t ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var e Estimate
		s := &e.State
		if err := rows.Scan(&e.T, &s.Period, &s.Amplitude, &s.Bias, &s.LastPeakTime, &s.HasLastPeak,
			&s.LastNadirValue, &s.HasLastNadir, &s.PeakCount, &s.NadirCount, &s.SampleCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
