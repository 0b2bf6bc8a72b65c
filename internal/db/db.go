// Package db persists meter sample series and disaggregation runs in SQLite.
// The schema is managed by golang-migrate with migrations embedded in the
// binary.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/monitoring"
	"github.com/banshee-data/power.report/internal/timeutil"
)

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("disaggregation run not found")

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

// NewDB opens (or creates) the database at path and applies all pending
// migrations.
func NewDB(path string) (*DB, error) {
	return NewDBWithClock(path, timeutil.RealClock{})
}

// NewDBWithClock is NewDB with an injectable clock for run timestamps.
func NewDBWithClock(path string, clock timeutil.Clock) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// foreign_keys is per connection, so keep a single one.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, clock: clock}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// RecordSamples stores samples under seriesID in a single transaction.
// A sample at an already stored timestamp replaces the old reading.
func (db *DB) RecordSamples(seriesID string, samples []gsp.PowerSample) error {
	if seriesID == "" {
		return errors.New("series ID must not be empty")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO power_samples (series_id, ts_unix_nano, power) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(seriesID, s.Timestamp.UnixNano(), s.Power); err != nil {
			return fmt.Errorf("failed to insert sample at %s: %w", s.Timestamp.Format(time.RFC3339), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	monitoring.Logf("db: recorded %d samples for series %q", len(samples), seriesID)
	return nil
}

// Samples returns the readings of seriesID in [from, to), ordered by time.
// A zero from or to leaves that end of the range open.
func (db *DB) Samples(seriesID string, from, to time.Time) ([]gsp.PowerSample, error) {
	query := `SELECT ts_unix_nano, power FROM power_samples WHERE series_id = ?`
	args := []interface{}{seriesID}
	if !from.IsZero() {
		query += ` AND ts_unix_nano >= ?`
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		query += ` AND ts_unix_nano < ?`
		args = append(args, to.UnixNano())
	}
	query += ` ORDER BY ts_unix_nano`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []gsp.PowerSample
	for rows.Next() {
		var ts int64
		var s gsp.PowerSample
		if err := rows.Scan(&ts, &s.Power); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Timestamp = time.Unix(0, ts).UTC()
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	SeriesID      string    `json:"series_id"`
	CreatedAt     time.Time `json:"created_at"`
	NumAppliances int       `json:"num_appliances"`
	Message       string    `json:"message,omitempty"`
}

// Run is a stored disaggregation result.
type Run struct {
	RunSummary
	Result gsp.Result `json:"result"`
}

// SaveRun persists result, its appliances and their reconstructed series
// and returns the new run ID.
func (db *DB) SaveRun(seriesID string, result *gsp.Result) (string, error) {
	if result == nil {
		return "", errors.New("nil result")
	}
	runID := uuid.New().String()

	var configJSON interface{}
	if result.Config != nil {
		b, err := json.Marshal(result.Config)
		if err != nil {
			return "", fmt.Errorf("failed to encode config: %w", err)
		}
		configJSON = string(b)
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO disaggregation_runs (
			run_id, series_id, created_at, num_appliances, message, config_json, stats_json
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seriesID, db.clock.Now().UnixNano(), result.NumAppliances, result.Message,
		configJSON, string(statsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, a := range result.Appliances {
		if err := insertAppliance(tx, runID, a); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

func insertAppliance(tx *sql.Tx, runID string, a gsp.Appliance) error {
	pairsJSON, err := json.Marshal(a.EventPairs)
	if err != nil {
		return fmt.Errorf("failed to encode event pairs: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO appliances (
			run_id, appliance_id, avg_power, max_power, activations, energy_wh,
			on_mean, off_mean, event_pairs_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.ID, a.AvgPower, a.MaxPower, a.Activations, a.EnergyWh,
		a.OnMean, a.OffMean, string(pairsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert appliance %d: %w", a.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO appliance_points (run_id, appliance_id, seq, ts_unix_nano, power) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range a.Timeseries {
		if _, err := stmt.Exec(runID, a.ID, i, p.Timestamp.UnixNano(), p.Power); err != nil {
			return fmt.Errorf("failed to insert point %d of appliance %d: %w", i, a.ID, err)
		}
	}
	return nil
}

// GetRun loads a run with all appliances and points.
func (db *DB) GetRun(runID string) (*Run, error) {
	var (
		run        Run
		createdAt  int64
		configJSON sql.NullString
		statsJSON  string
	)
	err := db.QueryRow(`
		SELECT run_id, series_id, created_at, num_appliances, message, config_json, stats_json
		FROM disaggregation_runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.SeriesID, &createdAt, &run.NumAppliances, &run.Message, &configJSON, &statsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()
	run.Result.NumAppliances = run.NumAppliances
	run.Result.Message = run.Message

	if configJSON.Valid {
		var cfg gsp.Config
		if err := json.Unmarshal([]byte(configJSON.String), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
		run.Result.Config = &cfg
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Result.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	appliances, err := db.appliances(runID)
	if err != nil {
		return nil, err
	}
	run.Result.Appliances = appliances
	return &run, nil
}

func (db *DB) appliances(runID string) ([]gsp.Appliance, error) {
	rows, err := db.Query(`
		SELECT appliance_id, avg_power, max_power, activations, energy_wh, on_mean, off_mean, event_pairs_json
		FROM appliances WHERE run_id = ? ORDER BY appliance_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appliances: %w", err)
	}
	var appliances []gsp.Appliance
	for rows.Next() {
		var a gsp.Appliance
		var pairsJSON string
		if err := rows.Scan(&a.ID, &a.AvgPower, &a.MaxPower, &a.Activations, &a.EnergyWh, &a.OnMean, &a.OffMean, &pairsJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan appliance: %w", err)
		}
		if err := json.Unmarshal([]byte(pairsJSON), &a.EventPairs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode event pairs: %w", err)
		}
		appliances = append(appliances, a)
	}
	// Close before the point queries; the pool holds one connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range appliances {
		points, err := db.points(runID, appliances[i].ID)
		if err != nil {
			return nil, err
		}
		appliances[i].Timeseries = points
	}
	return appliances, nil
}

func (db *DB) points(runID string, applianceID int) ([]gsp.TimeseriesPoint, error) {
	rows, err := db.Query(`
		SELECT ts_unix_nano, power FROM appliance_points
		WHERE run_id = ? AND appliance_id = ? ORDER BY seq`, runID, applianceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	defer rows.Close()

	var points []gsp.TimeseriesPoint
	for rows.Next() {
		var ts int64
		var p gsp.TimeseriesPoint
		if err := rows.Scan(&ts, &p.Power); err != nil {
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// ListRuns returns the runs of seriesID, newest first. An empty seriesID
// lists every run.
func (db *DB) ListRuns(seriesID string) ([]RunSummary, error) {
	query := `SELECT run_id, series_id, created_at, num_appliances, message FROM disaggregation_runs`
	var args []interface{}
	if seriesID != "" {
		query += ` WHERE series_id = ?`
		args = append(args, seriesID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var createdAt int64
		if err := rows.Scan(&r.RunID, &r.SeriesID, &createdAt, &r.NumAppliances, &r.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run. Appliances and points go with it.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM disaggregation_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
