package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mini-rodalies-3d/railsim/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a SQLite database connection with write serialization
type DB struct {
	conn    *sql.DB
	log     *logging.Logger
	writeMu sync.Mutex
}

// Connect opens a SQLite database with WAL mode enabled
func Connect(dbPath string, log *logging.Logger) (*DB, error) {
	if log == nil {
		log = logging.NewNop()
	}
	dsn := dbPath + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer; one connection plus writeMu keeps flushes
	// from the simulation and reads from the API out of each other's way.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Warn("failed to set pragma", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	log.Info("Connected to SQLite database", zap.String("path", dbPath))
	return &DB{conn: conn, log: log}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// EnsureSchema creates tables if they don't exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateRun inserts a run record and returns its ID. A run without an ID gets
// a fresh UUID.
func (db *DB) CreateRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO runs (run_id, started_at_utc, seed, ticks_planned, systems) VALUES (?, ?, ?, ?, ?)",
		run.ID, run.StartedAt.UTC().Format(time.RFC3339), int64(run.Seed), run.Ticks, strings.Join(run.Systems, ","),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

// FinishRun stamps the run with its end time and the ticks actually run
func (db *DB) FinishRun(ctx context.Context, runID string, ticks int) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.ExecContext(ctx,
		"UPDATE runs SET finished_at_utc = ?, ticks_run = ? WHERE run_id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// CountMovements returns how many movements of a kind were recorded for a run;
// an empty kind counts all of them
func (db *DB) CountMovements(ctx context.Context, runID, kind string) (int, error) {
	query := "SELECT COUNT(*) FROM movements WHERE run_id = ?"
	args := []any{runID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count movements: %w", err)
	}
	return n, nil
}

// LatenessStats returns the per-line summaries of a run
func (db *DB) LatenessStats(ctx context.Context, runID string) ([]LatenessRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, system, line, observation_count, lateness_mean, lateness_m2,
			late_count, on_time_count, max_lateness
		FROM stats_lateness
		WHERE run_id = ?
		ORDER BY system, line
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lateness stats: %w", err)
	}
	defer rows.Close()

	var out []LatenessRow
	for rows.Next() {
		var r LatenessRow
		if err := rows.Scan(&r.RunID, &r.System, &r.Line, &r.Count, &r.Mean, &r.m2, &r.Late, &r.OnTime, &r.Max); err != nil {
			return nil, fmt.Errorf("failed to scan lateness stats: %w", err)
		}
		r.fold(nil)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recorder returns a buffered recorder writing into the given run
func (db *DB) Recorder(runID string) Recorder {
	return &SQLiteRecorder{db: db, runID: runID}
}

// SQLiteRecorder buffers movements of one run
type SQLiteRecorder struct {
	buffer
	db    *DB
	runID string
}

// Flush writes buffered movements and folds their lateness into the run's
// statistics in a single transaction
func (r *SQLiteRecorder) Flush(ctx context.Context) error {
	ms := r.drain()
	if len(ms) == 0 {
		return nil
	}

	r.db.writeMu.Lock()
	defer r.db.writeMu.Unlock()

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movements (run_id, tick, system, line, kind, train_id, station_id, station_name,
			track_id, switch_id, planned_tick, lateness, scheduled, ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare movement statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		var lateness any
		if m.Scheduled {
			lateness = m.Lateness
		}
		_, err := stmt.ExecContext(ctx,
			r.runID, m.Tick, m.System.String(), nullString(m.Line.Code), string(m.Kind),
			nullTrain(m.Train), nullStation(m.Station), nullString(m.StationName),
			nullTrack(m.Track), nullSwitch(m.Switch), nullTick(m.PlannedTick), lateness,
			m.Scheduled, nullTick(m.Ticks),
		)
		if err != nil {
			return fmt.Errorf("failed to insert movement: %w", err)
		}
	}

	for key, values := range observations(ms) {
		row := LatenessRow{RunID: r.runID, System: key.system, Line: key.line}
		err := tx.QueryRowContext(ctx, `
			SELECT observation_count, lateness_mean, lateness_m2, late_count, on_time_count, max_lateness
			FROM stats_lateness
			WHERE run_id = ? AND system = ? AND line = ?
		`, r.runID, key.system, key.line).Scan(&row.Count, &row.Mean, &row.m2, &row.Late, &row.OnTime, &row.Max)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read lateness stats for %s: %w", key.line, err)
		}

		row.fold(values)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stats_lateness (run_id, system, line, observation_count, lateness_mean,
				lateness_m2, late_count, on_time_count, max_lateness)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (run_id, system, line) DO UPDATE SET
				observation_count = excluded.observation_count,
				lateness_mean = excluded.lateness_mean,
				lateness_m2 = excluded.lateness_m2,
				late_count = excluded.late_count,
				on_time_count = excluded.on_time_count,
				max_lateness = excluded.max_lateness
		`, r.runID, key.system, key.line, row.Count, row.Mean, row.m2, row.Late, row.OnTime, row.Max)
		if err != nil {
			return fmt.Errorf("failed to upsert lateness stats for %s: %w", key.line, err)
		}
	}

	return tx.Commit()
}
