package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var schemaPostgresSQL string

// Postgres is a run store backed by a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens and pings a pool for the given database URL
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// EnsureSchema creates tables if they don't exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaPostgresSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx,
		"INSERT INTO runs (run_id, started_at_utc, seed, ticks_planned, systems) VALUES ($1, $2, $3, $4, $5)",
		run.ID, run.StartedAt.UTC(), int64(run.Seed), run.Ticks, strings.Join(run.Systems, ","),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return run.ID, nil
}

func (p *Postgres) FinishRun(ctx context.Context, runID string, ticks int) error {
	tag, err := p.pool.Exec(ctx,
		"UPDATE runs SET finished_at_utc = $1, ticks_run = $2 WHERE run_id = $3",
		time.Now().UTC(), ticks, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (p *Postgres) LatenessStats(ctx context.Context, runID string) ([]LatenessRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT run_id::text, system, line, observation_count, lateness_mean, lateness_m2,
			late_count, on_time_count, max_lateness
		FROM stats_lateness
		WHERE run_id = $1
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

func (p *Postgres) Recorder(runID string) Recorder {
	return &PostgresRecorder{pool: p.pool, runID: runID}
}

// PostgresRecorder buffers movements of one run and copies them in bulk
type PostgresRecorder struct {
	buffer
	pool  *pgxpool.Pool
	runID string
}

var movementColumns = []string{
	"run_id", "tick", "system", "line", "kind", "train_id", "station_id", "station_name",
	"track_id", "switch_id", "planned_tick", "lateness", "scheduled", "ticks",
}

func (r *PostgresRecorder) Flush(ctx context.Context) error {
	ms := r.drain()
	if len(ms) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"movements"}, movementColumns,
		pgx.CopyFromSlice(len(ms), func(i int) ([]any, error) {
			m := ms[i]
			var lateness any
			if m.Scheduled {
				lateness = int32(m.Lateness)
			}
			return []any{
				r.runID, int32(m.Tick), m.System.String(), nullString(m.Line.Code), string(m.Kind),
				nullTrain(m.Train), nullStation(m.Station), nullString(m.StationName),
				nullTrack(m.Track), nullSwitch(m.Switch), nullInt32(m.PlannedTick), lateness,
				m.Scheduled, nullInt32(m.Ticks),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("failed to copy movements: %w", err)
	}

	for key, values := range observations(ms) {
		row := LatenessRow{RunID: r.runID, System: key.system, Line: key.line}
		err := tx.QueryRow(ctx, `
			SELECT observation_count, lateness_mean, lateness_m2, late_count, on_time_count, max_lateness
			FROM stats_lateness
			WHERE run_id = $1 AND system = $2 AND line = $3
			FOR UPDATE
		`, r.runID, key.system, key.line).Scan(&row.Count, &row.Mean, &row.m2, &row.Late, &row.OnTime, &row.Max)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to read lateness stats for %s: %w", key.line, err)
		}

		row.fold(values)

		_, err = tx.Exec(ctx, `
			INSERT INTO stats_lateness (run_id, system, line, observation_count, lateness_mean,
				lateness_m2, late_count, on_time_count, max_lateness)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
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

	return tx.Commit(ctx)
}

func nullInt32(v int) any {
	if v < 0 {
		return nil
	}
	return int32(v)
}
