package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signaltiming-optimizer/pkg/signal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS intersections (
	id              SERIAL PRIMARY KEY,
	intersection_id TEXT UNIQUE NOT NULL,
	name            TEXT,
	num_approaches  INTEGER NOT NULL DEFAULT 4,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS signal_timings (
	id               SERIAL PRIMARY KEY,
	intersection_id  TEXT NOT NULL REFERENCES intersections(intersection_id),
	cycle_length     INTEGER NOT NULL,
	green_time_north DOUBLE PRECISION NOT NULL,
	green_time_south DOUBLE PRECISION NOT NULL,
	green_time_east  DOUBLE PRECISION NOT NULL,
	green_time_west  DOUBLE PRECISION NOT NULL,
	yellow_time      DOUBLE PRECISION NOT NULL DEFAULT 3.0,
	all_red_time     DOUBLE PRECISION NOT NULL DEFAULT 2.0,
	is_optimized     BOOLEAN NOT NULL DEFAULT false,
	is_active        BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS optimization_results (
	id                SERIAL PRIMARY KEY,
	run_id            UUID NOT NULL,
	intersection_id   TEXT NOT NULL REFERENCES intersections(intersection_id),
	signal_timing_id  INTEGER REFERENCES signal_timings(id),
	throughput        DOUBLE PRECISION,
	avg_delay         DOUBLE PRECISION,
	avg_stops         DOUBLE PRECISION,
	max_queue_length  DOUBLE PRECISION,
	level_of_service  TEXT,
	fitness_score     DOUBLE PRECISION,
	optimization_date TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_signal_timings_intersection ON signal_timings(intersection_id);
CREATE INDEX IF NOT EXISTS idx_results_run ON optimization_results(run_id);
`

// StoredTiming is a signal plan row
type StoredTiming struct {
	ID             int
	IntersectionID string
	Timing         models.SignalTiming
	IsOptimized    bool
	IsActive       bool
	CreatedAt      time.Time
}

// ResultRecord is one scored plan belonging to an optimization run
type ResultRecord struct {
	RunID          uuid.UUID
	IntersectionID string
	TimingID       int
	Result         models.SimulationResult
	Fitness        float64
}

// PlanStore persists intersections, their signal plans and optimization results.
// At most one plan per intersection is active at a time.
type PlanStore struct {
	db *DB
}

func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

func (ps *PlanStore) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	ps.db.logger.Debug("Schema ready")
	return nil
}

func (ps *PlanStore) UpsertIntersection(ctx context.Context, intersectionID, name string) error {
	query := `
		INSERT INTO intersections (intersection_id, name)
		VALUES ($1, $2)
		ON CONFLICT (intersection_id) DO UPDATE SET name = EXCLUDED.name
	`
	if _, err := ps.db.conn.ExecContext(ctx, query, intersectionID, name); err != nil {
		return fmt.Errorf("upserting intersection %s: %w", intersectionID, err)
	}
	return nil
}

// InsertSignalTiming stores a plan inactive and returns its id
func (ps *PlanStore) InsertSignalTiming(ctx context.Context, intersectionID string, timing models.SignalTiming, optimized bool) (int, error) {
	query := `
		INSERT INTO signal_timings (
			intersection_id, cycle_length,
			green_time_north, green_time_south, green_time_east, green_time_west,
			yellow_time, all_red_time, is_optimized, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
		RETURNING id
	`

	var id int
	err := ps.db.conn.QueryRowContext(ctx, query, timingArgs(intersectionID, timing, optimized)...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting signal timing: %w", err)
	}

	ps.db.logger.Info("Stored signal timing",
		"timing_id", id,
		"intersection_id", intersectionID,
		"cycle_length", timing.CycleLength,
		"is_optimized", optimized)

	return id, nil
}

// ActivateTiming makes the plan the only active one for its intersection
func (ps *PlanStore) ActivateTiming(ctx context.Context, intersectionID string, timingID int) error {
	tx, err := ps.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE signal_timings SET is_active = false WHERE intersection_id = $1 AND is_active = true",
		intersectionID)
	if err != nil {
		return fmt.Errorf("deactivating timings: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE signal_timings SET is_active = true WHERE id = $1 AND intersection_id = $2",
		timingID, intersectionID)
	if err != nil {
		return fmt.Errorf("activating timing: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("timing %d not found for intersection %s", timingID, intersectionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	ps.db.logger.Info("Activated signal timing", "timing_id", timingID, "intersection_id", intersectionID)
	return nil
}

// GetActiveTiming returns nil when the intersection has no active plan
func (ps *PlanStore) GetActiveTiming(ctx context.Context, intersectionID string) (*StoredTiming, error) {
	query := `
		SELECT id, intersection_id, cycle_length,
			green_time_north, green_time_south, green_time_east, green_time_west,
			yellow_time, all_red_time, is_optimized, is_active, created_at
		FROM signal_timings
		WHERE intersection_id = $1 AND is_active = true
		LIMIT 1
	`

	var st StoredTiming
	err := ps.db.conn.QueryRowContext(ctx, query, intersectionID).Scan(
		&st.ID,
		&st.IntersectionID,
		&st.Timing.CycleLength,
		&st.Timing.GreenNorth,
		&st.Timing.GreenSouth,
		&st.Timing.GreenEast,
		&st.Timing.GreenWest,
		&st.Timing.YellowTime,
		&st.Timing.AllRedTime,
		&st.IsOptimized,
		&st.IsActive,
		&st.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		ps.db.logger.Info("No active timing found", "intersection_id", intersectionID)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying active timing: %w", err)
	}

	return &st, nil
}

func (ps *PlanStore) InsertOptimizationResult(ctx context.Context, rec ResultRecord) (int, error) {
	query := `
		INSERT INTO optimization_results (
			run_id, intersection_id, signal_timing_id,
			throughput, avg_delay, avg_stops, max_queue_length,
			level_of_service, fitness_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int
	err := ps.db.conn.QueryRowContext(ctx, query, resultArgs(rec)...).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting optimization result: %w", err)
	}

	ps.db.logger.Debug("Stored optimization result", "result_id", id, "run_id", rec.RunID)
	return id, nil
}

func timingArgs(intersectionID string, t models.SignalTiming, optimized bool) []any {
	return []any{
		intersectionID, t.CycleLength,
		t.GreenNorth, t.GreenSouth, t.GreenEast, t.GreenWest,
		t.YellowTime, t.AllRedTime, optimized,
	}
}

func resultArgs(rec ResultRecord) []any {
	var timingID sql.NullInt64
	if rec.TimingID > 0 {
		timingID = sql.NullInt64{Int64: int64(rec.TimingID), Valid: true}
	}
	r := rec.Result
	return []any{
		rec.RunID.String(), rec.IntersectionID, timingID,
		r.Throughput, r.AvgDelay, r.AvgStops, r.MaxQueueLength,
		r.LevelOfService, rec.Fitness,
	}
}
