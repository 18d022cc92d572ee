package maintenance

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/signaltiming-optimizer/internal/common/db"
	"github.com/signaltiming-optimizer/internal/common/logger"
)

// CleanupResult represents the result of a cleanup operation
type CleanupResult struct {
	IntersectionID string
	TimingsDeleted int64
	ResultsDeleted int64
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	db     *db.DB
	logger logger.Logger
}

// New creates a new Maintenance instance
func New(database *db.DB, logger logger.Logger) *Maintenance {
	return &Maintenance{
		db:     database,
		logger: logger,
	}
}

// PruneInactiveTimings removes inactive signal plans of an intersection,
// keeping the active plan and the keepInactive most recent inactive ones.
// Results recorded against removed plans go with them.
func (m *Maintenance) PruneInactiveTimings(ctx context.Context, intersectionID string, keepInactive int) (CleanupResult, error) {
	result := CleanupResult{IntersectionID: intersectionID}
	if keepInactive < 0 {
		return result, fmt.Errorf("keepInactive must not be negative, got %d", keepInactive)
	}

	m.logger.Info("Starting cleanup of inactive signal timings",
		"intersection_id", intersectionID,
		"keep_inactive", keepInactive)

	tx, err := m.db.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM signal_timings
		WHERE intersection_id = $1 AND is_active = false
		ORDER BY created_at DESC, id DESC
		OFFSET $2
	`, intersectionID, keepInactive)
	if err != nil {
		return result, fmt.Errorf("selecting stale timings: %w", err)
	}

	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return result, fmt.Errorf("scanning timing id: %w", err)
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterating stale timings: %w", err)
	}

	if len(stale) == 0 {
		m.logger.Debug("No inactive timings to remove", "intersection_id", intersectionID)
		return result, nil
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM optimization_results WHERE signal_timing_id = ANY($1)", pq.Array(stale))
	if err != nil {
		return result, fmt.Errorf("deleting results: %w", err)
	}
	if result.ResultsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("getting rows affected: %w", err)
	}

	res, err = tx.ExecContext(ctx,
		"DELETE FROM signal_timings WHERE id = ANY($1)", pq.Array(stale))
	if err != nil {
		return result, fmt.Errorf("deleting timings: %w", err)
	}
	if result.TimingsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing transaction: %w", err)
	}

	m.logger.Info("Cleaned up inactive signal timings",
		"intersection_id", intersectionID,
		"timings_deleted", result.TimingsDeleted,
		"results_deleted", result.ResultsDeleted)

	// VACUUM cannot run inside a transaction
	if err := m.VacuumPlanTables(ctx); err != nil {
		m.logger.Warn("Failed to vacuum plan tables after cleanup", "error", err)
	}

	return result, nil
}

// VacuumPlanTables runs VACUUM ANALYZE on the plan and result tables
func (m *Maintenance) VacuumPlanTables(ctx context.Context) error {
	for _, table := range []string{"signal_timings", "optimization_results"} {
		if _, err := m.db.DB().ExecContext(ctx, "VACUUM ANALYZE "+table); err != nil {
			return fmt.Errorf("vacuuming %s: %w", table, err)
		}
	}
	return nil
}
