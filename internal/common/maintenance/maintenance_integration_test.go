package maintenance

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signaltiming-optimizer/internal/common/db"
	"github.com/signaltiming-optimizer/internal/common/logger"
	"github.com/signaltiming-optimizer/pkg/signal/models"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set, skipping database test")
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		envOr("DB_PORT", "5432"),
		envOr("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		envOr("DB_NAME", "signalopt"),
		envOr("DB_SSLMODE", "disable"))

	database, err := db.New(connStr, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestPruneInactiveTimings(t *testing.T) {
	database := openTestDB(t)
	store := db.NewPlanStore(database)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	intersectionID := "TEST-" + uuid.NewString()
	require.NoError(t, store.UpsertIntersection(ctx, intersectionID, "Test Junction"))
	t.Cleanup(func() {
		conn := database.DB()
		conn.Exec("DELETE FROM optimization_results WHERE intersection_id = $1", intersectionID)
		conn.Exec("DELETE FROM signal_timings WHERE intersection_id = $1", intersectionID)
		conn.Exec("DELETE FROM intersections WHERE intersection_id = $1", intersectionID)
	})

	// oldest first; the last one becomes active
	var ids []int
	for cycle := 60; cycle <= 90; cycle += 10 {
		timing := models.DefaultSignalTiming()
		timing.CycleLength = cycle
		id, err := store.InsertSignalTiming(ctx, intersectionID, timing, true)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	activeID := ids[len(ids)-1]
	require.NoError(t, store.ActivateTiming(ctx, intersectionID, activeID))

	runID := uuid.New()
	for _, id := range []int{ids[0], ids[1], activeID} {
		_, err := store.InsertOptimizationResult(ctx, db.ResultRecord{
			RunID: runID, IntersectionID: intersectionID, TimingID: id, Fitness: 1,
		})
		require.NoError(t, err)
	}

	m := New(database, logger.Nop())

	// three inactive plans, keep the newest one
	result, err := m.PruneInactiveTimings(ctx, intersectionID, 1)
	require.NoError(t, err)
	assert.Equal(t, intersectionID, result.IntersectionID)
	assert.Equal(t, int64(2), result.TimingsDeleted)
	assert.Equal(t, int64(2), result.ResultsDeleted)

	var remaining []int
	rows, err := database.DB().Query(
		"SELECT id FROM signal_timings WHERE intersection_id = $1 ORDER BY id", intersectionID)
	require.NoError(t, err)
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		remaining = append(remaining, id)
	}
	require.NoError(t, rows.Close())
	assert.Equal(t, []int{ids[2], activeID}, remaining)

	active, err := store.GetActiveTiming(ctx, intersectionID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, activeID, active.ID)

	// nothing left beyond the kept plan
	result, err = m.PruneInactiveTimings(ctx, intersectionID, 1)
	require.NoError(t, err)
	assert.Zero(t, result.TimingsDeleted)
	assert.Zero(t, result.ResultsDeleted)
}
